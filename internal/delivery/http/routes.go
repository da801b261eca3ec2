package http

import (
	"github.com/chatcart/backend/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router.
// Cart and merchant routes are mounted only when merchant is non-nil,
// and the admin group only when an admin token is configured.
func SetupRouter(cfg *config.Config, handler *Handler, merchant *MerchantHandler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		stores := v1.Group("/stores/:storeId")
		{
			stores.POST("/chat", handler.Chat)
			stores.POST("/recommendations", handler.Recommendations)
			if merchant != nil {
				stores.POST("/cart/items", merchant.AddToCart)
			}
		}

		if merchant != nil {
			v1.GET("/shops/:shopDomain", merchant.StoreByDomain)

			if cfg.Server.AdminToken != "" {
				admin := v1.Group("/admin/stores/:storeId")
				admin.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
				{
					admin.POST("/products/sync", merchant.SyncProducts)
					admin.PUT("/training", merchant.SaveTrainingSnippet)
					admin.GET("/analytics", merchant.Analytics)
					admin.GET("/carts/abandoned", merchant.AbandonedCarts)
				}
			} else {
				logger.Warn("admin token not configured, merchant admin routes disabled")
			}
		}
	}

	return router
}
