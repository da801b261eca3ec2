package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatcart/backend/config"
	httpDelivery "github.com/chatcart/backend/internal/delivery/http"
	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/infrastructure/cache"
	"github.com/chatcart/backend/internal/infrastructure/llm"
	"github.com/chatcart/backend/internal/infrastructure/postgres"
	"github.com/chatcart/backend/internal/platform/logger"
	"github.com/chatcart/backend/internal/usecase"
	"go.uber.org/zap"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("starting ChatCart backend",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("modelProvider", cfg.Model.Provider),
		zap.String("cacheType", cfg.Cache.Type))

	db, err := postgres.Open(ctx, postgres.Config{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeCache, checks, err := newCache(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeCache()

	model, closeModel, err := newModelClient(ctx, cfg, store, zl)
	if err != nil {
		return err
	}
	defer closeModel()

	discovery := usecase.NewDiscoveryService(model, usecase.DiscoveryConfig{
		ResultLimit:        cfg.Discovery.ResultLimit,
		MaxLimit:           cfg.Discovery.MaxLimit,
		HistoryWindow:      cfg.Discovery.HistoryWindow,
		MinCoverage:        cfg.Discovery.MinCoverage,
		ImageFallbackCount: cfg.Discovery.ImageFallbackCount,
	}, zl.Named("discovery"))

	stores := postgres.NewStoreRepository(db)
	catalog := postgres.NewCatalogRepository(db)
	conversations := postgres.NewConversationRepository(db)
	analytics := postgres.NewAnalyticsRepository(db)
	chat := usecase.NewChatService(
		discovery,
		catalog,
		stores,
		conversations,
		analytics,
		store,
		usecase.ChatServiceConfig{
			CacheTTL:      cfg.Cache.TTL,
			HistoryWindow: cfg.Discovery.HistoryWindow,
		},
		zl.Named("chat"),
	)

	carts := usecase.NewCartService(
		catalog,
		conversations,
		postgres.NewCartRepository(db),
		analytics,
		usecase.CartServiceConfig{AbandonAfter: cfg.Cart.AbandonAfter},
		zl.Named("cart"),
	)
	merchant := usecase.NewMerchantService(stores, catalog, analytics, store, zl.Named("merchant"))

	handler := httpDelivery.NewHandler(chat, zl.Named("http"), checks...)
	merchantHandler := httpDelivery.NewMerchantHandler(carts, merchant, zl.Named("http"))
	router := httpDelivery.SetupRouter(cfg, handler, merchantHandler, zl.Named("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Model calls with retries can take a while
		WriteTimeout: cfg.Model.Timeout*time.Duration(cfg.Model.MaxRetries+1) + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache builds the configured cache and the health checks for the backing stores
func newCache(ctx context.Context, cfg *config.Config, db *sql.DB) (domain.CacheRepository, func(), []httpDelivery.HealthCheck, error) {
	checks := []httpDelivery.HealthCheck{{Name: "postgres", Check: db.PingContext}}

	if cfg.Cache.Type == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.Cache.RedisURL, KeyPrefix: "chatcart:"})
		if err != nil {
			return nil, nil, nil, err
		}
		checks = append(checks, httpDelivery.HealthCheck{Name: "redis", Check: rc.Ping})
		return rc, func() { rc.Close() }, checks, nil
	}

	mc := cache.NewMemoryCache(0)
	return mc, func() { mc.Close() }, checks, nil
}

// newModelClient selects the provider and optionally wraps it with the completion cache
func newModelClient(ctx context.Context, cfg *config.Config, store domain.CacheRepository, zl *zap.Logger) (domain.ModelClient, func(), error) {
	clientCfg := llm.ClientConfig{
		Timeout:           cfg.Model.Timeout,
		MaxRetries:        cfg.Model.MaxRetries,
		RequestsPerSecond: cfg.Model.RequestsPerSecond,
		Burst:             cfg.Model.Burst,
	}
	modelLogger := zl.Named("llm")

	var (
		model     domain.ModelClient
		closeFunc = func() {}
	)
	switch cfg.Model.Provider {
	case llm.ProviderOpenAI:
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.Model.APIKey,
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Name,
		}, clientCfg, modelLogger)
		if err != nil {
			return nil, nil, err
		}
		model = c
	default:
		c, closeGemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey: cfg.Model.APIKey,
			Model:  cfg.Model.Name,
		}, clientCfg, modelLogger)
		if err != nil {
			return nil, nil, err
		}
		model = c
		closeFunc = func() {
			if err := closeGemini(); err != nil {
				modelLogger.Warn("failed to close gemini client", zap.Error(err))
			}
		}
	}

	if cfg.Model.CacheCompletions {
		modelLogger.Info("completion cache enabled", zap.Duration("ttl", cfg.Cache.CompletionTTL))
		model = llm.NewCachedClient(model, store, cfg.Cache.CompletionTTL, modelLogger)
	}
	return model, closeFunc, nil
}
