package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CartUseCase is the cart surface the merchant handler depends on
type CartUseCase interface {
	AddToCart(ctx context.Context, req *usecase.AddToCartRequest) (*domain.CartSession, error)
	AbandonedCarts(ctx context.Context, storeID string, hoursBack int) ([]domain.CartSession, error)
}

// MerchantUseCase is the store administration surface
type MerchantUseCase interface {
	StoreByDomain(ctx context.Context, shopDomain string) (*domain.Store, error)
	SyncProducts(ctx context.Context, storeID string, products []domain.Product) (int, error)
	SaveTrainingSnippet(ctx context.Context, snippet domain.TrainingSnippet) (*domain.TrainingSnippet, error)
	Analytics(ctx context.Context, storeID string, days int) (*domain.AnalyticsSummary, error)
}

// MerchantHandler serves cart and store administration endpoints
type MerchantHandler struct {
	cart     CartUseCase
	merchant MerchantUseCase
	logger   *zap.Logger
}

// NewMerchantHandler creates a new merchant handler
func NewMerchantHandler(cart CartUseCase, merchant MerchantUseCase, logger *zap.Logger) *MerchantHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MerchantHandler{cart: cart, merchant: merchant, logger: logger}
}

// AddToCartBody is the body of POST /stores/:storeId/cart/items
type AddToCartBody struct {
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId" binding:"required"`
	ProductID      string `json:"productId" binding:"required"`
	Quantity       int    `json:"quantity"`
}

// SyncProduct is one platform product in a catalog sync batch
type SyncProduct struct {
	ShopifyProductID int64    `json:"shopifyProductId"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Vendor           string   `json:"vendor"`
	ProductType      string   `json:"productType"`
	Tags             []string `json:"tags"`
	Handle           string   `json:"handle"`
	Status           string   `json:"status"`
	PriceMin         *float64 `json:"priceMin"`
	PriceMax         *float64 `json:"priceMax"`
}

// SyncProductsBody is the body of POST /admin/stores/:storeId/products/sync
type SyncProductsBody struct {
	Products []SyncProduct `json:"products" binding:"required"`
}

// TrainingSnippetBody is the body of PUT /admin/stores/:storeId/training.
// An empty id creates a new snippet.
type TrainingSnippetBody struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsActive *bool  `json:"isActive"`
	Priority int    `json:"priority"`
}

// AddToCart accepts a cart offer made during a conversation
func (h *MerchantHandler) AddToCart(c *gin.Context) {
	var body AddToCartBody
	if !bindBody(c, &body) {
		return
	}

	cart, err := h.cart.AddToCart(c.Request.Context(), &usecase.AddToCartRequest{
		StoreID:        c.Param("storeId"),
		SessionID:      sessionID(c, body.SessionID),
		ConversationID: body.ConversationID,
		ProductID:      body.ProductID,
		Quantity:       body.Quantity,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// StoreByDomain returns the public store profile for a shop domain
func (h *MerchantHandler) StoreByDomain(c *gin.Context) {
	store, err := h.merchant.StoreByDomain(c.Request.Context(), c.Param("shopDomain"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

// SyncProducts ingests a batch of platform products
func (h *MerchantHandler) SyncProducts(c *gin.Context) {
	var body SyncProductsBody
	if !bindBody(c, &body) {
		return
	}

	products := make([]domain.Product, 0, len(body.Products))
	for _, p := range body.Products {
		products = append(products, p.toProduct())
	}

	n, err := h.merchant.SyncProducts(c.Request.Context(), c.Param("storeId"), products)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": n})
}

// SaveTrainingSnippet creates or updates a training snippet
func (h *MerchantHandler) SaveTrainingSnippet(c *gin.Context) {
	var body TrainingSnippetBody
	if !bindBody(c, &body) {
		return
	}

	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}
	saved, err := h.merchant.SaveTrainingSnippet(c.Request.Context(), domain.TrainingSnippet{
		ID:       body.ID,
		StoreID:  c.Param("storeId"),
		Category: body.Category,
		Title:    body.Title,
		Content:  body.Content,
		IsActive: active,
		Priority: body.Priority,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Analytics returns the store activity summary for ?days=
func (h *MerchantHandler) Analytics(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}
	summary, err := h.merchant.Analytics(c.Request.Context(), c.Param("storeId"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AbandonedCarts lists carts abandoned within ?hours=
func (h *MerchantHandler) AbandonedCarts(c *gin.Context) {
	hours, ok := intQuery(c, "hours")
	if !ok {
		return
	}
	carts, err := h.cart.AbandonedCarts(c.Request.Context(), c.Param("storeId"), hours)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if carts == nil {
		carts = []domain.CartSession{}
	}
	c.JSON(http.StatusOK, gin.H{"carts": carts, "generatedAt": time.Now().UTC()})
}

func (p SyncProduct) toProduct() domain.Product {
	product := domain.Product{
		ExternalID:  p.ShopifyProductID,
		Title:       p.Title,
		Description: p.Description,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        p.Tags,
		Handle:      p.Handle,
		Status:      domain.ProductStatus(p.Status),
	}
	if p.PriceMin != nil || p.PriceMax != nil {
		product.Price = &domain.PriceRange{Min: p.PriceMin, Max: p.PriceMax}
	}
	return product
}

// intQuery reads an optional integer query parameter; absent means 0
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return v, true
}
