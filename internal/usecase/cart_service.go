package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultAbandonAfter   = time.Hour
	defaultAbandonedHours = 24
	maxAbandonedHours     = 24 * 30
	maxCartQuantity       = 99
)

// CartServiceConfig holds configuration for the cart service
type CartServiceConfig struct {
	// AbandonAfter is how long an active cart may sit idle before it counts as abandoned
	AbandonAfter time.Duration
}

// AddToCartRequest accepts a product offer into the shopper's cart
type AddToCartRequest struct {
	StoreID        string
	SessionID      string
	ConversationID string
	ProductID      string // catalog-local or platform id
	Quantity       int
}

// CartService keeps one cart per shopper session
type CartService struct {
	catalog       domain.CatalogRepository
	conversations domain.ConversationRepository
	carts         domain.CartRepository
	analytics     domain.AnalyticsRecorder
	abandonAfter  time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewCartService creates a new cart service with dependencies
func NewCartService(
	catalog domain.CatalogRepository,
	conversations domain.ConversationRepository,
	carts domain.CartRepository,
	analytics domain.AnalyticsRecorder,
	config CartServiceConfig,
	logger *zap.Logger,
) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	abandonAfter := config.AbandonAfter
	if abandonAfter <= 0 {
		abandonAfter = defaultAbandonAfter
	}
	return &CartService{
		catalog:       catalog,
		conversations: conversations,
		carts:         carts,
		analytics:     analytics,
		abandonAfter:  abandonAfter,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// AddToCart adds an active catalog product to the session's cart, creating the cart on first use.
// A conversation id, when given, must belong to the same store.
func (s *CartService) AddToCart(ctx context.Context, req *AddToCartRequest) (*domain.CartSession, error) {
	if err := validateAddToCart(req); err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	if req.ConversationID != "" {
		if _, err := s.conversations.RecentTurns(ctx, req.StoreID, req.ConversationID, 0); err != nil {
			return nil, fmt.Errorf("check conversation: %w", err)
		}
	}

	products, err := s.catalog.ListActiveProducts(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	product, ok := findProduct(products, req.ProductID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductID)
	}

	cart, err := s.carts.GetCart(ctx, req.StoreID, req.SessionID)
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		cart = &domain.CartSession{StoreID: req.StoreID, SessionID: req.SessionID}
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart.AddItem(product, quantity)
	if req.ConversationID != "" {
		cart.ConversationID = req.ConversationID
	}
	cart.Status = domain.CartStatusActive
	cart.LastActivityAt = s.now()

	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Info("product added to cart",
		zap.String("storeId", req.StoreID),
		zap.String("productId", product.ID),
		zap.Int("quantity", quantity),
		zap.Int("itemsCount", cart.ItemsCount))

	if s.analytics != nil {
		err := s.analytics.Record(ctx, domain.AnalyticsEvent{
			StoreID:   req.StoreID,
			SessionID: req.SessionID,
			EventType: domain.EventAddToCart,
			EventData: map[string]interface{}{
				"productId":      product.ID,
				"quantity":       quantity,
				"conversationId": req.ConversationID,
			},
			CreatedAt: cart.LastActivityAt,
		})
		if err != nil {
			s.logger.Warn("failed to record analytics event",
				zap.String("eventType", domain.EventAddToCart),
				zap.Error(err))
		}
	}

	return cart, nil
}

// AbandonedCarts lists carts abandoned within the last hoursBack hours (24 when <= 0, at most 30 days)
func (s *CartService) AbandonedCarts(ctx context.Context, storeID string, hoursBack int) ([]domain.CartSession, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}
	if hoursBack <= 0 {
		hoursBack = defaultAbandonedHours
	}
	if hoursBack > maxAbandonedHours {
		hoursBack = maxAbandonedHours
	}

	now := s.now()
	carts, err := s.carts.AbandonedCarts(ctx, storeID, now.Add(-s.abandonAfter), now.Add(-time.Duration(hoursBack)*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list abandoned carts: %w", err)
	}
	return carts, nil
}

func validateAddToCart(req *AddToCartRequest) error {
	switch {
	case req == nil || strings.TrimSpace(req.StoreID) == "":
		return fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	case strings.TrimSpace(req.SessionID) == "":
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	case strings.TrimSpace(req.ProductID) == "":
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidRequest)
	case req.Quantity < 0 || req.Quantity > maxCartQuantity:
		return fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidRequest, maxCartQuantity)
	}
	return nil
}

// findProduct looks up an active product by either of its ids
func findProduct(products []domain.Product, id string) (domain.Product, bool) {
	for _, p := range products {
		if p.IsActive() && p.MatchesID(id) {
			return p, true
		}
	}
	return domain.Product{}, false
}
