package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
	maxSyncBatch         = 500
)

// MerchantService covers the store-facing operations: store lookup, catalog
// sync, training snippets and analytics
type MerchantService struct {
	stores    domain.StoreAdminRepository
	catalog   domain.CatalogSyncRepository
	analytics domain.AnalyticsReader
	cache     domain.CacheRepository
	now       func() time.Time
	logger    *zap.Logger
}

// NewMerchantService creates a new merchant service with dependencies
func NewMerchantService(
	stores domain.StoreAdminRepository,
	catalog domain.CatalogSyncRepository,
	analytics domain.AnalyticsReader,
	cache domain.CacheRepository,
	logger *zap.Logger,
) *MerchantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MerchantService{
		stores:    stores,
		catalog:   catalog,
		analytics: analytics,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// StoreByDomain resolves the store behind a shop domain
func (s *MerchantService) StoreByDomain(ctx context.Context, shopDomain string) (*domain.Store, error) {
	if strings.TrimSpace(shopDomain) == "" {
		return nil, fmt.Errorf("%w: shop domain is required", domain.ErrInvalidRequest)
	}
	store, err := s.stores.GetStoreByDomain(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("lookup store: %w", err)
	}
	return store, nil
}

// SyncProducts upserts a batch of platform products and drops the cached catalog
func (s *MerchantService) SyncProducts(ctx context.Context, storeID string, products []domain.Product) (int, error) {
	if strings.TrimSpace(storeID) == "" {
		return 0, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}
	if len(products) == 0 || len(products) > maxSyncBatch {
		return 0, fmt.Errorf("%w: sync batches must hold 1 to %d products", domain.ErrInvalidRequest, maxSyncBatch)
	}

	seen := make(map[int64]bool, len(products))
	for i, p := range products {
		switch {
		case p.ExternalID <= 0:
			return 0, fmt.Errorf("%w: product %d has no platform id", domain.ErrInvalidRequest, i)
		case strings.TrimSpace(p.Title) == "":
			return 0, fmt.Errorf("%w: product %d has no title", domain.ErrInvalidRequest, p.ExternalID)
		case seen[p.ExternalID]:
			return 0, fmt.Errorf("%w: product %d appears twice", domain.ErrInvalidRequest, p.ExternalID)
		}
		seen[p.ExternalID] = true
	}

	n, err := s.catalog.UpsertProducts(ctx, storeID, products)
	if err != nil {
		return 0, fmt.Errorf("sync products: %w", err)
	}

	s.invalidate(ctx, catalogCacheKey(storeID))
	s.logger.Info("catalog synced", zap.String("storeId", storeID), zap.Int("products", n))
	return n, nil
}

// SaveTrainingSnippet stores business information used in prompts and drops the cached store context
func (s *MerchantService) SaveTrainingSnippet(ctx context.Context, snippet domain.TrainingSnippet) (*domain.TrainingSnippet, error) {
	snippet.Category = strings.ToLower(strings.TrimSpace(snippet.Category))
	snippet.Title = strings.TrimSpace(snippet.Title)
	snippet.Content = strings.TrimSpace(snippet.Content)

	switch {
	case strings.TrimSpace(snippet.StoreID) == "":
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	case snippet.Category == "" || snippet.Title == "" || snippet.Content == "":
		return nil, fmt.Errorf("%w: category, title and content are required", domain.ErrInvalidRequest)
	}

	saved, err := s.stores.SaveTrainingSnippet(ctx, snippet)
	if err != nil {
		return nil, fmt.Errorf("save training snippet: %w", err)
	}

	s.invalidate(ctx, storeCacheKey(snippet.StoreID))
	return saved, nil
}

// Analytics summarizes the last days of store activity (30 when <= 0, at most a year)
func (s *MerchantService) Analytics(ctx context.Context, storeID string, days int) (*domain.AnalyticsSummary, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}
	if days <= 0 {
		days = defaultAnalyticsDays
	}
	if days > maxAnalyticsDays {
		days = maxAnalyticsDays
	}

	summary, err := s.analytics.Summary(ctx, storeID, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("summarize analytics: %w", err)
	}
	return summary, nil
}

func (s *MerchantService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate cache entry", zap.String("key", key), zap.Error(err))
	}
}
