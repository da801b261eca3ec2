package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ModelClient sends a prompt (and optionally an image) to a generative model
// and returns the raw completion text. Callers treat the text as untrusted.
type ModelClient interface {
	Complete(ctx context.Context, prompt string, image *Image) (string, error)
}

// CatalogRepository supplies the product catalog of a store
type CatalogRepository interface {
	ListActiveProducts(ctx context.Context, storeID string) ([]Product, error)
}

// StoreRepository supplies store facts and business policy snippets
type StoreRepository interface {
	GetStoreContext(ctx context.Context, storeID string) (*StoreContext, error)
}

// ConversationRepository persists shopper conversations. Reads and writes are
// scoped to the owning store; another store's conversation is ErrConversationNotFound.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, storeID, sessionID string) (string, error)
	AppendTurn(ctx context.Context, storeID, conversationID string, turn ConversationTurn) error
	RecentTurns(ctx context.Context, storeID, conversationID string, n int) ([]ConversationTurn, error)
}

// AnalyticsRecorder stores interaction events
type AnalyticsRecorder interface {
	Record(ctx context.Context, event AnalyticsEvent) error
}

// CatalogSyncRepository writes merchant catalogs, keyed by store and platform product id
type CatalogSyncRepository interface {
	UpsertProducts(ctx context.Context, storeID string, products []Product) (int, error)
}

// StoreAdminRepository looks up stores and maintains their training snippets
type StoreAdminRepository interface {
	GetStoreByDomain(ctx context.Context, shopDomain string) (*Store, error)
	SaveTrainingSnippet(ctx context.Context, snippet TrainingSnippet) (*TrainingSnippet, error)
}

// AnalyticsReader aggregates recorded interaction events
type AnalyticsReader interface {
	Summary(ctx context.Context, storeID string, since time.Time) (*AnalyticsSummary, error)
}

// CartRepository persists one cart per store and shopper session
type CartRepository interface {
	GetCart(ctx context.Context, storeID, sessionID string) (*CartSession, error)
	SaveCart(ctx context.Context, cart *CartSession) error
	// AbandonedCarts marks active carts idle since before idleBefore as abandoned,
	// then lists the store's abandoned carts with activity at or after since.
	AbandonedCarts(ctx context.Context, storeID string, idleBefore, since time.Time) ([]CartSession, error)
}
