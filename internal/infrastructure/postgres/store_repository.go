package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/google/uuid"
)

const (
	getStoreQuery = `SELECT store_name, currency, store_email
FROM stores
WHERE id = $1 AND is_active = true`

	listPoliciesQuery = `SELECT title, content
FROM ai_training
WHERE store_id = $1 AND is_active = true
ORDER BY priority DESC, title`

	getStoreByDomainQuery = `SELECT id, shop_domain, store_name, currency, store_email
FROM stores
WHERE shop_domain = $1 AND is_active = true`

	// The WHERE clause keeps an upsert from taking over another store's snippet
	upsertTrainingQuery = `INSERT INTO ai_training
	(id, store_id, category, title, content, is_active, priority, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (id) DO UPDATE SET
	category = EXCLUDED.category,
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	is_active = EXCLUDED.is_active,
	priority = EXCLUDED.priority,
	updated_at = EXCLUDED.updated_at
WHERE ai_training.store_id = EXCLUDED.store_id
RETURNING id, updated_at`
)

// StoreRepository reads store facts and maintains business information snippets
type StoreRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewStoreRepository creates a store repository
func NewStoreRepository(db *sql.DB) *StoreRepository {
	return &StoreRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetStoreContext returns the store facts with its active policy snippets, highest priority first
func (r *StoreRepository) GetStoreContext(ctx context.Context, storeID string) (*domain.StoreContext, error) {
	if !validID(storeID) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}

	var name, currency, email sql.NullString
	err := r.db.QueryRowContext(ctx, getStoreQuery, storeID).Scan(&name, &currency, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	policies, err := r.listPolicies(ctx, storeID)
	if err != nil {
		return nil, err
	}

	return &domain.StoreContext{
		Name:     name.String,
		Currency: currency.String,
		Email:    email.String,
		Policies: policies,
	}, nil
}

func (r *StoreRepository) listPolicies(ctx context.Context, storeID string) ([]domain.PolicySnippet, error) {
	rows, err := r.db.QueryContext(ctx, listPoliciesQuery, storeID)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.PolicySnippet
	for rows.Next() {
		var p domain.PolicySnippet
		if err := rows.Scan(&p.Title, &p.Content); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, nil
}

// GetStoreByDomain resolves an active store from its shop domain, e.g. "acme.myshopify.com"
func (r *StoreRepository) GetStoreByDomain(ctx context.Context, shopDomain string) (*domain.Store, error) {
	shopDomain = NormalizeShopDomain(shopDomain)
	if shopDomain == "" {
		return nil, notFound(domain.ErrStoreNotFound, shopDomain)
	}

	var (
		store                 domain.Store
		name, currency, email sql.NullString
	)
	err := r.db.QueryRowContext(ctx, getStoreByDomainQuery, shopDomain).
		Scan(&store.ID, &store.ShopDomain, &name, &currency, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ErrStoreNotFound, shopDomain)
	}
	if err != nil {
		return nil, fmt.Errorf("query store by domain: %w", err)
	}

	store.Name = name.String
	store.Currency = currency.String
	store.Email = email.String
	return &store, nil
}

// SaveTrainingSnippet inserts a snippet, or updates it when the id already
// belongs to the same store
func (r *StoreRepository) SaveTrainingSnippet(ctx context.Context, snippet domain.TrainingSnippet) (*domain.TrainingSnippet, error) {
	if !validID(snippet.StoreID) {
		return nil, notFound(domain.ErrStoreNotFound, snippet.StoreID)
	}
	if snippet.ID == "" {
		snippet.ID = uuid.NewString()
	} else if !validID(snippet.ID) {
		return nil, notFound(domain.ErrSnippetNotFound, snippet.ID)
	}

	err := r.db.QueryRowContext(ctx, upsertTrainingQuery,
		snippet.ID, snippet.StoreID, snippet.Category, snippet.Title, snippet.Content,
		snippet.IsActive, snippet.Priority, r.now(),
	).Scan(&snippet.ID, &snippet.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ErrSnippetNotFound, snippet.ID)
	}
	if err != nil {
		if isPQCode(err, codeForeignKeyViolation) {
			return nil, notFound(domain.ErrStoreNotFound, snippet.StoreID)
		}
		return nil, fmt.Errorf("upsert training snippet: %w", err)
	}
	return &snippet, nil
}

// NormalizeShopDomain lowercases a shop domain and strips any scheme, path or port
func NormalizeShopDomain(shopDomain string) string {
	d := strings.ToLower(strings.TrimSpace(shopDomain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/:"); i >= 0 {
		d = d[:i]
	}
	return d
}
