package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/google/uuid"
)

const (
	listActiveProductsQuery = `SELECT ` + productColumns + `
FROM products
WHERE store_id = $1 AND status = 'active'
ORDER BY created_at, id`

	touchStoreSyncQuery = `UPDATE stores SET last_sync_at = $2 WHERE id = $1`

	upsertProductQuery = `INSERT INTO products
	(id, store_id, shopify_product_id, title, description, vendor, product_type, tags, handle, status,
	 price_min, price_max, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
ON CONFLICT (store_id, shopify_product_id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	vendor = EXCLUDED.vendor,
	product_type = EXCLUDED.product_type,
	tags = EXCLUDED.tags,
	handle = EXCLUDED.handle,
	status = EXCLUDED.status,
	price_min = EXCLUDED.price_min,
	price_max = EXCLUDED.price_max,
	updated_at = EXCLUDED.updated_at`
)

// CatalogRepository reads and syncs store catalogs in the products table
type CatalogRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCatalogRepository creates a catalog repository
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ListActiveProducts returns the active products of a store in catalog order
func (r *CatalogRepository) ListActiveProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	if !validID(storeID) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}

	rows, err := r.db.QueryContext(ctx, listActiveProductsQuery, storeID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		row, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, MapToProduct(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// UpsertProducts writes products keyed by (store, platform product id) in one
// transaction and stamps the store's last sync time. It returns the number written.
func (r *CatalogRepository) UpsertProducts(ctx context.Context, storeID string, products []domain.Product) (int, error) {
	if !validID(storeID) {
		return 0, notFound(domain.ErrStoreNotFound, storeID)
	}

	now := r.now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, touchStoreSyncQuery, storeID, now)
	if err != nil {
		return 0, fmt.Errorf("update store sync time: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("update store sync time: %w", err)
	} else if n == 0 {
		return 0, notFound(domain.ErrStoreNotFound, storeID)
	}

	stmt, err := tx.PrepareContext(ctx, upsertProductQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare product upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		row := mapFromProduct(p)
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(), storeID, row.ExternalID, row.Title, row.Description, row.Vendor,
			row.ProductType, row.Tags, row.Handle, row.Status, row.PriceMin, row.PriceMax, now)
		if err != nil {
			return 0, fmt.Errorf("upsert product %d: %w", p.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit product sync: %w", err)
	}
	return len(products), nil
}
