package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/google/uuid"
)

const (
	cartColumns = `id, session_id, conversation_id, cart_data, total_value, items_count, status, last_activity_at, created_at`

	getCartQuery = `SELECT ` + cartColumns + `
FROM cart_sessions
WHERE store_id = $1 AND session_id = $2`

	upsertCartQuery = `INSERT INTO cart_sessions
	(id, store_id, session_id, conversation_id, cart_data, total_value, items_count, status, last_activity_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (store_id, session_id) DO UPDATE SET
	conversation_id = COALESCE(EXCLUDED.conversation_id, cart_sessions.conversation_id),
	cart_data = EXCLUDED.cart_data,
	total_value = EXCLUDED.total_value,
	items_count = EXCLUDED.items_count,
	status = EXCLUDED.status,
	last_activity_at = EXCLUDED.last_activity_at
RETURNING id, created_at`

	markAbandonedQuery = `UPDATE cart_sessions SET status = 'abandoned'
WHERE store_id = $1 AND status = 'active' AND last_activity_at < $2`

	listAbandonedQuery = `SELECT ` + cartColumns + `
FROM cart_sessions
WHERE store_id = $1 AND status = 'abandoned' AND last_activity_at >= $2
ORDER BY last_activity_at DESC`
)

// CartRepository stores shopper carts in cart_sessions, one row per store and session
type CartRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCartRepository creates a cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetCart returns the session's cart or ErrCartNotFound
func (r *CartRepository) GetCart(ctx context.Context, storeID, sessionID string) (*domain.CartSession, error) {
	if !validID(storeID) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}

	cart, err := scanCart(r.db.QueryRowContext(ctx, getCartQuery, storeID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ErrCartNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	cart.StoreID = storeID
	return cart, nil
}

// SaveCart inserts or replaces the session's cart and fills in its id and creation time
func (r *CartRepository) SaveCart(ctx context.Context, cart *domain.CartSession) error {
	if !validID(cart.StoreID) {
		return notFound(domain.ErrStoreNotFound, cart.StoreID)
	}
	if cart.SessionID == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}

	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	id := cart.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := r.now()
	if cart.LastActivityAt.IsZero() {
		cart.LastActivityAt = now
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	status := cart.Status
	if status == "" {
		status = domain.CartStatusActive
	}

	var conversationID sql.NullString
	if validID(cart.ConversationID) {
		conversationID = sql.NullString{String: cart.ConversationID, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, upsertCartQuery,
		id, cart.StoreID, cart.SessionID, conversationID, payload,
		cart.TotalValue, cart.ItemsCount, string(status), cart.LastActivityAt, cart.CreatedAt,
	).Scan(&cart.ID, &cart.CreatedAt)
	if err != nil {
		if isPQCode(err, codeForeignKeyViolation) {
			return notFound(domain.ErrStoreNotFound, cart.StoreID)
		}
		return fmt.Errorf("upsert cart: %w", err)
	}
	cart.Status = status
	return nil
}

// AbandonedCarts marks idle carts abandoned and lists the recent ones, most recent first
func (r *CartRepository) AbandonedCarts(ctx context.Context, storeID string, idleBefore, since time.Time) ([]domain.CartSession, error) {
	if !validID(storeID) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}

	if _, err := r.db.ExecContext(ctx, markAbandonedQuery, storeID, idleBefore); err != nil {
		return nil, fmt.Errorf("mark abandoned carts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listAbandonedQuery, storeID, since)
	if err != nil {
		return nil, fmt.Errorf("query abandoned carts: %w", err)
	}
	defer rows.Close()

	carts := make([]domain.CartSession, 0)
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		cart.StoreID = storeID
		carts = append(carts, *cart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate carts: %w", err)
	}
	return carts, nil
}

func scanCart(s scanner) (*domain.CartSession, error) {
	var (
		cart           domain.CartSession
		conversationID sql.NullString
		payload        []byte
		total          sql.NullFloat64
		status         string
	)
	err := s.Scan(&cart.ID, &cart.SessionID, &conversationID, &payload, &total,
		&cart.ItemsCount, &status, &cart.LastActivityAt, &cart.CreatedAt)
	if err != nil {
		return nil, err
	}

	cart.ConversationID = conversationID.String
	cart.TotalValue = total.Float64
	cart.Status = domain.CartStatus(status)
	cart.Items = []domain.CartItem{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cart.Items); err != nil {
			return nil, fmt.Errorf("decode cart items: %w", err)
		}
	}
	return &cart, nil
}
