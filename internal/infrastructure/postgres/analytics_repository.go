package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/google/uuid"
)

const (
	insertEventQuery = `INSERT INTO analytics (id, store_id, event_type, event_data, session_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	countConversationsQuery = `SELECT COUNT(*), COALESCE(SUM(message_count), 0)
FROM conversations
WHERE store_id = $1 AND created_at >= $2`

	countEventsQuery = `SELECT event_type, COUNT(*)
FROM analytics
WHERE store_id = $1 AND created_at >= $2
GROUP BY event_type
ORDER BY event_type`
)

// AnalyticsRepository appends interaction events to the analytics table and aggregates them
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates an analytics repository
func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Record stores one event; EventData is written as jsonb
func (r *AnalyticsRepository) Record(ctx context.Context, event domain.AnalyticsEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("%w: event type is required", domain.ErrInvalidRequest)
	}

	data := event.EventData
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, insertEventQuery,
		uuid.NewString(), event.StoreID, event.EventType, payload, nullString(event.SessionID), createdAt)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// Summary counts conversations, messages and events per type since the given time
func (r *AnalyticsRepository) Summary(ctx context.Context, storeID string, since time.Time) (*domain.AnalyticsSummary, error) {
	if !validID(storeID) {
		return nil, notFound(domain.ErrStoreNotFound, storeID)
	}

	summary := &domain.AnalyticsSummary{
		StoreID: storeID,
		Since:   since,
		Events:  make(map[string]int),
	}

	err := r.db.QueryRowContext(ctx, countConversationsQuery, storeID, since).
		Scan(&summary.Conversations, &summary.Messages)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, countEventsQuery, storeID, since)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		summary.Events[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event counts: %w", err)
	}
	return summary, nil
}
