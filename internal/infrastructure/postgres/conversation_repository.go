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
	insertConversationQuery = `INSERT INTO conversations (id, store_id, session_id, created_at)
VALUES ($1, $2, $3, $4)`

	insertMessageQuery = `INSERT INTO messages (id, conversation_id, role, content, has_image, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	incrementMessageCountQuery = `UPDATE conversations SET message_count = message_count + 1
WHERE id = $1 AND store_id = $2`

	conversationExistsQuery = `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND store_id = $2)`

	recentMessagesQuery = `SELECT role, content, has_image, created_at FROM (
	SELECT role, content, has_image, created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at DESC
	LIMIT $2
) recent
ORDER BY created_at ASC`
)

// ConversationRepository persists conversations and their messages
type ConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewConversationRepository creates a conversation repository
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateConversation opens a conversation and returns its id
func (r *ConversationRepository) CreateConversation(ctx context.Context, storeID, sessionID string) (string, error) {
	if !validID(storeID) {
		return "", notFound(domain.ErrStoreNotFound, storeID)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, insertConversationQuery, id, storeID, nullString(sessionID), r.now())
	if err != nil {
		if isPQCode(err, codeForeignKeyViolation) {
			return "", notFound(domain.ErrStoreNotFound, storeID)
		}
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// AppendTurn stores a turn and bumps the conversation's message count.
// Conversations owned by another store are reported as not found.
// Image bytes are not persisted, only the fact that one was attached.
func (r *ConversationRepository) AppendTurn(ctx context.Context, storeID, conversationID string, turn domain.ConversationTurn) error {
	if !validID(storeID) || !validID(conversationID) {
		return notFound(domain.ErrConversationNotFound, conversationID)
	}

	createdAt := turn.Timestamp
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	hasImage := turn.Image != nil && len(turn.Image.Data) > 0

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The count update doubles as the ownership check and locks the conversation row
	res, err := tx.ExecContext(ctx, incrementMessageCountQuery, conversationID, storeID)
	if err != nil {
		return fmt.Errorf("update message count: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message count: %w", err)
	}
	if updated == 0 {
		return notFound(domain.ErrConversationNotFound, conversationID)
	}

	_, err = tx.ExecContext(ctx, insertMessageQuery,
		uuid.NewString(), conversationID, string(turn.Role), turn.Content, hasImage, createdAt)
	if err != nil {
		if isPQCode(err, codeForeignKeyViolation) || isPQCode(err, codeInvalidText) {
			return notFound(domain.ErrConversationNotFound, conversationID)
		}
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// RecentTurns returns the last n turns of a store's conversation, oldest first
func (r *ConversationRepository) RecentTurns(ctx context.Context, storeID, conversationID string, n int) ([]domain.ConversationTurn, error) {
	if !validID(storeID) || !validID(conversationID) {
		return nil, notFound(domain.ErrConversationNotFound, conversationID)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, conversationExistsQuery, conversationID, storeID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if !exists {
		return nil, notFound(domain.ErrConversationNotFound, conversationID)
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, recentMessagesQuery, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var (
			role     string
			turn     domain.ConversationTurn
			hasImage bool
		)
		if err := rows.Scan(&role, &turn.Content, &hasImage, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		turn.Role = domain.Role(role)
		if hasImage && turn.Content == "" {
			turn.Content = "[image]"
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return turns, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
