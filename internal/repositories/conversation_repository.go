package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Create(ctx context.Context, userID, otherID string) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	FindByPair(ctx context.Context, userID, otherID string) (models.Conversation, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string, openedSince time.Time) ([]models.ConversationSummary, error)
	Touch(ctx context.Context, conversationID string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user1_id, user2_id, message_ids, opened_at, created_at`

// Create inserts a conversation for the pair. The unique (user1_id, user2_id)
// constraint decides races between concurrent creators.
func (r *ConversationRepo) Create(ctx context.Context, userID, otherID string) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, ErrSelfConversation
	}
	user1, user2 := models.SortPair(userID, otherID)

	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (id, user1_id, user2_id) VALUES ($1, $2, $3) RETURNING `+conversationColumns,
		uuid.NewString(), user1, user2).StructScan(&conv)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return models.Conversation{}, ErrConversationExists
		}
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	if !validID(conversationID) {
		return models.Conversation{}, ErrConversationNotFound
	}
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// FindByPair returns the conversation between two users regardless of argument order.
func (r *ConversationRepo) FindByPair(ctx context.Context, userID, otherID string) (models.Conversation, error) {
	user1, user2 := models.SortPair(userID, otherID)
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsMember checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	if !validID(conversationID) || userID == "" {
		return false, nil
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, conversationID, userID)
	return exists, err
}

// ListForUser returns the user's conversations that either carry messages or
// were opened after openedSince, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string, openedSince time.Time) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.message_ids, c.opened_at, c.created_at,
            cardinality(c.message_ids) AS message_count,
            (SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = c.id) AS last_message_at
        FROM conversations c
        WHERE (c.user1_id=$1 OR c.user2_id=$1)
        AND (cardinality(c.message_ids) > 0 OR c.opened_at >= $2)
        ORDER BY last_message_at DESC NULLS LAST, c.opened_at DESC`
	var result []models.ConversationSummary
	if err := r.db.SelectContext(ctx, &result, query, userID, openedSince); err != nil {
		return nil, err
	}
	return result, nil
}

// Touch records that the conversation was opened now.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID string) error {
	if !validID(conversationID) {
		return ErrConversationNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET opened_at = NOW() WHERE id=$1`, conversationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteAll removes every conversation and, by cascade, every message.
func (r *ConversationRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
