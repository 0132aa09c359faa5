package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Append(ctx context.Context, conversationID, senderID, content string) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message and links it to the end of the conversation's
// message list in a single transaction, so no message is left unreferenced.
func (r *MessageRepo) Append(ctx context.Context, conversationID, senderID, content string) (msg models.Message, err error) {
	if !validID(conversationID) {
		return models.Message{}, ErrConversationNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content) VALUES ($1, $2, $3, $4)
        RETURNING id, conversation_id, sender_id, content, created_at`,
		uuid.NewString(), conversationID, senderID, content).StructScan(&msg)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, err
	}

	// array_append runs under the row lock, so concurrent senders never lose an entry.
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_ids = array_append(message_ids, $2::uuid) WHERE id=$1`,
		conversationID, msg.ID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrConversationNotFound
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListForConversation returns messages in the order they were appended.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !validID(conversationID) {
		return nil, ErrConversationNotFound
	}
	query := `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.created_at
        FROM conversations c
        CROSS JOIN LATERAL unnest(c.message_ids) WITH ORDINALITY AS ref(message_id, position)
        JOIN messages m ON m.id = ref.message_id
        WHERE c.id=$1
        ORDER BY ref.position ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}
