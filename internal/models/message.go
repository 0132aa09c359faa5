package models

import "time"

// Message is an immutable chat message owned by one conversation.
type Message struct {
	ID             string    `db:"id" json:"_id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// MessageView is a message enriched with its sender's profile.
type MessageView struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Sender    Profile   `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReceivedMessage is the realtime payload delivered to room members.
type ReceivedMessage struct {
	ConversationID string    `json:"conversationId"`
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	SenderID       string    `json:"senderId"`
}

// Received converts a persisted message into its realtime payload.
func (m Message) Received() ReceivedMessage {
	return ReceivedMessage{
		ConversationID: m.ConversationID,
		ID:             m.ID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		SenderID:       m.SenderID,
	}
}
