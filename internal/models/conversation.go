package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation is a private thread between exactly two users. Users are stored
// in sorted order so a pair maps to a single row.
type Conversation struct {
	ID         string         `db:"id" json:"id"`
	User1ID    string         `db:"user1_id" json:"-"`
	User2ID    string         `db:"user2_id" json:"-"`
	MessageIDs pq.StringArray `db:"message_ids" json:"messages"`
	OpenedAt   time.Time      `db:"opened_at" json:"openedAt"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// Users returns both participants in canonical order.
func (c Conversation) Users() [2]string {
	return [2]string{c.User1ID, c.User2ID}
}

// HasMember reports whether userID participates in the conversation.
func (c Conversation) HasMember(userID string) bool {
	return userID != "" && (c.User1ID == userID || c.User2ID == userID)
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary is a conversation row annotated for listing.
type ConversationSummary struct {
	Conversation
	MessageCount  int        `db:"message_count" json:"messageCount"`
	LastMessageAt *time.Time `db:"last_message_at" json:"lastMessageAt,omitempty"`
}

// ConversationView is the API shape of a conversation with resolved members.
type ConversationView struct {
	ID            string     `json:"_id"`
	Users         []Profile  `json:"users"`
	Messages      []string   `json:"messages"`
	MessageCount  int        `json:"messageCount"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	OpenedAt      time.Time  `json:"openedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// SortPair orders two user ids the way conversations store them.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
