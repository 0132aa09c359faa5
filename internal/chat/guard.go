package chat

import (
	"context"

	"go.uber.org/zap"

	"conversation-service/internal/repositories"
)

// Guard decides conversation membership. It is the single authorization
// predicate shared by the REST middleware, the service and the realtime hub.
type Guard struct {
	conversations repositories.ConversationRepository
	logger        *zap.Logger
}

// NewGuard constructs a Guard over the conversation store.
func NewGuard(conversations repositories.ConversationRepository, logger *zap.Logger) *Guard {
	return &Guard{conversations: conversations, logger: logger}
}

// IsMember reports whether userID participates in conversationID. Unknown
// conversations, malformed ids and store failures all read as false.
func (g *Guard) IsMember(ctx context.Context, conversationID, userID string) bool {
	if conversationID == "" || userID == "" {
		return false
	}
	ok, err := g.conversations.IsMember(ctx, conversationID, userID)
	if err != nil {
		g.logger.Warn("membership lookup failed",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return ok
}
