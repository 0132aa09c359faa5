package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conversation-service/internal/observability"
	"conversation-service/internal/telemetry"
)

// MembershipChecker is satisfied by chat.Guard.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID string) bool
}

// ConversationGuard rejects callers that are not members of the conversation
// named by the :id route parameter.
func ConversationGuard(guard MembershipChecker, audit *telemetry.AuditEmitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("id")
		if _, err := uuid.Parse(conversationID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed conversation id"})
			return
		}

		userID := c.GetString("userID")
		if !guard.IsMember(c.Request.Context(), conversationID, userID) {
			observability.IncMembershipDenial("http")
			audit.Denied(c.Request.Context(), userID, conversationID, "conversation access denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User is not part of conversation"})
			return
		}
		c.Next()
	}
}
