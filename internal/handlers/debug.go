package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conversation-service/internal/telemetry"
)

// ConversationPurger removes every conversation.
type ConversationPurger interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// RegisterDebugRoutes wires debug-only endpoints behind authMiddleware.
func RegisterDebugRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc, emitter *telemetry.AuditEmitter, purger ConversationPurger, logger *zap.Logger, enabled bool) {
	if !enabled {
		return
	}

	debug := router.Group("/debug", authMiddleware)
	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", userIDFromContext(c), "")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})

	debug.DELETE("/conversations", func(c *gin.Context) {
		deleted, err := purger.DeleteAll(c.Request.Context())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		logger.Warn("all conversations deleted",
			zap.Int64("count", deleted),
			zap.String("user_id", userIDFromContext(c)),
			zap.String("request_id", requestIDFromContext(c)))
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	})
}
