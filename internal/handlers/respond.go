package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conversation-service/internal/chat"
	"conversation-service/internal/repositories"
)

func statusFor(err error) int {
	if errors.Is(err, repositories.ErrNotFound) {
		return http.StatusNotFound
	}
	switch chat.Kind(err) {
	case chat.ErrNotFound:
		return http.StatusNotFound
	case chat.ErrForbidden:
		return http.StatusForbidden
	case chat.ErrInvalidOperation:
		return http.StatusBadRequest
	case chat.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status of err's kind. Internal errors are
// logged and replaced with a generic message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(c)),
			zap.String("user_id", userIDFromContext(c)),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
