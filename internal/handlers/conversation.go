package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"conversation-service/internal/chat"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

// ConversationService is the part of chat.Service the REST surface uses.
type ConversationService interface {
	StartConversation(ctx context.Context, userID, otherID string) (models.ConversationView, error)
	SendMessage(ctx context.Context, in chat.SendInput) (models.Message, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationView, error)
	ConversationWith(ctx context.Context, userID, otherID string) (*models.ConversationView, error)
	Messages(ctx context.Context, conversationID, userID string) ([]models.MessageView, error)
	MessagesWith(ctx context.Context, userID, otherID string) ([]models.MessageView, error)
}

// Broadcaster delivers persisted messages to live connections.
type Broadcaster interface {
	BroadcastMessage(msg models.Message)
}

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	service ConversationService
	hub     Broadcaster
	logger  *zap.Logger
}

// NewConversationHandler builds a ConversationHandler. hub may be nil.
func NewConversationHandler(service ConversationService, hub Broadcaster, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, hub: hub, logger: logger}
}

// Register mounts the routes on rg. guard protects conversation history reads.
func (h *ConversationHandler) Register(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.GET("/conversation", h.ListConversations)
	rg.GET("/conversation/with/:userId", h.ConversationWith)
	rg.POST("/conversation/with/:userId", h.StartConversation)
	rg.GET("/conversation/:id/messages", guard, h.Messages)
	rg.POST("/conversation/:id/messages", h.PostMessage)
	rg.POST("/send-message/:receiverId", h.SendToUser)
	rg.GET("/list-messages/:receiverId", h.MessagesWith)
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListConversations returns the caller's conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	views, err := h.service.ListConversations(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// ConversationWith returns the conversation with another user, or null.
func (h *ConversationHandler) ConversationWith(c *gin.Context) {
	view, err := h.service.ConversationWith(c.Request.Context(), c.GetString("userID"), c.Param("userId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartConversation creates the conversation with another user.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	view, err := h.service.StartConversation(c.Request.Context(), c.GetString("userID"), c.Param("userId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Messages returns the ordered history of a conversation.
func (h *ConversationHandler) Messages(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		writeError(c, h.logger, chat.ErrMalformedID)
		return
	}

	views, err := h.service.Messages(c.Request.Context(), conversationID, c.GetString("userID"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// PostMessage sends a message into an existing conversation.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		writeError(c, h.logger, chat.ErrMalformedID)
		return
	}
	h.send(c, chat.SendInput{ConversationID: conversationID})
}

// SendToUser sends a message to a user, starting the conversation if needed.
func (h *ConversationHandler) SendToUser(c *gin.Context) {
	h.send(c, chat.SendInput{RecipientID: c.Param("receiverId")})
}

// MessagesWith returns the history with another user.
func (h *ConversationHandler) MessagesWith(c *gin.Context) {
	views, err := h.service.MessagesWith(c.Request.Context(), c.GetString("userID"), c.Param("receiverId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *ConversationHandler) send(c *gin.Context, in chat.SendInput) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.SenderID = c.GetString("userID")
	in.Content = req.Content

	msg, err := h.service.SendMessage(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	observability.IncMessageSent("http")
	if h.hub != nil {
		h.hub.BroadcastMessage(msg)
	}
	c.JSON(http.StatusCreated, msg)
}
