package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"conversation-service/internal/auth"
	"conversation-service/internal/chat"
	"conversation-service/internal/events"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/telemetry"
)

// MessageSender persists a message. Satisfied by chat.Service.
type MessageSender interface {
	SendMessage(ctx context.Context, in chat.SendInput) (models.Message, error)
}

// MembershipChecker is satisfied by chat.Guard.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID string) bool
}

// Handler serves the realtime endpoint.
type Handler struct {
	hub             *Hub
	sender          MessageSender
	guard           MembershipChecker
	verifier        auth.Verifier
	emitter         *events.Emitter
	audit           *telemetry.AuditEmitter
	upgrader        websocket.Upgrader
	inflightTimeout time.Duration
	logger          *zap.Logger
}

// NewHandler wires the realtime endpoint. allowedOrigins empty accepts any origin.
func NewHandler(hub *Hub, sender MessageSender, guard MembershipChecker, verifier auth.Verifier, emitter *events.Emitter, audit *telemetry.AuditEmitter, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		sender:   sender,
		guard:    guard,
		verifier: verifier,
		emitter:  emitter,
		audit:    audit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		inflightTimeout: 5 * time.Second,
		logger:          logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

const tracerName = "conversation-service/ws"

// Handle authenticates the request, upgrades it and processes frames until
// the client goes away.
func (h *Handler) Handle(c *gin.Context) {
	ws, info, ctx, ok := h.handshake(c)
	if !ok {
		return
	}

	conn := NewConnection(info, ws)
	h.hub.Attach(conn)
	observability.IncWSActive()
	h.lifecycle(ctx, info, "ws_connect", "")

	closeReason := "client closed"
	defer func() {
		h.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
		observability.DecWSActive()
		h.lifecycle(ctx, info, "ws_disconnect", closeReason)
	}()

	h.reply(conn, EventConnected, gin.H{"connId": info.ConnID, "userId": info.UserID})

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				closeReason = err.Error()
				h.lifecycle(ctx, info, "ws_error", closeReason)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.replyError(conn, "", "bad_request", errBadPayload.Error())
			continue
		}

		switch frame.Event {
		case EventJoinRoom:
			h.join(ctx, conn, frame)
		case EventLeaveRoom:
			h.leave(conn, frame)
		case EventSendMessage:
			h.sendMessage(ctx, conn, frame)
		default:
			h.replyError(conn, frame.Event, "unsupported_event", "unknown event")
		}
	}
}

// handshake covers authentication and the upgrade. Its span ends once the
// connection is established; the returned context keeps the trace so frame
// spans join it.
func (h *Handler) handshake(c *gin.Context) (*websocket.Conn, ConnInfo, context.Context, bool) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		observability.IncWSEvent("ws_auth_failed")
		span.SetStatus(codes.Error, "authentication failed")
		h.audit.Emit(ctx, "WARN", "websocket authentication failed", "", "")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return nil, ConnInfo{}, nil, false
	}
	span.SetAttributes(attribute.String("user_id", userID))

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		span.RecordError(err)
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return nil, ConnInfo{}, nil, false
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("conn_id", info.ConnID))
	return ws, info, ctx, true
}

func (h *Handler) authenticate(c *gin.Context) (string, error) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		token = c.Query("token")
	}
	if token == "" {
		return "", auth.ErrMissingToken
	}
	userID, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	return userID, nil
}

func (h *Handler) join(ctx context.Context, conn *Connection, frame Frame) {
	room, err := parseRoom(frame.Data)
	if err != nil || room == "" {
		h.replyError(conn, frame.Event, "invalid_operation", "conversation id is required")
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ws.joinRoom", trace.WithAttributes(
		attribute.String("conn_id", conn.ID),
		attribute.String("conversation_id", room),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.inflightTimeout)
	defer cancel()

	if !h.guard.IsMember(ctx, room, conn.UserID) {
		span.SetStatus(codes.Error, "not a member")
		observability.IncMembershipDenial("ws")
		h.audit.Denied(ctx, conn.UserID, room, "room join denied")
		h.logger.Info("room join denied", zap.String("conn_id", conn.ID), zap.String("user_id", conn.UserID), zap.String("conversation_id", room))
		h.replyError(conn, frame.Event, errorCode(chat.ErrNotMember), chat.ErrNotMember.Error())
		return
	}

	h.hub.Join(room, conn)
	observability.IncWSEvent("ws_join")
	h.reply(conn, EventRoomJoined, roomData{ConversationID: room})
}

func (h *Handler) leave(conn *Connection, frame Frame) {
	room, err := parseRoom(frame.Data)
	if err != nil || room == "" {
		h.replyError(conn, frame.Event, "invalid_operation", "conversation id is required")
		return
	}
	h.hub.Leave(room, conn)
	h.reply(conn, EventRoomLeft, roomData{ConversationID: room})
}

func (h *Handler) sendMessage(ctx context.Context, conn *Connection, frame Frame) {
	var in sendData
	if err := json.Unmarshal(frame.Data, &in); err != nil {
		h.replyError(conn, frame.Event, "bad_request", errBadPayload.Error())
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ws.sendMessage", trace.WithAttributes(
		attribute.String("conn_id", conn.ID),
		attribute.String("conversation_id", in.ConversationID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.inflightTimeout)
	defer cancel()

	msg, err := h.sender.SendMessage(ctx, chat.SendInput{
		ConversationID: in.ConversationID,
		SenderID:       conn.UserID,
		Content:        in.Content,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		if errors.Is(err, chat.ErrForbidden) {
			observability.IncMembershipDenial("ws")
		}
		if chat.Kind(err) == chat.ErrInternal {
			h.logger.Error("websocket send failed", zap.String("conn_id", conn.ID), zap.Error(err))
			h.replyError(conn, frame.Event, "internal", "internal server error")
			return
		}
		h.replyError(conn, frame.Event, errorCode(err), err.Error())
		return
	}

	observability.IncMessageSent("ws")
	h.hub.BroadcastMessage(msg)
	if !h.hub.InRoom(msg.ConversationID, conn) {
		h.reply(conn, EventReceiveMessage, msg.Received())
	}
}

func (h *Handler) reply(conn *Connection, event string, data any) {
	payload, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	_ = conn.Send(payload)
}

func (h *Handler) replyError(conn *Connection, origin, code, message string) {
	observability.IncWSEvent("ws_error_reply")
	h.reply(conn, EventError, ErrorData{Event: origin, Code: code, Message: message})
}

func (h *Handler) lifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)
	h.emitter.WSEvent(ctx, events.WSPayload{
		Event:      event,
		ConnID:     info.ConnID,
		UserID:     info.UserID,
		DeviceID:   info.DeviceID,
		IP:         info.IP,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     reason,
	})
}
