package events

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
)

const (
	RoutingMessageSent         = "chat.message.sent"
	RoutingConversationCreated = "chat.conversation.created"
	RoutingWSEvents            = "ws_events.conversations"
)

// Envelope wraps every event published to the bus.
type Envelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// WSPayload describes a websocket lifecycle event.
type WSPayload struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// Emitter publishes domain events best-effort: failures are logged and counted
// but never returned to the caller.
type Emitter struct {
	publisher rabbitmq.Publisher
	logger    *zap.Logger
}

// NewEmitter builds an Emitter on top of a publisher.
func NewEmitter(publisher rabbitmq.Publisher, logger *zap.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

// MessageSent announces a persisted message.
func (e *Emitter) MessageSent(ctx context.Context, msg models.Message) {
	e.emit(ctx, RoutingMessageSent, "domain_events", "message_sent", msg.Received())
}

// ConversationCreated announces a new conversation.
func (e *Emitter) ConversationCreated(ctx context.Context, conv models.Conversation) {
	e.emit(ctx, RoutingConversationCreated, "domain_events", "conversation_created", map[string]any{
		"id":    conv.ID,
		"users": conv.Users(),
	})
}

// WSEvent announces a websocket lifecycle change.
func (e *Emitter) WSEvent(ctx context.Context, payload WSPayload) {
	e.emit(ctx, RoutingWSEvents, "ws_events", payload.Event, payload)
}

func (e *Emitter) emit(ctx context.Context, routingKey, eventType, eventName string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}
	envelope := Envelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	if err := e.publisher.Publish(ctx, routingKey, envelope, BuildHeaders(ctx)); err != nil {
		observability.IncAMQPPublishError()
		e.logger.Warn("event publish failed", zap.String("event", eventName), zap.Error(err))
	}
}

// BuildHeaders carries the request id and trace id of ctx onto the message.
func BuildHeaders(ctx context.Context) map[string]string {
	headers := map[string]string{}
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		headers["x-request-id"] = requestID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		headers["trace_id"] = sc.TraceID().String()
	}
	return headers
}
