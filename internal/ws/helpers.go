package ws

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"conversation-service/internal/chat"
)

func newConnID() string {
	return uuid.NewString()
}

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type roomData struct {
	ConversationID string `json:"conversationId"`
}

type sendData struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

var errBadPayload = errors.New("invalid payload")

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

// parseRoom accepts either a bare conversation id or {"conversationId": ...}.
func parseRoom(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id), nil
	}
	var obj roomData
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", errBadPayload
	}
	return strings.TrimSpace(obj.ConversationID), nil
}

func errorCode(err error) string {
	switch chat.Kind(err) {
	case chat.ErrNotFound:
		return "not_found"
	case chat.ErrForbidden:
		return "forbidden"
	case chat.ErrInvalidOperation:
		return "invalid_operation"
	case chat.ErrUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}
