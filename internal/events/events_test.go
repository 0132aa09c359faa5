package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

func TestMessageSentPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewEmitter(publisher, zap.NewNop())
	ctx := observability.WithRequestID(context.Background(), "req-1")

	msg := models.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hi", CreatedAt: time.Now()}
	publisher.On("Publish", ctx, RoutingMessageSent, mock.MatchedBy(func(ev any) bool {
		env, ok := ev.(Envelope)
		if !ok {
			return false
		}
		payload, ok := env.Payload.(models.ReceivedMessage)
		return ok && env.EventName == "message_sent" && payload.ID == "m1" && payload.SenderID == "u1"
	}), map[string]string{"x-request-id": "req-1"}).Return(nil).Once()

	emitter.MessageSent(ctx, msg)

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewEmitter(publisher, zap.NewNop())

	publisher.On("Publish", mock.Anything, RoutingConversationCreated, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	require.NotPanics(t, func() {
		emitter.ConversationCreated(context.Background(), models.Conversation{ID: "c1", User1ID: "a", User2ID: "b"})
	})
	publisher.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	require.NotPanics(t, func() {
		emitter.WSEvent(context.Background(), WSPayload{Event: "ws_connect"})
	})
}
