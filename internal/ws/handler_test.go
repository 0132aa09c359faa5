package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"conversation-service/internal/auth"
	"conversation-service/internal/chat"
	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
)

const testRoom = "6f1c1c52-5d8e-4a57-9f0e-2b8a4c3f9e10"

type staticGuard map[string]bool

func (g staticGuard) IsMember(_ context.Context, conversationID, userID string) bool {
	return g[conversationID+"/"+userID]
}

type wsFixture struct {
	server   *httptest.Server
	hub      *Hub
	sender   *mocks.ConversationServiceMock
	verifier *mocks.VerifierMock
}

func newWSFixture(t *testing.T) *wsFixture {
	gin.SetMode(gin.TestMode)
	f := &wsFixture{
		hub:      NewHub(zap.NewNop()),
		sender:   new(mocks.ConversationServiceMock),
		verifier: new(mocks.VerifierMock),
	}
	f.verifier.On("Verify", mock.Anything, "tok-a").Return("user-a", nil).Maybe()
	f.verifier.On("Verify", mock.Anything, "tok-b").Return("user-b", nil).Maybe()
	f.verifier.On("Verify", mock.Anything, "tok-c").Return("user-c", nil).Maybe()
	f.verifier.On("Verify", mock.Anything, "bad").Return("", auth.ErrInvalidToken).Maybe()

	guard := staticGuard{testRoom + "/user-a": true, testRoom + "/user-b": true}
	handler := NewHandler(f.hub, f.sender, guard, f.verifier, nil, nil, nil, zap.NewNop())

	r := gin.New()
	r.GET("/ws", handler.Handle)
	f.server = httptest.NewServer(r)
	t.Cleanup(func() {
		f.hub.Close()
		f.server.Close()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, EventConnected, frame.Event)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(outboundFrame{Event: event, Data: data}))
}

func readError(t *testing.T, conn *websocket.Conn) ErrorData {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, EventError, frame.Event)
	var data ErrorData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	return data
}

func TestHandshakeRejectsBadCredential(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=bad"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenQueryParameter(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=tok-a"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	resp.Body.Close()
	assert.Equal(t, EventConnected, readFrame(t, conn).Event)
}

func TestJoinDeniedForOutsider(t *testing.T) {
	f := newWSFixture(t)
	outsider := f.dial(t, "tok-c")

	send(t, outsider, EventJoinRoom, testRoom)

	data := readError(t, outsider)
	assert.Equal(t, EventJoinRoom, data.Event)
	assert.Equal(t, "forbidden", data.Code)
	assert.Equal(t, 0, f.hub.RoomSize(testRoom))
}

func TestMessageRoundTrip(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "tok-a")
	bob := f.dial(t, "tok-b")

	send(t, alice, EventJoinRoom, testRoom)
	assert.Equal(t, EventRoomJoined, readFrame(t, alice).Event)
	send(t, bob, EventJoinRoom, map[string]string{"conversationId": testRoom})
	assert.Equal(t, EventRoomJoined, readFrame(t, bob).Event)

	msg := models.Message{ID: "m1", ConversationID: testRoom, SenderID: "user-a", Content: "hi", CreatedAt: time.Now().UTC()}
	f.sender.On("SendMessage", mock.Anything, chat.SendInput{ConversationID: testRoom, SenderID: "user-a", Content: "hi"}).
		Return(msg, nil).Once()

	// A client-supplied sender is ignored.
	send(t, alice, EventSendMessage, map[string]string{"conversationId": testRoom, "content": "hi", "senderId": "user-b"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		require.Equal(t, EventReceiveMessage, frame.Event)
		var got models.ReceivedMessage
		require.NoError(t, json.Unmarshal(frame.Data, &got))
		assert.Equal(t, "m1", got.ID)
		assert.Equal(t, "hi", got.Content)
		assert.Equal(t, "user-a", got.SenderID)
		assert.Equal(t, testRoom, got.ConversationID)
	}
	f.sender.AssertExpectations(t)
}

func TestSendFailureIsReported(t *testing.T) {
	f := newWSFixture(t)
	outsider := f.dial(t, "tok-c")

	f.sender.On("SendMessage", mock.Anything, chat.SendInput{ConversationID: testRoom, SenderID: "user-c", Content: "hi"}).
		Return(nil, chat.ErrNotMember).Once()

	send(t, outsider, EventSendMessage, map[string]string{"conversationId": testRoom, "content": "hi"})

	data := readError(t, outsider)
	assert.Equal(t, EventSendMessage, data.Event)
	assert.Equal(t, "forbidden", data.Code)
}

func TestSenderOutsideRoomStillGetsMessage(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "tok-a")

	msg := models.Message{ID: "m2", ConversationID: testRoom, SenderID: "user-a", Content: "yo"}
	f.sender.On("SendMessage", mock.Anything, mock.Anything).Return(msg, nil).Once()

	send(t, alice, EventSendMessage, map[string]string{"conversationId": testRoom, "content": "yo"})

	assert.Equal(t, EventReceiveMessage, readFrame(t, alice).Event)
}

func TestUnknownEventAndBadPayload(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "tok-a")

	send(t, alice, "dance", nil)
	assert.Equal(t, "unsupported_event", readError(t, alice).Code)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "bad_request", readError(t, alice).Code)

	send(t, alice, EventJoinRoom, "")
	assert.Equal(t, "invalid_operation", readError(t, alice).Code)
}

func TestLeaveRoom(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "tok-a")

	send(t, alice, EventJoinRoom, testRoom)
	require.Equal(t, EventRoomJoined, readFrame(t, alice).Event)
	require.Equal(t, 1, f.hub.RoomSize(testRoom))

	send(t, alice, EventLeaveRoom, testRoom)
	assert.Equal(t, EventRoomLeft, readFrame(t, alice).Event)
	assert.Equal(t, 0, f.hub.RoomSize(testRoom))
}

func TestDisconnectLeavesRooms(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "tok-a")

	send(t, alice, EventJoinRoom, testRoom)
	require.Equal(t, EventRoomJoined, readFrame(t, alice).Event)

	require.NoError(t, alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	alice.Close()

	assert.Eventually(t, func() bool { return f.hub.RoomSize(testRoom) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
