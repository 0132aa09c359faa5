package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"conversation-service/internal/models"
)

// Server events.
const (
	EventConnected      = "connected"
	EventRoomJoined     = "roomJoined"
	EventRoomLeft       = "roomLeft"
	EventReceiveMessage = "recieveMessage"
	EventError          = "error"
)

// Client events.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
)

// Hub tracks live connections and the conversation rooms they joined.
// A user may hold several connections at once.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection
	rooms        map[string]map[string]*Connection
	sessionRooms map[string]map[string]struct{}
	logger       *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
		logger:       logger,
	}
}

// Attach registers conn and starts its writer.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	h.sessionRooms[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes conn from the hub and from every room it joined.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[conn.ID]; !ok {
		return
	}
	delete(h.sessions, conn.ID)
	for room := range h.sessionRooms[conn.ID] {
		h.leaveLocked(room, conn.ID)
	}
	delete(h.sessionRooms, conn.ID)
}

// Join adds conn to room. It reports false when conn is not attached.
func (h *Hub) Join(room string, conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[conn.ID]; !ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Connection)
		h.rooms[room] = members
	}
	members[conn.ID] = conn
	h.sessionRooms[conn.ID][room] = struct{}{}
	return true
}

// Leave removes conn from room.
func (h *Hub) Leave(room string, conn *Connection) {
	h.mu.Lock()
	h.leaveLocked(room, conn.ID)
	h.mu.Unlock()
}

// InRoom reports whether conn currently belongs to room.
func (h *Hub) InRoom(room string, conn *Connection) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][conn.ID]
	return ok
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends an event to every connection in room and returns how many
// accepted it.
func (h *Hub) Broadcast(room, event string, data any) int {
	payload, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	members := make([]*Connection, 0, len(h.rooms[room]))
	for _, conn := range h.rooms[room] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range members {
		if err := conn.Send(payload); err != nil {
			h.logger.Warn("websocket send failed",
				zap.String("conn_id", conn.ID),
				zap.String("room", room),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastMessage fans a persisted message out to its conversation room.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.Broadcast(msg.ConversationID, EventReceiveMessage, msg.Received())
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.rooms = make(map[string]map[string]*Connection)
	h.sessionRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (h *Hub) leaveLocked(room, connID string) {
	if members := h.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined := h.sessionRooms[connID]; joined != nil {
		delete(joined, room)
	}
}
