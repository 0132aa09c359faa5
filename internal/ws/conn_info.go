package ws

import "time"

// ConnInfo identifies a connection in logs, metrics and ws_events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
