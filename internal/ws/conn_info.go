package ws

import "time"

// ConnInfo identifies one live connection for logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	Route       string
	ConnectedAt time.Time
}
