package ws

import "time"

// ConnInfo describes one push connection for logging and metrics.
type ConnInfo struct {
	ConnID      string
	UserID      string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
