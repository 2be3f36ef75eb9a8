package chatstore

import (
	"sync"

	"dm-chat/internal/transport"
)

// Channel is the push channel as the store sees it: one handler slot per
// event name.
type Channel interface {
	On(event string, h transport.Handler)
	Off(event string)
}

// Session exposes the authenticated identity and the current push channel.
// Channel may return nil before the connection is established.
type Session interface {
	AuthUserID() string
	Channel() Channel
}

// StaticSession is a Session whose values are set by the owner, typically
// after login and after the push channel connects.
type StaticSession struct {
	mu      sync.RWMutex
	userID  string
	channel Channel
}

// NewStaticSession returns a session for userID with channel ch (may be nil).
func NewStaticSession(userID string, ch Channel) *StaticSession {
	return &StaticSession{userID: userID, channel: ch}
}

func (s *StaticSession) AuthUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *StaticSession) Channel() Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// SetChannel swaps the push channel, e.g. after a reconnect.
func (s *StaticSession) SetChannel(ch Channel) {
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
}
