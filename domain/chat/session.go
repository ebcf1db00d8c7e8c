package chat

import (
	"sync"
	"sync/atomic"
)

// Outbound pushes messages to the connection that owns a session.
// Deliver must not block; it reports false when the message was dropped.
type Outbound interface {
	Deliver(m Message) bool
}

// Session is the server-side state of one live connection.
// It is authenticated exactly when a username has been bound.
type Session struct {
	id       string
	outbound Outbound

	mu       sync.RWMutex
	username string

	released atomic.Bool
}

func NewSession(id string, outbound Outbound) *Session {
	return &Session{id: id, outbound: outbound}
}

func (s *Session) ID() string {
	return s.id
}

// Username returns false until Bind has succeeded.
func (s *Session) Username() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username, s.username != ""
}

func (s *Session) Authenticated() bool {
	_, ok := s.Username()
	return ok
}

// Bind attaches username to the session. A username is fixed once bound, so
// a second call reports false and changes nothing.
func (s *Session) Bind(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username != "" || username == "" {
		return false
	}
	s.username = username
	return true
}

// Send delivers m to this session's connection. Released sessions drop
// everything.
func (s *Session) Send(m Message) bool {
	if s.released.Load() {
		return false
	}
	return s.outbound.Deliver(m)
}

// Release marks the session as gone. Only the first call returns true.
func (s *Session) Release() bool {
	return s.released.CompareAndSwap(false, true)
}

func (s *Session) Released() bool {
	return s.released.Load()
}
