package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingOutbound struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recordingOutbound) Deliver(m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return true
}

func TestSession_Bind_OnlyOnce(t *testing.T) {
	req := require.New(t)
	session := NewSession("s-1", &recordingOutbound{})

	// Given a fresh session
	_, ok := session.Username()
	req.False(ok)
	req.False(session.Authenticated())

	// When a username is bound twice
	req.True(session.Bind("alice"))
	req.False(session.Bind("bob"))

	// Then the first one wins
	name, ok := session.Username()
	req.True(ok)
	req.Equal("alice", name)
}

func TestSession_Bind_RejectsEmpty(t *testing.T) {
	req := require.New(t)
	session := NewSession("s-1", &recordingOutbound{})

	req.False(session.Bind(""))
	req.False(session.Authenticated())
}

func TestSession_Release_StopsDelivery(t *testing.T) {
	req := require.New(t)
	out := &recordingOutbound{}
	session := NewSession("s-1", out)

	req.True(session.Send(NewText("lobby", "one")))

	// When the session is released twice
	req.True(session.Release())
	req.False(session.Release())

	// Then nothing else reaches the connection
	req.False(session.Send(NewText("lobby", "two")))
	req.Len(out.messages, 1)
	req.True(session.Released())
}
