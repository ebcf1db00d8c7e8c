package runtime

import (
	stderrors "errors"
	"fmt"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSession() (*chat.Session, *outbox) {
	out := &outbox{}
	return chat.NewSession(uuid.NewString(), out), out
}

func TestRegistry_Register_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session, _ := newSession()

	// Given no user is connected
	req.Zero(registry.Count())

	// When a user registers
	req.NoError(registry.Register("alice", session))

	// Then it can be found by name
	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(session, found)
	req.Equal(1, registry.Count())

	// And names are case sensitive
	_, ok = registry.Lookup("Alice")
	req.False(ok)
}

func TestRegistry_Register_Taken(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first, _ := newSession()
	second, _ := newSession()

	req.NoError(registry.Register("alice", first))
	err := registry.Register("alice", second)

	req.ErrorIs(err, errors.ErrUsernameTaken)
	found, _ := registry.Lookup("alice")
	req.Same(first, found)
}

func TestRegistry_Register_Empty(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session, _ := newSession()

	req.ErrorIs(registry.Register("", session), errors.ErrEmptyUsername)
	req.Zero(registry.Count())
}

func TestRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first, _ := newSession()
	second, _ := newSession()
	req.NoError(registry.Register("alice", first))

	// When the name is released
	registry.Unregister("alice")
	registry.Unregister("nobody")

	// Then someone else can take it
	req.NoError(registry.Register("alice", second))
	req.Equal(1, registry.Count())
}

func TestRegistry_ConcurrentRegistration_ExactlyOneWins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const contenders = 64

	var wins, taken, other atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, _ := newSession()
			<-start
			switch err := registry.Register("alice", session); {
			case err == nil:
				wins.Add(1)
			case stderrors.Is(err, errors.ErrUsernameTaken):
				taken.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	req.Equal(int32(1), wins.Load())
	req.Equal(int32(contenders-1), taken.Load())
	req.Zero(other.Load())
	req.Equal(1, registry.Count())
}

func TestRegistry_Usernames_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, name := range []string{"carol", "alice", "Bob", "bob"} {
		session, _ := newSession()
		req.NoError(registry.Register(name, session))
	}

	req.Equal([]string{"Bob", "alice", "bob", "carol"}, registry.Usernames())
}

func TestRegistry_ConcurrentMixedAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i%8)
			session, _ := newSession()
			if registry.Register(name, session) == nil {
				registry.Lookup(name)
				registry.Usernames()
				registry.Unregister(name)
			}
		}(i)
	}
	wg.Wait()

	require.Zero(t, registry.Count())
}
