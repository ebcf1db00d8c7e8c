package runtime

import (
	"fmt"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each logged-in username to its session.
// Names are compared byte for byte: "Alice" and "alice" are two users.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session // map username -> session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*chat.Session)}
}

// Register claims username for session. The check and the insert happen
// under the same lock, so of N concurrent claims for one name exactly one
// succeeds and the others get errors.ErrUsernameTaken.
func (r *Registry) Register(username string, session *chat.Session) error {
	if username == "" {
		return errors.ErrEmptyUsername
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; ok {
		return fmt.Errorf("%w: %s", errors.ErrUsernameTaken, username)
	}
	r.sessions[username] = session
	return nil
}

func (r *Registry) Lookup(username string) (*chat.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Unregister frees username. Unknown names are ignored.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

// Usernames returns a sorted snapshot of everyone online.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	names := lo.Keys(r.sessions)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
