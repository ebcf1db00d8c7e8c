package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Room is a named set of member sessions. It is safe for concurrent use.
type Room struct {
	name string

	mu      sync.RWMutex
	members map[*Session]struct{}
}

func NewRoom(name string) *Room {
	return &Room{name: name, members: make(map[*Session]struct{})}
}

func (r *Room) Name() string {
	return r.name
}

// Add reports whether s was not already a member.
func (r *Room) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; ok {
		return false
	}
	r.members[s] = struct{}{}
	return true
}

func (r *Room) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; !ok {
		return false
	}
	delete(r.members, s)
	return true
}

func (r *Room) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[s]
	return ok
}

// Members returns a point-in-time copy of the member set.
func (r *Room) Members() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.members)
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
