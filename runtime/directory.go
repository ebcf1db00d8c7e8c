package runtime

import (
	"secure-chat/domain/chat"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Directory holds every room by name. Rooms are created on first use and
// kept for the lifetime of the server, even once empty.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*chat.Room
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]*chat.Room)}
}

// EnsureRoom returns the room called name, creating it if needed.
func (d *Directory) EnsureRoom(name string) *chat.Room {
	d.mu.RLock()
	room, ok := d.rooms[name]
	d.mu.RUnlock()
	if ok {
		return room
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Someone may have created it between the two locks
	if room, ok = d.rooms[name]; ok {
		return room
	}
	room = chat.NewRoom(name)
	d.rooms[name] = room
	return room
}

func (d *Directory) AddMember(room string, session *chat.Session) {
	d.EnsureRoom(room).Add(session)
}

func (d *Directory) RemoveMember(room string, session *chat.Session) {
	if r, ok := d.get(room); ok {
		r.Remove(session)
	}
}

// MembersOf returns a snapshot of the members of room, nil if it does not
// exist. Iterating it is safe while others join or leave.
func (d *Directory) MembersOf(room string) []*chat.Session {
	r, ok := d.get(room)
	if !ok {
		return nil
	}
	return r.Members()
}

// RemoveFromAll drops session from every room it belongs to.
func (d *Directory) RemoveFromAll(session *chat.Session) {
	d.mu.RLock()
	rooms := lo.Values(d.rooms)
	d.mu.RUnlock()

	for _, r := range rooms {
		r.Remove(session)
	}
}

// Rooms returns the sorted room names.
func (d *Directory) Rooms() []string {
	d.mu.RLock()
	names := lo.Keys(d.rooms)
	d.mu.RUnlock()

	sort.Strings(names)
	return names
}

// RoomsOf returns the sorted names of the rooms session belongs to.
func (d *Directory) RoomsOf(session *chat.Session) []string {
	d.mu.RLock()
	rooms := lo.Values(d.rooms)
	d.mu.RUnlock()

	names := lo.FilterMap(rooms, func(r *chat.Room, _ int) (string, bool) {
		return r.Name(), r.Contains(session)
	})
	sort.Strings(names)
	return names
}

func (d *Directory) get(name string) (*chat.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[name]
	return r, ok
}
