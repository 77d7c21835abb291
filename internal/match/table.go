// internal/match/table.go
package match

import (
	"sync"

	"github.com/google/uuid"
)

// table holds the rooms that are still live plus the user -> room index used to
// keep a user in at most one non-terminal room.
type table struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*Room
	userRoom map[uuid.UUID]uuid.UUID
}

func newTable() *table {
	return &table{
		rooms:    make(map[uuid.UUID]*Room),
		userRoom: make(map[uuid.UUID]uuid.UUID),
	}
}

func (t *table) get(id uuid.UUID) (*Room, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rooms[id]
	return r, ok
}

// insert adds room and binds users to it. It fails without side effects when
// any user is already bound to another room.
func (t *table) insert(room *Room, users ...uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range users {
		if other, busy := t.userRoom[u]; busy && other != room.ID {
			return false
		}
	}
	t.rooms[room.ID] = room
	for _, u := range users {
		t.userRoom[u] = room.ID
	}
	return true
}

// adopt inserts a rehydrated room unless another goroutine got there first, in
// which case the existing room is returned. Users already bound elsewhere stay
// bound to their other room.
func (t *table) adopt(room *Room, users ...uuid.UUID) *Room {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.rooms[room.ID]; ok {
		return existing
	}
	t.rooms[room.ID] = room
	for _, u := range users {
		if _, busy := t.userRoom[u]; !busy {
			t.userRoom[u] = room.ID
		}
	}
	return room
}

// bind attaches a user to roomID. It reports false when the user is bound to a
// different room.
func (t *table) bind(userID, roomID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if other, busy := t.userRoom[userID]; busy && other != roomID {
		return false
	}
	t.userRoom[userID] = roomID
	return true
}

func (t *table) busyElsewhere(userID, roomID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	other, busy := t.userRoom[userID]
	return busy && other != roomID
}

func (t *table) activeRoom(userID uuid.UUID) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.userRoom[userID]
	return id, ok
}

// evict removes the room and every user binding that points at it.
func (t *table) evict(roomID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
	for u, id := range t.userRoom {
		if id == roomID {
			delete(t.userRoom, u)
		}
	}
}

func (t *table) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
