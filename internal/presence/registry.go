// internal/presence/registry.go
package presence

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/protocol"
)

// Status is the availability of a connection.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAvailable       Status = "available"
	StatusInGame          Status = "in_game"
)

// ParseStatus accepts the client spellings of a status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "available":
		return StatusAvailable, true
	case "in_game", "in-game", "ingame":
		return StatusInGame, true
	}
	return "", false
}

// Sender delivers one event to a live transport. It must not block.
type Sender interface {
	Send(ev protocol.Event) bool
}

// Connection is a snapshot of one presence entry.
type Connection struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	Status      Status
	RoomID      uuid.UUID
	Sender      Sender

	seq uint64
}

// Authenticated reports whether the connection has a user bound to it.
func (c Connection) Authenticated() bool {
	return c.UserID != uuid.Nil
}

// Registry tracks live connections and their availability.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
	seq   uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]*Connection)}
}

// Connect adds an unauthenticated connection. Calling it twice for the same id
// only replaces the sender.
func (r *Registry) Connect(connID uuid.UUID, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		c.Sender = sender
		return
	}
	r.conns[connID] = &Connection{ID: connID, Status: StatusUnauthenticated, Sender: sender}
}

// Register binds a user to the connection and marks it available. Re-registering
// the same connection overwrites the entry.
func (r *Registry) Register(connID, userID uuid.UUID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c, ok := r.conns[connID]
	if !ok {
		c = &Connection{ID: connID}
		r.conns[connID] = c
	}
	c.UserID = userID
	c.DisplayName = displayName
	c.Status = StatusAvailable
	c.RoomID = uuid.Nil
	c.seq = r.seq
}

// SetStatus updates a connection's status. Unknown connections are ignored.
func (r *Registry) SetStatus(connID uuid.UUID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok || !c.Authenticated() {
		return
	}
	c.Status = status
	if status == StatusAvailable {
		c.RoomID = uuid.Nil
	}
}

// SetUserStatus applies status to every connection of a user. roomID is recorded
// for in-game transitions and cleared otherwise.
func (r *Registry) SetUserStatus(userID uuid.UUID, status Status, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.UserID != userID {
			continue
		}
		c.Status = status
		if status == StatusInGame {
			c.RoomID = roomID
		} else {
			c.RoomID = uuid.Nil
		}
	}
}

// AssignRoom marks a single connection as in-game for roomID.
func (r *Registry) AssignRoom(connID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok && c.Authenticated() {
		c.RoomID = roomID
		c.Status = StatusInGame
	}
}

// Unregister removes the connection. changed is true when the set of available
// users shown to clients is different afterwards.
func (r *Registry) Unregister(connID uuid.UUID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	if !c.Authenticated() || c.Status != StatusAvailable {
		return *c, false
	}
	for _, other := range r.conns {
		if other.UserID == c.UserID && other.Status == StatusAvailable {
			return *c, false
		}
	}
	return *c, true
}

// Get returns a snapshot of the connection.
func (r *Registry) Get(connID uuid.UUID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// ListAvailable returns available users, one entry per user id, in the order they
// first registered. exclude may be uuid.Nil.
func (r *Registry) ListAvailable(exclude uuid.UUID) []protocol.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type entry struct {
		user protocol.OnlineUser
		seq  uint64
	}
	byUser := make(map[uuid.UUID]entry)
	for _, c := range r.conns {
		if !c.Authenticated() || c.Status != StatusAvailable || c.UserID == exclude {
			continue
		}
		if e, ok := byUser[c.UserID]; ok && e.seq <= c.seq {
			continue
		}
		byUser[c.UserID] = entry{
			user: protocol.OnlineUser{UserID: c.UserID, DisplayName: c.DisplayName},
			seq:  c.seq,
		}
	}

	entries := make([]entry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]protocol.OnlineUser, len(entries))
	for i, e := range entries {
		out[i] = e.user
	}
	return out
}

// FindConnectionsByUserID returns every live connection id of a user.
func (r *Registry) FindConnectionsByUserID(userID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, c := range r.conns {
		if c.UserID == userID && userID != uuid.Nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return r.conns[ids[i]].seq < r.conns[ids[j]].seq })
	return ids
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	return len(r.FindConnectionsByUserID(userID)) > 0
}

// DisplayName returns the name registered for a user, or "Player".
func (r *Registry) DisplayName(userID uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.UserID == userID && c.DisplayName != "" {
			return c.DisplayName
		}
	}
	return "Player"
}

// AuthenticatedConnections returns snapshots of every authenticated connection.
func (r *Registry) AuthenticatedConnections() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.Authenticated() {
			out = append(out, *c)
		}
	}
	return out
}

// Sender returns the transport for a connection.
func (r *Registry) Sender(connID uuid.UUID) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok || c.Sender == nil {
		return nil, false
	}
	return c.Sender, true
}
