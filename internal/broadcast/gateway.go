// internal/broadcast/gateway.go
package broadcast

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Directory is the presence data the gateway routes over.
type Directory interface {
	Sender(connID uuid.UUID) (presence.Sender, bool)
	FindConnectionsByUserID(userID uuid.UUID) []uuid.UUID
	AuthenticatedConnections() []presence.Connection
	ListAvailable(exclude uuid.UUID) []protocol.OnlineUser
}

// RoomMembership resolves the connections currently joined to a room.
type RoomMembership interface {
	RoomConnections(roomID uuid.UUID) []uuid.UUID
}

// Gateway addresses outbound events. It keeps no state besides its lookups and
// never queues for targets that are not connected.
type Gateway struct {
	dir    Directory
	rooms  RoomMembership
	logger *logrus.Logger
}

func NewGateway(dir Directory, logger *logrus.Logger) *Gateway {
	return &Gateway{dir: dir, logger: logger}
}

// AttachRooms wires room membership once the coordinator exists.
func (g *Gateway) AttachRooms(rooms RoomMembership) {
	g.rooms = rooms
}

// ToConnection delivers ev to one connection.
func (g *Gateway) ToConnection(connID uuid.UUID, ev protocol.Event) bool {
	s, ok := g.dir.Sender(connID)
	if !ok {
		return false
	}
	if !s.Send(ev) {
		g.logger.WithFields(logrus.Fields{
			"conn_id": connID,
			"type":    ev.Type,
		}).Warn("dropped outbound event")
		return false
	}
	return true
}

// ToConnections delivers ev once to each distinct connection and returns the
// number of successful deliveries.
func (g *Gateway) ToConnections(connIDs []uuid.UUID, ev protocol.Event) int {
	seen := make(map[uuid.UUID]struct{}, len(connIDs))
	n := 0
	for _, id := range connIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if g.ToConnection(id, ev) {
			n++
		}
	}
	return n
}

// ToUser delivers ev to every connection of a user.
func (g *Gateway) ToUser(userID uuid.UUID, ev protocol.Event) int {
	return g.ToConnections(g.dir.FindConnectionsByUserID(userID), ev)
}

// ToRoom delivers ev to every connection joined to a room. It takes the room's
// lock, so the coordinator uses ToConnections from inside room operations.
func (g *Gateway) ToRoom(roomID uuid.UUID, ev protocol.Event) int {
	if g.rooms == nil {
		return 0
	}
	return g.ToConnections(g.rooms.RoomConnections(roomID), ev)
}

// BroadcastOnlineUsers sends every authenticated connection the available list
// without its own user.
func (g *Gateway) BroadcastOnlineUsers() {
	for _, c := range g.dir.AuthenticatedConnections() {
		users := g.dir.ListAvailable(c.UserID)
		g.ToConnection(c.ID, protocol.NewEvent(protocol.EventOnlineUsers, protocol.OnlineUsersPayload{Users: users}))
	}
}
