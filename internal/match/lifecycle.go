// internal/match/lifecycle.go
package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Leave ends the room on behalf of userID. A terminal or unknown room is a no-op.
func (c *Coordinator) Leave(ctx context.Context, connID, userID, roomID uuid.UUID) error {
	room, ok := c.rooms.get(roomID)
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if err := c.settleForfeit(ctx, room, userID); err != nil {
		return err
	}
	if room.Status.Terminal() {
		return nil
	}
	if !room.isParticipant(userID) {
		return apperr.ErrNotParticipant
	}
	if err := c.terminate(ctx, room, userID); err != nil {
		return err
	}
	room.dropConn(connID)
	return nil
}

// Disconnect handles a transport close for connID. The user forfeits only when
// no other connection of theirs remains joined to the room. A room already
// finished is left untouched. When the forfeit cannot be stored the closed
// connection stays out of the room and the forfeit is retried by the next
// operation on it.
func (c *Coordinator) Disconnect(ctx context.Context, connID, userID uuid.UUID) error {
	roomID, ok := c.rooms.activeRoom(userID)
	if !ok {
		return nil
	}
	room, ok := c.rooms.get(roomID)
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status.Terminal() || !room.isParticipant(userID) {
		return nil
	}
	wasMember := room.dropConn(connID)
	if err := c.settleForfeit(ctx, room, userID); err != nil {
		return err
	}
	if room.Status.Terminal() || room.userInGroup(userID) {
		return nil
	}
	if !wasMember && room.forfeitPending != userID && c.hasOtherConnection(userID, connID) {
		// The closing tab never joined and the user is still online elsewhere.
		return nil
	}
	if err := c.terminate(ctx, room, userID); err != nil {
		room.forfeitPending = userID
		return err
	}
	return nil
}

// settleForfeit retries a forfeit that failed to persist earlier. Nothing is
// retried on behalf of the leaver themselves, and a leaver who has a joined
// connection again is no longer pending. Caller holds room.mu.
func (c *Coordinator) settleForfeit(ctx context.Context, room *Room, actor uuid.UUID) error {
	leaver := room.forfeitPending
	if leaver == uuid.Nil || leaver == actor || room.Status.Terminal() {
		return nil
	}
	if room.userInGroup(leaver) {
		room.forfeitPending = uuid.Nil
		return nil
	}
	return c.terminate(ctx, room, leaver)
}

func (c *Coordinator) hasOtherConnection(userID, connID uuid.UUID) bool {
	for _, id := range c.presence.FindConnectionsByUserID(userID) {
		if id != connID {
			return true
		}
	}
	return false
}

// terminate ends a non-terminal room because leaver left. With an opponent
// seated it is a forfeit; otherwise the room is abandoned. Persistence runs
// before any in-memory change. Caller holds room.mu.
func (c *Coordinator) terminate(ctx context.Context, room *Room, leaver uuid.UUID) error {
	remaining := room.opponentOf(leaver)
	if remaining == uuid.Nil {
		return c.abandon(ctx, room, leaver)
	}

	completedAt := c.now()
	if err := c.store.UpdatePlayerScore(ctx, room.ID, remaining, 100, completedAt, true); err != nil {
		return apperr.Persistence("update player score", err)
	}
	if err := c.store.UpdatePlayerScore(ctx, room.ID, leaver, 0, completedAt, false); err != nil {
		return apperr.Persistence("update player score", err)
	}
	if err := c.store.UpdateGameStatus(ctx, room.ID, models.GameStatusCompleted); err != nil {
		return apperr.Persistence("update game status", err)
	}

	room.Status = StatusCompleted
	room.Outcome = OutcomeForfeit
	room.pending = make(map[uuid.UUID]pendingAnswer)
	room.forfeitPending = uuid.Nil

	c.logEvent(room, leaver, EventForfeit, map[string]interface{}{
		"winner": remaining,
		"round":  room.round,
	})
	targets := room.connections()
	targets = append(targets, c.presence.FindConnectionsByUserID(remaining)...)
	c.notifier.ToConnections(targets, protocol.NewEvent(protocol.EventOpponentLeft, protocol.OpponentLeftPayload{
		RoomID:      room.ID,
		LeaverID:    leaver,
		WinnerID:    remaining,
		WinnerScore: 100,
		LeaverScore: 0,
	}))
	c.logger.WithFields(logrus.Fields{
		"room_id": room.ID,
		"leaver":  leaver,
		"winner":  remaining,
	}).Info("match forfeited")
	c.release(room)
	return nil
}

func (c *Coordinator) abandon(ctx context.Context, room *Room, leaver uuid.UUID) error {
	if err := c.store.UpdateGameStatus(ctx, room.ID, models.GameStatusAbandoned); err != nil {
		return apperr.Persistence("update game status", err)
	}
	room.Status = StatusAbandoned
	room.forfeitPending = uuid.Nil
	c.logEvent(room, leaver, EventAbandoned, nil)
	c.logger.WithField("room_id", room.ID).Info("room abandoned")
	c.release(room)
	return nil
}
