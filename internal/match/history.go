// internal/match/history.go
package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/sirupsen/logrus"
)

// Match event types written to the history log.
const (
	EventRoomCreated   = "room_created"
	EventPlayerJoined  = "player_joined"
	EventMatchStarted  = "match_started"
	EventAnswer        = "answer"
	EventRoundResolved = "round_resolved"
	EventMatchComplete = "match_completed"
	EventForfeit       = "forfeit"
	EventAbandoned     = "abandoned"
)

const recordTimeout = 2 * time.Second

// logEvent hands one event to the recorder without blocking the room.
// Caller holds room.mu.
func (c *Coordinator) logEvent(room *Room, actor uuid.UUID, eventType string, payload map[string]interface{}) {
	if c.recorder == nil {
		return
	}
	room.eventIndex++
	if payload == nil {
		payload = map[string]interface{}{}
	}
	ev := models.MatchEvent{
		GameID:      room.ID,
		EventIndex:  room.eventIndex,
		ActorUserID: actor,
		EventType:   eventType,
		Payload:     payload,
		Timestamp:   c.now().UnixMilli(),
	}
	go func(ev models.MatchEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.Record(ctx, ev); err != nil {
			c.logger.WithFields(logrus.Fields{
				"room_id": ev.GameID,
				"event":   ev.EventType,
			}).WithError(err).Warn("failed to record match event")
		}
	}(ev)
}
