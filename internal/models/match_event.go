package models

import "github.com/google/uuid"

// MatchEvent is one entry of a room's history log, queued to Redis and
// persisted by the historian.
type MatchEvent struct {
	GameID      uuid.UUID              `json:"game_id"`
	EventIndex  int                    `json:"event_index"`
	ActorUserID uuid.UUID              `json:"actor_user_id"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}
