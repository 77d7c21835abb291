package models

import (
	"time"

	"github.com/google/uuid"
)

// GamePlayer is a row of game_players joined with the user's display name.
type GamePlayer struct {
	GameID      uuid.UUID  `json:"gameId"`
	UserID      uuid.UUID  `json:"userId"`
	Username    string     `json:"username"`
	Score       int        `json:"score"`
	IsWinner    bool       `json:"isWinner"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
