package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is one submitted answer to persist.
type AnswerRecord struct {
	GameID        uuid.UUID
	UserID        uuid.UUID
	QuestionID    uuid.UUID
	SelectedIndex int
	IsCorrect     bool
	ElapsedMs     int
}

// GameAnswer is a persisted answer. Seq is assigned by the database and is
// strictly increasing in insertion order.
type GameAnswer struct {
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
	AnswerRecord
}
