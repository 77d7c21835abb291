package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GameType distinguishes solo practice games from head-to-head matches.
type GameType string

const (
	GameTypeSolo        GameType = "solo"
	GameTypeMultiplayer GameType = "multiplayer"
)

// GameStatus is the persisted status column of a game row.
type GameStatus string

const (
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
	GameStatusAbandoned GameStatus = "abandoned"
)

// Language of the generated question text.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageRussian Language = "russian"
	LanguageKazakh  Language = "kazakh"
)

// Subject of the question bank a match draws from.
type Subject string

const (
	SubjectMath  Subject = "math"
	SubjectLogic Subject = "logic"
)

// Grade levels map to admission-test entry points. 0 is "general (all levels)".
const (
	MinGrade = 0
	MaxGrade = 3
)

// GameParams describes a game to create.
type GameParams struct {
	Type       GameType   `json:"type"`
	CreatorID  uuid.UUID  `json:"creatorId"`
	Grade      int        `json:"grade"`
	Difficulty Difficulty `json:"difficulty"`
	Language   Language   `json:"language"`
	Subject    Subject    `json:"subject"`
}

// Game is a row of the games table.
type Game struct {
	ID         uuid.UUID  `json:"id"`
	Type       GameType   `json:"gameType"`
	CreatedBy  uuid.UUID  `json:"createdBy"`
	Status     GameStatus `json:"status"`
	Grade      int        `json:"grade"`
	Difficulty int        `json:"difficulty"`
	Language   Language   `json:"language"`
	Subject    Subject    `json:"subject"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// GameDetails is a game with its players and ordered question list.
type GameDetails struct {
	Game        Game         `json:"game"`
	Players     []GamePlayer `json:"players"`
	Questions   []Question   `json:"questions"`
	AnswerCount int          `json:"answerCount"`
}

// ValidLanguage reports whether l is a supported question language.
func ValidLanguage(l Language) bool {
	switch l {
	case LanguageEnglish, LanguageRussian, LanguageKazakh:
		return true
	}
	return false
}

// ValidSubject reports whether s is a supported subject.
func ValidSubject(s Subject) bool {
	return s == SubjectMath || s == SubjectLogic
}

// ErrGameNotFound is returned when a game id has no row.
var ErrGameNotFound = errors.New("game not found")
