package models

import "github.com/google/uuid"

// Difficulty is a question difficulty on the 1..10 scale.
type Difficulty int

const (
	MinDifficulty Difficulty = 1
	MaxDifficulty Difficulty = 10

	DifficultyEasy   Difficulty = 3
	DifficultyMedium Difficulty = 6
	DifficultyHard   Difficulty = 9
)

// Clamp bounds d to the valid difficulty range.
func (d Difficulty) Clamp() Difficulty {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// Label returns the coarse easy/medium/hard bucket of d.
func (d Difficulty) Label() string {
	switch {
	case d >= 8:
		return "hard"
	case d >= 5:
		return "medium"
	default:
		return "easy"
	}
}

// Question is a multiple-choice question as sent to players. CorrectIndex never
// leaves the server.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Options      []string  `json:"options"`
	Difficulty   int       `json:"difficulty"`
	Explanation  *string   `json:"explanation"`
	Subject      Subject   `json:"subject"`
	CorrectIndex int       `json:"-"`
}

// QuestionSetRequest asks the content collaborator for a question sequence.
type QuestionSetRequest struct {
	Grade      int
	Count      int
	Difficulty Difficulty
	Language   Language
	Subject    Subject
}
