// internal/match/scoring.go
package match

import (
	"math"

	"github.com/google/uuid"
)

// roundWinner picks the participant whose correct answer was persisted first.
// Returns nil when nobody answered correctly.
func roundWinner(pending map[uuid.UUID]pendingAnswer) *uuid.UUID {
	var (
		best    uuid.UUID
		bestSeq int64
		found   bool
	)
	for userID, a := range pending {
		if !a.correct {
			continue
		}
		if !found || a.seq < bestSeq {
			best, bestSeq, found = userID, a.seq, true
		}
	}
	if !found {
		return nil
	}
	return &best
}

// percentScore is correct/total as a rounded percentage.
func percentScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

type standing struct {
	UserID  uuid.UUID
	Correct int
	Score   int
}

func finalStandings(participants []uuid.UUID, correct map[uuid.UUID]int, total int) []standing {
	out := make([]standing, 0, len(participants))
	for _, p := range participants {
		out = append(out, standing{UserID: p, Correct: correct[p], Score: percentScore(correct[p], total)})
	}
	return out
}

// decideWinner returns the single highest scorer. Equal top scores are a draw.
func decideWinner(standings []standing) (winner *uuid.UUID, draw bool) {
	if len(standings) == 0 {
		return nil, false
	}
	top := standings[0]
	tied := false
	for _, s := range standings[1:] {
		switch {
		case s.Score > top.Score:
			top, tied = s, false
		case s.Score == top.Score:
			tied = true
		}
	}
	if tied {
		return nil, true
	}
	id := top.UserID
	return &id, false
}
