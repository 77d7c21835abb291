package content

import (
	"math"

	"github.com/jason-s-yu/quizduel/internal/models"
)

// Bucket is one slice of a question set's difficulty mix.
type Bucket struct {
	Difficulty models.Difficulty
	Weight     float64
}

// Count is the rounded share of total for this bucket.
func (b Bucket) Count(total int) int {
	return int(math.Round(b.Weight * float64(total)))
}

// Mix spreads a set over one level easier (10%), the target (70%) and one
// level harder (20%), clamped to the difficulty scale.
func Mix(d models.Difficulty) []Bucket {
	d = d.Clamp()
	return []Bucket{
		{Difficulty: (d - 1).Clamp(), Weight: 0.1},
		{Difficulty: d, Weight: 0.7},
		{Difficulty: (d + 1).Clamp(), Weight: 0.2},
	}
}
