package content

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	bank   []models.Question
	scores []int
	err    error
	asked  []models.Difficulty
	// langs overrides the language of a question; english otherwise.
	langs map[uuid.UUID]models.Language
}

func (f *fakeSource) lang(q models.Question) models.Language {
	if l, ok := f.langs[q.ID]; ok {
		return l
	}
	return models.LanguageEnglish
}

func (f *fakeSource) pick(filter func(models.Question) bool, limit int, exclude []uuid.UUID) []models.Question {
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.Question
	for _, q := range f.bank {
		if len(out) == limit {
			break
		}
		if !skip[q.ID] && filter(q) {
			out = append(out, q)
		}
	}
	return out
}

func (f *fakeSource) QuestionsByDifficulty(_ context.Context, subject models.Subject, language models.Language, d models.Difficulty, limit int, exclude []uuid.UUID) ([]models.Question, error) {
	f.asked = append(f.asked, d)
	return f.pick(func(q models.Question) bool {
		return q.Subject == subject && f.lang(q) == language && q.Difficulty == int(d)
	}, limit, exclude), nil
}

func (f *fakeSource) AnyQuestions(_ context.Context, subject models.Subject, language models.Language, limit int, exclude []uuid.UUID) ([]models.Question, error) {
	return f.pick(func(q models.Question) bool {
		return q.Subject == subject && f.lang(q) == language
	}, limit, exclude), nil
}

func (f *fakeSource) CorrectIndex(_ context.Context, id uuid.UUID) (int, error) {
	for _, q := range f.bank {
		if q.ID == id {
			return q.CorrectIndex, nil
		}
	}
	return 0, errors.New("not found")
}

func (f *fakeSource) RecentScores(context.Context, uuid.UUID, int) ([]int, error) {
	return f.scores, f.err
}

func seedBank(perLevel int) []models.Question {
	var out []models.Question
	for d := 1; d <= 10; d++ {
		for i := 0; i < perLevel; i++ {
			out = append(out, models.Question{
				ID:           uuid.New(),
				Difficulty:   d,
				Subject:      models.SubjectMath,
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: i % 4,
			})
		}
	}
	return out
}

func noShuffle(int, func(i, j int)) {}

func newTestBank(src Source) *Bank {
	logger, _ := test.NewNullLogger()
	b := NewBank(src, logger)
	b.shuffle = noShuffle
	return b
}

func TestMixWeights(t *testing.T) {
	m := Mix(models.Difficulty(6))
	require.Len(t, m, 3)
	assert.Equal(t, models.Difficulty(5), m[0].Difficulty)
	assert.Equal(t, models.Difficulty(7), m[2].Difficulty)
	assert.Equal(t, 1, m[0].Count(10))
	assert.Equal(t, 7, m[1].Count(10))

	edge := Mix(models.MaxDifficulty)
	assert.Equal(t, models.MaxDifficulty, edge[2].Difficulty)
	edge = Mix(0)
	assert.Equal(t, models.MinDifficulty, edge[0].Difficulty)
}

func TestGenerateQuestionSetDistribution(t *testing.T) {
	src := &fakeSource{bank: seedBank(10)}
	b := newTestBank(src)

	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10, Difficulty: 6})
	require.NoError(t, err)
	require.Len(t, qs, 10)

	byLevel := map[int]int{}
	ids := map[uuid.UUID]bool{}
	for _, q := range qs {
		byLevel[q.Difficulty]++
		ids[q.ID] = true
	}
	assert.Equal(t, map[int]int{5: 1, 6: 7, 7: 2}, byLevel)
	assert.Len(t, ids, 10, "no duplicates")
}

func TestGenerateQuestionSetFillsFromAnyDifficulty(t *testing.T) {
	// Only two questions at each level: the buckets cannot cover ten.
	src := &fakeSource{bank: seedBank(2)}
	b := newTestBank(src)

	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10, Difficulty: 3})
	require.NoError(t, err)
	assert.Len(t, qs, 10)
	ids := map[uuid.UUID]bool{}
	for _, q := range qs {
		ids[q.ID] = true
	}
	assert.Len(t, ids, 10)
}

func TestGenerateQuestionSetSmallBank(t *testing.T) {
	src := &fakeSource{bank: seedBank(1)[:3]}
	b := newTestBank(src)
	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10, Difficulty: 1})
	require.NoError(t, err)
	assert.Len(t, qs, 3)
}

func TestGenerateQuestionSetUsesRequestedLanguage(t *testing.T) {
	src := &fakeSource{bank: seedBank(2), langs: map[uuid.UUID]models.Language{}}
	var ru []uuid.UUID
	for _, q := range src.bank[:12] {
		src.langs[q.ID] = models.LanguageRussian
		ru = append(ru, q.ID)
	}
	b := newTestBank(src)

	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10, Difficulty: 3, Language: models.LanguageRussian})
	require.NoError(t, err)
	require.Len(t, qs, 10)
	for _, q := range qs {
		assert.Contains(t, ru, q.ID)
	}
}

func TestGenerateQuestionSetFallsBackToEnglish(t *testing.T) {
	src := &fakeSource{bank: seedBank(2), langs: map[uuid.UUID]models.Language{}}
	for _, q := range src.bank[:3] {
		src.langs[q.ID] = models.LanguageKazakh
	}
	logger, hook := test.NewNullLogger()
	b := NewBank(src, logger)
	b.shuffle = noShuffle

	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10, Difficulty: 2, Language: models.LanguageKazakh})
	require.NoError(t, err)
	require.Len(t, qs, 10)

	kazakh := 0
	ids := map[uuid.UUID]bool{}
	for _, q := range qs {
		if src.lang(q) == models.LanguageKazakh {
			kazakh++
		}
		ids[q.ID] = true
	}
	assert.Equal(t, 3, kazakh, "every kazakh question is used before english")
	assert.Len(t, ids, 10)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, models.LanguageKazakh, entry.Data["language"])
	assert.Equal(t, 3, entry.Data["found"])
}

func TestGenerateQuestionSetEnglishShortfallDoesNotLog(t *testing.T) {
	src := &fakeSource{bank: seedBank(1)[:3]}
	logger, hook := test.NewNullLogger()
	b := NewBank(src, logger)

	qs, err := b.GenerateQuestionSet(context.Background(), models.QuestionSetRequest{Count: 10})
	require.NoError(t, err)
	assert.Len(t, qs, 3)
	assert.Empty(t, hook.AllEntries())
}

func TestVerifyAnswer(t *testing.T) {
	src := &fakeSource{bank: seedBank(1)}
	b := newTestBank(src)
	q := src.bank[0]

	ok, err := b.VerifyAnswer(context.Background(), q.ID, q.CorrectIndex)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.VerifyAnswer(context.Background(), q.ID, q.CorrectIndex+1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.VerifyAnswer(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
}

func TestDifficultyForScores(t *testing.T) {
	assert.Equal(t, models.DifficultyEasy, DifficultyForScores(nil))
	assert.Equal(t, models.DifficultyHard, DifficultyForScores([]int{90, 85, 100}))
	assert.Equal(t, models.DifficultyMedium, DifficultyForScores([]int{80, 80}))
	assert.Equal(t, models.DifficultyMedium, DifficultyForScores([]int{50}))
	assert.Equal(t, models.DifficultyEasy, DifficultyForScores([]int{49, 20}))
}

func TestAdaptiveDifficultyError(t *testing.T) {
	b := newTestBank(&fakeSource{err: errors.New("db down")})
	d, err := b.AdaptiveDifficulty(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Equal(t, models.DifficultyEasy, d)
}
