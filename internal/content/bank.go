// Package content assembles question sets from the question bank and checks
// submitted answers against it.
package content

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/sirupsen/logrus"
)

// RecentGames is how many completed games feed the adaptive difficulty.
const RecentGames = 5

// Source is the storage behind the bank.
type Source interface {
	QuestionsByDifficulty(ctx context.Context, subject models.Subject, language models.Language, difficulty models.Difficulty, limit int, exclude []uuid.UUID) ([]models.Question, error)
	AnyQuestions(ctx context.Context, subject models.Subject, language models.Language, limit int, exclude []uuid.UUID) ([]models.Question, error)
	CorrectIndex(ctx context.Context, questionID uuid.UUID) (int, error)
	RecentScores(ctx context.Context, userID uuid.UUID, limit int) ([]int, error)
}

// Bank draws question sets with a difficulty mix around a target level. The
// bank has no grade column, so grade only scopes rooms, not questions.
type Bank struct {
	src     Source
	logger  *logrus.Logger
	shuffle func(n int, swap func(i, j int))
}

func NewBank(src Source, logger *logrus.Logger) *Bank {
	return &Bank{src: src, logger: logger, shuffle: rand.Shuffle}
}

// VerifyAnswer reports whether selectedIndex is the stored correct option.
func (b *Bank) VerifyAnswer(ctx context.Context, questionID uuid.UUID, selectedIndex int) (bool, error) {
	idx, err := b.src.CorrectIndex(ctx, questionID)
	if err != nil {
		return false, fmt.Errorf("load question %s: %w", questionID, err)
	}
	return idx == selectedIndex, nil
}

// GenerateQuestionSet returns up to req.Count distinct questions in
// req.Language: the mix buckets first, then any difficulty to fill, shuffled.
// When the language cannot fill the set the rest comes from english.
func (b *Bank) GenerateQuestionSet(ctx context.Context, req models.QuestionSetRequest) ([]models.Question, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	subject := req.Subject
	if subject == "" {
		subject = models.SubjectMath
	}
	language := req.Language
	if language == "" {
		language = models.LanguageEnglish
	}

	out, err := b.draw(ctx, subject, language, req.Difficulty, req.Count, nil)
	if err != nil {
		return nil, err
	}
	if len(out) < req.Count && language != models.LanguageEnglish {
		b.logger.WithFields(logrus.Fields{
			"subject":  subject,
			"language": language,
			"found":    len(out),
			"wanted":   req.Count,
		}).Warn("not enough questions in language, filling with english")
		more, err := b.draw(ctx, subject, models.LanguageEnglish, req.Difficulty, req.Count-len(out), questionIDs(out))
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}

	b.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}

// draw takes up to count questions of one language around target, skipping seen.
func (b *Bank) draw(ctx context.Context, subject models.Subject, language models.Language, target models.Difficulty, count int, seen []uuid.UUID) ([]models.Question, error) {
	var out []models.Question
	remaining := count
	mix := Mix(target)
	for i, bucket := range mix {
		want := bucket.Count(count)
		if i == len(mix)-1 {
			want = remaining
		}
		if want <= 0 {
			continue
		}
		qs, err := b.src.QuestionsByDifficulty(ctx, subject, language, bucket.Difficulty, want, seen)
		if err != nil {
			return nil, fmt.Errorf("questions at difficulty %d: %w", bucket.Difficulty, err)
		}
		out = append(out, qs...)
		seen = append(seen, questionIDs(qs)...)
		remaining -= len(qs)
	}

	if len(out) < count {
		qs, err := b.src.AnyQuestions(ctx, subject, language, count-len(out), seen)
		if err != nil {
			return nil, fmt.Errorf("fill questions: %w", err)
		}
		out = append(out, qs...)
	}
	return out, nil
}

// AdaptiveDifficulty maps the average of the user's last completed scores to
// easy, medium or hard.
func (b *Bank) AdaptiveDifficulty(ctx context.Context, userID uuid.UUID) (models.Difficulty, error) {
	scores, err := b.src.RecentScores(ctx, userID, RecentGames)
	if err != nil {
		return models.DifficultyEasy, fmt.Errorf("recent scores: %w", err)
	}
	return DifficultyForScores(scores), nil
}

// DifficultyForScores: average > 80 is hard, >= 50 medium, otherwise easy.
func DifficultyForScores(scores []int) models.Difficulty {
	if len(scores) == 0 {
		return models.DifficultyEasy
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	switch {
	case avg > 80:
		return models.DifficultyHard
	case avg >= 50:
		return models.DifficultyMedium
	default:
		return models.DifficultyEasy
	}
}

func questionIDs(qs []models.Question) []uuid.UUID {
	ids := make([]uuid.UUID, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
