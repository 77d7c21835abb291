package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// ErrQuestionNotFound is returned for an unknown question id.
var ErrQuestionNotFound = errors.New("question not found")

const questionColumns = `id, text, options, difficulty, explanation, subject, correct_index`

// QuestionsByDifficulty draws up to limit random questions of one subject,
// language and difficulty, skipping exclude.
func (s *Store) QuestionsByDifficulty(ctx context.Context, subject models.Subject, language models.Language, difficulty models.Difficulty, limit int, exclude []uuid.UUID) ([]models.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE subject = $1 AND language = $2 AND difficulty = $3 AND NOT (id = ANY($4))
		ORDER BY random()
		LIMIT $5
	`, subject, language, int(difficulty), nonNilIDs(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("select questions by difficulty: %w", err)
	}
	return scanQuestions(rows)
}

// AnyQuestions draws up to limit random questions of a subject and language
// at any difficulty, skipping exclude.
func (s *Store) AnyQuestions(ctx context.Context, subject models.Subject, language models.Language, limit int, exclude []uuid.UUID) ([]models.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE subject = $1 AND language = $2 AND NOT (id = ANY($3))
		ORDER BY random()
		LIMIT $4
	`, subject, language, nonNilIDs(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	return scanQuestions(rows)
}

// CorrectIndex returns the stored correct option of a question.
func (s *Store) CorrectIndex(ctx context.Context, questionID uuid.UUID) (int, error) {
	var idx int
	err := s.pool.QueryRow(ctx, `SELECT correct_index FROM questions WHERE id = $1`, questionID).Scan(&idx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuestionNotFound
		}
		return 0, fmt.Errorf("select correct index: %w", err)
	}
	return idx, nil
}

// RecentScores returns the user's scores of their most recently completed games.
func (s *Store) RecentScores(ctx context.Context, userID uuid.UUID, limit int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT score
		FROM game_players
		WHERE user_id = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent scores: %w", err)
	}
	scores, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("collect recent scores: %w", err)
	}
	return scores, nil
}

// InsertQuestion adds a question to the bank and returns its id.
func (s *Store) InsertQuestion(ctx context.Context, q models.Question, language models.Language) (uuid.UUID, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questions (id, text, options, correct_index, difficulty, subject, language, explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, q.ID, q.Text, q.Options, q.CorrectIndex, q.Difficulty, q.Subject, language, q.Explanation)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert question: %w", err)
	}
	return q.ID, nil
}

func scanQuestions(rows pgx.Rows) ([]models.Question, error) {
	defer rows.Close()
	var out []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.Difficulty, &q.Explanation, &q.Subject, &q.CorrectIndex); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// nonNilIDs keeps ANY($n) well-typed when there is nothing to exclude.
func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
