// internal/database/game.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// CreateGame inserts a game row and returns its id.
func (s *Store) CreateGame(ctx context.Context, p models.GameParams) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate game id: %w", err)
	}
	q := `
		INSERT INTO games (id, game_type, created_by, status, grade, difficulty, language, subject)
		VALUES ($1, $2, $3, 'active', $4, $5, $6, $7)
	`
	if _, err := s.pool.Exec(ctx, q, id, p.Type, p.CreatorID, p.Grade, int(p.Difficulty), p.Language, p.Subject); err != nil {
		return uuid.Nil, fmt.Errorf("insert game: %w", err)
	}
	return id, nil
}

// AddPlayer seats a user in a game. Adding the same user twice is a no-op.
func (s *Store) AddPlayer(ctx context.Context, gameID, userID uuid.UUID) error {
	q := `
		INSERT INTO game_players (game_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (game_id, user_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, q, gameID, userID); err != nil {
		return fmt.Errorf("insert game player: %w", err)
	}
	return nil
}

// AddQuestions attaches the ordered question list to a game in one transaction.
func (s *Store) AddQuestions(ctx context.Context, gameID uuid.UUID, questionIDs []uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_questions (game_id, question_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (game_id, position) DO UPDATE SET question_id = EXCLUDED.question_id
		`
		batch := &pgx.Batch{}
		for i, qid := range questionIDs {
			batch.Queue(q, gameID, qid, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("tx insert game questions: %w", err)
	}
	return nil
}

// RecordAnswer stores one answer and returns it with its sequence number.
func (s *Store) RecordAnswer(ctx context.Context, rec models.AnswerRecord) (models.GameAnswer, error) {
	q := `
		INSERT INTO game_answers (game_id, user_id, question_id, selected_index, is_correct, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, created_at
	`
	ans := models.GameAnswer{AnswerRecord: rec}
	err := s.pool.QueryRow(ctx, q,
		rec.GameID, rec.UserID, rec.QuestionID, rec.SelectedIndex, rec.IsCorrect, rec.ElapsedMs,
	).Scan(&ans.Seq, &ans.CreatedAt)
	if err != nil {
		return models.GameAnswer{}, fmt.Errorf("insert answer: %w", err)
	}
	return ans, nil
}

// UpdatePlayerScore writes a player's final score.
func (s *Store) UpdatePlayerScore(ctx context.Context, gameID, userID uuid.UUID, score int, completedAt time.Time, isWinner bool) error {
	q := `
		UPDATE game_players
		SET score = $3, completed_at = $4, is_winner = $5
		WHERE game_id = $1 AND user_id = $2
	`
	tag, err := s.pool.Exec(ctx, q, gameID, userID, score, completedAt, isWinner)
	if err != nil {
		return fmt.Errorf("update player score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update player score: player %s not in game %s", userID, gameID)
	}
	return nil
}

// UpdateGameStatus sets the status column.
func (s *Store) UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status models.GameStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE games SET status = $2 WHERE id = $1`, gameID, status)
	if err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrGameNotFound
	}
	return nil
}

// GetGameWithPlayersAndQuestions loads a game, its players in join order, its
// questions in position order and the number of recorded answers.
func (s *Store) GetGameWithPlayersAndQuestions(ctx context.Context, gameID uuid.UUID) (*models.GameDetails, error) {
	d := &models.GameDetails{}
	g := &d.Game
	err := s.pool.QueryRow(ctx, `
		SELECT id, game_type, created_by, status, grade, difficulty, language, subject, created_at
		FROM games WHERE id = $1
	`, gameID).Scan(&g.ID, &g.Type, &g.CreatedBy, &g.Status, &g.Grade, &g.Difficulty, &g.Language, &g.Subject, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrGameNotFound
		}
		return nil, fmt.Errorf("select game: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT gp.game_id, gp.user_id, u.username, gp.score, gp.is_winner, gp.completed_at
		FROM game_players gp
		JOIN users u ON u.id = gp.user_id
		WHERE gp.game_id = $1
		ORDER BY gp.joined_at
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	for rows.Next() {
		var p models.GamePlayer
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Username, &p.Score, &p.IsWinner, &p.CompletedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan player: %w", err)
		}
		d.Players = append(d.Players, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT q.id, q.text, q.options, q.difficulty, q.explanation, q.subject, q.correct_index
		FROM game_questions gq
		JOIN questions q ON q.id = gq.question_id
		WHERE gq.game_id = $1
		ORDER BY gq.position
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	d.Questions, err = scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM game_answers WHERE game_id = $1`, gameID).Scan(&d.AnswerCount); err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	return d, nil
}
