package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// ErrUserNotFound is returned for an unknown user id.
var ErrUserNotFound = models.ErrUserNotFound

// CreateUser inserts a user, generating an id when none is set.
func CreateUser(ctx context.Context, s *Store, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}
	if user.CurrentDifficulty == 0 {
		user.CurrentDifficulty = int(models.MinDifficulty)
	}
	q := `INSERT INTO users (id, username, current_difficulty) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, q, user.ID, user.Username, user.CurrentDifficulty); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID loads one user.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, current_difficulty FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CurrentDifficulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// GetUserDisplayName returns the username shown to opponents.
func (s *Store) GetUserDisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
