package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// UserLookup resolves a user's display name.
type UserLookup interface {
	GetUserDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Identity verifies tokens against the loaded keys and looks up profiles.
type Identity struct {
	users UserLookup
}

func NewIdentity(users UserLookup) *Identity {
	return &Identity{users: users}
}

// VerifyAuthToken returns the token's user, or apperr.ErrAuthFailed.
func (i *Identity) VerifyAuthToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apperr.ErrAuthFailed
	}
	userID, err := AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, apperr.Wrap(err, apperr.CodeAuthFailed, "invalid token")
	}
	return userID, nil
}

// GetUserDisplayName returns the name shown to other players. A token for a
// user with no account fails authentication; any other lookup failure is a
// persistence error.
func (i *Identity) GetUserDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	name, err := i.users.GetUserDisplayName(ctx, userID)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return "", apperr.Wrap(fmt.Errorf("lookup user %s: %w", userID, err), apperr.CodeAuthFailed, "unknown user")
	case err != nil:
		return "", apperr.Persistence("lookup user", err)
	}
	return name, nil
}
