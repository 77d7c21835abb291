package models

import (
	"errors"

	"github.com/google/uuid"
)

// User is the subset of the users table the match service reads. Accounts are
// created and authenticated by the REST service.
type User struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	CurrentDifficulty int       `json:"currentDifficulty"`
}

// ErrUserNotFound is returned for an unknown user id.
var ErrUserNotFound = errors.New("user not found")
