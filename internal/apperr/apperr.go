// Package apperr defines the error taxonomy surfaced to real-time clients.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes sent to clients in "error" frames.
const (
	CodeNotAuthenticated         = "NOT_AUTHENTICATED"
	CodeAuthFailed               = "AUTH_FAILED"
	CodeTargetOffline            = "TARGET_OFFLINE"
	CodeRoomNotFound             = "ROOM_NOT_FOUND"
	CodeRoomFull                 = "ROOM_FULL"
	CodeAlreadyJoined            = "ALREADY_JOINED"
	CodeNotParticipant           = "NOT_PARTICIPANT"
	CodeRoomNotActive            = "ROOM_NOT_ACTIVE"
	CodeStaleQuestion            = "STALE_QUESTION"
	CodePlayerBusy               = "PLAYER_BUSY"
	CodeInvalidInput             = "INVALID_INPUT"
	CodePersistenceFailure       = "PERSISTENCE_FAILURE"
	CodeContentGenerationFailure = "CONTENT_GENERATION_FAILURE"
	CodeInternal                 = "INTERNAL"
)

// AppError is a domain error carrying a client-facing code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError with the same code, so wrapped failures still compare
// equal to the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an AppError with no cause.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Persistence wraps a store failure. Only the generic message reaches the
// client.
func Persistence(op string, err error) *AppError {
	return Wrap(fmt.Errorf("%s: %w", op, err), CodePersistenceFailure, "operation failed, please retry")
}

// ContentGeneration wraps a question-content failure.
func ContentGeneration(err error) *AppError {
	return Wrap(err, CodeContentGenerationFailure, "could not prepare questions for this match")
}

// Invalid builds an INVALID_INPUT error with a specific message.
func Invalid(message string) *AppError {
	return New(CodeInvalidInput, message)
}

var (
	ErrNotAuthenticated = New(CodeNotAuthenticated, "not authenticated")
	ErrAuthFailed       = New(CodeAuthFailed, "invalid token")
	ErrTargetOffline    = New(CodeTargetOffline, "user is offline")
	ErrRoomNotFound     = New(CodeRoomNotFound, "room not found")
	ErrRoomFull         = New(CodeRoomFull, "room is full")
	ErrAlreadyJoined    = New(CodeAlreadyJoined, "already joined this room")
	ErrNotParticipant   = New(CodeNotParticipant, "not a participant of this room")
	ErrRoomNotActive    = New(CodeRoomNotActive, "room is not in progress")
	ErrStaleQuestion    = New(CodeStaleQuestion, "answer does not match the current round")
	ErrPlayerBusy       = New(CodePlayerBusy, "player is already in a match")
)

// CodeOf returns the code of err, or CodeInternal when err is not an AppError.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}
