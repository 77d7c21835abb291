package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
)

// Store persists games, players and answers. Each call either applies fully or
// returns an error.
type Store interface {
	CreateGame(ctx context.Context, params models.GameParams) (uuid.UUID, error)
	AddPlayer(ctx context.Context, gameID, userID uuid.UUID) error
	AddQuestions(ctx context.Context, gameID uuid.UUID, questionIDs []uuid.UUID) error
	RecordAnswer(ctx context.Context, rec models.AnswerRecord) (models.GameAnswer, error)
	UpdatePlayerScore(ctx context.Context, gameID, userID uuid.UUID, score int, completedAt time.Time, isWinner bool) error
	UpdateGameStatus(ctx context.Context, gameID uuid.UUID, status models.GameStatus) error
	GetGameWithPlayersAndQuestions(ctx context.Context, gameID uuid.UUID) (*models.GameDetails, error)
}

// Content verifies answers and assembles question sets.
type Content interface {
	VerifyAnswer(ctx context.Context, questionID uuid.UUID, selectedIndex int) (bool, error)
	GenerateQuestionSet(ctx context.Context, req models.QuestionSetRequest) ([]models.Question, error)
	AdaptiveDifficulty(ctx context.Context, userID uuid.UUID) (models.Difficulty, error)
}

// Notifier is the outbound side used by the coordinator.
type Notifier interface {
	ToConnections(connIDs []uuid.UUID, ev protocol.Event) int
	ToUser(userID uuid.UUID, ev protocol.Event) int
	BroadcastOnlineUsers()
}

// Presence is the subset of the registry the coordinator updates.
type Presence interface {
	AssignRoom(connID, roomID uuid.UUID)
	SetUserStatus(userID uuid.UUID, status presence.Status, roomID uuid.UUID)
	DisplayName(userID uuid.UUID) string
	FindConnectionsByUserID(userID uuid.UUID) []uuid.UUID
}

// Recorder appends match events to the history log.
type Recorder interface {
	Record(ctx context.Context, ev models.MatchEvent) error
}
