package protocol

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
)

type AuthenticatedPayload struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OnlineUser is one entry of the "who can I challenge" list.
type OnlineUser struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
}

type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

type InvitationReceivedPayload struct {
	FromUserID   uuid.UUID       `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	Grade        int             `json:"grade"`
	Language     models.Language `json:"language"`
	Subject      models.Subject  `json:"subject"`
}

type InvitationDeclinedPayload struct {
	ByUserID uuid.UUID `json:"byUserId"`
}

type InvitationFailedPayload struct {
	Reason  string    `json:"reason"`
	UserID  uuid.UUID `json:"userId,omitempty"`
	Message string    `json:"message"`
}

type PlayerInfo struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
}

type InvitationAcceptedPayload struct {
	RoomID    uuid.UUID         `json:"roomId"`
	Grade     int               `json:"grade"`
	Language  models.Language   `json:"language"`
	Subject   models.Subject    `json:"subject"`
	Players   []PlayerInfo      `json:"players"`
	Questions []models.Question `json:"questions"`
}

type RoomCreatedPayload struct {
	RoomID   uuid.UUID       `json:"roomId"`
	Grade    int             `json:"grade"`
	Language models.Language `json:"language"`
	Subject  models.Subject  `json:"subject"`
}

type PlayerJoinedPayload struct {
	RoomID      uuid.UUID    `json:"roomId"`
	PlayerCount int          `json:"playerCount"`
	Players     []PlayerInfo `json:"players"`
}

type RoundStartedPayload struct {
	RoomID     uuid.UUID         `json:"roomId"`
	RoundIndex int               `json:"roundIndex"`
	QuestionID uuid.UUID         `json:"questionId"`
	Questions  []models.Question `json:"questions,omitempty"`
	StartedAt  int64             `json:"startedAt"`
}

type AnswerSubmittedPayload struct {
	RoomID     uuid.UUID `json:"roomId"`
	UserID     uuid.UUID `json:"userId"`
	RoundIndex int       `json:"roundIndex"`
	ElapsedMs  int       `json:"elapsedMs"`
}

type RoundResultPayload struct {
	RoomID         uuid.UUID          `json:"roomId"`
	RoundIndex     int                `json:"roundIndex"`
	QuestionID     uuid.UUID          `json:"questionId"`
	Winner         *uuid.UUID         `json:"winner"`
	NextRoundIndex int                `json:"nextRoundIndex"`
	Correct        map[uuid.UUID]bool `json:"correct"`
}

type PlayerResult struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	IsWinner    bool      `json:"isWinner"`
}

type QuestionWinner struct {
	QuestionID uuid.UUID  `json:"questionId"`
	RoundIndex int        `json:"roundIndex"`
	WinnerID   *uuid.UUID `json:"winnerId"`
}

type MatchEndedPayload struct {
	RoomID          uuid.UUID        `json:"roomId"`
	Draw            bool             `json:"draw"`
	Winner          *uuid.UUID       `json:"winner"`
	WinnerName      string           `json:"winnerName,omitempty"`
	WinnerScore     int              `json:"winnerScore"`
	Loser           *uuid.UUID       `json:"loser"`
	LoserName       string           `json:"loserName,omitempty"`
	LoserScore      int              `json:"loserScore"`
	Players         []PlayerResult   `json:"players"`
	QuestionWinners []QuestionWinner `json:"questionWinners"`
}

type OpponentLeftPayload struct {
	RoomID      uuid.UUID `json:"roomId"`
	LeaverID    uuid.UUID `json:"leaverId"`
	WinnerID    uuid.UUID `json:"winnerId"`
	WinnerScore int       `json:"winnerScore"`
	LeaverScore int       `json:"leaverScore"`
}
