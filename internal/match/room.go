// internal/match/room.go
package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/protocol"
)

// MaxParticipants is the seat count of every room.
const MaxParticipants = 2

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting    Status = "waiting_for_players"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether s accepts no further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Outcome records how a completed room ended.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeNormal  Outcome = "normal"
	OutcomeForfeit Outcome = "forfeit"
)

type pendingAnswer struct {
	correct bool
	seq     int64
	at      time.Time
}

// Room is the authoritative state of one match. All fields are guarded by mu.
type Room struct {
	mu sync.Mutex

	ID         uuid.UUID
	CreatorID  uuid.UUID
	Grade      int
	Language   models.Language
	Subject    models.Subject
	Difficulty models.Difficulty

	Status  Status
	Outcome Outcome

	participants []uuid.UUID
	names        map[uuid.UUID]string
	questions    []models.Question
	round        int
	pending      map[uuid.UUID]pendingAnswer
	correct      map[uuid.UUID]int
	winners      []protocol.QuestionWinner
	startedAt    time.Time

	// group maps joined connection ids to their user, in join order.
	group      map[uuid.UUID]uuid.UUID
	groupOrder []uuid.UUID

	// forfeitPending is a leaver whose forfeit could not be persisted yet.
	forfeitPending uuid.UUID

	eventIndex int
}

func newRoom(id uuid.UUID, creator uuid.UUID, grade int, lang models.Language, subject models.Subject, diff models.Difficulty) *Room {
	return &Room{
		ID:         id,
		CreatorID:  creator,
		Grade:      grade,
		Language:   lang,
		Subject:    subject,
		Difficulty: diff,
		Status:     StatusWaiting,
		names:      make(map[uuid.UUID]string),
		pending:    make(map[uuid.UUID]pendingAnswer),
		correct:    make(map[uuid.UUID]int),
		group:      make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *Room) isParticipant(userID uuid.UUID) bool {
	for _, p := range r.participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (r *Room) addParticipant(userID uuid.UUID, name string) {
	if r.isParticipant(userID) || len(r.participants) >= MaxParticipants {
		return
	}
	r.participants = append(r.participants, userID)
	r.names[userID] = name
}

// opponentOf returns the other participant, or uuid.Nil.
func (r *Room) opponentOf(userID uuid.UUID) uuid.UUID {
	for _, p := range r.participants {
		if p != userID {
			return p
		}
	}
	return uuid.Nil
}

func (r *Room) joinConn(connID, userID uuid.UUID) bool {
	if _, ok := r.group[connID]; ok {
		return false
	}
	r.group[connID] = userID
	r.groupOrder = append(r.groupOrder, connID)
	return true
}

func (r *Room) dropConn(connID uuid.UUID) bool {
	if _, ok := r.group[connID]; !ok {
		return false
	}
	delete(r.group, connID)
	for i, id := range r.groupOrder {
		if id == connID {
			r.groupOrder = append(r.groupOrder[:i], r.groupOrder[i+1:]...)
			break
		}
	}
	return true
}

func (r *Room) connections() []uuid.UUID {
	out := make([]uuid.UUID, len(r.groupOrder))
	copy(out, r.groupOrder)
	return out
}

func (r *Room) userInGroup(userID uuid.UUID) bool {
	for _, u := range r.group {
		if u == userID {
			return true
		}
	}
	return false
}

// joinedUsers counts distinct participants with at least one joined connection.
func (r *Room) joinedUsers() int {
	n := 0
	for _, p := range r.participants {
		if r.userInGroup(p) {
			n++
		}
	}
	return n
}

func (r *Room) currentQuestion() (models.Question, bool) {
	if r.round < 0 || r.round >= len(r.questions) {
		return models.Question{}, false
	}
	return r.questions[r.round], true
}

func (r *Room) playerInfo() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, protocol.PlayerInfo{UserID: p, DisplayName: r.names[p]})
	}
	return out
}

func (r *Room) questionsCopy() []models.Question {
	out := make([]models.Question, len(r.questions))
	copy(out, r.questions)
	return out
}

// Summary is a read-only view of a room handed to callers outside the package.
type Summary struct {
	ID        uuid.UUID
	Status    Status
	Grade     int
	Language  models.Language
	Subject   models.Subject
	Players   []protocol.PlayerInfo
	Questions []models.Question
	Round     int
}

func (r *Room) summary() Summary {
	return Summary{
		ID:        r.ID,
		Status:    r.Status,
		Grade:     r.Grade,
		Language:  r.Language,
		Subject:   r.Subject,
		Players:   r.playerInfo(),
		Questions: r.questionsCopy(),
		Round:     r.round,
	}
}
