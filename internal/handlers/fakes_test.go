package handlers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/broadcast"
	"github.com/jason-s-yu/quizduel/internal/invite"
	"github.com/jason-s-yu/quizduel/internal/match"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory match.Store.
type memStore struct {
	mu         sync.Mutex
	games      map[uuid.UUID]*models.GameDetails
	seq        int64
	failAnswer bool
}

func newMemStore() *memStore {
	return &memStore{games: make(map[uuid.UUID]*models.GameDetails)}
}

func (s *memStore) CreateGame(_ context.Context, p models.GameParams) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.games[id] = &models.GameDetails{Game: models.Game{
		ID: id, Type: p.Type, CreatedBy: p.CreatorID, Status: models.GameStatusActive,
		Grade: p.Grade, Difficulty: int(p.Difficulty), Language: p.Language, Subject: p.Subject,
	}}
	return id, nil
}

func (s *memStore) AddPlayer(_ context.Context, gameID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.games[gameID]
	for _, p := range g.Players {
		if p.UserID == userID {
			return nil
		}
	}
	g.Players = append(g.Players, models.GamePlayer{GameID: gameID, UserID: userID})
	return nil
}

func (s *memStore) AddQuestions(context.Context, uuid.UUID, []uuid.UUID) error { return nil }

func (s *memStore) RecordAnswer(_ context.Context, rec models.AnswerRecord) (models.GameAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAnswer {
		return models.GameAnswer{}, errors.New("connection reset")
	}
	s.seq++
	s.games[rec.GameID].AnswerCount++
	return models.GameAnswer{Seq: s.seq, CreatedAt: time.Now(), AnswerRecord: rec}, nil
}

func (s *memStore) UpdatePlayerScore(_ context.Context, gameID, userID uuid.UUID, score int, at time.Time, isWinner bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.games[gameID].Players {
		if p.UserID == userID {
			s.games[gameID].Players[i].Score = score
			s.games[gameID].Players[i].IsWinner = isWinner
			s.games[gameID].Players[i].CompletedAt = &at
		}
	}
	return nil
}

func (s *memStore) UpdateGameStatus(_ context.Context, gameID uuid.UUID, status models.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	g.Game.Status = status
	return nil
}

func (s *memStore) GetGameWithPlayersAndQuestions(_ context.Context, gameID uuid.UUID) (*models.GameDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, models.ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) status(gameID uuid.UUID) models.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[gameID].Game.Status
}

func (s *memStore) setFailAnswer(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAnswer = on
}

// fixedContent always serves the same questions; option 0 is correct.
type fixedContent struct {
	questions []models.Question
}

func newFixedContent(n int) *fixedContent {
	fc := &fixedContent{}
	for i := 0; i < n; i++ {
		fc.questions = append(fc.questions, models.Question{
			ID: uuid.New(), Text: "q", Options: []string{"a", "b", "c", "d"}, Subject: models.SubjectMath,
		})
	}
	return fc
}

func (f *fixedContent) VerifyAnswer(_ context.Context, _ uuid.UUID, selected int) (bool, error) {
	return selected == 0, nil
}

func (f *fixedContent) GenerateQuestionSet(context.Context, models.QuestionSetRequest) ([]models.Question, error) {
	return append([]models.Question(nil), f.questions...), nil
}

func (f *fixedContent) AdaptiveDifficulty(context.Context, uuid.UUID) (models.Difficulty, error) {
	return models.DifficultyEasy, nil
}

// tokenIdentity accepts "token-<name>" for the users it knows.
type tokenIdentity struct {
	users map[string]uuid.UUID
	names map[uuid.UUID]string
	// lookupErr, when set, fails every profile lookup.
	lookupErr error
}

func newTokenIdentity() *tokenIdentity {
	return &tokenIdentity{users: make(map[string]uuid.UUID), names: make(map[uuid.UUID]string)}
}

func (i *tokenIdentity) add(name string) uuid.UUID {
	id := uuid.New()
	i.users["token-"+name] = id
	i.names[id] = name
	return id
}

func (i *tokenIdentity) VerifyAuthToken(token string) (uuid.UUID, error) {
	id, ok := i.users[token]
	if !ok {
		return uuid.Nil, apperr.ErrAuthFailed
	}
	return id, nil
}

func (i *tokenIdentity) GetUserDisplayName(_ context.Context, id uuid.UUID) (string, error) {
	if i.lookupErr != nil {
		return "", i.lookupErr
	}
	return i.names[id], nil
}

type recordingSender struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (s *recordingSender) Send(ev protocol.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSender) ofType(t protocol.EventType) []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSender) last(t protocol.EventType) (protocol.Event, bool) {
	evs := s.ofType(t)
	if len(evs) == 0 {
		return protocol.Event{}, false
	}
	return evs[len(evs)-1], true
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type arena struct {
	t        *testing.T
	store    *memStore
	content  *fixedContent
	identity *tokenIdentity
	reg      *presence.Registry
	coord    *match.Coordinator
	server   *ArenaServer
}

func newArena(t *testing.T, questions int) *arena {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a := &arena{
		t:        t,
		store:    newMemStore(),
		content:  newFixedContent(questions),
		identity: newTokenIdentity(),
		reg:      presence.NewRegistry(),
	}
	gw := broadcast.NewGateway(a.reg, logger)
	a.coord = match.NewCoordinator(a.store, a.content, a.reg, gw, logger, match.WithQuestionsPerMatch(questions))
	gw.AttachRooms(a.coord)
	router := invite.NewRouter(a.reg, gw, a.coord, logger)
	a.server = NewArenaServer(a.reg, gw, a.coord, router, a.identity, logger)
	return a
}

type client struct {
	userID uuid.UUID
	connID uuid.UUID
	out    *recordingSender
}

// join connects and authenticates a new user.
func (a *arena) join(name string) client {
	a.t.Helper()
	c := client{userID: a.identity.add(name), connID: uuid.New(), out: &recordingSender{}}
	a.server.Connect(c.connID, c.out)
	a.send(c, protocol.Inbound{Type: protocol.TypeAuthenticate, Token: "token-" + name})
	return c
}

func (a *arena) send(c client, msg protocol.Inbound) {
	a.server.HandleMessage(context.Background(), c.connID, msg)
}

func intPtr(v int) *int { return &v }
