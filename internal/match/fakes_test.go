// internal/match/fakes_test.go
package match

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/broadcast"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

var errBoom = errors.New("boom")

type scoreUpdate struct {
	score    int
	isWinner bool
}

// fakeStore is an in-memory Store. fail* fields make the next matching call
// return errBoom.
type fakeStore struct {
	mu        sync.Mutex
	games     map[uuid.UUID]*models.GameDetails
	answers   []models.GameAnswer
	scores    map[uuid.UUID]map[uuid.UUID]scoreUpdate
	seq       int64
	seqFor    map[uuid.UUID]int64
	calls     int
	failOn    map[string]bool
	questions map[uuid.UUID][]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:     make(map[uuid.UUID]*models.GameDetails),
		scores:    make(map[uuid.UUID]map[uuid.UUID]scoreUpdate),
		seqFor:    make(map[uuid.UUID]int64),
		failOn:    make(map[string]bool),
		questions: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *fakeStore) fail(op string) error {
	s.calls++
	if s.failOn[op] {
		return errBoom
	}
	return nil
}

func (s *fakeStore) setFail(op string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = on
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeStore) CreateGame(_ context.Context, p models.GameParams) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateGame"); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	s.games[id] = &models.GameDetails{Game: models.Game{
		ID:         id,
		Type:       p.Type,
		CreatedBy:  p.CreatorID,
		Status:     models.GameStatusActive,
		Grade:      p.Grade,
		Difficulty: int(p.Difficulty),
		Language:   p.Language,
		Subject:    p.Subject,
	}}
	return id, nil
}

func (s *fakeStore) AddPlayer(_ context.Context, gameID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AddPlayer"); err != nil {
		return err
	}
	g := s.games[gameID]
	for _, p := range g.Players {
		if p.UserID == userID {
			return nil
		}
	}
	g.Players = append(g.Players, models.GamePlayer{GameID: gameID, UserID: userID})
	return nil
}

func (s *fakeStore) AddQuestions(_ context.Context, gameID uuid.UUID, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AddQuestions"); err != nil {
		return err
	}
	s.questions[gameID] = ids
	return nil
}

func (s *fakeStore) RecordAnswer(_ context.Context, rec models.AnswerRecord) (models.GameAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordAnswer"); err != nil {
		return models.GameAnswer{}, err
	}
	s.seq++
	seq := s.seq
	if forced, ok := s.seqFor[rec.UserID]; ok {
		seq = forced
	}
	a := models.GameAnswer{Seq: seq, CreatedAt: time.Now(), AnswerRecord: rec}
	s.answers = append(s.answers, a)
	if g, ok := s.games[rec.GameID]; ok {
		g.AnswerCount++
	}
	return a, nil
}

func (s *fakeStore) UpdatePlayerScore(_ context.Context, gameID, userID uuid.UUID, score int, _ time.Time, isWinner bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdatePlayerScore"); err != nil {
		return err
	}
	if s.scores[gameID] == nil {
		s.scores[gameID] = make(map[uuid.UUID]scoreUpdate)
	}
	s.scores[gameID][userID] = scoreUpdate{score: score, isWinner: isWinner}
	return nil
}

func (s *fakeStore) UpdateGameStatus(_ context.Context, gameID uuid.UUID, status models.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateGameStatus"); err != nil {
		return err
	}
	if g, ok := s.games[gameID]; ok {
		g.Game.Status = status
	}
	return nil
}

func (s *fakeStore) GetGameWithPlayersAndQuestions(_ context.Context, gameID uuid.UUID) (*models.GameDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetGame"); err != nil {
		return nil, err
	}
	g, ok := s.games[gameID]
	if !ok {
		return nil, models.ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *fakeStore) status(gameID uuid.UUID) models.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[gameID].Game.Status
}

func (s *fakeStore) score(gameID, userID uuid.UUID) (scoreUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.scores[gameID][userID]
	return u, ok
}

// fakeContent serves a fixed bank where option 0 is always correct.
type fakeContent struct {
	mu        sync.Mutex
	bank      []models.Question
	failGen   bool
	diff      models.Difficulty
	requested []models.QuestionSetRequest
}

func newFakeContent(n int) *fakeContent {
	fc := &fakeContent{diff: models.DifficultyMedium}
	for i := 0; i < n; i++ {
		fc.bank = append(fc.bank, models.Question{
			ID:      uuid.New(),
			Text:    "q",
			Options: []string{"right", "wrong", "wrong", "wrong"},
		})
	}
	return fc
}

func (f *fakeContent) VerifyAnswer(_ context.Context, _ uuid.UUID, selected int) (bool, error) {
	return selected == 0, nil
}

func (f *fakeContent) GenerateQuestionSet(_ context.Context, req models.QuestionSetRequest) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, req)
	if f.failGen {
		return nil, errBoom
	}
	n := req.Count
	if n > len(f.bank) {
		n = len(f.bank)
	}
	return append([]models.Question(nil), f.bank[:n]...), nil
}

func (f *fakeContent) AdaptiveDifficulty(context.Context, uuid.UUID) (models.Difficulty, error) {
	return f.diff, nil
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

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (r *fakeRecorder) Record(_ context.Context, ev models.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type player struct {
	userID uuid.UUID
	connID uuid.UUID
	out    *recordingSender
}

type harness struct {
	t       *testing.T
	store   *fakeStore
	content *fakeContent
	reg     *presence.Registry
	gw      *broadcast.Gateway
	rec     *fakeRecorder
	coord   *Coordinator
}

func newHarness(t *testing.T, questions int) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := &harness{
		t:       t,
		store:   newFakeStore(),
		content: newFakeContent(questions),
		reg:     presence.NewRegistry(),
		rec:     &fakeRecorder{},
	}
	h.gw = broadcast.NewGateway(h.reg, logger)
	h.coord = NewCoordinator(h.store, h.content, h.reg, h.gw, logger,
		WithQuestionsPerMatch(questions),
		WithRecorder(h.rec),
	)
	h.gw.AttachRooms(h.coord)
	return h
}

func (h *harness) connect(name string) player {
	p := player{userID: uuid.New(), connID: uuid.New(), out: &recordingSender{}}
	h.reg.Connect(p.connID, p.out)
	h.reg.Register(p.connID, p.userID, name)
	return p
}

// secondTab opens another connection for an existing user.
func (h *harness) secondTab(p player) player {
	tab := player{userID: p.userID, connID: uuid.New(), out: &recordingSender{}}
	h.reg.Connect(tab.connID, tab.out)
	h.reg.Register(tab.connID, tab.userID, "tab")
	return tab
}

// startMatch runs the invitation flow for a and b and returns the room id.
func (h *harness) startMatch(a, b player) uuid.UUID {
	h.t.Helper()
	sum, err := h.coord.CreateAndJoin(context.Background(),
		Seat{UserID: a.userID, ConnIDs: []uuid.UUID{a.connID}},
		Seat{UserID: b.userID, ConnIDs: []uuid.UUID{b.connID}},
		MatchParams{Grade: 1},
	)
	if err != nil {
		h.t.Fatalf("CreateAndJoin: %v", err)
	}
	h.coord.Start(sum.ID)
	return sum.ID
}

func (h *harness) answer(p player, roomID uuid.UUID, round int, selected int) error {
	sum, ok := h.coord.Snapshot(roomID)
	if !ok {
		return errors.New("room gone")
	}
	return h.coord.SubmitAnswer(context.Background(), Answer{
		RoomID:        roomID,
		UserID:        p.userID,
		QuestionID:    sum.Questions[round].ID,
		SelectedIndex: selected,
		ElapsedMs:     1000 * (round + 1),
	})
}
