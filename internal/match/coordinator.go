// internal/match/coordinator.go
package match

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// DefaultQuestionsPerMatch is the question count of a match unless configured.
const DefaultQuestionsPerMatch = 10

// Coordinator owns every live room. Operations on one room run under that
// room's lock; the lock order is room, then table, then registry.
type Coordinator struct {
	store     Store
	content   Content
	presence  Presence
	notifier  Notifier
	recorder  Recorder
	logger    *logrus.Logger
	now       func() time.Time
	perMatch  int
	rooms     *table
	abandonTO time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRecorder sends room transitions to a match history log.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithQuestionsPerMatch sets how many questions a new match draws.
func WithQuestionsPerMatch(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.perMatch = n
		}
	}
}

func NewCoordinator(store Store, content Content, pres Presence, notifier Notifier, logger *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		content:   content,
		presence:  pres,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		perMatch:  DefaultQuestionsPerMatch,
		rooms:     newTable(),
		abandonTO: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MatchParams are the client-chosen settings of a new match.
type MatchParams struct {
	Grade    int
	Language models.Language
	Subject  models.Subject
}

// Normalize fills defaults and validates ranges.
func (p *MatchParams) Normalize() error {
	if p.Grade < models.MinGrade || p.Grade > models.MaxGrade {
		return apperr.Invalid("grade must be between 0 and 3")
	}
	if p.Language == "" {
		p.Language = models.LanguageEnglish
	}
	if p.Subject == "" {
		p.Subject = models.SubjectMath
	}
	if !models.ValidLanguage(p.Language) {
		return apperr.Invalid("unsupported language")
	}
	if !models.ValidSubject(p.Subject) {
		return apperr.Invalid("unsupported subject")
	}
	return nil
}

// Seat is one side of an invitation match: the user plus the connections that
// join the room immediately.
type Seat struct {
	UserID  uuid.UUID
	ConnIDs []uuid.UUID
}

// RoomConnections returns the connections joined to a room.
func (c *Coordinator) RoomConnections(roomID uuid.UUID) []uuid.UUID {
	room, ok := c.rooms.get(roomID)
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.connections()
}

// ActiveRoomFor returns the non-terminal room a user is bound to.
func (c *Coordinator) ActiveRoomFor(userID uuid.UUID) (uuid.UUID, bool) {
	return c.rooms.activeRoom(userID)
}

// Snapshot returns a copy of a live room's state.
func (c *Coordinator) Snapshot(roomID uuid.UUID) (Summary, bool) {
	room, ok := c.rooms.get(roomID)
	if !ok {
		return Summary{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.summary(), true
}

// ActiveRooms is the number of live rooms.
func (c *Coordinator) ActiveRooms() int {
	return c.rooms.size()
}

func (c *Coordinator) difficultyFor(ctx context.Context, userID uuid.UUID) models.Difficulty {
	d, err := c.content.AdaptiveDifficulty(ctx, userID)
	if err != nil {
		c.logger.WithField("user_id", userID).WithError(err).Warn("adaptive difficulty unavailable, using easy")
		return models.DifficultyEasy
	}
	return d.Clamp()
}

func (c *Coordinator) generate(ctx context.Context, p MatchParams, diff models.Difficulty) ([]models.Question, error) {
	qs, err := c.content.GenerateQuestionSet(ctx, models.QuestionSetRequest{
		Grade:      p.Grade,
		Count:      c.perMatch,
		Difficulty: diff,
		Language:   p.Language,
		Subject:    p.Subject,
	})
	if err != nil {
		return nil, apperr.ContentGeneration(err)
	}
	if len(qs) == 0 {
		return nil, apperr.ContentGeneration(errors.New("empty question set"))
	}
	return qs, nil
}

// abandonGame marks a half-created game abandoned. Best effort: the row is
// unreachable from memory either way.
func (c *Coordinator) abandonGame(gameID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.abandonTO)
	defer cancel()
	if err := c.store.UpdateGameStatus(ctx, gameID, models.GameStatusAbandoned); err != nil {
		c.logger.WithField("room_id", gameID).WithError(err).Warn("failed to mark game abandoned")
	}
}

// Create opens a room with only the creator seated. The creator's connection
// joins it and waits for an opponent to join by id.
func (c *Coordinator) Create(ctx context.Context, connID, userID uuid.UUID, p MatchParams) (Summary, error) {
	if err := p.Normalize(); err != nil {
		return Summary{}, err
	}
	if _, busy := c.rooms.activeRoom(userID); busy {
		return Summary{}, apperr.ErrPlayerBusy
	}

	diff := c.difficultyFor(ctx, userID)
	gameID, err := c.store.CreateGame(ctx, models.GameParams{
		Type:       models.GameTypeMultiplayer,
		CreatorID:  userID,
		Grade:      p.Grade,
		Difficulty: diff,
		Language:   p.Language,
		Subject:    p.Subject,
	})
	if err != nil {
		return Summary{}, apperr.Persistence("create game", err)
	}
	if err := c.store.AddPlayer(ctx, gameID, userID); err != nil {
		c.abandonGame(gameID)
		return Summary{}, apperr.Persistence("add player", err)
	}

	room := newRoom(gameID, userID, p.Grade, p.Language, p.Subject, diff)
	room.addParticipant(userID, c.presence.DisplayName(userID))
	if !c.rooms.insert(room, userID) {
		c.abandonGame(gameID)
		return Summary{}, apperr.ErrPlayerBusy
	}

	room.mu.Lock()
	room.joinConn(connID, userID)
	c.presence.AssignRoom(connID, room.ID)
	c.logEvent(room, userID, EventRoomCreated, map[string]interface{}{
		"grade":      p.Grade,
		"language":   p.Language,
		"subject":    p.Subject,
		"difficulty": int(diff),
	})
	c.notifier.ToConnections([]uuid.UUID{connID}, protocol.NewEvent(protocol.EventRoomCreated, protocol.RoomCreatedPayload{
		RoomID:   room.ID,
		Grade:    room.Grade,
		Language: room.Language,
		Subject:  room.Subject,
	}))
	c.notifyJoined(room)
	sum := room.summary()
	room.mu.Unlock()

	c.notifier.BroadcastOnlineUsers()
	c.logger.WithFields(logrus.Fields{"room_id": room.ID, "user_id": userID}).Info("room created")
	return sum, nil
}

// CreateAndJoin creates a persisted game for an accepted invitation with both
// players seated and the question set attached. The seats' connections join
// the room immediately; Start moves it to in_progress.
func (c *Coordinator) CreateAndJoin(ctx context.Context, creator, opponent Seat, p MatchParams) (Summary, error) {
	if err := p.Normalize(); err != nil {
		return Summary{}, err
	}
	if creator.UserID == opponent.UserID {
		return Summary{}, apperr.Invalid("cannot start a match against yourself")
	}
	for _, u := range []uuid.UUID{creator.UserID, opponent.UserID} {
		if _, busy := c.rooms.activeRoom(u); busy {
			return Summary{}, apperr.ErrPlayerBusy
		}
	}

	diff := c.difficultyFor(ctx, creator.UserID)
	questions, err := c.generate(ctx, p, diff)
	if err != nil {
		return Summary{}, err
	}

	gameID, err := c.store.CreateGame(ctx, models.GameParams{
		Type:       models.GameTypeMultiplayer,
		CreatorID:  creator.UserID,
		Grade:      p.Grade,
		Difficulty: diff,
		Language:   p.Language,
		Subject:    p.Subject,
	})
	if err != nil {
		return Summary{}, apperr.Persistence("create game", err)
	}
	for _, u := range []uuid.UUID{creator.UserID, opponent.UserID} {
		if err := c.store.AddPlayer(ctx, gameID, u); err != nil {
			c.abandonGame(gameID)
			return Summary{}, apperr.Persistence("add player", err)
		}
	}
	if err := c.store.AddQuestions(ctx, gameID, questionIDs(questions)); err != nil {
		c.abandonGame(gameID)
		return Summary{}, apperr.Persistence("add questions", err)
	}

	room := newRoom(gameID, creator.UserID, p.Grade, p.Language, p.Subject, diff)
	room.addParticipant(creator.UserID, c.presence.DisplayName(creator.UserID))
	room.addParticipant(opponent.UserID, c.presence.DisplayName(opponent.UserID))
	room.questions = questions
	if !c.rooms.insert(room, creator.UserID, opponent.UserID) {
		c.abandonGame(gameID)
		return Summary{}, apperr.ErrPlayerBusy
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	for _, seat := range []Seat{creator, opponent} {
		for _, connID := range seat.ConnIDs {
			room.joinConn(connID, seat.UserID)
			c.presence.AssignRoom(connID, room.ID)
		}
	}
	c.logEvent(room, creator.UserID, EventRoomCreated, map[string]interface{}{
		"grade":      p.Grade,
		"language":   p.Language,
		"subject":    p.Subject,
		"difficulty": int(diff),
		"opponent":   opponent.UserID,
	})
	c.logger.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"creator":  creator.UserID,
		"opponent": opponent.UserID,
	}).Info("invitation room created")
	return room.summary(), nil
}

// Start begins the first round if both participants have a joined connection.
func (c *Coordinator) Start(roomID uuid.UUID) {
	room, ok := c.rooms.get(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	started := c.maybeStart(room)
	room.mu.Unlock()
	if started {
		c.notifier.BroadcastOnlineUsers()
	}
}

// Join adds a connection to a room's transport group, seating the user first
// when the room still has a free seat. Caller-supplied grade, when present,
// must match the room's.
func (c *Coordinator) Join(ctx context.Context, connID, userID, roomID uuid.UUID, grade *int) (Summary, error) {
	room, err := c.lookupOrRehydrate(ctx, roomID)
	if err != nil {
		return Summary{}, err
	}

	room.mu.Lock()
	if err := c.settleForfeit(ctx, room, userID); err != nil {
		room.mu.Unlock()
		return Summary{}, err
	}
	if room.Status.Terminal() {
		room.mu.Unlock()
		return Summary{}, apperr.ErrRoomNotFound
	}
	if grade != nil && *grade != room.Grade {
		room.mu.Unlock()
		return Summary{}, apperr.Invalid("grade does not match this room")
	}

	if !room.isParticipant(userID) {
		if err := c.seat(ctx, room, userID); err != nil {
			room.mu.Unlock()
			return Summary{}, err
		}
	}

	if !room.joinConn(connID, userID) {
		room.mu.Unlock()
		return Summary{}, apperr.ErrAlreadyJoined
	}
	if room.forfeitPending == userID {
		room.forfeitPending = uuid.Nil
	}
	c.presence.AssignRoom(connID, room.ID)
	if room.names[userID] == "" {
		room.names[userID] = c.presence.DisplayName(userID)
	}
	c.logEvent(room, userID, EventPlayerJoined, map[string]interface{}{"conn_id": connID})
	c.notifyJoined(room)

	started := c.maybeStart(room)
	if !started && room.Status == StatusInProgress {
		// Another tab of a seated player catching up on a running match.
		c.notifier.ToConnections([]uuid.UUID{connID}, c.roundStartedEvent(room, true))
	}
	sum := room.summary()
	room.mu.Unlock()

	c.notifier.BroadcastOnlineUsers()
	return sum, nil
}

// seat adds userID as the second participant. Caller holds room.mu.
func (c *Coordinator) seat(ctx context.Context, room *Room, userID uuid.UUID) error {
	if room.Status != StatusWaiting || len(room.participants) >= MaxParticipants {
		return apperr.ErrRoomFull
	}
	if c.rooms.busyElsewhere(userID, room.ID) {
		return apperr.ErrPlayerBusy
	}

	var generated []models.Question
	if len(room.questions) == 0 {
		qs, err := c.generate(ctx, MatchParams{Grade: room.Grade, Language: room.Language, Subject: room.Subject}, room.Difficulty)
		if err != nil {
			return err
		}
		generated = qs
	}
	if err := c.store.AddPlayer(ctx, room.ID, userID); err != nil {
		return apperr.Persistence("add player", err)
	}
	if generated != nil {
		if err := c.store.AddQuestions(ctx, room.ID, questionIDs(generated)); err != nil {
			return apperr.Persistence("add questions", err)
		}
	}
	if !c.rooms.bind(userID, room.ID) {
		return apperr.ErrPlayerBusy
	}
	if generated != nil {
		room.questions = generated
	}
	room.addParticipant(userID, c.presence.DisplayName(userID))
	return nil
}

func (c *Coordinator) lookupOrRehydrate(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	if room, ok := c.rooms.get(roomID); ok {
		return room, nil
	}
	details, err := c.store.GetGameWithPlayersAndQuestions(ctx, roomID)
	if err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			return nil, apperr.ErrRoomNotFound
		}
		return nil, apperr.Persistence("load game", err)
	}
	g := details.Game
	if g.Type != models.GameTypeMultiplayer || g.Status != models.GameStatusActive ||
		details.AnswerCount > 0 || len(details.Players) > MaxParticipants {
		return nil, apperr.ErrRoomNotFound
	}

	room := newRoom(g.ID, g.CreatedBy, g.Grade, g.Language, g.Subject, models.Difficulty(g.Difficulty).Clamp())
	users := make([]uuid.UUID, 0, len(details.Players))
	for _, p := range details.Players {
		name := p.Username
		if name == "" {
			name = c.presence.DisplayName(p.UserID)
		}
		room.addParticipant(p.UserID, name)
		users = append(users, p.UserID)
	}
	room.questions = details.Questions
	c.logger.WithField("room_id", roomID).Info("room restored from storage")
	return c.rooms.adopt(room, users...), nil
}

// notifyJoined sends the current seat list to the group. Caller holds room.mu.
func (c *Coordinator) notifyJoined(room *Room) {
	c.notifier.ToConnections(room.connections(), protocol.NewEvent(protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{
		RoomID:      room.ID,
		PlayerCount: room.joinedUsers(),
		Players:     room.playerInfo(),
	}))
}

// maybeStart fires room start once both participants have joined. Caller holds
// room.mu.
func (c *Coordinator) maybeStart(room *Room) bool {
	if room.Status != StatusWaiting || len(room.participants) < MaxParticipants ||
		room.joinedUsers() < MaxParticipants || len(room.questions) == 0 {
		return false
	}
	room.Status = StatusInProgress
	room.round = 0
	room.pending = make(map[uuid.UUID]pendingAnswer)
	room.startedAt = c.now()
	for _, p := range room.participants {
		c.presence.SetUserStatus(p, presence.StatusInGame, room.ID)
	}
	c.logEvent(room, uuid.Nil, EventMatchStarted, map[string]interface{}{
		"questions": len(room.questions),
	})
	c.notifier.ToConnections(room.connections(), c.roundStartedEvent(room, true))
	c.logger.WithField("room_id", room.ID).Info("match started")
	return true
}

func (c *Coordinator) roundStartedEvent(room *Room, withQuestions bool) protocol.Event {
	q, _ := room.currentQuestion()
	payload := protocol.RoundStartedPayload{
		RoomID:     room.ID,
		RoundIndex: room.round,
		QuestionID: q.ID,
		StartedAt:  room.startedAt.UnixMilli(),
	}
	if withQuestions {
		payload.Questions = room.questionsCopy()
	}
	return protocol.NewEvent(protocol.EventRoundStarted, payload)
}

func questionIDs(qs []models.Question) []uuid.UUID {
	ids := make([]uuid.UUID, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
