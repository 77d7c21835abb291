// internal/match/answers.go
package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Answer is one submission for the current round.
type Answer struct {
	RoomID        uuid.UUID
	UserID        uuid.UUID
	QuestionID    uuid.UUID
	SelectedIndex int
	ElapsedMs     int
}

// SubmitAnswer verifies and persists an answer, then resolves the round once
// every participant has one pending. A repeated submission in the same round
// replaces the earlier pending entry.
func (c *Coordinator) SubmitAnswer(ctx context.Context, a Answer) error {
	if a.ElapsedMs < 0 {
		return apperr.Invalid("elapsedMs must not be negative")
	}
	room, ok := c.rooms.get(a.RoomID)
	if !ok {
		return apperr.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := c.settleForfeit(ctx, room, a.UserID); err != nil {
		return err
	}
	if room.Status != StatusInProgress {
		return apperr.ErrRoomNotActive
	}
	if !room.isParticipant(a.UserID) {
		return apperr.ErrNotParticipant
	}
	q, ok := room.currentQuestion()
	if !ok || q.ID != a.QuestionID {
		return apperr.ErrStaleQuestion
	}
	if a.SelectedIndex < 0 || (len(q.Options) > 0 && a.SelectedIndex >= len(q.Options)) {
		return apperr.Invalid("selectedIndex out of range")
	}

	correct, err := c.content.VerifyAnswer(ctx, a.QuestionID, a.SelectedIndex)
	if err != nil {
		return apperr.Persistence("verify answer", err)
	}
	saved, err := c.store.RecordAnswer(ctx, models.AnswerRecord{
		GameID:        room.ID,
		UserID:        a.UserID,
		QuestionID:    a.QuestionID,
		SelectedIndex: a.SelectedIndex,
		IsCorrect:     correct,
		ElapsedMs:     a.ElapsedMs,
	})
	if err != nil {
		return apperr.Persistence("record answer", err)
	}

	room.pending[a.UserID] = pendingAnswer{correct: correct, seq: saved.Seq, at: saved.CreatedAt}
	c.logEvent(room, a.UserID, EventAnswer, map[string]interface{}{
		"round":       room.round,
		"question_id": a.QuestionID,
		"correct":     correct,
		"elapsed_ms":  a.ElapsedMs,
		"seq":         saved.Seq,
	})
	c.notifier.ToConnections(room.connections(), protocol.NewEvent(protocol.EventAnswerSubmitted, protocol.AnswerSubmittedPayload{
		RoomID:     room.ID,
		UserID:     a.UserID,
		RoundIndex: room.round,
		ElapsedMs:  a.ElapsedMs,
	}))

	if len(room.pending) < len(room.participants) {
		return nil
	}
	return c.resolveRound(ctx, room)
}

// resolveRound closes the current round. When it was the last one the final
// scores are persisted first; a persistence failure leaves the room exactly as
// it was so the answer can be resubmitted. Caller holds room.mu.
func (c *Coordinator) resolveRound(ctx context.Context, room *Room) error {
	q, _ := room.currentQuestion()
	winner := roundWinner(room.pending)
	last := room.round == len(room.questions)-1

	tally := make(map[uuid.UUID]int, len(room.correct))
	for u, n := range room.correct {
		tally[u] = n
	}
	perUser := make(map[uuid.UUID]bool, len(room.pending))
	for u, p := range room.pending {
		perUser[u] = p.correct
		if p.correct {
			tally[u]++
		}
	}

	var (
		standings []standing
		matchWin  *uuid.UUID
		draw      bool
	)
	if last {
		standings = finalStandings(room.participants, tally, len(room.questions))
		matchWin, draw = decideWinner(standings)
		if err := c.persistResults(ctx, room, standings, matchWin); err != nil {
			return err
		}
	}

	room.correct = tally
	room.winners = append(room.winners, protocol.QuestionWinner{
		QuestionID: q.ID,
		RoundIndex: room.round,
		WinnerID:   winner,
	})
	resolved := room.round
	room.pending = make(map[uuid.UUID]pendingAnswer)
	room.round++

	c.logEvent(room, uuid.Nil, EventRoundResolved, map[string]interface{}{
		"round":   resolved,
		"winner":  winner,
		"correct": perUser,
	})
	c.notifier.ToConnections(room.connections(), protocol.NewEvent(protocol.EventRoundResult, protocol.RoundResultPayload{
		RoomID:         room.ID,
		RoundIndex:     resolved,
		QuestionID:     q.ID,
		Winner:         winner,
		NextRoundIndex: room.round,
		Correct:        perUser,
	}))

	if !last {
		room.startedAt = c.now()
		c.notifier.ToConnections(room.connections(), c.roundStartedEvent(room, false))
		return nil
	}

	room.Status = StatusCompleted
	room.Outcome = OutcomeNormal
	c.announceEnd(room, standings, matchWin, draw)
	c.release(room)
	return nil
}

func (c *Coordinator) persistResults(ctx context.Context, room *Room, standings []standing, winner *uuid.UUID) error {
	completedAt := c.now()
	for _, s := range standings {
		isWinner := winner != nil && *winner == s.UserID
		if err := c.store.UpdatePlayerScore(ctx, room.ID, s.UserID, s.Score, completedAt, isWinner); err != nil {
			return apperr.Persistence("update player score", err)
		}
	}
	if err := c.store.UpdateGameStatus(ctx, room.ID, models.GameStatusCompleted); err != nil {
		return apperr.Persistence("update game status", err)
	}
	return nil
}

// announceEnd broadcasts match_ended. Caller holds room.mu.
func (c *Coordinator) announceEnd(room *Room, standings []standing, winner *uuid.UUID, draw bool) {
	payload := protocol.MatchEndedPayload{
		RoomID:          room.ID,
		Draw:            draw,
		QuestionWinners: append([]protocol.QuestionWinner(nil), room.winners...),
	}
	total := len(room.questions)
	for _, s := range standings {
		isWinner := winner != nil && *winner == s.UserID
		payload.Players = append(payload.Players, protocol.PlayerResult{
			UserID:      s.UserID,
			DisplayName: room.names[s.UserID],
			Score:       s.Score,
			Correct:     s.Correct,
			Total:       total,
			IsWinner:    isWinner,
		})
	}
	if winner != nil {
		for _, s := range standings {
			id := s.UserID
			if id == *winner {
				payload.Winner = &id
				payload.WinnerName = room.names[id]
				payload.WinnerScore = s.Score
			} else {
				payload.Loser = &id
				payload.LoserName = room.names[id]
				payload.LoserScore = s.Score
			}
		}
	}

	scores := make(map[string]int, len(standings))
	for _, s := range standings {
		scores[s.UserID.String()] = s.Score
	}
	c.logEvent(room, uuid.Nil, EventMatchComplete, map[string]interface{}{
		"scores": scores,
		"winner": winner,
		"draw":   draw,
	})
	c.notifier.ToConnections(room.connections(), protocol.NewEvent(protocol.EventMatchEnded, payload))
	c.logger.WithFields(logrus.Fields{
		"room_id": room.ID,
		"draw":    draw,
		"scores":  scores,
	}).Info("match completed")
}

// release returns both participants to available and drops the room from the
// table. Caller holds room.mu and has set a terminal status.
func (c *Coordinator) release(room *Room) {
	for _, p := range room.participants {
		c.presence.SetUserStatus(p, presence.StatusAvailable, uuid.Nil)
	}
	c.rooms.evict(room.ID)
	c.notifier.BroadcastOnlineUsers()
}
