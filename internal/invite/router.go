// Package invite routes one-to-one match challenges between online users.
// Invitations are never stored: they exist only as messages in flight.
package invite

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/match"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Directory answers reachability questions about users.
type Directory interface {
	IsOnline(userID uuid.UUID) bool
	FindConnectionsByUserID(userID uuid.UUID) []uuid.UUID
	DisplayName(userID uuid.UUID) string
	SetUserStatus(userID uuid.UUID, status presence.Status, roomID uuid.UUID)
}

// Notifier delivers invitation events.
type Notifier interface {
	ToUser(userID uuid.UUID, ev protocol.Event) int
	BroadcastOnlineUsers()
}

// Matchmaker creates the room for an accepted invitation.
type Matchmaker interface {
	CreateAndJoin(ctx context.Context, creator, opponent match.Seat, p match.MatchParams) (match.Summary, error)
	Start(roomID uuid.UUID)
}

// invitation_failed reasons.
const (
	ReasonOffline            = "offline"
	ReasonContentUnavailable = "content_unavailable"
)

// Router implements send/accept/decline.
type Router struct {
	dir      Directory
	notifier Notifier
	matches  Matchmaker
	logger   *logrus.Logger
}

func NewRouter(dir Directory, notifier Notifier, matches Matchmaker, logger *logrus.Logger) *Router {
	return &Router{dir: dir, notifier: notifier, matches: matches, logger: logger}
}

// Send delivers invitation_received to every connection of the target. An
// offline target yields apperr.ErrTargetOffline and nothing else happens.
func (r *Router) Send(from, to uuid.UUID, p match.MatchParams) error {
	if from == to {
		return apperr.Invalid("cannot invite yourself")
	}
	if err := p.Normalize(); err != nil {
		return err
	}
	if !r.dir.IsOnline(to) {
		return apperr.ErrTargetOffline
	}
	n := r.notifier.ToUser(to, protocol.NewEvent(protocol.EventInvitationReceived, protocol.InvitationReceivedPayload{
		FromUserID:   from,
		FromUsername: r.dir.DisplayName(from),
		Grade:        p.Grade,
		Language:     p.Language,
		Subject:      p.Subject,
	}))
	r.logger.WithFields(logrus.Fields{
		"from":      from,
		"to":        to,
		"delivered": n,
	}).Debug("invitation sent")
	return nil
}

// Accept starts a match between the proposer and the accepting connection's
// user. Failures are returned to the caller; the proposer only hears about
// content failures and stays available either way.
func (r *Router) Accept(ctx context.Context, acceptorConn, acceptor, proposer uuid.UUID, p match.MatchParams) (match.Summary, error) {
	if acceptor == proposer {
		return match.Summary{}, apperr.Invalid("cannot accept your own invitation")
	}
	proposerConns := r.dir.FindConnectionsByUserID(proposer)
	if len(proposerConns) == 0 {
		return match.Summary{}, apperr.ErrTargetOffline
	}

	sum, err := r.matches.CreateAndJoin(ctx,
		match.Seat{UserID: proposer, ConnIDs: proposerConns},
		match.Seat{UserID: acceptor, ConnIDs: []uuid.UUID{acceptorConn}},
		p,
	)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeContentGenerationFailure {
			// the proposer is waiting on this match too
			r.notifier.ToUser(proposer, protocol.NewEvent(protocol.EventInvitationFailed, protocol.InvitationFailedPayload{
				Reason:  ReasonContentUnavailable,
				UserID:  acceptor,
				Message: "could not prepare questions for this match",
			}))
		}
		return match.Summary{}, err
	}

	r.dir.SetUserStatus(proposer, presence.StatusInGame, sum.ID)
	r.dir.SetUserStatus(acceptor, presence.StatusInGame, sum.ID)

	ev := protocol.NewEvent(protocol.EventInvitationAccepted, protocol.InvitationAcceptedPayload{
		RoomID:    sum.ID,
		Grade:     sum.Grade,
		Language:  sum.Language,
		Subject:   sum.Subject,
		Players:   sum.Players,
		Questions: sum.Questions,
	})
	r.notifier.ToUser(proposer, ev)
	r.notifier.ToUser(acceptor, ev)
	r.notifier.BroadcastOnlineUsers()

	r.matches.Start(sum.ID)
	r.logger.WithFields(logrus.Fields{
		"room_id":  sum.ID,
		"proposer": proposer,
		"acceptor": acceptor,
	}).Info("invitation accepted")
	return sum, nil
}

// Decline tells the proposer, if still online. It never fails.
func (r *Router) Decline(decliner, proposer uuid.UUID) {
	n := r.notifier.ToUser(proposer, protocol.NewEvent(protocol.EventInvitationDeclined, protocol.InvitationDeclinedPayload{
		ByUserID: decliner,
	}))
	if n == 0 {
		r.logger.WithField("proposer", proposer).Debug("decline dropped, proposer offline")
	}
}
