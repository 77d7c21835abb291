// internal/handlers/arena_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/invite"
	"github.com/jason-s-yu/quizduel/internal/match"
	"github.com/jason-s-yu/quizduel/internal/presence"
	"github.com/jason-s-yu/quizduel/internal/protocol"
	"github.com/sirupsen/logrus"
)

// DefaultOperationTimeout bounds each inbound message's store and content calls.
const DefaultOperationTimeout = 10 * time.Second

// Identity verifies tokens and resolves display names.
type Identity interface {
	VerifyAuthToken(token string) (uuid.UUID, error)
	GetUserDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Matches is the room side of the arena.
type Matches interface {
	Create(ctx context.Context, connID, userID uuid.UUID, p match.MatchParams) (match.Summary, error)
	Join(ctx context.Context, connID, userID, roomID uuid.UUID, grade *int) (match.Summary, error)
	SubmitAnswer(ctx context.Context, a match.Answer) error
	Leave(ctx context.Context, connID, userID, roomID uuid.UUID) error
	Disconnect(ctx context.Context, connID, userID uuid.UUID) error
	ActiveRoomFor(userID uuid.UUID) (uuid.UUID, bool)
}

// Invitations is the challenge side of the arena.
type Invitations interface {
	Send(from, to uuid.UUID, p match.MatchParams) error
	Accept(ctx context.Context, acceptorConn, acceptor, proposer uuid.UUID, p match.MatchParams) (match.Summary, error)
	Decline(decliner, proposer uuid.UUID)
}

// Outbound is the delivery side used for replies to the originating connection.
type Outbound interface {
	ToConnection(connID uuid.UUID, ev protocol.Event) bool
	BroadcastOnlineUsers()
}

// ArenaServer turns inbound frames into registry, router and coordinator calls
// and reports every failure back to the originating connection as one frame.
type ArenaServer struct {
	registry  *presence.Registry
	out       Outbound
	matches   Matches
	invites   Invitations
	identity  Identity
	logger    *logrus.Logger
	opTimeout time.Duration

	// draining is set once the process is shutting down.
	draining atomic.Bool
}

func NewArenaServer(registry *presence.Registry, out Outbound, matches Matches, invites Invitations, identity Identity, logger *logrus.Logger) *ArenaServer {
	return &ArenaServer{
		registry:  registry,
		out:       out,
		matches:   matches,
		invites:   invites,
		identity:  identity,
		logger:    logger,
		opTimeout: DefaultOperationTimeout,
	}
}

// SetOperationTimeout overrides DefaultOperationTimeout.
func (s *ArenaServer) SetOperationTimeout(d time.Duration) {
	if d > 0 {
		s.opTimeout = d
	}
}

// Drain switches the server to shutdown mode. Connections closed from now on
// are only unregistered: their rooms stay in progress in storage and can be
// rejoined after a restart instead of being forfeited.
func (s *ArenaServer) Drain() {
	s.draining.Store(true)
}

// Connect registers a new, unauthenticated transport.
func (s *ArenaServer) Connect(connID uuid.UUID, sender presence.Sender) {
	s.registry.Connect(connID, sender)
}

// Authenticate binds the connection to the token's user. Re-authenticating as
// the same user just repeats the acknowledgement.
func (s *ArenaServer) Authenticate(ctx context.Context, connID uuid.UUID, token string) error {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return apperr.New(apperr.CodeInternal, "connection is closed")
	}
	userID, err := s.identity.VerifyAuthToken(token)
	if err != nil {
		return err
	}
	if conn.Authenticated() && conn.UserID != userID {
		return apperr.Invalid("connection is already authenticated as another user")
	}
	name, err := s.identity.GetUserDisplayName(ctx, userID)
	if err != nil {
		return err
	}

	if !conn.Authenticated() {
		s.registry.Register(connID, userID, name)
		// a new tab of a player mid-match is not challengeable
		if roomID, busy := s.matches.ActiveRoomFor(userID); busy {
			s.registry.AssignRoom(connID, roomID)
		}
	}
	s.out.ToConnection(connID, protocol.NewEvent(protocol.EventAuthenticated, protocol.AuthenticatedPayload{
		UserID:      userID,
		DisplayName: name,
	}))
	s.out.BroadcastOnlineUsers()
	s.logger.WithFields(logrus.Fields{"conn_id": connID, "user_id": userID}).Info("connection authenticated")
	return nil
}

// HandleMessage dispatches one inbound frame. It never returns an error: any
// failure becomes exactly one frame to connID.
func (s *ArenaServer) HandleMessage(parent context.Context, connID uuid.UUID, msg protocol.Inbound) {
	ctx, cancel := context.WithTimeout(parent, s.opTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"conn_id": connID, "type": msg.Type})
	log.Debug("inbound message")

	if err := s.dispatch(ctx, connID, msg); err != nil {
		s.reportError(connID, msg, err)
	}
}

func (s *ArenaServer) dispatch(ctx context.Context, connID uuid.UUID, msg protocol.Inbound) error {
	switch msg.Type {
	case protocol.TypeAuthenticate:
		return s.Authenticate(ctx, connID, msg.Token)
	case protocol.TypePing:
		s.out.ToConnection(connID, protocol.NewEvent(protocol.EventPong, nil))
		return nil
	}

	conn, ok := s.registry.Get(connID)
	if !ok || !conn.Authenticated() {
		return apperr.ErrNotAuthenticated
	}
	userID := conn.UserID

	switch msg.Type {
	case protocol.TypeSendInvitation:
		if msg.ToUserID == uuid.Nil {
			return apperr.Invalid("toUserId is required")
		}
		return s.invites.Send(userID, msg.ToUserID, paramsOf(msg))

	case protocol.TypeAcceptInvitation:
		if msg.FromUserID == uuid.Nil {
			return apperr.Invalid("fromUserId is required")
		}
		_, err := s.invites.Accept(ctx, connID, userID, msg.FromUserID, paramsOf(msg))
		return err

	case protocol.TypeDeclineInvitation:
		if msg.FromUserID == uuid.Nil {
			return apperr.Invalid("fromUserId is required")
		}
		s.invites.Decline(userID, msg.FromUserID)
		return nil

	case protocol.TypeCreateRoom:
		_, err := s.matches.Create(ctx, connID, userID, paramsOf(msg))
		return err

	case protocol.TypeJoinRoom:
		if msg.RoomID == uuid.Nil {
			return apperr.Invalid("roomId is required")
		}
		_, err := s.matches.Join(ctx, connID, userID, msg.RoomID, msg.Grade)
		return err

	case protocol.TypeSubmitAnswer:
		if msg.RoomID == uuid.Nil || msg.QuestionID == uuid.Nil {
			return apperr.Invalid("roomId and questionId are required")
		}
		return s.matches.SubmitAnswer(ctx, match.Answer{
			RoomID:        msg.RoomID,
			UserID:        userID,
			QuestionID:    msg.QuestionID,
			SelectedIndex: msg.SelectedIndex,
			ElapsedMs:     msg.ElapsedMs,
		})

	case protocol.TypeLeaveRoom:
		if msg.RoomID == uuid.Nil {
			return apperr.Invalid("roomId is required")
		}
		return s.matches.Leave(ctx, connID, userID, msg.RoomID)

	case protocol.TypeSetStatus:
		st, ok := presence.ParseStatus(msg.Status)
		if !ok {
			return apperr.Invalid(fmt.Sprintf("unknown status %q", msg.Status))
		}
		s.registry.SetStatus(connID, st)
		s.out.BroadcastOnlineUsers()
		return nil
	}
	return apperr.Invalid(fmt.Sprintf("unknown message type %q", msg.Type))
}

// Disconnect runs forfeit handling for the closing connection, then drops it
// from presence. It must run before the transport's sender is discarded.
func (s *ArenaServer) Disconnect(connID uuid.UUID) {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return
	}
	if conn.Authenticated() && !s.draining.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		err := s.matches.Disconnect(ctx, connID, conn.UserID)
		cancel()
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"conn_id": connID,
				"user_id": conn.UserID,
			}).WithError(err).Error("failed to resolve room on disconnect")
		}
	}
	if _, changed := s.registry.Unregister(connID); changed {
		s.out.BroadcastOnlineUsers()
	}
}

// reportError converts err into the single outbound frame for connID.
func (s *ArenaServer) reportError(connID uuid.UUID, msg protocol.Inbound, err error) {
	log := s.logger.WithFields(logrus.Fields{"conn_id": connID, "type": msg.Type})

	var ae *apperr.AppError
	if !errors.As(err, &ae) {
		log.WithError(err).Error("unhandled error")
		ae = apperr.Wrap(err, apperr.CodeInternal, "internal error")
	}

	switch ae.Code {
	case apperr.CodeAuthFailed:
		log.WithError(err).Info("authentication failed")
		s.out.ToConnection(connID, protocol.NewEvent(protocol.EventAuthError, protocol.MessagePayload{Message: ae.Message}))
	case apperr.CodeTargetOffline:
		target := msg.ToUserID
		if msg.Type == protocol.TypeAcceptInvitation {
			target = msg.FromUserID
		}
		s.out.ToConnection(connID, protocol.NewEvent(protocol.EventInvitationFailed, protocol.InvitationFailedPayload{
			Reason:  invite.ReasonOffline,
			UserID:  target,
			Message: ae.Message,
		}))
	default:
		if ae.Code == apperr.CodePersistenceFailure || ae.Code == apperr.CodeContentGenerationFailure {
			log.WithError(err).Warn("operation failed")
		} else {
			log.WithError(err).Debug("request rejected")
		}
		s.out.ToConnection(connID, protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
			Code:    ae.Code,
			Message: ae.Message,
		}))
	}
}

func paramsOf(msg protocol.Inbound) match.MatchParams {
	p := match.MatchParams{Language: msg.Language, Subject: msg.Subject}
	if msg.Grade != nil {
		p.Grade = *msg.Grade
	}
	return p
}
