// Package protocol holds the JSON frames exchanged over the /ws endpoint.
package protocol

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// Subprotocol clients must negotiate during the upgrade.
const Subprotocol = "quizduel"

// Inbound message types.
const (
	TypeAuthenticate      = "authenticate"
	TypeSendInvitation    = "send_invitation"
	TypeAcceptInvitation  = "accept_invitation"
	TypeDeclineInvitation = "decline_invitation"
	TypeCreateRoom        = "create_room"
	TypeJoinRoom          = "join_room"
	TypeSubmitAnswer      = "submit_answer"
	TypeLeaveRoom         = "leave_room"
	TypeSetStatus         = "set_status"
	TypePing              = "ping"
)

// Inbound is a client frame. Only the fields relevant to Type are populated.
type Inbound struct {
	Type string `json:"type"`

	Token string `json:"token,omitempty"`

	ToUserID   uuid.UUID       `json:"toUserId,omitempty"`
	FromUserID uuid.UUID       `json:"fromUserId,omitempty"`
	Grade      *int            `json:"grade,omitempty"`
	Language   models.Language `json:"language,omitempty"`
	Subject    models.Subject  `json:"subject,omitempty"`

	RoomID        uuid.UUID `json:"roomId,omitempty"`
	QuestionID    uuid.UUID `json:"questionId,omitempty"`
	SelectedIndex int       `json:"selectedIndex"`
	ElapsedMs     int       `json:"elapsedMs"`

	Status string `json:"status,omitempty"`
}

// EventType names an outbound frame.
type EventType string

const (
	EventAuthenticated      EventType = "authenticated"
	EventAuthError          EventType = "auth_error"
	EventOnlineUsers        EventType = "online_users"
	EventInvitationReceived EventType = "invitation_received"
	EventInvitationDeclined EventType = "invitation_declined"
	EventInvitationFailed   EventType = "invitation_failed"
	EventInvitationAccepted EventType = "invitation_accepted"
	EventRoomCreated        EventType = "room_created"
	EventPlayerJoined       EventType = "player_joined"
	EventRoundStarted       EventType = "round_started"
	EventAnswerSubmitted    EventType = "answer_submitted"
	EventRoundResult        EventType = "round_result"
	EventMatchEnded         EventType = "match_ended"
	EventOpponentLeft       EventType = "opponent_left"
	EventError              EventType = "error"
	EventPong               EventType = "pong"
)

// Event is a server frame.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent is shorthand for Event{Type: t, Payload: payload}.
func NewEvent(t EventType, payload interface{}) Event {
	return Event{Type: t, Payload: payload}
}
