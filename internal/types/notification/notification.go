package notification

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TypeRequestReceived EventType = "request_received"
	TypeRequestAccepted EventType = "request_accepted"
	TypeRequestRejected EventType = "request_rejected"
)

// Event is emitted on every successful send and respond. TargetUserID is the
// party who should hear about it; ActorUserID caused it.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         EventType `json:"type"`
	TargetUserID string    `json:"targetUserId"`
	ActorUserID  string    `json:"actorUserId"`
	RequestID    uuid.UUID `json:"requestId"`
	Timestamp    time.Time `json:"timestamp"`
}

// Title and Body are the human-readable push texts for each event type.
func (e Event) Title() string {
	switch e.Type {
	case TypeRequestReceived:
		return "New interest received"
	case TypeRequestAccepted:
		return "Your interest was accepted"
	case TypeRequestRejected:
		return "Your interest was declined"
	}
	return "Notification"
}

func (e Event) Body() string {
	switch e.Type {
	case TypeRequestReceived:
		return "Someone has sent you a connection request."
	case TypeRequestAccepted:
		return "Start a conversation with your new connection."
	case TypeRequestRejected:
		return "Keep exploring your daily recommendations."
	}
	return ""
}

// Data is the string payload carried alongside a push message.
func (e Event) Data() map[string]string {
	return map[string]string{
		"eventId":   e.ID.String(),
		"type":      string(e.Type),
		"requestId": e.RequestID.String(),
		"actorId":   e.ActorUserID,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
	}
}
