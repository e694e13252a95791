package request

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status blocks a new request between the same pair.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// Terminal reports whether no further transition is allowed. Anything other
// than pending is terminal, including values this package does not know.
func (s Status) Terminal() bool {
	return s != StatusPending
}

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// ResultingStatus maps a responder action to the status it settles on.
func (a Action) ResultingStatus() (Status, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

type ConnectionRequest struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SenderID    string     `json:"senderId" db:"sender_id"`
	ReceiverID  string     `json:"receiverId" db:"receiver_id"`
	Status      Status     `json:"status" db:"status"`
	Message     *string    `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	RespondedAt *time.Time `json:"respondedAt,omitempty" db:"responded_at"`
}

// Involves reports whether userID is either party of the request.
func (r *ConnectionRequest) Involves(userID string) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// MyRequests partitions the requests involving one user.
type MyRequests struct {
	Received []*ConnectionRequest `json:"received"`
	Sent     []*ConnectionRequest `json:"sent"`
	Accepted []*ConnectionRequest `json:"accepted"`
}

// NewMyRequests returns empty, non-nil buckets so they encode as [] not null.
func NewMyRequests() *MyRequests {
	return &MyRequests{
		Received: []*ConnectionRequest{},
		Sent:     []*ConnectionRequest{},
		Accepted: []*ConnectionRequest{},
	}
}

// Add files req into the bucket it belongs to from userID's point of view.
// Rejected and cancelled requests are not listed.
func (m *MyRequests) Add(userID string, req *ConnectionRequest) {
	switch req.Status {
	case StatusAccepted:
		if req.Involves(userID) {
			m.Accepted = append(m.Accepted, req)
		}
	case StatusPending:
		if req.ReceiverID == userID {
			m.Received = append(m.Received, req)
		} else if req.SenderID == userID {
			m.Sent = append(m.Sent, req)
		}
	}
}
