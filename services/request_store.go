package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"matchConnectAPI/internal/types/quota"
	"matchConnectAPI/internal/types/request"
)

// RequestStore persists connection requests. Every mutation is a single
// conditional write; implementations never read-modify-write a row without a
// status guard.
type RequestStore interface {
	// Create inserts a pending request. It fails with ErrSelfRequest or
	// ErrDuplicateActiveRequest; the duplicate check and insert are atomic.
	Create(ctx context.Context, senderID, receiverID string, message *string, at time.Time) (*request.ConnectionRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*request.ConnectionRequest, error)
	ListForUser(ctx context.Context, userID string) (*request.MyRequests, error)
	// UpdateStatus moves a pending request to status. It fails with
	// ErrInvalidTransition if the request is no longer pending.
	UpdateStatus(ctx context.Context, id uuid.UUID, status request.Status, at time.Time) (*request.ConnectionRequest, error)
	// Cancel moves a pending request to cancelled on behalf of its sender.
	Cancel(ctx context.Context, id uuid.UUID, senderID string, at time.Time) (*request.ConnectionRequest, error)
}

// QuotaTracker enforces the per-day outbound request limit.
type QuotaTracker interface {
	// CheckAndConsume atomically takes one slot from today's allowance and
	// returns how many remain afterwards, or fails with ErrQuotaExceeded.
	CheckAndConsume(ctx context.Context, userID string) (int, error)
	Remaining(ctx context.Context, userID string) (int, error)
	DailyLimit() int
	// PruneBefore deletes quota rows for days strictly before day.
	PruneBefore(ctx context.Context, day string) (int64, error)
}

// TxRunner runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is what RequestService needs from persistence.
type Store interface {
	RequestStore
	QuotaTracker
	TxRunner
}

// QuotaPolicy fixes the daily limit and the reference timezone whose
// calendar day buckets the count.
type QuotaPolicy struct {
	Limit    int
	Location *time.Location
	Now      func() time.Time
}

func (p QuotaPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Today is the current quota day key.
func (p QuotaPolicy) Today() string {
	return quota.DayFor(p.now(), p.Location)
}
