package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchConnectAPI/internal/apperror"
	"matchConnectAPI/internal/types/quota"
	"matchConnectAPI/internal/types/request"
)

type quotaKey struct {
	userID string
	day    string
}

// memTx collects undo steps for a MemoryStore transaction.
type memTx struct {
	store *MemoryStore
	undo  []func()
}

type memTxKey struct{}

// MemoryStore is an in-process Store used for STORAGE=memory and in tests.
// mu guards the data. txMu is held for the whole of a WithinTx call and by
// every operation running outside one, so uncommitted writes are never
// visible to other callers. Rollback replays an undo log.
type MemoryStore struct {
	policy QuotaPolicy

	txMu sync.Mutex

	mu       sync.Mutex
	requests map[uuid.UUID]*request.ConnectionRequest
	quotas   map[quotaKey]*quota.DailyQuota
}

func NewMemoryStore(policy QuotaPolicy) *MemoryStore {
	return &MemoryStore{
		policy:   policy,
		requests: make(map[uuid.UUID]*request.ConnectionRequest),
		quotas:   make(map[quotaKey]*quota.DailyQuota),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	return ok && tx.store == s
}

// lockTx waits for any open transaction unless ctx already belongs to one.
func (s *MemoryStore) lockTx(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// record registers an undo step; must be called with s.mu held.
func (s *MemoryStore) record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok && tx.store == s {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *MemoryStore) Create(ctx context.Context, senderID, receiverID string, message *string, at time.Time) (*request.ConnectionRequest, error) {
	if senderID == receiverID {
		return nil, apperror.ErrSelfRequest
	}

	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if !existing.Status.Active() {
			continue
		}
		if existing.Involves(senderID) && existing.Involves(receiverID) {
			return nil, apperror.ErrDuplicateActiveRequest
		}
	}

	req := &request.ConnectionRequest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     request.StatusPending,
		Message:    copyString(message),
		CreatedAt:  at,
	}
	s.requests[req.ID] = req
	s.record(ctx, func() { delete(s.requests, req.ID) })

	return cloneRequest(req), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*request.ConnectionRequest, error) {
	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string) (*request.MyRequests, error) {
	defer s.lockTx(ctx)()
	s.mu.Lock()
	matched := make([]*request.ConnectionRequest, 0)
	for _, req := range s.requests {
		if req.Involves(userID) {
			matched = append(matched, cloneRequest(req))
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	result := request.NewMyRequests()
	for _, req := range matched {
		result.Add(userID, req)
	}
	return result, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status request.Status, at time.Time) (*request.ConnectionRequest, error) {
	return s.transition(ctx, id, status, at, nil)
}

func (s *MemoryStore) Cancel(ctx context.Context, id uuid.UUID, senderID string, at time.Time) (*request.ConnectionRequest, error) {
	return s.transition(ctx, id, request.StatusCancelled, at, func(req *request.ConnectionRequest) error {
		if req.SenderID != senderID {
			return apperror.ErrForbidden
		}
		return nil
	})
}

// transition is the conditional "WHERE status = pending" update shared by
// UpdateStatus and Cancel.
func (s *MemoryStore) transition(ctx context.Context, id uuid.UUID, status request.Status, at time.Time, guard func(*request.ConnectionRequest) error) (*request.ConnectionRequest, error) {
	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	if guard != nil {
		if err := guard(req); err != nil {
			return nil, err
		}
	}
	if req.Status.Terminal() {
		return nil, apperror.WithMeta(apperror.ErrInvalidTransition, map[string]any{"request": cloneRequest(req)})
	}

	prev := *req
	respondedAt := at
	req.Status = status
	req.RespondedAt = &respondedAt
	s.record(ctx, func() { *req = prev })

	return cloneRequest(req), nil
}

func (s *MemoryStore) CheckAndConsume(ctx context.Context, userID string) (int, error) {
	key := quotaKey{userID: userID, day: s.policy.Today()}

	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.quotas[key]
	if !ok {
		row = &quota.DailyQuota{UserID: userID, Day: key.day}
	}
	if row.SentCount >= s.policy.Limit {
		return 0, apperror.WithMeta(apperror.ErrQuotaExceeded, map[string]any{"remainingRequests": 0})
	}
	row.SentCount++
	s.quotas[key] = row
	s.record(ctx, func() {
		if row.SentCount <= 1 {
			delete(s.quotas, key)
		} else {
			row.SentCount--
		}
	})

	return quota.Remaining(s.policy.Limit, row.SentCount), nil
}

func (s *MemoryStore) Remaining(ctx context.Context, userID string) (int, error) {
	key := quotaKey{userID: userID, day: s.policy.Today()}

	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	return quota.Remaining(s.policy.Limit, s.sentLocked(key)), nil
}

func (s *MemoryStore) DailyLimit() int {
	return s.policy.Limit
}

func (s *MemoryStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	defer s.lockTx(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.quotas {
		if key.day < day {
			delete(s.quotas, key)
			removed++
		}
	}
	return removed, nil
}

// SentCount exposes the raw counter for a user and day.
func (s *MemoryStore) SentCount(userID, day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentLocked(quotaKey{userID: userID, day: day})
}

func (s *MemoryStore) sentLocked(key quotaKey) int {
	if row, ok := s.quotas[key]; ok {
		return row.SentCount
	}
	return 0
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneRequest(req *request.ConnectionRequest) *request.ConnectionRequest {
	cp := *req
	cp.Message = copyString(req.Message)
	if req.RespondedAt != nil {
		t := *req.RespondedAt
		cp.RespondedAt = &t
	}
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
