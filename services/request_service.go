package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"matchConnectAPI/internal/apperror"
	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/metrics"
	"matchConnectAPI/internal/types/notification"
	"matchConnectAPI/internal/types/request"
	"matchConnectAPI/utils"
)

// Notifier accepts events for asynchronous delivery. Emit must not block the
// caller and never reports delivery failures.
type Notifier interface {
	Emit(event notification.Event)
}

type noopNotifier struct{}

func (noopNotifier) Emit(notification.Event) {}

// RequestService owns the connection request lifecycle: send, respond and
// cancel, plus the read helpers behind the my-requests and quota endpoints.
type RequestService struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewRequestService(store Store, notifier Notifier, clock func() time.Time) *RequestService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &RequestService{
		store:    store,
		notifier: notifier,
		now:      clock,
	}
}

// Send creates a pending request from senderID to receiverID and consumes one
// unit of the sender's daily quota. Both happen in one transaction: a
// rejected insert never costs quota and an exhausted quota leaves no row.
func (s *RequestService) Send(ctx context.Context, senderID, receiverID string, message *string) (*request.SendResult, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, s.reject("send", apperror.Validation("receiverId is required"))
	}
	if senderID == receiverID {
		return nil, s.reject("send", apperror.ErrSelfRequest)
	}

	cleaned, ok := utils.SanitizeMessage(message, request.MaxMessageLength)
	if !ok {
		return nil, s.reject("send", apperror.Validation(
			fmt.Sprintf("message must be at most %d characters", request.MaxMessageLength)))
	}

	var (
		created   *request.ConnectionRequest
		remaining int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.store.Create(ctx, senderID, receiverID, cleaned, s.now().UTC())
		if err != nil {
			return err
		}
		remaining, err = s.store.CheckAndConsume(ctx, senderID)
		return err
	})
	if err != nil {
		return nil, s.reject("send", err)
	}

	metrics.RequestsSent.Inc()
	logger.Info("Connection request sent",
		"request_id", created.ID,
		"sender_id", senderID,
		"receiver_id", receiverID,
		"remaining", remaining,
	)

	s.notifier.Emit(s.event(notification.TypeRequestReceived, receiverID, senderID, created.ID))

	return &request.SendResult{
		Request:           created,
		RemainingRequests: remaining,
	}, nil
}

// Respond settles a pending request on behalf of its receiver. Responding to
// a request that is no longer pending fails with ErrInvalidTransition and
// carries the settled request so callers can treat a repeat as a no-op.
func (s *RequestService) Respond(ctx context.Context, requestID uuid.UUID, responderID string, action request.Action) (*request.ConnectionRequest, error) {
	status, ok := action.ResultingStatus()
	if !ok {
		return nil, s.reject("respond", apperror.Validation("action must be 'accept' or 'reject'"))
	}

	current, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.reject("respond", err)
	}
	if current.ReceiverID != responderID {
		return nil, s.reject("respond", apperror.ErrForbidden)
	}
	if current.Status.Terminal() {
		return nil, s.reject("respond", apperror.WithMeta(apperror.ErrInvalidTransition, map[string]any{"request": current}))
	}

	updated, err := s.store.UpdateStatus(ctx, requestID, status, s.now().UTC())
	if err != nil {
		return nil, s.reject("respond", err)
	}

	metrics.RequestsSettled.WithLabelValues(string(updated.Status)).Inc()
	logger.Info("Connection request settled",
		"request_id", updated.ID,
		"responder_id", responderID,
		"status", updated.Status,
	)

	eventType := notification.TypeRequestAccepted
	if updated.Status == request.StatusRejected {
		eventType = notification.TypeRequestRejected
	}
	s.notifier.Emit(s.event(eventType, updated.SenderID, responderID, updated.ID))

	return updated, nil
}

// Cancel withdraws a pending request. Only the sender may cancel and the
// consumed quota is not refunded.
func (s *RequestService) Cancel(ctx context.Context, requestID uuid.UUID, senderID string) (*request.ConnectionRequest, error) {
	cancelled, err := s.store.Cancel(ctx, requestID, senderID, s.now().UTC())
	if err != nil {
		return nil, s.reject("cancel", err)
	}

	metrics.RequestsSettled.WithLabelValues(string(cancelled.Status)).Inc()
	logger.Info("Connection request cancelled", "request_id", cancelled.ID, "sender_id", senderID)

	return cancelled, nil
}

// Get returns a request only to one of its two parties; everyone else sees
// ErrNotFound.
func (s *RequestService) Get(ctx context.Context, requestID uuid.UUID, userID string) (*request.ConnectionRequest, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Involves(userID) {
		return nil, apperror.ErrNotFound
	}
	return req, nil
}

func (s *RequestService) MyRequests(ctx context.Context, userID string) (*request.MyRequests, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *RequestService) Quota(ctx context.Context, userID string) (*request.QuotaResponse, error) {
	remaining, err := s.store.Remaining(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &request.QuotaResponse{
		RemainingRequests: remaining,
		DailyLimit:        s.store.DailyLimit(),
	}, nil
}

// ParseAction validates a client-supplied action string.
func ParseAction(raw string) (request.Action, error) {
	action := request.Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := action.ResultingStatus(); !ok {
		return "", apperror.Validation("action must be 'accept' or 'reject'")
	}
	return action, nil
}

func (s *RequestService) event(eventType notification.EventType, target, actor string, requestID uuid.UUID) notification.Event {
	return notification.Event{
		ID:           uuid.New(),
		Type:         eventType,
		TargetUserID: target,
		ActorUserID:  actor,
		RequestID:    requestID,
		Timestamp:    s.now().UTC(),
	}
}

// reject counts a refused operation and passes err through. Infrastructure
// errors are logged here since the caller only sees a generic message.
func (s *RequestService) reject(operation string, err error) error {
	code := apperror.CodeInternal
	if appErr, ok := apperror.As(err); ok {
		code = appErr.Code
	}
	metrics.RequestRejections.WithLabelValues(operation, code).Inc()

	if code == apperror.CodeInternal {
		logger.Error("Request operation failed", "operation", operation, "error", err)
	} else if errors.Is(err, apperror.ErrQuotaExceeded) {
		logger.Debug("Daily request quota exhausted", "operation", operation)
	}
	return err
}
