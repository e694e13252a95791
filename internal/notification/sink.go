package notification

import (
	"context"

	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/types/notification"
)

// Sink delivers one event to an external consumer (push, log, ...).
// Deliver may be retried, so implementations should tolerate duplicates.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event notification.Event) error
}

// LogSink writes every event as a structured log line. It never fails and is
// always installed so events are observable without push credentials.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, event notification.Event) error {
	logger.Info("Notification event",
		"event_id", event.ID,
		"type", event.Type,
		"target_user_id", event.TargetUserID,
		"actor_user_id", event.ActorUserID,
		"request_id", event.RequestID,
		"timestamp", event.Timestamp,
	)
	return nil
}
