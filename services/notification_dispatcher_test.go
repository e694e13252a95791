package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	notify "matchConnectAPI/internal/notification"
	"matchConnectAPI/internal/types/notification"
)

// flakySink fails the first failFor deliveries, then succeeds.
type flakySink struct {
	name     string
	failFor  int32
	calls    atomic.Int32
	mu       sync.Mutex
	received []notification.Event
	block    chan struct{}
}

func (s *flakySink) Name() string { return s.name }

func (s *flakySink) Deliver(ctx context.Context, event notification.Event) error {
	if s.block != nil {
		<-s.block
	}
	n := s.calls.Add(1)
	if n <= s.failFor {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	s.received = append(s.received, event)
	s.mu.Unlock()
	return nil
}

func (s *flakySink) Received() []notification.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Event(nil), s.received...)
}

func testEvent() notification.Event {
	return notification.Event{
		ID:           uuid.New(),
		Type:         notification.TypeRequestReceived,
		TargetUserID: "bob",
		ActorUserID:  "alice",
		RequestID:    uuid.New(),
		Timestamp:    time.Now().UTC(),
	}
}

func TestNotificationDispatcher_DeliversToEverySink(t *testing.T) {
	first := &flakySink{name: "first"}
	second := &flakySink{name: "second"}
	d := NewNotificationDispatcher([]notify.Sink{first, second}, 2, 10, 3, time.Millisecond)
	defer d.Stop()

	event := testEvent()
	d.Emit(event)

	assert.Eventually(t, func() bool {
		return len(first.Received()) == 1 && len(second.Received()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, event.ID, first.Received()[0].ID)
}

func TestNotificationDispatcher_RetriesFailedDelivery(t *testing.T) {
	sink := &flakySink{name: "flaky", failFor: 2}
	d := NewNotificationDispatcher([]notify.Sink{sink}, 1, 10, 3, time.Millisecond)
	defer d.Stop()

	d.Emit(testEvent())

	assert.Eventually(t, func() bool {
		return len(sink.Received()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), sink.calls.Load())
}

func TestNotificationDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sink := &flakySink{name: "down", failFor: 100}
	d := NewNotificationDispatcher([]notify.Sink{sink}, 1, 10, 3, time.Millisecond)

	d.Emit(testEvent())

	assert.Eventually(t, func() bool {
		return sink.calls.Load() == 3
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	d.Stop()
	assert.Equal(t, int32(3), sink.calls.Load())
	assert.Empty(t, sink.Received())
}

func TestNotificationDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &flakySink{name: "slow", block: make(chan struct{})}
	d := NewNotificationDispatcher([]notify.Sink{sink}, 1, 1, 1, time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Emit(testEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(sink.block)
	d.Stop()

	// One in flight plus one queued; everything else was dropped.
	assert.LessOrEqual(t, len(sink.Received()), 2)
	assert.GreaterOrEqual(t, len(sink.Received()), 1)
}

func TestNotificationDispatcher_StopDrainsAndRefusesNewEvents(t *testing.T) {
	sink := &flakySink{name: "log"}
	d := NewNotificationDispatcher([]notify.Sink{sink}, 2, 10, 1, time.Millisecond)

	for i := 0; i < 5; i++ {
		d.Emit(testEvent())
	}
	d.Stop()
	assert.Len(t, sink.Received(), 5)

	d.Emit(testEvent())
	d.Stop()
	assert.Len(t, sink.Received(), 5)
}

func (d *NotificationDispatcher) scheduledRetries() int {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	return len(d.timers)
}

func TestNotificationDispatcher_StopCancelsBackoffTimers(t *testing.T) {
	sink := &flakySink{name: "down", failFor: 100}
	d := NewNotificationDispatcher([]notify.Sink{sink}, 1, 10, 3, time.Hour)

	d.Emit(testEvent())
	assert.Eventually(t, func() bool {
		return sink.calls.Load() == 1 && d.scheduledRetries() == 1
	}, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop waited for the retry backoff")
	}

	assert.Equal(t, 0, d.scheduledRetries())
	assert.Equal(t, int32(1), sink.calls.Load())
}

func TestNotificationDispatcher_Backoff(t *testing.T) {
	d := &NotificationDispatcher{retryDelay: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, d.backoff(1))
	assert.Equal(t, 200*time.Millisecond, d.backoff(2))
	assert.Equal(t, 400*time.Millisecond, d.backoff(3))
}
