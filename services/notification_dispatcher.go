package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/metrics"
	notify "matchConnectAPI/internal/notification"
	"matchConnectAPI/internal/types/notification"
)

const deliveryTimeout = 10 * time.Second

// NotificationDispatcher fans events out to every sink through a bounded
// worker pool. Failed deliveries are retried per sink with exponential
// backoff; nothing is ever reported back to the code that emitted.
type NotificationDispatcher struct {
	sinks       []notify.Sink
	workers     int
	maxAttempts int
	retryDelay  time.Duration

	jobQueue chan *DispatchJob
	// queueMu guards closing jobQueue against concurrent sends.
	queueMu sync.RWMutex
	stopped atomic.Bool
	wg      sync.WaitGroup
	// pending tracks retries scheduled but not yet re-enqueued.
	pending sync.WaitGroup

	timersMu sync.Mutex
	timers   map[*time.Timer]*DispatchJob
}

// DispatchJob is one delivery of one event to one sink.
type DispatchJob struct {
	Event   notification.Event
	Sink    notify.Sink
	Attempt int
}

func NewNotificationDispatcher(sinks []notify.Sink, workers, queueSize, maxAttempts int, retryDelay time.Duration) *NotificationDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	dispatcher := &NotificationDispatcher{
		sinks:       sinks,
		workers:     workers,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		jobQueue:    make(chan *DispatchJob, queueSize),
		timers:      make(map[*time.Timer]*DispatchJob),
	}

	dispatcher.startWorkers()

	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobQueue {
		metrics.NotificationQueueDepth.Set(float64(len(d.jobQueue)))
		d.processJob(job)
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	sinkName := job.Sink.Name()

	err := job.Sink.Deliver(ctx, job.Event)
	if err == nil {
		metrics.NotificationDeliveries.WithLabelValues(sinkName, "delivered").Inc()
		return
	}

	if job.Attempt >= d.maxAttempts || d.stopped.Load() {
		metrics.NotificationDeliveries.WithLabelValues(sinkName, "failed").Inc()
		logger.Error("Notification delivery failed",
			"sink", sinkName,
			"event_id", job.Event.ID,
			"type", job.Event.Type,
			"attempts", job.Attempt,
			"error", err,
		)
		return
	}

	metrics.NotificationDeliveries.WithLabelValues(sinkName, "retried").Inc()
	delay := d.backoff(job.Attempt)
	logger.Warn("Notification delivery failed, retrying",
		"sink", sinkName,
		"event_id", job.Event.ID,
		"attempt", job.Attempt,
		"retry_in", delay,
		"error", err,
	)

	d.scheduleRetry(&DispatchJob{Event: job.Event, Sink: job.Sink, Attempt: job.Attempt + 1}, delay)
}

// scheduleRetry re-enqueues job after delay. The timer is registered before
// its callback can observe the map, so Stop always sees it.
func (d *NotificationDispatcher) scheduleRetry(job *DispatchJob, delay time.Duration) {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()

	d.pending.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer d.pending.Done()

		d.timersMu.Lock()
		delete(d.timers, timer)
		d.timersMu.Unlock()

		d.enqueue(job)
	})
	d.timers[timer] = job
}

// cancelRetries stops every backoff timer that has not fired yet.
func (d *NotificationDispatcher) cancelRetries() {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()

	for timer, job := range d.timers {
		if !timer.Stop() {
			continue
		}
		delete(d.timers, timer)
		d.pending.Done()
		metrics.NotificationDeliveries.WithLabelValues(job.Sink.Name(), "dropped").Inc()
		logger.Warn("Notification retry dropped on shutdown",
			"sink", job.Sink.Name(),
			"event_id", job.Event.ID,
			"attempt", job.Attempt,
		)
	}
}

// backoff is retryDelay doubled for every attempt already made.
func (d *NotificationDispatcher) backoff(attempt int) time.Duration {
	delay := d.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Emit queues event for every sink. A full queue drops the job.
func (d *NotificationDispatcher) Emit(event notification.Event) {
	if d.stopped.Load() {
		logger.Warn("Notification dispatcher stopped, dropping event", "event_id", event.ID, "type", event.Type)
		return
	}
	for _, sink := range d.sinks {
		d.enqueue(&DispatchJob{Event: event, Sink: sink, Attempt: 1})
	}
}

func (d *NotificationDispatcher) enqueue(job *DispatchJob) {
	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.stopped.Load() {
		metrics.NotificationDeliveries.WithLabelValues(job.Sink.Name(), "dropped").Inc()
		return
	}

	select {
	case d.jobQueue <- job:
		metrics.NotificationQueueDepth.Set(float64(len(d.jobQueue)))
	default:
		metrics.NotificationDeliveries.WithLabelValues(job.Sink.Name(), "dropped").Inc()
		logger.Warn("Notification queue full, dropping job",
			"sink", job.Sink.Name(),
			"event_id", job.Event.ID,
			"type", job.Event.Type,
		)
	}
}

// Stop refuses new events and lets the workers drain what is already queued.
// Retries still waiting on their backoff are cancelled and counted as
// dropped; Stop does not wait for their timers.
func (d *NotificationDispatcher) Stop() {
	d.queueMu.Lock()
	if d.stopped.Load() {
		d.queueMu.Unlock()
		return
	}
	d.stopped.Store(true)
	close(d.jobQueue)
	d.queueMu.Unlock()

	logger.Info("Stopping notification dispatcher...")
	d.wg.Wait()
	d.cancelRetries()
	d.pending.Wait()
	metrics.NotificationQueueDepth.Set(0)
	logger.Info("Notification dispatcher stopped")
}
