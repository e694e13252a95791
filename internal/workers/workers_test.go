package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePruner struct {
	mu    sync.Mutex
	days  []string
	err   error
	count int64
}

func (p *fakePruner) PruneBefore(ctx context.Context, day string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.days = append(p.days, day)
	return p.count, p.err
}

func (p *fakePruner) Days() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.days...)
}

func TestQuotaCleanupWorker_Cutoff(t *testing.T) {
	w := NewQuotaCleanupWorker(&fakePruner{}, time.Hour, 30*24*time.Hour, time.UTC)
	w.now = func() time.Time { return time.Date(2026, 3, 31, 1, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2026-03-01", w.Cutoff())
}

func TestQuotaCleanupWorker_RetentionNeverBelowOneDay(t *testing.T) {
	w := NewQuotaCleanupWorker(&fakePruner{}, time.Hour, 0, nil)
	w.now = func() time.Time { return time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC) }

	assert.Equal(t, "2026-03-01", w.Cutoff())
}

func TestQuotaCleanupWorker_RunOnceSurvivesErrors(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	w := NewQuotaCleanupWorker(pruner, time.Hour, 48*time.Hour, time.UTC)

	w.RunOnce(context.Background())

	assert.Len(t, pruner.Days(), 1)
}

func TestQuotaCleanupWorker_LogsUnderComponentName(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	pruner := &fakePruner{count: 3}
	w := NewQuotaCleanupWorker(pruner, time.Hour, 48*time.Hour, time.UTC)
	w.log = zap.New(core).Sugar().Named("quota_cleanup")
	w.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	w.RunOnce(context.Background())

	entries := logs.FilterMessage("Pruned expired quota rows").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "quota_cleanup", entries[0].LoggerName)
		assert.Equal(t, "2026-03-08", entries[0].ContextMap()["cutoff"])
		assert.EqualValues(t, 3, entries[0].ContextMap()["removed"])
	}

	pruner.err = errors.New("db down")
	w.RunOnce(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("Quota cleanup failed").Len())
}

func TestQuotaCleanupWorker_RunStopsWithContext(t *testing.T) {
	pruner := &fakePruner{count: 2}
	w := NewQuotaCleanupWorker(pruner, 10*time.Millisecond, 48*time.Hour, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(pruner.Days()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
