package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/metrics"
	"matchConnectAPI/internal/types/quota"
)

// QuotaPruner deletes daily quota rows older than a given day.
type QuotaPruner interface {
	PruneBefore(ctx context.Context, day string) (int64, error)
}

// QuotaCleanupWorker periodically removes quota rows that fell out of the
// retention window. Rows for today are never touched, so pruning cannot
// reset a live allowance.
type QuotaCleanupWorker struct {
	pruner    QuotaPruner
	interval  time.Duration
	retention time.Duration
	location  *time.Location
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewQuotaCleanupWorker(pruner QuotaPruner, interval, retention time.Duration, loc *time.Location) *QuotaCleanupWorker {
	if loc == nil {
		loc = time.UTC
	}
	if retention < 24*time.Hour {
		retention = 24 * time.Hour
	}
	return &QuotaCleanupWorker{
		pruner:    pruner,
		interval:  interval,
		retention: retention,
		location:  loc,
		now:       time.Now,
		log:       logger.Named("quota_cleanup"),
	}
}

// Run prunes once immediately and then on every tick until ctx is done.
func (w *QuotaCleanupWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Cutoff is the first quota day that is kept.
func (w *QuotaCleanupWorker) Cutoff() string {
	return quota.DayFor(w.now().Add(-w.retention), w.location)
}

func (w *QuotaCleanupWorker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := w.Cutoff()
	removed, err := w.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		w.log.Errorw("Quota cleanup failed", "cutoff", cutoff, "error", err)
		return
	}

	metrics.QuotaRowsPruned.Add(float64(removed))
	if removed > 0 {
		w.log.Infow("Pruned expired quota rows", "cutoff", cutoff, "removed", removed)
	}
}
