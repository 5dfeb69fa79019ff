package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/config"
	"github.com/prism-platform/notification-service/internal/monitoring"
	"github.com/prism-platform/notification-service/internal/notification"
)

// CleanupJob prunes expired notifications, old delivery history and old
// archived notifications. The three sweeps are independent: one failing does
// not stop the others.
type CleanupJob struct {
	store     *notification.Store
	history   *notification.HistoryStore
	retention config.RetentionConfig
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewCleanupJob creates a new cleanup job
func NewCleanupJob(
	store *notification.Store,
	history *notification.HistoryStore,
	retention config.RetentionConfig,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *CleanupJob {
	return &CleanupJob{
		store:     store,
		history:   history,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
	}
}

// Name identifies the job in logs
func (j *CleanupJob) Name() string { return "cleanup" }

// Run executes all three sweeps and returns the last sweep error, if any
func (j *CleanupJob) Run(ctx context.Context) error {
	now := time.Now()
	var lastErr error

	removed, err := j.store.DeleteExpired(ctx, now)
	lastErr = j.report("expired", removed, err, lastErr)

	historyCutoff := now.AddDate(0, 0, -j.retention.HistoryDays)
	removed, err = j.history.DeleteOlderThan(ctx, historyCutoff)
	lastErr = j.report("history", removed, err, lastErr)

	archivedCutoff := now.AddDate(0, 0, -j.retention.ArchivedDays)
	removed, err = j.store.DeleteOldArchived(ctx, archivedCutoff)
	lastErr = j.report("archived", removed, err, lastErr)

	return lastErr
}

func (j *CleanupJob) report(sweep string, removed int64, err, lastErr error) error {
	if err != nil {
		j.logger.Error("Cleanup sweep failed", zap.String("sweep", sweep), zap.Error(err))
		return err
	}
	if removed > 0 {
		j.logger.Info("Cleanup sweep removed records",
			zap.String("sweep", sweep),
			zap.Int64("removed", removed))
	}
	if j.metrics != nil {
		j.metrics.RecordCleanup(sweep, removed)
	}
	return lastErr
}
