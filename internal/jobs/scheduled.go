package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/notification"
)

// ScheduledJob dispatches notifications whose scheduled time has arrived and
// that have not been dispatched yet
type ScheduledJob struct {
	service *notification.Service
	logger  *zap.Logger
}

// NewScheduledJob creates a new scheduled-dispatch job
func NewScheduledJob(service *notification.Service, logger *zap.Logger) *ScheduledJob {
	return &ScheduledJob{service: service, logger: logger}
}

// Name identifies the job in logs
func (j *ScheduledJob) Name() string { return "scheduled-dispatch" }

// Run dispatches all currently due notifications
func (j *ScheduledJob) Run(ctx context.Context) error {
	count, err := j.service.DispatchDue(ctx, time.Now())
	if err != nil {
		return err
	}
	if count > 0 {
		j.logger.Info("Dispatched scheduled notifications", zap.Int("count", count))
	}
	return nil
}
