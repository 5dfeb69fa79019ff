package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/monitoring"
	"github.com/prism-platform/notification-service/internal/notification"
)

// AnalyticsJob recomputes the rolling engagement report and publishes the
// rates as Prometheus gauges
type AnalyticsJob struct {
	analyzer *notification.Analyzer
	window   time.Duration
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewAnalyticsJob creates a new analytics job
func NewAnalyticsJob(analyzer *notification.Analyzer, window time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *AnalyticsJob {
	return &AnalyticsJob{
		analyzer: analyzer,
		window:   window,
		metrics:  metrics,
		logger:   logger,
	}
}

// Name identifies the job in logs
func (j *AnalyticsJob) Name() string { return "analytics" }

// Run recomputes the report for the configured window
func (j *AnalyticsJob) Run(ctx context.Context) error {
	report, err := j.analyzer.Report(ctx, j.window)
	if err != nil {
		return err
	}

	if j.metrics != nil {
		j.metrics.SetEngagementRates(report.DeliveryRate, report.OpenRate, report.ClickRate)
	}

	j.logger.Info("Analytics report computed",
		zap.Int64("total", report.TotalNotifications),
		zap.Float64("delivery_rate", report.DeliveryRate),
		zap.Float64("open_rate", report.OpenRate),
		zap.Float64("click_rate", report.ClickRate),
	)
	return nil
}
