package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/prism-platform/notification-service/internal/database"
)

// AnalyticsReport aggregates delivery engagement over a rolling window
type AnalyticsReport struct {
	WindowStart        time.Time        `json:"window_start"`
	WindowEnd          time.Time        `json:"window_end"`
	TotalNotifications int64            `json:"total_notifications"`
	TotalDelivered     int64            `json:"total_delivered"`
	TotalRead          int64            `json:"total_read"`
	TotalClicked       int64            `json:"total_clicked"`
	DeliveryRate       float64          `json:"delivery_rate"`
	OpenRate           float64          `json:"open_rate"`
	ClickRate          float64          `json:"click_rate"`
	TypeDistribution   map[string]int64 `json:"type_distribution"`
	ChannelDistribution map[string]int64 `json:"channel_distribution"`
	DailyTrend         []DailyCount     `json:"daily_trend"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// DailyCount is one day of the creation trend series
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ComputeRates fills the percentage rates from the raw counters. Zero
// denominators yield a zero rate rather than NaN.
func (r *AnalyticsReport) ComputeRates() {
	r.DeliveryRate = ratio(r.TotalDelivered, r.TotalNotifications)
	r.OpenRate = ratio(r.TotalRead, r.TotalDelivered)
	r.ClickRate = ratio(r.TotalClicked, r.TotalRead)
}

func ratio(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}

// trendDays is the span of the daily creation trend series
const trendDays = 7

// buildDailyTrend turns per-day counts into a dense series ending on the
// given day, oldest first, with zero entries for days without notifications
func buildDailyTrend(counts map[string]int64, end time.Time) []DailyCount {
	trend := make([]DailyCount, 0, trendDays)
	for i := trendDays - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i).Format("2006-01-02")
		trend = append(trend, DailyCount{Date: day, Count: counts[day]})
	}
	return trend
}

// Analyzer computes delivery analytics from the notification and history
// tables
type Analyzer struct {
	db *database.PostgresDB
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(db *database.PostgresDB) *Analyzer {
	return &Analyzer{db: db}
}

// Report aggregates the rolling window ending now
func (a *Analyzer) Report(ctx context.Context, window time.Duration) (*AnalyticsReport, error) {
	now := time.Now()
	start := now.Add(-window)
	report := &AnalyticsReport{
		WindowStart:         start,
		WindowEnd:           now,
		TypeDistribution:    make(map[string]int64),
		ChannelDistribution: make(map[string]int64),
		GeneratedAt:         now,
	}

	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE created_at >= $1`, start,
	).Scan(&report.TotalNotifications)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	counts := []struct {
		status HistoryStatus
		dest   *int64
	}{
		{HistoryDelivered, &report.TotalDelivered},
		{HistoryRead, &report.TotalRead},
		{HistoryClicked, &report.TotalClicked},
	}
	for _, c := range counts {
		err := a.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notification_history WHERE status = $1 AND created_at >= $2`,
			c.status, start,
		).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s history: %w", c.status, err)
		}
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM notifications WHERE created_at >= $1 GROUP BY type`, start)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		report.TypeDistribution[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	channelRows, err := a.db.QueryContext(ctx,
		`SELECT channel, COUNT(*) FROM notification_history WHERE created_at >= $1 GROUP BY channel`, start)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate channels: %w", err)
	}
	defer channelRows.Close()
	for channelRows.Next() {
		var name string
		var count int64
		if err := channelRows.Scan(&name, &count); err != nil {
			return nil, err
		}
		report.ChannelDistribution[name] = count
	}
	if err := channelRows.Err(); err != nil {
		return nil, err
	}

	trendStart := now.AddDate(0, 0, -(trendDays - 1)).Truncate(24 * time.Hour)
	trendRows, err := a.db.QueryContext(ctx,
		`SELECT DATE(created_at), COUNT(*) FROM notifications WHERE created_at >= $1 GROUP BY DATE(created_at)`,
		trendStart)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily trend: %w", err)
	}
	defer trendRows.Close()
	dailyCounts := make(map[string]int64)
	for trendRows.Next() {
		var day time.Time
		var count int64
		if err := trendRows.Scan(&day, &count); err != nil {
			return nil, err
		}
		dailyCounts[day.Format("2006-01-02")] = count
	}
	if err := trendRows.Err(); err != nil {
		return nil, err
	}
	report.DailyTrend = buildDailyTrend(dailyCounts, now)

	report.ComputeRates()
	return report, nil
}
