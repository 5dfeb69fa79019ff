package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the notification service
type Metrics struct {
	NotificationsCreated   *prometheus.CounterVec
	NotificationsSent      *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	NotificationsDelivered *prometheus.CounterVec
	DispatchOutcomes       *prometheus.CounterVec
	ChannelDuration        *prometheus.HistogramVec
	ActiveWebsockets       prometheus.Gauge
	CleanupRemoved         *prometheus.CounterVec
	DeliveryRate           prometheus.Gauge
	OpenRate               prometheus.Gauge
	ClickRate              prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metrics := &Metrics{
		NotificationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_created_total",
				Help: "Total number of notifications created",
			},
			[]string{"type"},
		),
		NotificationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notifications sent",
			},
			[]string{"channel"},
		),
		NotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_failed_total",
				Help: "Total number of failed channel deliveries",
			},
			[]string{"channel"},
		),
		NotificationsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_delivered_total",
				Help: "Total number of delivered notifications",
			},
			[]string{"channel"},
		),
		DispatchOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_dispatch_outcomes_total",
				Help: "Dispatch decisions per channel (queued, suppressed, disabled, deferred)",
			},
			[]string{"channel", "outcome"},
		),
		ChannelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "channel_processing_duration_seconds",
				Help:    "Time taken by channels to send notifications",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		ActiveWebsockets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_websocket_connections",
				Help: "Number of open WebSocket sessions",
			},
		),
		CleanupRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cleanup_removed_total",
				Help: "Total records removed by the cleanup sweeps",
			},
			[]string{"sweep"},
		),
		DeliveryRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_delivery_rate",
				Help: "Delivered / created percentage over the analytics window",
			},
		),
		OpenRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_open_rate",
				Help: "Read / delivered percentage over the analytics window",
			},
		),
		ClickRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_click_rate",
				Help: "Clicked / read percentage over the analytics window",
			},
		),
	}

	// Register all metrics
	prometheus.MustRegister(
		metrics.NotificationsCreated,
		metrics.NotificationsSent,
		metrics.NotificationsFailed,
		metrics.NotificationsDelivered,
		metrics.DispatchOutcomes,
		metrics.ChannelDuration,
		metrics.ActiveWebsockets,
		metrics.CleanupRemoved,
		metrics.DeliveryRate,
		metrics.OpenRate,
		metrics.ClickRate,
	)

	return metrics
}

// RecordNotificationCreated records a created notification
func (m *Metrics) RecordNotificationCreated(notifType string) {
	m.NotificationsCreated.WithLabelValues(notifType).Inc()
}

// RecordNotificationSent records a sent notification
func (m *Metrics) RecordNotificationSent(channel string) {
	m.NotificationsSent.WithLabelValues(channel).Inc()
}

// RecordNotificationFailed records a failed channel delivery
func (m *Metrics) RecordNotificationFailed(channel string) {
	m.NotificationsFailed.WithLabelValues(channel).Inc()
}

// RecordNotificationDelivered records a delivered notification
func (m *Metrics) RecordNotificationDelivered(channel string) {
	m.NotificationsDelivered.WithLabelValues(channel).Inc()
}

// RecordDispatchOutcome records one dispatch decision
func (m *Metrics) RecordDispatchOutcome(channel, outcome string) {
	m.DispatchOutcomes.WithLabelValues(channel, outcome).Inc()
}

// RecordChannelDuration records channel processing duration
func (m *Metrics) RecordChannelDuration(channel string, duration float64) {
	m.ChannelDuration.WithLabelValues(channel).Observe(duration)
}

// IncrementWebsockets increments the open session gauge
func (m *Metrics) IncrementWebsockets() {
	m.ActiveWebsockets.Inc()
}

// DecrementWebsockets decrements the open session gauge
func (m *Metrics) DecrementWebsockets() {
	m.ActiveWebsockets.Dec()
}

// RecordCleanup records records removed by one cleanup sweep
func (m *Metrics) RecordCleanup(sweep string, removed int64) {
	m.CleanupRemoved.WithLabelValues(sweep).Add(float64(removed))
}

// SetEngagementRates publishes the analytics window rates
func (m *Metrics) SetEngagementRates(delivery, open, click float64) {
	m.DeliveryRate.Set(delivery)
	m.OpenRate.Set(open)
	m.ClickRate.Set(click)
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
