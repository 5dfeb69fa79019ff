package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/queue"
)

// DispatchOutcome describes what the dispatcher decided for one channel
type DispatchOutcome string

const (
	// OutcomeQueued means a delivery job was published for the channel
	OutcomeQueued DispatchOutcome = "queued"
	// OutcomeChannelDisabled means the channel master switch is off
	OutcomeChannelDisabled DispatchOutcome = "channel_disabled"
	// OutcomeSuppressed means preferences (DND, quiet hours or the type map)
	// suppressed the channel
	OutcomeSuppressed DispatchOutcome = "suppressed"
	// OutcomeDeferred means the notification is scheduled for the future and
	// nothing was queued; the scheduled check dispatches it later
	OutcomeDeferred DispatchOutcome = "deferred"
	// OutcomeFailed means publishing the delivery job failed; a failed
	// history row carries the error detail
	OutcomeFailed DispatchOutcome = "failed"
)

// PreferenceSource resolves a user's preferences. Implementations return
// defaults rather than an error when no record exists.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (*Preference, error)
}

// DeliveryPublisher hands delivery jobs to the async task queue
type DeliveryPublisher interface {
	PublishDelivery(ctx context.Context, job queue.DeliveryJob) error
}

// HistoryRecorder appends delivery-ledger rows
type HistoryRecorder interface {
	Record(ctx context.Context, h *History) error
}

// Dispatcher decides which channels receive a notification and enqueues one
// delivery job per eligible channel. Senders run asynchronously and own
// completion reporting; the dispatcher is fire-and-forget.
type Dispatcher struct {
	prefs     PreferenceSource
	publisher DeliveryPublisher
	history   HistoryRecorder
	logger    *zap.Logger
	clock     func() time.Time
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(prefs PreferenceSource, publisher DeliveryPublisher, history HistoryRecorder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		prefs:     prefs,
		publisher: publisher,
		history:   history,
		logger:    logger,
		clock:     time.Now,
	}
}

// Dispatch evaluates every channel for the notification and enqueues
// delivery jobs. The second return reports deferral: true means the
// notification is scheduled for the future and nothing was queued. A
// preference lookup failure falls back to defaults and never blocks
// dispatch. One channel's publish failure is recorded as a failed history
// row and does not affect the other channels.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) (map[Channel]DispatchOutcome, bool) {
	now := d.clock()
	outcomes := make(map[Channel]DispatchOutcome, len(AllChannels))

	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		for _, channel := range AllChannels {
			outcomes[channel] = OutcomeDeferred
		}
		d.logger.Info("Notification deferred until scheduled time",
			zap.String("id", n.ID), zap.Time("scheduled_at", *n.ScheduledAt))
		return outcomes, true
	}

	pref, err := d.prefs.Get(ctx, n.UserID)
	if err != nil {
		// Missing or unreadable preferences mean "use all defaults",
		// never a dispatch failure.
		d.logger.Warn("Preference lookup failed, using defaults",
			zap.String("user_id", n.UserID), zap.Error(err))
		pref = DefaultPreference(n.UserID)
	}

	for _, channel := range AllChannels {
		if !pref.ChannelEnabled(channel) {
			outcomes[channel] = OutcomeChannelDisabled
			continue
		}
		// Email is queued immediately only on the immediate frequency;
		// daily/weekly digests and never skip the immediate path.
		if channel == ChannelEmail && pref.EmailFrequency != "" && pref.EmailFrequency != FrequencyImmediate {
			outcomes[channel] = OutcomeSuppressed
			continue
		}
		if !ShouldDeliver(pref, n.Type, channel, now) {
			outcomes[channel] = OutcomeSuppressed
			continue
		}

		job := queue.DeliveryJob{
			NotificationID: n.ID,
			UserID:         n.UserID,
			Channel:        string(channel),
			EnqueuedAt:     now,
		}
		if err := d.publisher.PublishDelivery(ctx, job); err != nil {
			outcomes[channel] = OutcomeFailed
			d.logger.Error("Failed to enqueue delivery job",
				zap.String("id", n.ID), zap.String("channel", string(channel)), zap.Error(err))
			d.recordFailure(ctx, n, channel, err)
			continue
		}
		outcomes[channel] = OutcomeQueued
	}

	d.logger.Info("Notification dispatched",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
		zap.Any("outcomes", outcomes),
	)
	return outcomes, false
}

func (d *Dispatcher) recordFailure(ctx context.Context, n *Notification, channel Channel, cause error) {
	entry := &History{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        channel,
		Status:         HistoryFailed,
		Metadata:       map[string]any{"error": cause.Error()},
	}
	if err := d.history.Record(ctx, entry); err != nil {
		d.logger.Error("Failed to record dispatch failure",
			zap.String("id", n.ID), zap.String("channel", string(channel)), zap.Error(err))
	}
}
