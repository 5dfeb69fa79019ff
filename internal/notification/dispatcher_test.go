package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/queue"
)

type fakePrefs struct {
	pref *Preference
	err  error
}

func (f *fakePrefs) Get(ctx context.Context, userID string) (*Preference, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pref, nil
}

type fakePublisher struct {
	jobs    []queue.DeliveryJob
	failFor map[string]error
}

func (f *fakePublisher) PublishDelivery(ctx context.Context, job queue.DeliveryJob) error {
	if err, ok := f.failFor[job.Channel]; ok {
		return err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeHistory struct {
	records []*History
}

func (f *fakeHistory) Record(ctx context.Context, h *History) error {
	f.records = append(f.records, h)
	return nil
}

func newTestDispatcher(prefs PreferenceSource, publisher DeliveryPublisher, history HistoryRecorder, now time.Time) *Dispatcher {
	d := NewDispatcher(prefs, publisher, history, zap.NewNop())
	d.clock = func() time.Time { return now }
	return d
}

func TestDispatchQueuesAllChannels(t *testing.T) {
	now := time.Now()
	publisher := &fakePublisher{}
	history := &fakeHistory{}
	d := newTestDispatcher(&fakePrefs{pref: DefaultPreference("u1")}, publisher, history, now)

	n := &Notification{ID: "n1", UserID: "u1", Type: TypeInfo}
	outcomes, deferred := d.Dispatch(context.Background(), n)

	assert.False(t, deferred)
	for _, channel := range AllChannels {
		assert.Equal(t, OutcomeQueued, outcomes[channel])
	}
	require.Len(t, publisher.jobs, len(AllChannels))
	assert.Equal(t, "n1", publisher.jobs[0].NotificationID)
	assert.Empty(t, history.records)
}

func TestDispatchDoNotDisturbSuppressesEverything(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.DoNotDisturb = true

	publisher := &fakePublisher{}
	history := &fakeHistory{}
	d := newTestDispatcher(&fakePrefs{pref: pref}, publisher, history, time.Now())

	outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

	for _, channel := range AllChannels {
		assert.Equal(t, OutcomeSuppressed, outcomes[channel])
	}
	// Suppression is silent: no jobs, no ledger rows
	assert.Empty(t, publisher.jobs)
	assert.Empty(t, history.records)
}

func TestDispatchChannelMasterSwitch(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.EmailEnabled = false

	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakePrefs{pref: pref}, publisher, &fakeHistory{}, time.Now())

	outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

	assert.Equal(t, OutcomeChannelDisabled, outcomes[ChannelEmail])
	assert.Equal(t, OutcomeQueued, outcomes[ChannelInApp])
	assert.Equal(t, OutcomeQueued, outcomes[ChannelPush])
	assert.Len(t, publisher.jobs, 2)
}

func TestDispatchPreferenceLookupFailureUsesDefaults(t *testing.T) {
	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakePrefs{err: errors.New("storage down")}, publisher, &fakeHistory{}, time.Now())

	outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

	for _, channel := range AllChannels {
		assert.Equal(t, OutcomeQueued, outcomes[channel])
	}
}

func TestDispatchEmailFrequencyGatesImmediateDelivery(t *testing.T) {
	for _, freq := range []EmailFrequency{FrequencyNever, FrequencyDaily, FrequencyWeekly} {
		pref := DefaultPreference("u1")
		pref.EmailFrequency = freq

		publisher := &fakePublisher{}
		history := &fakeHistory{}
		d := newTestDispatcher(&fakePrefs{pref: pref}, publisher, history, time.Now())

		outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

		assert.Equal(t, OutcomeSuppressed, outcomes[ChannelEmail], "frequency %s", freq)
		assert.Equal(t, OutcomeQueued, outcomes[ChannelInApp])
		assert.Equal(t, OutcomeQueued, outcomes[ChannelPush])
		require.Len(t, publisher.jobs, 2)
		for _, job := range publisher.jobs {
			assert.NotEqual(t, string(ChannelEmail), job.Channel)
		}
		assert.Empty(t, history.records)
	}
}

func TestDispatchImmediateFrequencyQueuesEmail(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.EmailFrequency = FrequencyImmediate

	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakePrefs{pref: pref}, publisher, &fakeHistory{}, time.Now())

	outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

	assert.Equal(t, OutcomeQueued, outcomes[ChannelEmail])
	assert.Len(t, publisher.jobs, len(AllChannels))
}

func TestDispatchPublishFailureIsIsolated(t *testing.T) {
	publisher := &fakePublisher{failFor: map[string]error{string(ChannelEmail): errors.New("broker down")}}
	history := &fakeHistory{}
	d := newTestDispatcher(&fakePrefs{pref: DefaultPreference("u1")}, publisher, history, time.Now())

	outcomes, _ := d.Dispatch(context.Background(), &Notification{ID: "n1", UserID: "u1", Type: TypeInfo})

	assert.Equal(t, OutcomeFailed, outcomes[ChannelEmail])
	assert.Equal(t, OutcomeQueued, outcomes[ChannelInApp])
	assert.Equal(t, OutcomeQueued, outcomes[ChannelPush])

	// The failure leaves a failed ledger row carrying the cause
	require.Len(t, history.records, 1)
	assert.Equal(t, HistoryFailed, history.records[0].Status)
	assert.Equal(t, ChannelEmail, history.records[0].Channel)
	assert.Equal(t, "broker down", history.records[0].Metadata["error"])
}

func TestDispatchDefersScheduledNotifications(t *testing.T) {
	now := time.Now()
	scheduled := now.Add(time.Hour)

	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakePrefs{pref: DefaultPreference("u1")}, publisher, &fakeHistory{}, now)

	outcomes, deferred := d.Dispatch(context.Background(), &Notification{
		ID: "n1", UserID: "u1", Type: TypeInfo, ScheduledAt: &scheduled,
	})

	assert.True(t, deferred)
	for _, channel := range AllChannels {
		assert.Equal(t, OutcomeDeferred, outcomes[channel])
	}
	assert.Empty(t, publisher.jobs)
}

func TestDispatchPastScheduledTimeSendsImmediately(t *testing.T) {
	now := time.Now()
	scheduled := now.Add(-time.Minute)

	publisher := &fakePublisher{}
	d := newTestDispatcher(&fakePrefs{pref: DefaultPreference("u1")}, publisher, &fakeHistory{}, now)

	outcomes, deferred := d.Dispatch(context.Background(), &Notification{
		ID: "n1", UserID: "u1", Type: TypeInfo, ScheduledAt: &scheduled,
	})

	assert.False(t, deferred)
	for _, channel := range AllChannels {
		assert.Equal(t, OutcomeQueued, outcomes[channel])
	}
}
