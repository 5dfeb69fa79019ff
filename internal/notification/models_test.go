package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationMarkRead(t *testing.T) {
	n := &Notification{}
	now := time.Now()

	require.True(t, n.MarkRead(now))
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, now, *n.ReadAt)

	// Re-reading keeps the original timestamp
	later := now.Add(time.Hour)
	assert.False(t, n.MarkRead(later))
	assert.Equal(t, now, *n.ReadAt)
}

func TestNotificationMarkUnread(t *testing.T) {
	n := &Notification{}
	assert.False(t, n.MarkUnread())

	n.MarkRead(time.Now())
	require.True(t, n.MarkUnread())
	assert.False(t, n.IsRead)
	assert.Nil(t, n.ReadAt)
}

func TestNotificationIsExpired(t *testing.T) {
	now := time.Now()
	n := &Notification{}
	assert.False(t, n.IsExpired(now))

	past := now.Add(-time.Minute)
	n.ExpiresAt = &past
	assert.True(t, n.IsExpired(now))

	future := now.Add(time.Minute)
	n.ExpiresAt = &future
	assert.False(t, n.IsExpired(now))
}

func TestHistoryAdvanceForwardOnly(t *testing.T) {
	now := time.Now()
	h := &History{Status: HistoryCreated}

	require.NoError(t, h.Advance(HistorySent, now))
	assert.Equal(t, HistorySent, h.Status)
	assert.NotNil(t, h.SentAt)

	require.NoError(t, h.Advance(HistoryDelivered, now))
	require.NoError(t, h.Advance(HistoryRead, now))
	require.NoError(t, h.Advance(HistoryClicked, now))

	// Backwards is rejected
	assert.ErrorIs(t, h.Advance(HistoryDelivered, now), ErrInvalidState)
	assert.Equal(t, HistoryClicked, h.Status)
}

func TestHistoryAdvanceSkipsStates(t *testing.T) {
	now := time.Now()
	h := &History{Status: HistorySent}

	// Jumping sent -> read is a forward move
	require.NoError(t, h.Advance(HistoryRead, now))
	assert.NotNil(t, h.ReadAt)
	assert.Nil(t, h.DeliveredAt)
}

func TestHistoryAdvanceSameStatusNoop(t *testing.T) {
	now := time.Now()
	h := &History{Status: HistoryDelivered}

	require.NoError(t, h.Advance(HistoryDelivered, now))
	assert.Nil(t, h.DeliveredAt)
}

func TestHistoryAdvanceFailedTerminal(t *testing.T) {
	now := time.Now()
	h := &History{Status: HistoryDelivered}

	// Failed is reachable from any non-terminal state
	require.NoError(t, h.Advance(HistoryFailed, now))
	assert.Equal(t, HistoryFailed, h.Status)

	// And nothing leaves it
	assert.ErrorIs(t, h.Advance(HistoryRead, now), ErrInvalidState)
	assert.ErrorIs(t, h.Advance(HistorySent, now), ErrInvalidState)
}
