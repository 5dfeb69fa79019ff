package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestShouldDeliverDefaults(t *testing.T) {
	pref := DefaultPreference("u1")
	for _, channel := range AllChannels {
		assert.True(t, pref.ChannelEnabled(channel))
		assert.True(t, ShouldDeliver(pref, TypeInfo, channel, at(12, 0)))
	}
}

func TestShouldDeliverDoNotDisturb(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.DoNotDisturb = true

	// Indefinite DND suppresses everything
	assert.False(t, ShouldDeliver(pref, TypeSecurity, ChannelInApp, at(12, 0)))
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelEmail, at(12, 0)))

	// DND with a future expiry still suppresses
	until := at(18, 0)
	pref.DoNotDisturbUntil = &until
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(12, 0)))

	// Past the expiry the flag no longer applies
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(19, 0)))
}

func TestShouldDeliverQuietHoursSameDay(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.QuietHoursEnabled = true
	pref.QuietStart = &TimeOfDay{Hour: 9, Minute: 0}
	pref.QuietEnd = &TimeOfDay{Hour: 17, Minute: 0}

	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(12, 0)))
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(9, 0)))
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(17, 0)))
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(8, 59)))
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(17, 1)))
}

func TestShouldDeliverQuietHoursOvernight(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.QuietHoursEnabled = true
	pref.QuietStart = &TimeOfDay{Hour: 22, Minute: 0}
	pref.QuietEnd = &TimeOfDay{Hour: 6, Minute: 0}

	// Inside the window, both before and after midnight
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelPush, at(23, 0)))
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelPush, at(2, 30)))
	assert.False(t, ShouldDeliver(pref, TypeInfo, ChannelPush, at(6, 0)))

	// Outside the window
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelPush, at(12, 0)))
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelPush, at(21, 59)))
}

func TestShouldDeliverQuietHoursDisabledWindowIgnored(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.QuietStart = &TimeOfDay{Hour: 0, Minute: 0}
	pref.QuietEnd = &TimeOfDay{Hour: 23, Minute: 59}

	// Window set but quiet hours not enabled
	assert.True(t, ShouldDeliver(pref, TypeInfo, ChannelInApp, at(12, 0)))
}

func TestShouldDeliverTypeMaps(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.EmailTypes = map[Type]bool{TypeMetrics: false, TypeSecurity: true}

	assert.False(t, ShouldDeliver(pref, TypeMetrics, ChannelEmail, at(12, 0)))
	assert.True(t, ShouldDeliver(pref, TypeSecurity, ChannelEmail, at(12, 0)))

	// Absent entries default to allowed
	assert.True(t, ShouldDeliver(pref, TypeMessage, ChannelEmail, at(12, 0)))

	// The map is per-channel: push is unaffected
	assert.True(t, ShouldDeliver(pref, TypeMetrics, ChannelPush, at(12, 0)))
}

func TestChannelEnabled(t *testing.T) {
	pref := DefaultPreference("u1")
	pref.EmailEnabled = false

	assert.False(t, pref.ChannelEnabled(ChannelEmail))
	assert.True(t, pref.ChannelEnabled(ChannelPush))
	assert.True(t, pref.ChannelEnabled(ChannelInApp))
	assert.False(t, pref.ChannelEnabled(Channel("sms")))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("22:30")
	assert.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 22, Minute: 30}, tod)
	assert.Equal(t, "22:30", tod.String())
	assert.Equal(t, 1350, tod.Minutes())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("not a time")
	assert.Error(t, err)
}
