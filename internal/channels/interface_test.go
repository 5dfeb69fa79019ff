package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

type stubSender struct {
	channel notification.Channel
}

func (s *stubSender) Channel() notification.Channel { return s.channel }

func (s *stubSender) Send(ctx context.Context, n *notification.Notification, u *users.User) (*Result, error) {
	return &Result{Status: notification.HistorySent}, nil
}

func TestManagerRegisterAndGet(t *testing.T) {
	m := NewManager()
	m.Register(&stubSender{channel: notification.ChannelEmail})

	sender, ok := m.Get(notification.ChannelEmail)
	require.True(t, ok)
	assert.Equal(t, notification.ChannelEmail, sender.Channel())

	_, ok = m.Get(notification.ChannelPush)
	assert.False(t, ok)
}

func TestManagerLastRegistrationWins(t *testing.T) {
	m := NewManager()
	first := &stubSender{channel: notification.ChannelInApp}
	second := &stubSender{channel: notification.ChannelInApp}
	m.Register(first)
	m.Register(second)

	sender, ok := m.Get(notification.ChannelInApp)
	require.True(t, ok)
	assert.Same(t, second, sender)
}
