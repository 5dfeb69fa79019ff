package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

func TestPushSenderSkipsUsersWithoutToken(t *testing.T) {
	sender := &PushSender{}

	result, err := sender.Send(context.Background(),
		&notification.Notification{ID: "n1", UserID: "u1", Title: "hi"},
		&users.User{ID: "u1", Email: "ada@example.com"},
	)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestEmailSenderSkipsUsersWithoutAddress(t *testing.T) {
	sender := &EmailSender{}

	result, err := sender.Send(context.Background(),
		&notification.Notification{ID: "n1", UserID: "u1", Title: "hi"},
		&users.User{ID: "u1", Username: "ada"},
	)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}
