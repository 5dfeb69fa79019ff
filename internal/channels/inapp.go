package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/prism-platform/notification-service/internal/database"
	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

// InAppSender fans a notification out to the user's live sessions over the
// Redis pub/sub topic the WebSocket gateway subscribes to. The notification
// row itself is already persisted, so delivery here means the payload reached
// the broker.
type InAppSender struct {
	redis *database.RedisClient
}

// NewInAppSender creates a new in-app sender
func NewInAppSender(redis *database.RedisClient) *InAppSender {
	return &InAppSender{redis: redis}
}

// Channel returns the channel this sender serves
func (s *InAppSender) Channel() notification.Channel {
	return notification.ChannelInApp
}

// Send publishes the notification on the user's live topic
func (s *InAppSender) Send(ctx context.Context, notif *notification.Notification, user *users.User) (*Result, error) {
	payload, err := json.Marshal(map[string]any{
		"event":        "notification",
		"notification": notif,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &Result{Status: notification.HistoryFailed, Detail: err.Error()}, err
	}

	if err := s.redis.PublishToUser(ctx, notif.UserID, payload); err != nil {
		log.Printf("Failed to publish in-app notification %s: %v", notif.ID, err)
		return &Result{Status: notification.HistoryFailed, Detail: err.Error()}, fmt.Errorf("failed to publish in-app notification: %w", err)
	}

	// The unread count changed; drop the cached value
	s.redis.InvalidateUnreadCount(ctx, notif.UserID)

	return &Result{Status: notification.HistoryDelivered}, nil
}
