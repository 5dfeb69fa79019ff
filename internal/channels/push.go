package channels

import (
	"context"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/prism-platform/notification-service/internal/config"
	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

// PushSender delivers notifications through Firebase Cloud Messaging
type PushSender struct {
	client *messaging.Client
	config config.FirebaseConfig
}

// NewPushSender creates a new push sender
func NewPushSender(ctx context.Context, cfg config.FirebaseConfig) (*PushSender, error) {
	if _, err := os.Stat(cfg.CredentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", cfg.CredentialsPath)
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase messaging client: %w", err)
	}

	return &PushSender{client: client, config: cfg}, nil
}

// Channel returns the channel this sender serves
func (p *PushSender) Channel() notification.Channel {
	return notification.ChannelPush
}

// Send pushes the notification to the user's registered device. Users without
// a push token are skipped, not failed.
func (p *PushSender) Send(ctx context.Context, notif *notification.Notification, user *users.User) (*Result, error) {
	if user.PushToken == "" {
		return &Result{Skipped: true, Detail: "no push token"}, nil
	}

	log.Printf("Sending push notification %s to user %s", notif.ID, user.ID)

	data := map[string]string{
		"notification_id": notif.ID,
		"user_id":         notif.UserID,
		"type":            string(notif.Type),
	}
	if notif.TargetURL != "" {
		data["target_url"] = notif.TargetURL
	}

	message := &messaging.Message{
		Token: user.PushToken,
		Notification: &messaging.Notification{
			Title: notif.Title,
			Body:  notif.Message,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Priority: messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: notif.Title,
						Body:  notif.Message,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := p.client.Send(ctx, message)
	if err != nil {
		log.Printf("Failed to send push notification %s: %v", notif.ID, err)
		return &Result{Status: notification.HistoryFailed, Detail: err.Error()}, err
	}

	log.Printf("Successfully sent push notification %s (FCM response: %s)", notif.ID, response)
	return &Result{Status: notification.HistorySent, Detail: response}, nil
}
