package channels

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/prism-platform/notification-service/internal/config"
	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

// EmailSender delivers notifications over email using SendGrid
type EmailSender struct {
	client *sendgrid.Client
	config config.SendGridConfig
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg config.SendGridConfig) *EmailSender {
	return &EmailSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		config: cfg,
	}
}

// Channel returns the channel this sender serves
func (e *EmailSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send emails the notification: title becomes the subject, message the body
func (e *EmailSender) Send(ctx context.Context, notif *notification.Notification, user *users.User) (*Result, error) {
	if user.Email == "" {
		return &Result{Skipped: true, Detail: "no email address"}, nil
	}

	log.Printf("Sending email notification %s to %s", notif.ID, user.Email)

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	to := mail.NewEmail(user.DisplayName(), user.Email)
	message := mail.NewSingleEmail(from, notif.Title, to, notif.Message, notif.Message)

	// Tracking headers
	message.SetHeader("X-Notification-ID", notif.ID)
	message.SetHeader("X-User-ID", notif.UserID)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		log.Printf("Failed to send email notification %s: %v", notif.ID, err)
		return &Result{Status: notification.HistoryFailed, Detail: err.Error()}, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var messageID string
		if msgIDs, ok := response.Headers["X-Message-Id"]; ok && len(msgIDs) > 0 {
			messageID = msgIDs[0]
		}
		log.Printf("Successfully sent email notification %s (SendGrid ID: %s)", notif.ID, messageID)
		return &Result{Status: notification.HistorySent, Detail: messageID}, nil
	}

	errorMsg := fmt.Sprintf("SendGrid returned status %d: %s", response.StatusCode, response.Body)
	log.Printf("Email notification %s failed: %s", notif.ID, errorMsg)
	return &Result{Status: notification.HistoryFailed, Detail: errorMsg}, fmt.Errorf("sendgrid error: %s", errorMsg)
}
