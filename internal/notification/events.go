package notification

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Event producer helpers. These wrap Create with the canonical titles,
// messages and payloads used by the platform's account-activity hooks.

// NotifyLogin records a successful login on the user's notification feed
func (s *Service) NotifyLogin(ctx context.Context, userID, ipAddress, userAgent string) (*Notification, error) {
	return s.Create(ctx, CreateRequest{
		UserID:  userID,
		Title:   "Login Activity",
		Message: fmt.Sprintf("You have successfully logged in from %s", ipAddress),
		Type:    TypeSystem,
		Source:  "account",
		Data: map[string]any{
			"activity_type": "login",
			"ip_address":    ipAddress,
			"user_agent":    userAgent,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// NotifyPasswordChange records a password change; priority and
// action-required so the user reviews it even if it was not them
func (s *Service) NotifyPasswordChange(ctx context.Context, userID, ipAddress string) (*Notification, error) {
	return s.Create(ctx, CreateRequest{
		UserID:         userID,
		Title:          "Password Changed",
		Message:        "Your password has been successfully changed.",
		Type:           TypeSecurity,
		IsPriority:     true,
		ActionRequired: true,
		Source:         "account",
		Data: map[string]any{
			"activity_type": "password_change",
			"ip_address":    ipAddress,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// NotifyProfileUpdate records which profile fields changed
func (s *Service) NotifyProfileUpdate(ctx context.Context, userID string, changedFields []string) (*Notification, error) {
	if len(changedFields) == 0 {
		return nil, &ValidationError{Field: "changed_fields", Reason: "must not be empty"}
	}
	return s.Create(ctx, CreateRequest{
		UserID:  userID,
		Title:   "Profile Updated",
		Message: fmt.Sprintf("Your profile has been updated. Changed fields: %s", strings.Join(changedFields, ", ")),
		Type:    TypeSystem,
		Source:  "account",
		Data: map[string]any{
			"activity_type":  "profile_update",
			"changed_fields": changedFields,
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// NotifyActivity records a generic user-activity event
func (s *Service) NotifyActivity(ctx context.Context, userID, activityType string, activityData map[string]any) (*Notification, error) {
	label := strings.ReplaceAll(activityType, "_", " ")
	return s.Create(ctx, CreateRequest{
		UserID:  userID,
		Title:   fmt.Sprintf("Activity: %s", titleCase(label)),
		Message: fmt.Sprintf("Your %s activity has been recorded.", label),
		Type:    TypeActivity,
		Source:  "activity",
		Data: map[string]any{
			"activity_type": activityType,
			"activity_data": activityData,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
