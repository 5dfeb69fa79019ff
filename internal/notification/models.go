package notification

import (
	"time"
)

// Notification represents a notification entity
type Notification struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Title          string         `json:"title" db:"title"`
	Message        string         `json:"message" db:"message"`
	Type           Type           `json:"type" db:"type"`
	Data           map[string]any `json:"data,omitempty" db:"data"`
	IsRead         bool           `json:"is_read" db:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty" db:"read_at"`
	IsPriority     bool           `json:"is_priority" db:"is_priority"`
	IsArchived     bool           `json:"is_archived" db:"is_archived"`
	ActionRequired bool           `json:"action_required" db:"action_required"`
	TargetURL      string         `json:"target_url,omitempty" db:"target_url"`
	Source         string         `json:"source,omitempty" db:"source"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	DispatchedAt   *time.Time     `json:"dispatched_at,omitempty" db:"dispatched_at"`
}

// MarkRead sets the read flag and timestamp. Returns false if the
// notification was already read, keeping the original timestamp.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	n.ReadAt = &now
	return true
}

// MarkUnread clears the read flag and timestamp
func (n *Notification) MarkUnread() bool {
	if !n.IsRead {
		return false
	}
	n.IsRead = false
	n.ReadAt = nil
	return true
}

// IsExpired reports whether the notification has passed its expiry time
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// Template is a reusable notification definition with {variable} placeholders
// in its title and message
type Template struct {
	ID               string            `json:"id" db:"id"`
	Name             string            `json:"name" db:"name"`
	TitleTemplate    string            `json:"title_template" db:"title_template"`
	MessageTemplate  string            `json:"message_template" db:"message_template"`
	Type             Type              `json:"type" db:"type"`
	IsPriority       bool              `json:"is_priority" db:"is_priority"`
	ActionRequired   bool              `json:"action_required" db:"action_required"`
	DefaultTargetURL string            `json:"default_target_url,omitempty" db:"default_target_url"`
	Variables        map[string]string `json:"variables" db:"variables"`
	UsageCount       int               `json:"usage_count" db:"usage_count"`
	LastUsed         *time.Time        `json:"last_used,omitempty" db:"last_used"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// TimeOfDay is a wall-clock time without a date, used for quiet hours
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns the offset from midnight in minutes
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Preference holds one user's notification preferences. Exactly one record
// exists per user; an absent record means DefaultPreference.
type Preference struct {
	UserID            string         `json:"user_id" db:"user_id"`
	EmailEnabled      bool           `json:"email_enabled" db:"email_enabled"`
	EmailFrequency    EmailFrequency `json:"email_frequency" db:"email_frequency"`
	PushEnabled       bool           `json:"push_enabled" db:"push_enabled"`
	InAppEnabled      bool           `json:"in_app_enabled" db:"in_app_enabled"`
	EmailTypes        map[Type]bool  `json:"email_types" db:"email_types"`
	PushTypes         map[Type]bool  `json:"push_types" db:"push_types"`
	InAppTypes        map[Type]bool  `json:"in_app_types" db:"in_app_types"`
	QuietHoursEnabled bool           `json:"quiet_hours_enabled" db:"quiet_hours_enabled"`
	QuietStart        *TimeOfDay     `json:"quiet_start,omitempty" db:"quiet_start"`
	QuietEnd          *TimeOfDay     `json:"quiet_end,omitempty" db:"quiet_end"`
	DoNotDisturb      bool           `json:"do_not_disturb" db:"do_not_disturb"`
	DoNotDisturbUntil *time.Time     `json:"do_not_disturb_until,omitempty" db:"do_not_disturb_until"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// ChannelEnabled reports the channel master switch for this preference record
func (p *Preference) ChannelEnabled(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelInApp:
		return p.InAppEnabled
	}
	return false
}

// typeMap returns the per-channel type-allow map
func (p *Preference) typeMap(channel Channel) map[Type]bool {
	switch channel {
	case ChannelEmail:
		return p.EmailTypes
	case ChannelPush:
		return p.PushTypes
	case ChannelInApp:
		return p.InAppTypes
	}
	return nil
}

// History tracks delivery state for one (notification, channel) pair
type History struct {
	ID             string         `json:"id" db:"id"`
	NotificationID string         `json:"notification_id" db:"notification_id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Channel        Channel        `json:"channel" db:"channel"`
	Status         HistoryStatus  `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt         *time.Time     `json:"read_at,omitempty" db:"read_at"`
	ClickedAt      *time.Time     `json:"clicked_at,omitempty" db:"clicked_at"`
	DismissedAt    *time.Time     `json:"dismissed_at,omitempty" db:"dismissed_at"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
}

// Advance moves the history row to the given status, stamping the matching
// timestamp. Transitions only ever move forward; failed is terminal and may
// be entered from any non-terminal state. Re-applying the current status is
// a no-op.
func (h *History) Advance(status HistoryStatus, now time.Time) error {
	if h.Status == status {
		return nil
	}
	if h.Status == HistoryFailed {
		return ErrInvalidState
	}
	if status != HistoryFailed {
		cur, ok := historyRank[h.Status]
		next, ok2 := historyRank[status]
		if !ok || !ok2 || next <= cur {
			return ErrInvalidState
		}
	}
	h.Status = status
	switch status {
	case HistorySent:
		h.SentAt = &now
	case HistoryDelivered:
		h.DeliveredAt = &now
	case HistoryRead:
		h.ReadAt = &now
	case HistoryClicked:
		h.ClickedAt = &now
	case HistoryDismissed:
		h.DismissedAt = &now
	}
	return nil
}

// Batch tracks a bulk notification send from one template to many recipients
type Batch struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description,omitempty" db:"description"`
	TemplateID     string         `json:"template_id,omitempty" db:"template_id"`
	Context        map[string]any `json:"context,omitempty" db:"context"`
	RecipientIDs   []string       `json:"recipient_ids" db:"recipient_ids"`
	TotalCount     int            `json:"total_count" db:"total_count"`
	SentCount      int            `json:"sent_count" db:"sent_count"`
	DeliveredCount int            `json:"delivered_count" db:"delivered_count"`
	ReadCount      int            `json:"read_count" db:"read_count"`
	FailedCount    int            `json:"failed_count" db:"failed_count"`
	Status         BatchStatus    `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}
