package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/database"
)

// CreateRequest carries the fields an event producer supplies when creating
// a notification
type CreateRequest struct {
	UserID         string
	Title          string
	Message        string
	Type           Type
	Data           map[string]any
	IsPriority     bool
	ActionRequired bool
	TargetURL      string
	Source         string
	ExpiresAt      *time.Time
	ScheduledAt    *time.Time
}

// Service is the notification core facade: record CRUD, template-driven
// creation, and the dispatch hand-off
type Service struct {
	store      *Store
	templates  *TemplateStore
	prefs      *PreferenceStore
	history    *HistoryStore
	dispatcher *Dispatcher
	redis      *database.RedisClient
	logger     *zap.Logger
}

// NewService creates a new notification service
func NewService(
	store *Store,
	templates *TemplateStore,
	prefs *PreferenceStore,
	history *HistoryStore,
	dispatcher *Dispatcher,
	redis *database.RedisClient,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		templates:  templates,
		prefs:      prefs,
		history:    history,
		dispatcher: dispatcher,
		redis:      redis,
		logger:     logger,
	}
}

// Create persists a notification and dispatches it. Creation succeeds or
// fails atomically and independently of delivery: channel failures surface
// only through history and analytics.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	if req.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.ExpiresAt != nil && req.ScheduledAt != nil && req.ExpiresAt.Before(*req.ScheduledAt) {
		return nil, &ValidationError{Field: "expires_at", Reason: "must not precede scheduled_at"}
	}

	n := &Notification{
		UserID:         req.UserID,
		Title:          req.Title,
		Message:        req.Message,
		Type:           req.Type,
		Data:           req.Data,
		IsPriority:     req.IsPriority,
		ActionRequired: req.ActionRequired,
		TargetURL:      req.TargetURL,
		Source:         req.Source,
		ExpiresAt:      req.ExpiresAt,
		ScheduledAt:    req.ScheduledAt,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	s.dispatch(ctx, n)
	return n, nil
}

// CreateFromTemplate renders the named template with the context and creates
// a notification from the result. Usage tracking is bumped only on success.
func (s *Service) CreateFromTemplate(ctx context.Context, userID, templateName string, renderCtx map[string]any) (*Notification, error) {
	tpl, err := s.templates.GetByName(ctx, templateName)
	if err != nil {
		return nil, err
	}

	rendered, err := RenderTemplate(tpl, renderCtx)
	if err != nil {
		return nil, err
	}

	n, err := s.Create(ctx, CreateRequest{
		UserID:         userID,
		Title:          rendered.Title,
		Message:        rendered.Message,
		Type:           rendered.Type,
		IsPriority:     rendered.IsPriority,
		ActionRequired: rendered.ActionRequired,
		TargetURL:      rendered.TargetURL,
		Source:         fmt.Sprintf("template:%s", tpl.Name),
	})
	if err != nil {
		return nil, err
	}

	if err := s.templates.MarkUsed(ctx, tpl.ID); err != nil {
		s.logger.Warn("Failed to record template usage",
			zap.String("template", tpl.Name), zap.Error(err))
	}
	return n, nil
}

// Get retrieves a notification owned by the user
func (s *Service) Get(ctx context.Context, userID, id string) (*Notification, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, ErrNotFound
	}
	return n, nil
}

// List returns the user's notifications newest-first
func (s *Service) List(ctx context.Context, userID string, filter Filter) ([]*Notification, error) {
	return s.store.List(ctx, userID, filter)
}

// UnreadCount returns the user's unread notification count
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead marks one notification as read, advances the in-app history row
// and pushes a read event to the user's live sessions
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wasRead := n.IsRead

	n, err = s.store.MarkRead(ctx, id)
	if err != nil {
		return nil, err
	}
	if wasRead {
		return n, nil
	}

	if err := s.history.Advance(ctx, id, ChannelInApp, HistoryRead); err != nil && err != ErrNotFound {
		s.logger.Debug("Failed to advance history to read",
			zap.String("id", id), zap.Error(err))
	}
	s.publishEvent(ctx, userID, map[string]any{
		"event":     "read",
		"id":        id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return n, nil
}

// MarkClicked advances the in-app history row to clicked when the user
// follows the notification's target link
func (s *Service) MarkClicked(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.history.Advance(ctx, id, ChannelInApp, HistoryClicked); err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

// MarkUnread clears the read state of one notification
func (s *Service) MarkUnread(ctx context.Context, userID, id string) (*Notification, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.MarkUnread(ctx, id)
}

// MarkAllRead marks all of the user's notifications as read
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.publishEvent(ctx, userID, map[string]any{
			"event":     "read_all",
			"count":     count,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
	return count, nil
}

// Archive archives a notification, independent of its read state
func (s *Service) Archive(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.SetArchived(ctx, id, true)
}

// Unarchive restores an archived notification
func (s *Service) Unarchive(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.SetArchived(ctx, id, false)
}

// Dismiss records a dismissed history row without touching the read flag
func (s *Service) Dismiss(ctx context.Context, userID, id string) error {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.history.Record(ctx, &History{
		NotificationID: n.ID,
		UserID:         userID,
		Channel:        ChannelInApp,
		Status:         HistoryDismissed,
		DismissedAt:    &now,
	})
}

// Delete removes a notification owned by the user
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}

// History lists the delivery ledger for one notification
func (s *Service) History(ctx context.Context, userID, id string) ([]*History, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.history.ListByNotification(ctx, id)
}

// DispatchDue dispatches scheduled notifications whose time has come and
// returns the number dispatched
func (s *Service) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueScheduled(ctx, now, 500)
	if err != nil {
		return 0, err
	}
	for _, n := range due {
		s.dispatcher.Dispatch(ctx, n)
		if err := s.store.MarkDispatched(ctx, n.ID, now); err != nil {
			s.logger.Error("Failed to stamp dispatch time",
				zap.String("id", n.ID), zap.Error(err))
		}
	}
	return len(due), nil
}

// dispatch hands a freshly created notification to the dispatcher and stamps
// dispatched_at unless delivery was deferred to the scheduled check
func (s *Service) dispatch(ctx context.Context, n *Notification) {
	_, deferred := s.dispatcher.Dispatch(ctx, n)
	if deferred {
		return
	}
	now := time.Now()
	if err := s.store.MarkDispatched(ctx, n.ID, now); err != nil {
		s.logger.Error("Failed to stamp dispatch time", zap.String("id", n.ID), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, userID string, event map[string]any) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.redis.PublishToUser(ctx, userID, payload); err != nil {
		s.logger.Debug("Failed to publish live event",
			zap.String("user_id", userID), zap.Error(err))
	}
}
