package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/database"
)

// Filter narrows a notification listing. Nil pointer fields are ignored.
type Filter struct {
	Read     *bool
	Archived *bool
	Type     Type
	Search   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Store is the durable notification record store backed by PostgreSQL
type Store struct {
	db     *database.PostgresDB
	redis  *database.RedisClient
	logger *zap.Logger
}

// NewStore creates a new notification store
func NewStore(db *database.PostgresDB, redis *database.RedisClient, logger *zap.Logger) *Store {
	return &Store{db: db, redis: redis, logger: logger}
}

// Create inserts a new notification record. Dispatch is the caller's
// responsibility; the store only persists.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	data, err := json.Marshal(nonNilMap(n.Data))
	if err != nil {
		return &ValidationError{Field: "data", Reason: "payload is not serializable"}
	}

	query := `
		INSERT INTO notifications
			(id, user_id, title, message, type, data, is_read, read_at, is_priority,
			 is_archived, action_required, target_url, source, created_at,
			 expires_at, scheduled_at, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, data, n.IsRead, n.ReadAt,
		n.IsPriority, n.IsArchived, n.ActionRequired, n.TargetURL, n.Source,
		n.CreatedAt, n.ExpiresAt, n.ScheduledAt, n.DispatchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	s.invalidateUnread(ctx, n.UserID)
	return nil
}

const notificationColumns = `
	id, user_id, title, message, type, data, is_read, read_at, is_priority,
	is_archived, action_required, target_url, source, created_at,
	expires_at, scheduled_at, dispatched_at
`

// GetByID retrieves a notification by ID
func (s *Store) GetByID(ctx context.Context, id string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// List returns a user's notifications newest-first, applying the filter
func (s *Store) List(ctx context.Context, userID string, filter Filter) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []any{userID}

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if filter.Read != nil {
		add("is_read = $%d", *filter.Read)
	}
	if filter.Archived != nil {
		add("is_archived = $%d", *filter.Archived)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (title ILIKE $%d OR message ILIKE $%d)", len(args), len(args))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var result []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// UnreadCount returns the user's unread, unarchived notification count,
// served from Redis when the cache is warm
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if s.redis != nil {
		if count, err := s.redis.GetUnreadCount(ctx, userID); err == nil {
			return count, nil
		}
	}

	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false AND is_archived = false`
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	if s.redis != nil {
		s.redis.CacheUnreadCount(ctx, userID, count)
	}
	return count, nil
}

// MarkRead sets the read flag and timestamp. Marking an already-read
// notification is a no-op and keeps the original timestamp.
func (s *Store) MarkRead(ctx context.Context, id string) (*Notification, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.MarkRead(time.Now()) {
		return n, nil
	}

	query := `UPDATE notifications SET is_read = true, read_at = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, n.ReadAt); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	s.invalidateUnread(ctx, n.UserID)
	return n, nil
}

// MarkUnread clears the read flag and timestamp
func (s *Store) MarkUnread(ctx context.Context, id string) (*Notification, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.MarkUnread() {
		return n, nil
	}

	query := `UPDATE notifications SET is_read = false, read_at = NULL WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("failed to mark notification unread: %w", err)
	}
	s.invalidateUnread(ctx, n.UserID)
	return n, nil
}

// MarkAllRead marks every unread notification for the user as read and
// returns the number of rows updated
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET is_read = true, read_at = NOW() WHERE user_id = $1 AND is_read = false`
	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	s.invalidateUnread(ctx, userID)
	affected, _ := res.RowsAffected()
	return affected, nil
}

// SetArchived flips the archived flag, independent of read state
func (s *Store) SetArchived(ctx context.Context, id string, archived bool) error {
	query := `UPDATE notifications SET is_archived = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, archived)
	if err != nil {
		return fmt.Errorf("failed to update archived flag: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a notification owned by the given user
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// DueScheduled returns notifications whose scheduled time has passed and
// which have not been dispatched yet
func (s *Store) DueScheduled(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE scheduled_at IS NOT NULL AND scheduled_at <= $1 AND dispatched_at IS NULL
		ORDER BY scheduled_at ASC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled notifications: %w", err)
	}
	defer rows.Close()

	var result []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkDispatched stamps the dispatch time so the scheduled check does not
// pick the notification up again
func (s *Store) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE notifications SET dispatched_at = $2 WHERE id = $1 AND dispatched_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark notification dispatched: %w", err)
	}
	return nil
}

// DeleteExpired removes notifications past their expiry time and returns the
// number of rows removed. Safe to run repeatedly.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// DeleteOldArchived removes archived notifications created before the cutoff
func (s *Store) DeleteOldArchived(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE is_archived = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old archived notifications: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *Store) invalidateUnread(ctx context.Context, userID string) {
	if s.redis != nil {
		if err := s.redis.InvalidateUnreadCount(ctx, userID); err != nil {
			s.logger.Debug("Failed to invalidate unread count cache",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var data []byte
	var readAt, expiresAt, scheduledAt, dispatchedAt sql.NullTime
	var targetURL, source sql.NullString

	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &data, &n.IsRead, &readAt,
		&n.IsPriority, &n.IsArchived, &n.ActionRequired, &targetURL, &source,
		&n.CreatedAt, &expiresAt, &scheduledAt, &dispatchedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		json.Unmarshal(data, &n.Data)
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if expiresAt.Valid {
		n.ExpiresAt = &expiresAt.Time
	}
	if scheduledAt.Valid {
		n.ScheduledAt = &scheduledAt.Time
	}
	if dispatchedAt.Valid {
		n.DispatchedAt = &dispatchedAt.Time
	}
	n.TargetURL = targetURL.String
	n.Source = source.String
	return &n, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
