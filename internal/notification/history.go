package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prism-platform/notification-service/internal/database"
)

// HistoryStore persists the per-(notification, channel) delivery ledger
type HistoryStore struct {
	db *database.PostgresDB
}

// NewHistoryStore creates a new history store
func NewHistoryStore(db *database.PostgresDB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record inserts a new history row. The initial status and any stage
// timestamps already set on the entry are written as-is.
func (s *HistoryStore) Record(ctx context.Context, h *History) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	metadata, err := json.Marshal(nonNilMap(h.Metadata))
	if err != nil {
		return &ValidationError{Field: "metadata", Reason: "payload is not serializable"}
	}

	query := `
		INSERT INTO notification_history
			(id, notification_id, user_id, channel, status, created_at,
			 sent_at, delivered_at, read_at, clicked_at, dismissed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		h.ID, h.NotificationID, h.UserID, h.Channel, h.Status, h.CreatedAt,
		h.SentAt, h.DeliveredAt, h.ReadAt, h.ClickedAt, h.DismissedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

// Advance moves the (notification, channel) row to the given status,
// enforcing forward-only transitions. Missing rows return ErrNotFound so the
// caller can decide whether to create one instead.
func (s *HistoryStore) Advance(ctx context.Context, notificationID string, channel Channel, status HistoryStatus) error {
	h, err := s.getByChannel(ctx, notificationID, channel)
	if err != nil {
		return err
	}
	if err := h.Advance(status, time.Now()); err != nil {
		return err
	}

	query := `
		UPDATE notification_history
		SET status = $2, sent_at = $3, delivered_at = $4, read_at = $5, clicked_at = $6, dismissed_at = $7
		WHERE id = $1
	`
	_, err = s.db.ExecContext(ctx, query,
		h.ID, h.Status, h.SentAt, h.DeliveredAt, h.ReadAt, h.ClickedAt, h.DismissedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to advance history: %w", err)
	}
	return nil
}

// ListByNotification returns all delivery rows for a notification
func (s *HistoryStore) ListByNotification(ctx context.Context, notificationID string) ([]*History, error) {
	query := `
		SELECT id, notification_id, user_id, channel, status, created_at,
		       sent_at, delivered_at, read_at, clicked_at, dismissed_at, metadata
		FROM notification_history
		WHERE notification_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var result []*History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// DeleteOlderThan removes history rows created before the cutoff and
// returns the number of rows removed. Safe to run repeatedly.
func (s *HistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old history: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *HistoryStore) getByChannel(ctx context.Context, notificationID string, channel Channel) (*History, error) {
	query := `
		SELECT id, notification_id, user_id, channel, status, created_at,
		       sent_at, delivered_at, read_at, clicked_at, dismissed_at, metadata
		FROM notification_history
		WHERE notification_id = $1 AND channel = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	h, err := scanHistory(s.db.QueryRowContext(ctx, query, notificationID, channel))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return h, nil
}

func scanHistory(row rowScanner) (*History, error) {
	var h History
	var metadata []byte
	var sentAt, deliveredAt, readAt, clickedAt, dismissedAt sql.NullTime

	err := row.Scan(
		&h.ID, &h.NotificationID, &h.UserID, &h.Channel, &h.Status, &h.CreatedAt,
		&sentAt, &deliveredAt, &readAt, &clickedAt, &dismissedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		json.Unmarshal(metadata, &h.Metadata)
	}
	if sentAt.Valid {
		h.SentAt = &sentAt.Time
	}
	if deliveredAt.Valid {
		h.DeliveredAt = &deliveredAt.Time
	}
	if readAt.Valid {
		h.ReadAt = &readAt.Time
	}
	if clickedAt.Valid {
		h.ClickedAt = &clickedAt.Time
	}
	if dismissedAt.Valid {
		h.DismissedAt = &dismissedAt.Time
	}
	return &h, nil
}
