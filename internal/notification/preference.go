package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/database"
)

// DefaultPreference returns the preferences applied when a user has no
// stored record: opted in to every channel and every type.
func DefaultPreference(userID string) *Preference {
	now := time.Now()
	return &Preference{
		UserID:         userID,
		EmailEnabled:   true,
		EmailFrequency: FrequencyImmediate,
		PushEnabled:    true,
		InAppEnabled:   true,
		EmailTypes:     map[Type]bool{},
		PushTypes:      map[Type]bool{},
		InAppTypes:     map[Type]bool{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ShouldDeliver decides whether a notification of the given type may be
// delivered on the given channel at the given time. Checks run in order:
// do-not-disturb overrides everything, then quiet hours, then the channel's
// type-allow map (absent entries default to allowed). The channel master
// switch is deliberately not consulted here; callers check ChannelEnabled
// before asking.
func ShouldDeliver(pref *Preference, notifType Type, channel Channel, at time.Time) bool {
	if pref.DoNotDisturb {
		if pref.DoNotDisturbUntil == nil || at.Before(*pref.DoNotDisturbUntil) {
			return false
		}
	}

	if pref.QuietHoursEnabled && pref.QuietStart != nil && pref.QuietEnd != nil {
		t := at.Hour()*60 + at.Minute()
		start := pref.QuietStart.Minutes()
		end := pref.QuietEnd.Minutes()
		if start <= end {
			if start <= t && t <= end {
				return false
			}
		} else {
			// Overnight window, e.g. 22:00-06:00
			if t >= start || t <= end {
				return false
			}
		}
	}

	if allowed, ok := pref.typeMap(channel)[notifType]; ok {
		return allowed
	}
	return true
}

// PreferenceStore persists per-user notification preferences with a Redis
// read-through cache in front of PostgreSQL
type PreferenceStore struct {
	db     *database.PostgresDB
	redis  *database.RedisClient
	logger *zap.Logger
}

// NewPreferenceStore creates a new preference store
func NewPreferenceStore(db *database.PostgresDB, redis *database.RedisClient, logger *zap.Logger) *PreferenceStore {
	return &PreferenceStore{db: db, redis: redis, logger: logger}
}

// Get returns the user's preferences, falling back to DefaultPreference when
// no record exists. A preference lookup never fails a dispatch: storage
// errors are logged and defaults returned.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*Preference, error) {
	if s.redis != nil {
		if cached, err := s.redis.GetUserPreferences(ctx, userID); err == nil {
			var pref Preference
			if err := json.Unmarshal([]byte(cached), &pref); err == nil {
				return &pref, nil
			}
		}
	}

	query := `
		SELECT user_id, email_enabled, email_frequency, push_enabled, in_app_enabled,
		       email_types, push_types, in_app_types,
		       quiet_hours_enabled, quiet_start, quiet_end,
		       do_not_disturb, do_not_disturb_until, created_at, updated_at
		FROM notification_preferences WHERE user_id = $1
	`

	var pref Preference
	var emailTypes, pushTypes, inAppTypes []byte
	var quietStart, quietEnd sql.NullString
	var dndUntil sql.NullTime

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID, &pref.EmailEnabled, &pref.EmailFrequency, &pref.PushEnabled, &pref.InAppEnabled,
		&emailTypes, &pushTypes, &inAppTypes,
		&pref.QuietHoursEnabled, &quietStart, &quietEnd,
		&pref.DoNotDisturb, &dndUntil, &pref.CreatedAt, &pref.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefaultPreference(userID), nil
		}
		s.logger.Warn("Preference lookup failed, using defaults",
			zap.String("user_id", userID), zap.Error(err))
		return DefaultPreference(userID), nil
	}

	pref.EmailTypes = unmarshalTypeMap(emailTypes)
	pref.PushTypes = unmarshalTypeMap(pushTypes)
	pref.InAppTypes = unmarshalTypeMap(inAppTypes)
	if quietStart.Valid {
		if tod, err := ParseTimeOfDay(quietStart.String); err == nil {
			pref.QuietStart = &tod
		}
	}
	if quietEnd.Valid {
		if tod, err := ParseTimeOfDay(quietEnd.String); err == nil {
			pref.QuietEnd = &tod
		}
	}
	if dndUntil.Valid {
		pref.DoNotDisturbUntil = &dndUntil.Time
	}

	if s.redis != nil {
		if data, err := json.Marshal(&pref); err == nil {
			s.redis.CacheUserPreferences(ctx, userID, data)
		}
	}

	return &pref, nil
}

// Upsert writes the user's preference record and invalidates the cache
func (s *PreferenceStore) Upsert(ctx context.Context, pref *Preference) error {
	if pref.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	emailTypes, _ := json.Marshal(pref.EmailTypes)
	pushTypes, _ := json.Marshal(pref.PushTypes)
	inAppTypes, _ := json.Marshal(pref.InAppTypes)

	var quietStart, quietEnd any
	if pref.QuietStart != nil {
		quietStart = pref.QuietStart.String()
	}
	if pref.QuietEnd != nil {
		quietEnd = pref.QuietEnd.String()
	}

	now := time.Now()
	query := `
		INSERT INTO notification_preferences
			(user_id, email_enabled, email_frequency, push_enabled, in_app_enabled,
			 email_types, push_types, in_app_types,
			 quiet_hours_enabled, quiet_start, quiet_end,
			 do_not_disturb, do_not_disturb_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			email_frequency = EXCLUDED.email_frequency,
			push_enabled = EXCLUDED.push_enabled,
			in_app_enabled = EXCLUDED.in_app_enabled,
			email_types = EXCLUDED.email_types,
			push_types = EXCLUDED.push_types,
			in_app_types = EXCLUDED.in_app_types,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			do_not_disturb = EXCLUDED.do_not_disturb,
			do_not_disturb_until = EXCLUDED.do_not_disturb_until,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		pref.UserID, pref.EmailEnabled, pref.EmailFrequency, pref.PushEnabled, pref.InAppEnabled,
		emailTypes, pushTypes, inAppTypes,
		pref.QuietHoursEnabled, quietStart, quietEnd,
		pref.DoNotDisturb, pref.DoNotDisturbUntil, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	if s.redis != nil {
		s.redis.InvalidateUserPreferences(ctx, pref.UserID)
	}
	return nil
}

// EnsureDefaults creates the default preference record for a new user if one
// does not already exist
func (s *PreferenceStore) EnsureDefaults(ctx context.Context, userID string) error {
	query := `
		INSERT INTO notification_preferences
			(user_id, email_enabled, email_frequency, push_enabled, in_app_enabled,
			 email_types, push_types, in_app_types,
			 quiet_hours_enabled, do_not_disturb, created_at, updated_at)
		VALUES ($1, true, 'immediate', true, true, '{}', '{}', '{}', false, false, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create default preferences: %w", err)
	}
	return nil
}

// ParseTimeOfDay parses an "HH:MM" clock time
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(value, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", value)
	}
	return tod, nil
}

// String formats the time of day as "HH:MM"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func unmarshalTypeMap(data []byte) map[Type]bool {
	m := make(map[Type]bool)
	if len(data) > 0 {
		json.Unmarshal(data, &m)
	}
	return m
}
