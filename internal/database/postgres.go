package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/prism-platform/notification-service/internal/config"
)

// PostgresDB wraps sql.DB for PostgreSQL operations
type PostgresDB struct {
	*sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.DatabaseConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// InitSchema initializes the database schema
func (db *PostgresDB) InitSchema() error {
	schema := `
	-- Users table (local mirror of the platform user directory)
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(150) UNIQUE NOT NULL,
		full_name VARCHAR(255),
		push_token VARCHAR(500),
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Notifications table
	CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(20) NOT NULL DEFAULT 'info',
		data JSONB NOT NULL DEFAULT '{}',
		is_read BOOLEAN NOT NULL DEFAULT false,
		read_at TIMESTAMP,
		is_priority BOOLEAN NOT NULL DEFAULT false,
		is_archived BOOLEAN NOT NULL DEFAULT false,
		action_required BOOLEAN NOT NULL DEFAULT false,
		target_url VARCHAR(500),
		source VARCHAR(100),
		created_at TIMESTAMP DEFAULT NOW(),
		expires_at TIMESTAMP,
		scheduled_at TIMESTAMP,
		dispatched_at TIMESTAMP
	);

	-- Notification templates table
	CREATE TABLE IF NOT EXISTS notification_templates (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(100) UNIQUE NOT NULL,
		title_template VARCHAR(200) NOT NULL,
		message_template TEXT NOT NULL,
		type VARCHAR(20) NOT NULL DEFAULT 'info',
		is_priority BOOLEAN NOT NULL DEFAULT false,
		action_required BOOLEAN NOT NULL DEFAULT false,
		default_target_url VARCHAR(500),
		variables JSONB NOT NULL DEFAULT '{}',
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used TIMESTAMP,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Per-user notification preferences, one row per user
	CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		email_enabled BOOLEAN NOT NULL DEFAULT true,
		email_frequency VARCHAR(20) NOT NULL DEFAULT 'immediate',
		push_enabled BOOLEAN NOT NULL DEFAULT true,
		in_app_enabled BOOLEAN NOT NULL DEFAULT true,
		email_types JSONB NOT NULL DEFAULT '{}',
		push_types JSONB NOT NULL DEFAULT '{}',
		in_app_types JSONB NOT NULL DEFAULT '{}',
		quiet_hours_enabled BOOLEAN NOT NULL DEFAULT false,
		quiet_start VARCHAR(5),
		quiet_end VARCHAR(5),
		do_not_disturb BOOLEAN NOT NULL DEFAULT false,
		do_not_disturb_until TIMESTAMP,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Delivery-state ledger, one row per (notification, channel)
	CREATE TABLE IF NOT EXISTS notification_history (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		notification_id UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		channel VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMP DEFAULT NOW(),
		sent_at TIMESTAMP,
		delivered_at TIMESTAMP,
		read_at TIMESTAMP,
		clicked_at TIMESTAMP,
		dismissed_at TIMESTAMP,
		metadata JSONB NOT NULL DEFAULT '{}'
	);

	-- Bulk send batches
	CREATE TABLE IF NOT EXISTS notification_batches (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(200) NOT NULL,
		description TEXT,
		template_id UUID REFERENCES notification_templates(id) ON DELETE SET NULL,
		context JSONB NOT NULL DEFAULT '{}',
		recipient_ids JSONB NOT NULL DEFAULT '[]',
		total_count INTEGER NOT NULL DEFAULT 0,
		sent_count INTEGER NOT NULL DEFAULT 0,
		delivered_count INTEGER NOT NULL DEFAULT 0,
		read_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT NOW(),
		started_at TIMESTAMP,
		completed_at TIMESTAMP
	);

	-- Create indexes for better performance
	CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, is_read);
	CREATE INDEX IF NOT EXISTS idx_notifications_type ON notifications(type);
	CREATE INDEX IF NOT EXISTS idx_notifications_expires_at ON notifications(expires_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_scheduled ON notifications(scheduled_at) WHERE dispatched_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_history_notification ON notification_history(notification_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_history_user_status ON notification_history(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_history_channel_status ON notification_history(channel, status);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *PostgresDB) Close() error {
	return db.DB.Close()
}
