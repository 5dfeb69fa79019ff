package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prism-platform/notification-service/internal/database"
)

// ErrNotFound is returned when a user lookup misses
var ErrNotFound = errors.New("user not found")

// User is the notification service's view of a platform account: enough to
// address each delivery channel
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	FullName  string    `json:"full_name,omitempty" db:"full_name"`
	PushToken string    `json:"push_token,omitempty" db:"push_token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the full name when set, otherwise the username
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Directory resolves users for dispatch and batch expansion
type Directory interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Store is the PostgreSQL-backed user directory
type Store struct {
	db *database.PostgresDB
}

// NewStore creates a new user store
func NewStore(db *database.PostgresDB) *Store {
	return &Store{db: db}
}

const userColumns = `id, email, username, full_name, push_token, created_at, updated_at`

// Create inserts a user record
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, username, full_name, push_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.Username, u.FullName, u.PushToken, now); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID resolves a user by ID
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail resolves a user by email address
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

// GetByUsername resolves a user by username
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, username))
}

// SetPushToken records or clears the user's device push token
func (s *Store) SetPushToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET push_token = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("failed to set push token: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	var u User
	var fullName, pushToken sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Username, &fullName, &pushToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.FullName = fullName.String
	u.PushToken = pushToken.String
	return &u, nil
}
