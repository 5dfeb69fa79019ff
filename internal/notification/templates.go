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

// TemplateStore persists notification templates
type TemplateStore struct {
	db *database.PostgresDB
}

// NewTemplateStore creates a new template store
func NewTemplateStore(db *database.PostgresDB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `
	id, name, title_template, message_template, type, is_priority,
	action_required, default_target_url, variables, usage_count, last_used,
	created_at, updated_at
`

// Create validates and inserts a template definition
func (s *TemplateStore) Create(ctx context.Context, tpl *Template) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	if tpl.Type == "" {
		tpl.Type = TypeInfo
	}
	now := time.Now()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	variables, _ := json.Marshal(tpl.Variables)
	query := `
		INSERT INTO notification_templates
			(id, name, title_template, message_template, type, is_priority,
			 action_required, default_target_url, variables, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.TitleTemplate, tpl.MessageTemplate, tpl.Type,
		tpl.IsPriority, tpl.ActionRequired, tpl.DefaultTargetURL, variables, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

// Update validates and rewrites a template definition. The name is part of
// the definition and may change as long as it stays unique.
func (s *TemplateStore) Update(ctx context.Context, tpl *Template) error {
	if err := ValidateTemplate(tpl); err != nil {
		return err
	}
	variables, _ := json.Marshal(tpl.Variables)
	query := `
		UPDATE notification_templates
		SET name = $2, title_template = $3, message_template = $4, type = $5, is_priority = $6,
		    action_required = $7, default_target_url = $8, variables = $9, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.TitleTemplate, tpl.MessageTemplate, tpl.Type,
		tpl.IsPriority, tpl.ActionRequired, tpl.DefaultTargetURL, variables,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// GetByName retrieves a template by its unique name
func (s *TemplateStore) GetByName(ctx context.Context, name string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, name))
}

// GetByID retrieves a template by ID
func (s *TemplateStore) GetByID(ctx context.Context, id string) (*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// List returns all templates ordered by name
func (s *TemplateStore) List(ctx context.Context) ([]*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var result []*Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

// MarkUsed increments the usage counter and stamps last_used. Called only
// when a render actually produced a notification.
func (s *TemplateStore) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE notification_templates SET usage_count = usage_count + 1, last_used = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to record template usage: %w", err)
	}
	return nil
}

func (s *TemplateStore) scanOne(row *sql.Row) (*Template, error) {
	tpl, err := scanTemplate(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func scanTemplate(row rowScanner) (*Template, error) {
	var tpl Template
	var variables []byte
	var defaultTargetURL sql.NullString
	var lastUsed sql.NullTime

	err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.TitleTemplate, &tpl.MessageTemplate, &tpl.Type,
		&tpl.IsPriority, &tpl.ActionRequired, &defaultTargetURL, &variables,
		&tpl.UsageCount, &lastUsed, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tpl.Variables = make(map[string]string)
	if len(variables) > 0 {
		json.Unmarshal(variables, &tpl.Variables)
	}
	tpl.DefaultTargetURL = defaultTargetURL.String
	if lastUsed.Valid {
		tpl.LastUsed = &lastUsed.Time
	}
	return &tpl, nil
}
