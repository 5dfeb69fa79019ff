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
	"github.com/prism-platform/notification-service/internal/users"
)

// BatchStore persists notification batches
type BatchStore struct {
	db *database.PostgresDB
}

// NewBatchStore creates a new batch store
func NewBatchStore(db *database.PostgresDB) *BatchStore {
	return &BatchStore{db: db}
}

const batchColumns = `
	id, name, description, template_id, context, recipient_ids,
	total_count, sent_count, delivered_count, read_count, failed_count,
	status, created_at, started_at, completed_at
`

// Create inserts a pending batch. total_count is fixed to the recipient
// list length at creation time.
func (s *BatchStore) Create(ctx context.Context, b *Batch) error {
	if b.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(b.RecipientIDs) == 0 {
		return &ValidationError{Field: "recipient_ids", Reason: "must not be empty"}
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = BatchPending
	b.TotalCount = len(b.RecipientIDs)
	b.CreatedAt = time.Now()

	contextJSON, err := json.Marshal(nonNilMap(b.Context))
	if err != nil {
		return &ValidationError{Field: "context", Reason: "payload is not serializable"}
	}
	recipients, _ := json.Marshal(b.RecipientIDs)

	query := `
		INSERT INTO notification_batches
			(id, name, description, template_id, context, recipient_ids,
			 total_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var templateID any
	if b.TemplateID != "" {
		templateID = b.TemplateID
	}
	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Description, templateID, contextJSON, recipients,
		b.TotalCount, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by ID
func (s *BatchStore) GetByID(ctx context.Context, id string) (*Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM notification_batches WHERE id = $1`
	b, err := scanBatch(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

// Start transitions pending → sending. The conditional update is the guard
// against double processing: re-running an already started or finished batch
// returns ErrInvalidState.
func (s *BatchStore) Start(ctx context.Context, id string) error {
	query := `UPDATE notification_batches SET status = $2, started_at = NOW() WHERE id = $1 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, id, BatchSending, BatchPending)
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// Complete transitions sending → completed
func (s *BatchStore) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, BatchCompleted)
}

// Fail marks the batch failed; reserved for systemic aborts
func (s *BatchStore) Fail(ctx context.Context, id string) error {
	return s.finish(ctx, id, BatchFailed)
}

func (s *BatchStore) finish(ctx context.Context, id string, status BatchStatus) error {
	query := `UPDATE notification_batches SET status = $2, completed_at = NOW() WHERE id = $1 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, id, status, BatchSending)
	if err != nil {
		return fmt.Errorf("failed to finish batch: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// IncrementSent bumps sent_count by one
func (s *BatchStore) IncrementSent(ctx context.Context, id string) error {
	return s.increment(ctx, id, "sent_count")
}

// IncrementFailed bumps failed_count by one
func (s *BatchStore) IncrementFailed(ctx context.Context, id string) error {
	return s.increment(ctx, id, "failed_count")
}

func (s *BatchStore) increment(ctx context.Context, id, column string) error {
	query := fmt.Sprintf(`UPDATE notification_batches SET %s = %s + 1 WHERE id = $1`, column, column)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return nil
}

func scanBatch(row rowScanner) (*Batch, error) {
	var b Batch
	var description sql.NullString
	var templateID sql.NullString
	var contextJSON, recipients []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.Name, &description, &templateID, &contextJSON, &recipients,
		&b.TotalCount, &b.SentCount, &b.DeliveredCount, &b.ReadCount, &b.FailedCount,
		&b.Status, &b.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Description = description.String
	b.TemplateID = templateID.String
	if len(contextJSON) > 0 {
		json.Unmarshal(contextJSON, &b.Context)
	}
	if len(recipients) > 0 {
		json.Unmarshal(recipients, &b.RecipientIDs)
	}
	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

// BatchRepository is the slice of batch persistence the coordinator needs
type BatchRepository interface {
	GetByID(ctx context.Context, id string) (*Batch, error)
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string) error
	IncrementSent(ctx context.Context, id string) error
	IncrementFailed(ctx context.Context, id string) error
}

// TemplateSource resolves templates for batch expansion
type TemplateSource interface {
	GetByID(ctx context.Context, id string) (*Template, error)
	MarkUsed(ctx context.Context, id string) error
}

// Creator creates and dispatches one notification
type Creator interface {
	Create(ctx context.Context, req CreateRequest) (*Notification, error)
}

// BatchSummary reports the aggregate result of processing a batch
type BatchSummary struct {
	BatchID     string      `json:"batch_id"`
	TotalCount  int         `json:"total_count"`
	SentCount   int         `json:"sent_count"`
	FailedCount int         `json:"failed_count"`
	Status      BatchStatus `json:"status"`
}

// Coordinator expands a batch into per-recipient notifications and drives
// each through the normal dispatch path
type Coordinator struct {
	batches   BatchRepository
	templates TemplateSource
	directory users.Directory
	creator   Creator
	logger    *zap.Logger
}

// NewCoordinator creates a new batch coordinator
func NewCoordinator(batches BatchRepository, templates TemplateSource, directory users.Directory, creator Creator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		batches:   batches,
		templates: templates,
		directory: directory,
		creator:   creator,
		logger:    logger,
	}
}

// ProcessBatch runs one batch end to end. Only pending batches are accepted;
// re-processing is rejected with ErrInvalidState so duplicate sends cannot
// happen. Individual recipient failures bump failed_count and the batch
// still completes; the failed terminal status is reserved for systemic
// aborts such as an unloadable template.
func (c *Coordinator) ProcessBatch(ctx context.Context, batchID string) (*BatchSummary, error) {
	batch, err := c.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchPending {
		return nil, ErrInvalidState
	}
	if err := c.batches.Start(ctx, batchID); err != nil {
		return nil, err
	}

	if batch.TemplateID == "" {
		c.batches.Fail(ctx, batchID)
		return nil, &ValidationError{Field: "template_id", Reason: "batch has no template"}
	}
	tpl, err := c.templates.GetByID(ctx, batch.TemplateID)
	if err != nil {
		c.batches.Fail(ctx, batchID)
		return nil, fmt.Errorf("failed to load batch template: %w", err)
	}

	summary := &BatchSummary{BatchID: batchID, TotalCount: batch.TotalCount}
	for _, recipientID := range batch.RecipientIDs {
		if err := c.processRecipient(ctx, batch, tpl, recipientID); err != nil {
			c.logger.Warn("Batch recipient failed",
				zap.String("batch_id", batchID),
				zap.String("recipient_id", recipientID),
				zap.Error(err))
			summary.FailedCount++
			c.batches.IncrementFailed(ctx, batchID)
			continue
		}
		summary.SentCount++
		c.batches.IncrementSent(ctx, batchID)
	}

	if err := c.batches.Complete(ctx, batchID); err != nil {
		return nil, err
	}
	summary.Status = BatchCompleted

	c.logger.Info("Batch processed",
		zap.String("batch_id", batchID),
		zap.Int("total", summary.TotalCount),
		zap.Int("sent", summary.SentCount),
		zap.Int("failed", summary.FailedCount),
	)
	return summary, nil
}

func (c *Coordinator) processRecipient(ctx context.Context, batch *Batch, tpl *Template, recipientID string) error {
	user, err := c.directory.GetByID(ctx, recipientID)
	if err != nil {
		return err
	}

	renderCtx := make(map[string]any, len(batch.Context)+2)
	for k, v := range batch.Context {
		renderCtx[k] = v
	}
	renderCtx["user_name"] = user.DisplayName()
	renderCtx["user_email"] = user.Email

	rendered, err := RenderTemplate(tpl, renderCtx)
	if err != nil {
		return err
	}

	if _, err := c.creator.Create(ctx, CreateRequest{
		UserID:         user.ID,
		Title:          rendered.Title,
		Message:        rendered.Message,
		Type:           rendered.Type,
		IsPriority:     rendered.IsPriority,
		ActionRequired: rendered.ActionRequired,
		TargetURL:      rendered.TargetURL,
		Source:         fmt.Sprintf("batch:%s", batch.ID),
		Data:           map[string]any{"batch_id": batch.ID},
	}); err != nil {
		return err
	}

	if err := c.templates.MarkUsed(ctx, tpl.ID); err != nil {
		c.logger.Debug("Failed to record template usage",
			zap.String("template", tpl.Name), zap.Error(err))
	}
	return nil
}
