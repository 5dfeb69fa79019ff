package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/users"
)

type fakeBatchRepo struct {
	batch       *Batch
	failCalled  bool
	sentCount   int
	failedCount int
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*Batch, error) {
	if f.batch == nil || f.batch.ID != id {
		return nil, ErrBatchNotFound
	}
	return f.batch, nil
}

func (f *fakeBatchRepo) Start(ctx context.Context, id string) error {
	if f.batch.Status != BatchPending {
		return ErrInvalidState
	}
	f.batch.Status = BatchSending
	return nil
}

func (f *fakeBatchRepo) Complete(ctx context.Context, id string) error {
	if f.batch.Status != BatchSending {
		return ErrInvalidState
	}
	f.batch.Status = BatchCompleted
	return nil
}

func (f *fakeBatchRepo) Fail(ctx context.Context, id string) error {
	f.failCalled = true
	f.batch.Status = BatchFailed
	return nil
}

func (f *fakeBatchRepo) IncrementSent(ctx context.Context, id string) error {
	f.sentCount++
	return nil
}

func (f *fakeBatchRepo) IncrementFailed(ctx context.Context, id string) error {
	f.failedCount++
	return nil
}

type fakeTemplates struct {
	templates map[string]*Template
	used      int
}

func (f *fakeTemplates) GetByID(ctx context.Context, id string) (*Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return tpl, nil
}

func (f *fakeTemplates) MarkUsed(ctx context.Context, id string) error {
	f.used++
	return nil
}

type fakeDirectory struct {
	users map[string]*users.User
}

func (f *fakeDirectory) GetByID(ctx context.Context, id string) (*users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

type fakeCreator struct {
	requests []CreateRequest
	failFor  string
}

func (f *fakeCreator) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	if f.failFor != "" && req.UserID == f.failFor {
		return nil, errors.New("create failed")
	}
	f.requests = append(f.requests, req)
	return &Notification{ID: "created", UserID: req.UserID}, nil
}

func batchFixture() (*fakeBatchRepo, *fakeTemplates, *fakeDirectory, *fakeCreator, *Coordinator) {
	repo := &fakeBatchRepo{
		batch: &Batch{
			ID:           "b1",
			Name:         "reminder wave",
			TemplateID:   "t1",
			Context:      map[string]any{"deadline": "Friday"},
			RecipientIDs: []string{"u1", "u2", "u3"},
			TotalCount:   3,
			Status:       BatchPending,
		},
	}
	templates := &fakeTemplates{templates: map[string]*Template{
		"t1": {
			ID:              "t1",
			Name:            "deadline-reminder",
			TitleTemplate:   "Reminder for {user_name}",
			MessageTemplate: "Your submission is due {deadline}.",
			Type:            TypeDeadline,
		},
	}}
	directory := &fakeDirectory{users: map[string]*users.User{
		"u1": {ID: "u1", Email: "ada@example.com", Username: "ada", FullName: "Ada Lovelace"},
		"u3": {ID: "u3", Email: "grace@example.com", Username: "grace"},
	}}
	creator := &fakeCreator{}
	coordinator := NewCoordinator(repo, templates, directory, creator, zap.NewNop())
	return repo, templates, directory, creator, coordinator
}

func TestProcessBatchCompletesDespiteFailures(t *testing.T) {
	repo, templates, _, creator, coordinator := batchFixture()

	// u2 is not in the directory and fails; the batch still completes
	summary, err := coordinator.ProcessBatch(context.Background(), "b1")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 2, summary.SentCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, BatchCompleted, summary.Status)
	assert.Equal(t, BatchCompleted, repo.batch.Status)
	assert.Equal(t, 2, repo.sentCount)
	assert.Equal(t, 1, repo.failedCount)
	assert.Equal(t, 2, templates.used)

	require.Len(t, creator.requests, 2)
	assert.Equal(t, "Reminder for Ada Lovelace", creator.requests[0].Title)
	assert.Equal(t, "Your submission is due Friday.", creator.requests[0].Message)
	assert.Equal(t, "batch:b1", creator.requests[0].Source)
	// Users without a full name fall back to their username
	assert.Equal(t, "Reminder for grace", creator.requests[1].Title)
}

func TestProcessBatchRejectsReprocessing(t *testing.T) {
	repo, _, _, creator, coordinator := batchFixture()

	_, err := coordinator.ProcessBatch(context.Background(), "b1")
	require.NoError(t, err)
	sentAfterFirst := len(creator.requests)

	_, err = coordinator.ProcessBatch(context.Background(), "b1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, creator.requests, sentAfterFirst)
	assert.Equal(t, BatchCompleted, repo.batch.Status)
}

func TestProcessBatchWithoutTemplateFails(t *testing.T) {
	repo, _, _, _, coordinator := batchFixture()
	repo.batch.TemplateID = ""

	_, err := coordinator.ProcessBatch(context.Background(), "b1")
	require.Error(t, err)

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.True(t, repo.failCalled)
	assert.Equal(t, BatchFailed, repo.batch.Status)
}

func TestProcessBatchUnloadableTemplateFails(t *testing.T) {
	repo, templates, _, _, coordinator := batchFixture()
	delete(templates.templates, "t1")

	_, err := coordinator.ProcessBatch(context.Background(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.True(t, repo.failCalled)
}

func TestProcessBatchUnknownBatch(t *testing.T) {
	_, _, _, _, coordinator := batchFixture()

	_, err := coordinator.ProcessBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestProcessBatchRendersFailureKeepsGoing(t *testing.T) {
	repo, _, directory, creator, coordinator := batchFixture()
	directory.users["u2"] = &users.User{ID: "u2", Email: "x@example.com", Username: "x"}
	creator.failFor = "u1"

	summary, err := coordinator.ProcessBatch(context.Background(), "b1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SentCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, BatchCompleted, repo.batch.Status)
}
