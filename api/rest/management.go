package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/queue"
	"github.com/prism-platform/notification-service/internal/users"
)

// Management endpoints: templates, batches, analytics and the user mirror.
// These sit behind the platform's admin gateway.

// TemplateRequest represents the request body for creating or updating a template
type TemplateRequest struct {
	Name             string            `json:"name" validate:"required,max=100"`
	TitleTemplate    string            `json:"title_template" validate:"required,max=200"`
	MessageTemplate  string            `json:"message_template" validate:"required"`
	Type             string            `json:"type" validate:"omitempty,oneof=info warning error success application message deadline system collaboration metrics activity security"`
	IsPriority       bool              `json:"is_priority,omitempty"`
	ActionRequired   bool              `json:"action_required,omitempty"`
	DefaultTargetURL string            `json:"default_target_url,omitempty" validate:"omitempty,max=500"`
	Variables        map[string]string `json:"variables,omitempty"`
}

// CreateTemplate handles POST /templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	if err := h.templates.Create(r.Context(), tpl); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tpl)
}

// UpdateTemplate handles PUT /templates/{id}
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	tpl.ID = mux.Vars(r)["id"]
	if err := h.templates.Update(r.Context(), tpl); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// GetTemplate handles GET /templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// ListTemplates handles GET /templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

func (h *Handler) decodeTemplate(w http.ResponseWriter, r *http.Request) (*notification.Template, bool) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return nil, false
	}

	notifType := notification.Type(req.Type)
	if req.Type == "" {
		notifType = notification.TypeInfo
	}
	return &notification.Template{
		Name:             req.Name,
		TitleTemplate:    req.TitleTemplate,
		MessageTemplate:  req.MessageTemplate,
		Type:             notifType,
		IsPriority:       req.IsPriority,
		ActionRequired:   req.ActionRequired,
		DefaultTargetURL: req.DefaultTargetURL,
		Variables:        req.Variables,
	}, true
}

// BatchRequest represents the request body for creating a batch
type BatchRequest struct {
	Name         string         `json:"name" validate:"required,max=200"`
	Description  string         `json:"description,omitempty"`
	TemplateID   string         `json:"template_id" validate:"required"`
	Context      map[string]any `json:"context,omitempty"`
	RecipientIDs []string       `json:"recipient_ids" validate:"required,min=1"`
}

// CreateBatch handles POST /batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	batch := &notification.Batch{
		Name:         req.Name,
		Description:  req.Description,
		TemplateID:   req.TemplateID,
		Context:      req.Context,
		RecipientIDs: req.RecipientIDs,
	}
	if err := h.batches.Create(r.Context(), batch); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, batch)
}

// GetBatch handles GET /batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

// ProcessBatch handles POST /batches/{id}/process: hands the batch to the
// worker over the batch-job topic. Processing is asynchronous; poll the batch
// for counters and final status.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	batch, err := h.batches.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if batch.Status != notification.BatchPending {
		h.writeErrorResponse(w, "Batch has already been processed", http.StatusConflict)
		return
	}

	job := queue.BatchJob{BatchID: id, EnqueuedAt: time.Now()}
	if err := h.producer.PublishBatch(r.Context(), job); err != nil {
		h.logger.Error("Failed to enqueue batch job", zap.String("batch_id", id), zap.Error(err))
		h.writeErrorResponse(w, "Failed to enqueue batch", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"batch_id": id,
		"status":   "queued",
	})
}

// Analytics handles GET /analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	window := h.window
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			h.writeErrorResponse(w, fmt.Sprintf("invalid window parameter: %q", raw), http.StatusBadRequest)
			return
		}
		window = parsed
	}

	report, err := h.analyzer.Report(r.Context(), window)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// RegisterUserRequest mirrors a platform user into the local directory
type RegisterUserRequest struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=150"`
	FullName string `json:"full_name,omitempty" validate:"omitempty,max=255"`
}

// RegisterUser handles POST /users. New users get default preferences so
// dispatch decisions never miss a record.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	user := &users.User{
		ID:       req.ID,
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.prefs.EnsureDefaults(r.Context(), user.ID); err != nil {
		h.logger.Warn("Failed to create default preferences",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// PushTokenRequest carries a device's FCM registration token
type PushTokenRequest struct {
	Token string `json:"token" validate:"required,max=500"`
}

// SetPushToken handles PUT /users/{id}/push-token
func (h *Handler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.users.SetPushToken(r.Context(), mux.Vars(r)["id"], req.Token); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
