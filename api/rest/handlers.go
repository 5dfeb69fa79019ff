package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/monitoring"
	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/queue"
	"github.com/prism-platform/notification-service/internal/users"
)

// userHeader carries the authenticated user's ID, injected by the platform
// gateway in front of this service
const userHeader = "X-User-ID"

// Handler holds dependencies for REST API handlers
type Handler struct {
	service   *notification.Service
	prefs     *notification.PreferenceStore
	templates *notification.TemplateStore
	batches   *notification.BatchStore
	analyzer  *notification.Analyzer
	users     *users.Store
	producer  *queue.Producer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	validator *validator.Validate
	window    time.Duration
}

// NewHandler creates a new REST API handler
func NewHandler(
	service *notification.Service,
	prefs *notification.PreferenceStore,
	templates *notification.TemplateStore,
	batches *notification.BatchStore,
	analyzer *notification.Analyzer,
	userStore *users.Store,
	producer *queue.Producer,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	analyticsWindow time.Duration,
) *Handler {
	return &Handler{
		service:   service,
		prefs:     prefs,
		templates: templates,
		batches:   batches,
		analyzer:  analyzer,
		users:     userStore,
		producer:  producer,
		metrics:   metrics,
		logger:    logger,
		validator: validator.New(),
		window:    analyticsWindow,
	}
}

// CreateNotificationRequest represents the request body for creating notifications
type CreateNotificationRequest struct {
	UserID         string         `json:"user_id" validate:"required"`
	Title          string         `json:"title" validate:"required,max=200"`
	Message        string         `json:"message"`
	Type           string         `json:"type" validate:"omitempty,oneof=info warning error success application message deadline system collaboration metrics activity security"`
	Data           map[string]any `json:"data,omitempty"`
	IsPriority     bool           `json:"is_priority,omitempty"`
	ActionRequired bool           `json:"action_required,omitempty"`
	TargetURL      string         `json:"target_url,omitempty" validate:"omitempty,max=500"`
	Source         string         `json:"source,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
}

// CreateFromTemplateRequest renders a stored template into a notification
type CreateFromTemplateRequest struct {
	UserID   string         `json:"user_id" validate:"required"`
	Template string         `json:"template" validate:"required"`
	Context  map[string]any `json:"context,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CreateNotification handles POST /notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	notifType := notification.Type(req.Type)
	if req.Type == "" {
		notifType = notification.TypeInfo
	}

	notif, err := h.service.Create(r.Context(), notification.CreateRequest{
		UserID:         req.UserID,
		Title:          req.Title,
		Message:        req.Message,
		Type:           notifType,
		Data:           req.Data,
		IsPriority:     req.IsPriority,
		ActionRequired: req.ActionRequired,
		TargetURL:      req.TargetURL,
		Source:         req.Source,
		ExpiresAt:      req.ExpiresAt,
		ScheduledAt:    req.ScheduledAt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordNotificationCreated(string(notif.Type))
	h.logger.Info("Notification created",
		zap.String("id", notif.ID),
		zap.String("user_id", notif.UserID),
		zap.String("type", string(notif.Type)),
	)
	h.writeJSON(w, http.StatusCreated, notif)
}

// CreateFromTemplate handles POST /notifications/from-template
func (h *Handler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateFromTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeErrorResponse(w, fmt.Sprintf("Validation error: %v", err), http.StatusBadRequest)
		return
	}

	notif, err := h.service.CreateFromTemplate(r.Context(), req.UserID, req.Template, req.Context)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordNotificationCreated(string(notif.Type))
	h.writeJSON(w, http.StatusCreated, notif)
}

// ListNotifications handles GET /notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	notifs, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifs,
		"count":         len(notifs),
	})
}

// GetNotification handles GET /notifications/{id}
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notif, err := h.service.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notif)
}

// UnreadCount handles GET /notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

// MarkRead handles POST /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notif, err := h.service.MarkRead(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notif)
}

// MarkUnread handles POST /notifications/{id}/unread
func (h *Handler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notif, err := h.service.MarkUnread(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notif)
}

// MarkAllRead handles POST /notifications/mark-all-read
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	count, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"marked_read": count})
}

// MarkClicked handles POST /notifications/{id}/click
func (h *Handler) MarkClicked(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkClicked(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles POST /notifications/{id}/archive
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Unarchive handles POST /notifications/{id}/unarchive
func (h *Handler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	var err error
	if archived {
		err = h.service.Archive(r.Context(), userID, id)
	} else {
		err = h.service.Unarchive(r.Context(), userID, id)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dismiss handles POST /notifications/{id}/dismiss
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.Dismiss(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification handles DELETE /notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotificationHistory handles GET /notifications/{id}/history
func (h *Handler) NotificationHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// GetPreferences handles GET /preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	pref, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pref)
}

// UpdatePreferences handles PUT /preferences
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var pref notification.Preference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		h.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	pref.UserID = userID

	if err := h.prefs.Upsert(r.Context(), &pref); err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// TestNotification handles POST /notifications/test: sends the requesting
// user a notification so they can verify their channel setup
func (h *Handler) TestNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notif, err := h.service.Create(r.Context(), notification.CreateRequest{
		UserID:  userID,
		Title:   "Test Notification",
		Message: "This is a test notification to verify your settings.",
		Type:    notification.TypeSystem,
		Source:  "test",
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, notif)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "notification-api",
		"version":   "1.0.0",
	}
	h.writeJSON(w, http.StatusOK, health)
}

// Metrics handles GET /metrics (Prometheus metrics)
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

// SetupRoutes sets up all REST API routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	// Fixed paths before the {id} wildcards
	api.HandleFunc("/notifications/from-template", h.CreateFromTemplate).Methods("POST")
	api.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods("GET")
	api.HandleFunc("/notifications/mark-all-read", h.MarkAllRead).Methods("POST")
	api.HandleFunc("/notifications/test", h.TestNotification).Methods("POST")

	api.HandleFunc("/notifications", h.CreateNotification).Methods("POST")
	api.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}", h.GetNotification).Methods("GET")
	api.HandleFunc("/notifications/{id}", h.DeleteNotification).Methods("DELETE")
	api.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods("POST")
	api.HandleFunc("/notifications/{id}/unread", h.MarkUnread).Methods("POST")
	api.HandleFunc("/notifications/{id}/click", h.MarkClicked).Methods("POST")
	api.HandleFunc("/notifications/{id}/archive", h.Archive).Methods("POST")
	api.HandleFunc("/notifications/{id}/unarchive", h.Unarchive).Methods("POST")
	api.HandleFunc("/notifications/{id}/dismiss", h.Dismiss).Methods("POST")
	api.HandleFunc("/notifications/{id}/history", h.NotificationHistory).Methods("GET")

	api.HandleFunc("/preferences", h.GetPreferences).Methods("GET")
	api.HandleFunc("/preferences", h.UpdatePreferences).Methods("PUT")

	api.HandleFunc("/templates", h.CreateTemplate).Methods("POST")
	api.HandleFunc("/templates", h.ListTemplates).Methods("GET")
	api.HandleFunc("/templates/{id}", h.GetTemplate).Methods("GET")
	api.HandleFunc("/templates/{id}", h.UpdateTemplate).Methods("PUT")

	api.HandleFunc("/batches", h.CreateBatch).Methods("POST")
	api.HandleFunc("/batches/{id}", h.GetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/process", h.ProcessBatch).Methods("POST")

	api.HandleFunc("/analytics", h.Analytics).Methods("GET")

	api.HandleFunc("/users", h.RegisterUser).Methods("POST")
	api.HandleFunc("/users/{id}/push-token", h.SetPushToken).Methods("PUT")

	// Health and metrics
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/metrics", h.Metrics).Methods("GET")

	// Add middleware
	router.Use(h.loggingMiddleware)
	router.Use(h.corsMiddleware)

	return router
}

// requireUser extracts the caller's user ID or rejects the request
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		h.writeErrorResponse(w, fmt.Sprintf("%s header is required", userHeader), http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func parseFilter(r *http.Request) (notification.Filter, error) {
	q := r.URL.Query()
	var filter notification.Filter

	for name, dest := range map[string]**bool{"read": &filter.Read, "archived": &filter.Archived} {
		if raw := q.Get(name); raw != "" {
			val, err := strconv.ParseBool(raw)
			if err != nil {
				return filter, fmt.Errorf("invalid %s parameter: %q", name, raw)
			}
			*dest = &val
		}
	}

	filter.Type = notification.Type(q.Get("type"))
	filter.Search = q.Get("search")

	for name, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			val, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return filter, fmt.Errorf("invalid %s parameter: %q", name, raw)
			}
			*dest = &val
		}
	}

	if raw := q.Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return filter, fmt.Errorf("invalid limit parameter: %q", raw)
		}
		filter.Limit = val
	}
	if raw := q.Get("offset"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			return filter, fmt.Errorf("invalid offset parameter: %q", raw)
		}
		filter.Offset = val
	}
	return filter, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *notification.ValidationError
	var missingVar *notification.MissingVariableError
	var undeclaredVar *notification.UndeclaredVariableError

	switch {
	case errors.Is(err, notification.ErrNotFound):
		h.writeErrorResponse(w, "Notification not found", http.StatusNotFound)
	case errors.Is(err, notification.ErrTemplateNotFound):
		h.writeErrorResponse(w, "Template not found", http.StatusNotFound)
	case errors.Is(err, notification.ErrBatchNotFound):
		h.writeErrorResponse(w, "Batch not found", http.StatusNotFound)
	case errors.Is(err, users.ErrNotFound):
		h.writeErrorResponse(w, "User not found", http.StatusNotFound)
	case errors.Is(err, notification.ErrInvalidState):
		h.writeErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.As(err, &validationErr), errors.As(err, &missingVar), errors.As(err, &undeclaredVar):
		h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Request failed", zap.Error(err))
		h.writeErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		h.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}

// corsMiddleware adds CORS headers
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+userHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseRecorder wraps http.ResponseWriter to capture status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
