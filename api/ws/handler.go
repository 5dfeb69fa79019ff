package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/database"
	"github.com/prism-platform/notification-service/internal/monitoring"
	"github.com/prism-platform/notification-service/internal/notification"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades HTTP connections to WebSocket sessions and bridges each
// one to the user's Redis live topic. Multiple sessions per user all receive
// the same events.
type Handler struct {
	service  *notification.Service
	redis    *database.RedisClient
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(service *notification.Service, redis *database.RedisClient, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		redis:   redis,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The platform gateway enforces origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// clientCommand is a message sent by the client over the socket
type clientCommand struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	session := &session{
		handler: h,
		conn:    conn,
		userID:  userID,
	}
	session.run(r.Context())
}

// session is one live WebSocket connection for one user
type session struct {
	handler *Handler
	conn    *websocket.Conn
	userID  string
	writeMu sync.Mutex
}

func (s *session) run(ctx context.Context) {
	h := s.handler
	h.metrics.IncrementWebsockets()
	defer h.metrics.DecrementWebsockets()
	defer s.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.logger.Info("WebSocket session opened", zap.String("user_id", s.userID))

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Unread backlog so the client can render a badge immediately
	s.sendUnreadCount(ctx)

	pubsub := h.redis.SubscribeToUser(ctx, s.userID)
	defer pubsub.Close()

	go s.forwardLoop(ctx, cancel, pubsub.Channel())
	go s.pingLoop(ctx)

	s.readLoop(ctx)

	h.logger.Info("WebSocket session closed", zap.String("user_id", s.userID))
}

// forwardLoop relays Redis events to the socket
func (s *session) forwardLoop(ctx context.Context, cancel context.CancelFunc, events <-chan *redis.Message) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeRaw([]byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}

func (s *session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop handles client commands until the connection drops
func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.handler.logger.Debug("WebSocket read error",
					zap.String("user_id", s.userID), zap.Error(err))
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.sendError("invalid message")
			continue
		}
		s.handleCommand(ctx, cmd)
	}
}

func (s *session) handleCommand(ctx context.Context, cmd clientCommand) {
	h := s.handler
	switch cmd.Action {
	case "mark_read":
		if cmd.ID == "" {
			s.sendError("id is required")
			return
		}
		if _, err := h.service.MarkRead(ctx, s.userID, cmd.ID); err != nil {
			s.sendError("failed to mark notification read")
			return
		}
		s.sendUnreadCount(ctx)
	case "mark_all_read":
		if _, err := h.service.MarkAllRead(ctx, s.userID); err != nil {
			s.sendError("failed to mark all read")
			return
		}
		s.sendUnreadCount(ctx)
	case "get_unread":
		s.sendUnreadCount(ctx)
	default:
		s.sendError("unknown action")
	}
}

func (s *session) sendUnreadCount(ctx context.Context) {
	count, err := s.handler.service.UnreadCount(ctx, s.userID)
	if err != nil {
		s.handler.logger.Warn("Failed to load unread count",
			zap.String("user_id", s.userID), zap.Error(err))
		return
	}
	s.writeJSON(map[string]any{
		"event":        "unread_count",
		"unread_count": count,
	})
}

func (s *session) sendError(message string) {
	s.writeJSON(map[string]any{
		"event": "error",
		"error": message,
	})
}

func (s *session) writeJSON(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.writeRaw(data)
}

func (s *session) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
