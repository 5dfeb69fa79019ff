package channels

import (
	"context"

	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/users"
)

// Result is a sender's delivery report for one notification
type Result struct {
	// Status is the ledger status to record: sent, delivered or failed
	Status notification.HistoryStatus
	// Skipped means there was nothing to do (e.g. no push token); no
	// history row is written
	Skipped bool
	// Detail carries the provider message ID on success or the error
	// detail on failure
	Detail string
}

// Sender pushes one rendered notification to one transport. Senders are
// independently failable: one channel's failure never affects another.
type Sender interface {
	Send(ctx context.Context, notif *notification.Notification, user *users.User) (*Result, error)
	Channel() notification.Channel
}

// Manager holds the registered senders keyed by channel
type Manager struct {
	senders map[notification.Channel]Sender
}

// NewManager creates an empty sender manager
func NewManager() *Manager {
	return &Manager{senders: make(map[notification.Channel]Sender)}
}

// Register adds a sender to the manager
func (m *Manager) Register(sender Sender) {
	m.senders[sender.Channel()] = sender
}

// Get retrieves the sender for a channel
func (m *Manager) Get(channel notification.Channel) (Sender, bool) {
	sender, ok := m.senders[channel]
	return sender, ok
}
