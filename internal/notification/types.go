package notification

// Type classifies a notification. The set is open: unknown values are
// stored as-is and treated as allowed by default in preference maps.
type Type string

const (
	TypeInfo          Type = "info"
	TypeWarning       Type = "warning"
	TypeError         Type = "error"
	TypeSuccess       Type = "success"
	TypeApplication   Type = "application"
	TypeMessage       Type = "message"
	TypeDeadline      Type = "deadline"
	TypeSystem        Type = "system"
	TypeCollaboration Type = "collaboration"
	TypeMetrics       Type = "metrics"
	TypeActivity      Type = "activity"
	TypeSecurity      Type = "security"
)

// Channel identifies a delivery transport
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// AllChannels lists the channels a dispatch considers, in a fixed order
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush}

// HistoryStatus represents the delivery state of a notification on one channel
type HistoryStatus string

const (
	HistoryCreated   HistoryStatus = "created"
	HistorySent      HistoryStatus = "sent"
	HistoryDelivered HistoryStatus = "delivered"
	HistoryRead      HistoryStatus = "read"
	HistoryClicked   HistoryStatus = "clicked"
	HistoryDismissed HistoryStatus = "dismissed"
	HistoryFailed    HistoryStatus = "failed"
)

// historyRank orders the happy-path statuses. Transitions may only move to a
// higher rank; failed is terminal and reachable from any non-terminal state.
var historyRank = map[HistoryStatus]int{
	HistoryCreated:   0,
	HistorySent:      1,
	HistoryDelivered: 2,
	HistoryRead:      3,
	HistoryClicked:   4,
	HistoryDismissed: 4,
}

// BatchStatus represents the lifecycle state of a notification batch
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchSending   BatchStatus = "sending"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// EmailFrequency controls how often email notifications are sent
type EmailFrequency string

const (
	FrequencyImmediate EmailFrequency = "immediate"
	FrequencyDaily     EmailFrequency = "daily"
	FrequencyWeekly    EmailFrequency = "weekly"
	FrequencyNever     EmailFrequency = "never"
)
