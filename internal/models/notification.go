// internal/models/notification.go
package models

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification event types emitted by the core.
const (
	NotificationCVAccessed       = "cv_accessed"
	NotificationStudentContacted = "student_contacted"
	NotificationTokensPurchased  = "tokens_purchased"
)

// Notification is one event delivered to a user. The core only fires these;
// delivery bookkeeping belongs to the dispatcher.
type Notification struct {
	ID        string                 `json:"id"` // uuid
	UserID    int64                  `json:"userId"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      string                 `json:"type"`
	Priority  string                 `json:"priority"` // "low", "normal", "high"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"createdAt"`
}
