package types

import "time"

// NotificationKind distinguishes the two notification flavors the scanner
// can emit for a task.
type NotificationKind string

const (
	NotifyReminder NotificationKind = "reminder"
	NotifyOverdue  NotificationKind = "overdue"
)

// PushMessage is the JSON payload published to the push SQS queue by the
// scan tick and consumed by the push worker. One message represents one
// logical notification for one user; the worker owns device-token fan-out.
type PushMessage struct {
	Kind   NotificationKind `json:"kind"`
	UserID string           `json:"user_id"`
	TaskID string           `json:"task_id"`
	Title  string           `json:"title,omitempty"`

	// MinutesBefore is set for reminder notifications only.
	MinutesBefore int `json:"minutes_before,omitempty"`

	// DueDate is the task due date at evaluation time, echoed for display.
	DueDate time.Time `json:"due_date"`

	DeepLinkURL string `json:"deep_link_url,omitempty"`

	// TraceID correlates the message across scan tick, queue, and worker logs.
	TraceID    string    `json:"trace_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
