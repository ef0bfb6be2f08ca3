package schedule

import (
	"fmt"
	"time"

	"bubbletasks/internal/types"
)

// Idempotency keys are deterministic strings derived from the notification
// kind, user, task, distinguishing parameter, and the due date at
// evaluation time. Embedding the due-date string means a recurrence
// rollover automatically opens a fresh key space for the next cycle; no
// manual ledger cleanup is needed for recurring tasks to notify again.

// ReminderKey builds the ledger key for a reminder notification.
func ReminderKey(userID, taskID string, minutesBefore int, dueDate time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s",
		types.NotifyReminder, userID, taskID, minutesBefore,
		dueDate.UTC().Format(time.RFC3339))
}

// OverdueKey builds the ledger key for an overdue notification.
func OverdueKey(userID, taskID string, dueDate time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		types.NotifyOverdue, userID, taskID,
		dueDate.UTC().Format(time.RFC3339))
}
