package schedule

import (
	"time"

	"bubbletasks/internal/types"
)

// FiringWindow is the catch-up window after an offset's scheduled instant
// during which the offset is considered "currently firing". It matches the
// one-minute scan cadence: wide enough that one tick always observes the
// boundary, narrow enough that the next tick does not see it again. The
// idempotency ledger remains the backstop against clock drift and
// double-invocation.
const FiringWindow = time.Minute

// ReminderMatch reports which offset fired for a task at a given instant.
type ReminderMatch struct {
	// MinutesBefore is the normalized minutes-before-due of the offset that
	// matched. It feeds both the push payload and the idempotency key.
	MinutesBefore int
}

// EvaluateReminder decides whether any of a task's reminder offsets is
// currently firing. For each offset (in list order) the scheduled instant is
// dueDate minus the normalized offset; the offset fires when now lies in
// (scheduled, scheduled+FiringWindow]. The first match wins and evaluation
// stops there. Offsets that cannot be normalized are skipped. Returns nil
// when nothing fires.
func EvaluateReminder(dueDate time.Time, offsets []types.OffsetSpec, now time.Time) *ReminderMatch {
	for _, spec := range offsets {
		minutes, ok := OffsetMinutes(spec)
		if !ok {
			continue
		}

		scheduled := dueDate.Add(-time.Duration(minutes) * time.Minute)
		if now.After(scheduled) && !now.After(scheduled.Add(FiringWindow)) {
			return &ReminderMatch{MinutesBefore: minutes}
		}
	}
	return nil
}

// IsOverdue reports whether a task's due date has passed. A nil or zero due
// date is never overdue (fails closed).
func IsOverdue(dueDate *time.Time, now time.Time) bool {
	if dueDate == nil || dueDate.IsZero() {
		return false
	}
	return now.After(*dueDate)
}
