// Package types defines the shared domain model for the bubbletasks
// scheduler: tasks, reminder offset specifications, recurrence rules, and
// the error taxonomy used across adapters.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus enumerates the lifecycle states of a task. Only active tasks
// participate in reminder scanning.
type TaskStatus string

const (
	TaskStatusActive   TaskStatus = "active"
	TaskStatusDone     TaskStatus = "done"
	TaskStatusPostpone TaskStatus = "postpone"
	TaskStatusDeleted  TaskStatus = "deleted"
)

// Task is a user-created to-do item ("bubble"). DueDate is nil for tasks
// with no scheduling behavior; such tasks never fire notifications and are
// never overdue.
type Task struct {
	ID     string     `json:"id"`
	UserID string     `json:"userId,omitempty"`
	Title  string     `json:"title,omitempty"`
	Status TaskStatus `json:"status"`

	DueDate       *time.Time      `json:"dueDate,omitempty"`
	Notifications []OffsetSpec    `json:"notifications,omitempty"`
	Recurrence    *RecurrenceRule `json:"recurrence,omitempty"`

	// OverdueSticky is set once the overdue state has been triggered so
	// subsequent scans skip the redundant field write. It does not gate the
	// idempotency ledger.
	OverdueSticky bool       `json:"overdueSticky,omitempty"`
	OverdueAt     *time.Time `json:"overdueAt,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// RecurrenceUnit enumerates the supported recurrence intervals.
type RecurrenceUnit string

const (
	RecurMinutes RecurrenceUnit = "minutes"
	RecurHours   RecurrenceUnit = "hours"
	RecurDays    RecurrenceUnit = "days"
	RecurWeeks   RecurrenceUnit = "weeks"
	RecurMonths  RecurrenceUnit = "months"
)

// RecurrenceRule rolls a task's due date forward after it goes overdue.
// Every defaults to 1 and Unit to days when missing or invalid. WeekDays
// (0=Sunday..6=Saturday) is only meaningful for weekly rules; when present
// and non-empty it switches the calculator to weekday-aware rollover.
type RecurrenceRule struct {
	Every    int            `json:"every,omitempty"`
	Unit     RecurrenceUnit `json:"unit,omitempty"`
	WeekDays []int          `json:"weekDays,omitempty"`
}

// OffsetKind tags the representation a reminder offset arrived in.
type OffsetKind int

const (
	// OffsetPreset is a token string like "15m", "1h", "2d", "1w".
	OffsetPreset OffsetKind = iota
	// OffsetMinutes is a bare numeric literal, already in minutes.
	OffsetMinutes
	// OffsetCustom is the object form: {value, unit} or {minutesBefore}.
	OffsetCustom
)

// OffsetSpec is a user-configured "remind me N time-units before due" rule.
// The client stores these in three shapes (string token, number, object);
// the tagged union preserves the original shape for round-tripping through
// the legacy document store while normalization happens in one place
// (schedule.OffsetMinutes).
type OffsetSpec struct {
	Kind OffsetKind

	Preset  string  // Kind == OffsetPreset
	Minutes float64 // Kind == OffsetMinutes

	// Kind == OffsetCustom. MinutesBefore takes precedence when set.
	MinutesBefore *float64
	Value         float64
	Unit          string
}

// PresetOffset builds a preset-token offset spec.
func PresetOffset(token string) OffsetSpec {
	return OffsetSpec{Kind: OffsetPreset, Preset: token}
}

// MinutesOffset builds a bare-minutes offset spec.
func MinutesOffset(minutes float64) OffsetSpec {
	return OffsetSpec{Kind: OffsetMinutes, Minutes: minutes}
}

// CustomOffset builds a {value, unit} offset spec.
func CustomOffset(value float64, unit string) OffsetSpec {
	return OffsetSpec{Kind: OffsetCustom, Value: value, Unit: unit}
}

// offsetObject is the wire shape of the object form.
type offsetObject struct {
	MinutesBefore *float64 `json:"minutesBefore,omitempty"`
	Value         float64  `json:"value,omitempty"`
	Unit          string   `json:"unit,omitempty"`
}

// UnmarshalJSON accepts the three client representations: a JSON string
// (preset token), a JSON number (minutes), or an object. Anything else is
// rejected; unparseable contents inside a recognized shape are kept as-is
// and left for normalization to treat as inert.
func (o *OffsetSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = OffsetSpec{Kind: OffsetPreset, Preset: s}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*o = OffsetSpec{Kind: OffsetMinutes, Minutes: n}
		return nil
	}

	var obj offsetObject
	if err := json.Unmarshal(data, &obj); err == nil {
		*o = OffsetSpec{
			Kind:          OffsetCustom,
			MinutesBefore: obj.MinutesBefore,
			Value:         obj.Value,
			Unit:          obj.Unit,
		}
		return nil
	}

	return fmt.Errorf("offset spec is neither string, number, nor object: %s", string(data))
}

// MarshalJSON writes the spec back in its original shape so legacy task
// documents round-trip unchanged for the client.
func (o OffsetSpec) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OffsetPreset:
		return json.Marshal(o.Preset)
	case OffsetMinutes:
		return json.Marshal(o.Minutes)
	case OffsetCustom:
		return json.Marshal(offsetObject{
			MinutesBefore: o.MinutesBefore,
			Value:         o.Value,
			Unit:          o.Unit,
		})
	default:
		return nil, fmt.Errorf("unknown offset kind %d", o.Kind)
	}
}

// DeviceToken is a registered push destination for a user. Platform is
// informational; the push gateway accepts tokens from all platforms.
type DeviceToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
