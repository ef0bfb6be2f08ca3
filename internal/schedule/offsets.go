// Package schedule implements the reminder scheduling core for bubbletasks:
// offset normalization, the notification firing window, recurrence rollover,
// idempotency key construction, and the periodic scan driver that ties them
// to the store, ledger, and dispatch adapters.
//
// The calculators (OffsetMinutes, EvaluateReminder, IsOverdue, NextDueDate)
// are pure functions with no I/O. All orchestration and failure isolation
// lives in the Scanner.
package schedule

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"bubbletasks/internal/types"
)

// presetPattern matches preset offset tokens such as "15m", "1h", "2d", "1w".
var presetPattern = regexp.MustCompile(`^(\d+)([mhdw])$`)

// unitMinutes maps custom-offset unit names to their minute multipliers.
var unitMinutes = map[string]float64{
	"minutes": 1,
	"hours":   60,
	"days":    1440,
	"weeks":   10080,
}

// presetMinutes maps preset suffix letters to their minute multipliers.
var presetMinutes = map[string]float64{
	"m": 1,
	"h": 60,
	"d": 1440,
	"w": 10080,
}

// OffsetMinutes normalizes an offset specification to a whole number of
// minutes before the due date. The second return value is false when the
// spec cannot be normalized to a finite positive number of minutes; such
// specs are inert (never fire, never error the scan).
func OffsetMinutes(spec types.OffsetSpec) (int, bool) {
	switch spec.Kind {
	case types.OffsetPreset:
		m := presetPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(spec.Preset)))
		if m == nil {
			return 0, false
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return wholeMinutes(n * presetMinutes[m[2]])

	case types.OffsetMinutes:
		return wholeMinutes(spec.Minutes)

	case types.OffsetCustom:
		if spec.MinutesBefore != nil {
			return wholeMinutes(*spec.MinutesBefore)
		}
		mult, ok := unitMinutes[strings.ToLower(spec.Unit)]
		if !ok {
			return 0, false
		}
		return wholeMinutes(spec.Value * mult)

	default:
		return 0, false
	}
}

// wholeMinutes rounds a minute count to the nearest integer and rejects
// values that are not finite and positive.
func wholeMinutes(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	m := int(math.Round(v))
	if m < 1 {
		return 0, false
	}
	return m, true
}
