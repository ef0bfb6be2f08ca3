package schedule

import (
	"sort"
	"time"

	"bubbletasks/internal/types"
)

// NextDueDate computes the due date following current under the given
// recurrence rule. The result is always strictly after current for any
// valid rule.
//
// Simple rules add `every` units of calendar arithmetic via time.AddDate
// (months therefore normalize overflow: Jan 31 + 1 month lands in early
// March rather than clamping to Feb 28/29). Weekly rules with an explicit
// weekday set use weekday-aware rollover instead:
//
//   - The next listed weekday strictly after the current weekday, within
//     the same week, wins.
//   - Past the last listed weekday, every==1 jumps to next week's first
//     listed weekday; when that computes to zero days (the current weekday
//     equals the first listed weekday) a full 7-day jump is forced. A task
//     due on its only configured weekday therefore skips one full cycle
//     before repeating. Deliberately kept from the original product.
//   - every>1 advances the anchor by `every` whole weeks, then forward to
//     the first listed weekday.
//
// Unrecognized units fall back to daily arithmetic; every < 1 becomes 1.
func NextDueDate(current time.Time, rule types.RecurrenceRule) time.Time {
	every := rule.Every
	if every < 1 {
		every = 1
	}

	if rule.Unit == types.RecurWeeks {
		if weekdays := normalizeWeekdays(rule.WeekDays); len(weekdays) > 0 {
			return nextListedWeekday(current, weekdays, every)
		}
	}

	switch rule.Unit {
	case types.RecurMinutes:
		return current.Add(time.Duration(every) * time.Minute)
	case types.RecurHours:
		return current.Add(time.Duration(every) * time.Hour)
	case types.RecurDays:
		return current.AddDate(0, 0, every)
	case types.RecurWeeks:
		return current.AddDate(0, 0, 7*every)
	case types.RecurMonths:
		return current.AddDate(0, every, 0)
	default:
		return current.AddDate(0, 0, every)
	}
}

// nextListedWeekday implements the weekday-aware weekly rollover.
// weekdays must be sorted, deduplicated, and within 0..6.
func nextListedWeekday(current time.Time, weekdays []int, every int) time.Time {
	curDow := int(current.Weekday()) // Sunday == 0

	// Later occurrence in the same week.
	for _, wd := range weekdays {
		if wd > curDow {
			return current.AddDate(0, 0, wd-curDow)
		}
	}

	first := weekdays[0]

	if every == 1 {
		daysToAdd := (7 - curDow + first) % 7
		if daysToAdd == 0 {
			// Same weekday as the first listed one: force a full week so the
			// due date always moves forward.
			daysToAdd = 7
		}
		return current.AddDate(0, 0, daysToAdd)
	}

	// Multi-week interval: advance the anchor by whole weeks, then forward
	// to the first listed weekday.
	anchor := current.AddDate(0, 0, 7*every)
	anchorDow := int(anchor.Weekday())
	return anchor.AddDate(0, 0, (first-anchorDow+7)%7)
}

// normalizeWeekdays filters a weekday list down to valid values (0..6),
// deduplicated and sorted ascending. Returns nil when nothing valid remains.
func normalizeWeekdays(raw []int) []int {
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(raw))
	var out []int
	for _, wd := range raw {
		if wd < 0 || wd > 6 {
			continue
		}
		if _, dup := seen[wd]; dup {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}

	sort.Ints(out)
	return out
}
