package core

import (
	"fmt"
)

const (
	Weekly   ScheduleKind = "weekly"
	Biweekly ScheduleKind = "biweekly"
	Monthly  ScheduleKind = "monthly"
	Custom   ScheduleKind = "custom"
)

type (
	ScheduleKind string

	// Schedule describes when a recurring template produces occurrences.
	// Anchor is the first possible occurrence; no occurrence precedes it.
	// End, when set, is the last date an occurrence may fall on.
	Schedule struct {
		Kind   ScheduleKind `json:"kind"`
		Anchor Date         `json:"anchor"`
		End    *Date        `json:"end,omitempty"`
		// DayOfMonth is the target day for monthly schedules (1-31).
		// Months shorter than the target clamp to their last day.
		DayOfMonth int `json:"dayOfMonth,omitempty"`
		// EveryDays is the step for custom schedules, at least 1.
		EveryDays int `json:"everyDays,omitempty"`
	}
)

// Validate checks the schedule's shape. Callers must reject template
// creation or edits on error rather than silently clamping.
func (s Schedule) Validate() error {
	if s.Anchor.IsZero() {
		return fmt.Errorf("%w: anchor date is required", ErrInvalidSchedule)
	}
	if s.End != nil && s.End.Before(s.Anchor) {
		return fmt.Errorf("%w: end date %s precedes anchor %s", ErrInvalidSchedule, s.End, s.Anchor)
	}
	switch s.Kind {
	case Weekly, Biweekly:
		return nil
	case Monthly:
		if s.DayOfMonth != 0 && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
			return fmt.Errorf("%w: day of month %d outside 1-31", ErrInvalidSchedule, s.DayOfMonth)
		}
		return nil
	case Custom:
		if s.EveryDays < 1 {
			return fmt.Errorf("%w: custom step %d days, must be at least 1", ErrInvalidSchedule, s.EveryDays)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}
}

// Next computes the occurrence that follows d under the schedule.
// It is pure and total over valid schedules.
func Next(d Date, s Schedule) (Date, error) {
	switch s.Kind {
	case Weekly:
		return d.AddDays(7), nil
	case Biweekly:
		return d.AddDays(14), nil
	case Monthly:
		if s.DayOfMonth != 0 && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
			return Date{}, fmt.Errorf("%w: day of month %d outside 1-31", ErrInvalidSchedule, s.DayOfMonth)
		}
		target := s.DayOfMonth
		if target == 0 {
			target = s.Anchor.Day()
		}
		return d.AddMonthsClamped(target), nil
	case Custom:
		if s.EveryDays < 1 {
			return Date{}, fmt.Errorf("%w: custom step %d days, must be at least 1", ErrInvalidSchedule, s.EveryDays)
		}
		return d.AddDays(s.EveryDays), nil
	default:
		return Date{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}
}

// OccurrencesIn returns every occurrence of the schedule inside the closed
// interval [start, end], in order. It recomputes from the anchor on every
// call; the skip-forward phase uses the same step logic as collection
// because the monthly clamp is path-dependent on the anchor.
func OccurrencesIn(s Schedule, start, end Date) ([]Date, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Anchor.After(end) {
		return nil, nil
	}
	if s.End != nil && s.End.Before(start) {
		return nil, nil
	}

	cur := s.Anchor
	for cur.Before(start) {
		next, err := Next(cur, s)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	var out []Date
	for !cur.After(end) {
		if s.End != nil && cur.After(*s.End) {
			break
		}
		out = append(out, cur)
		next, err := Next(cur, s)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return out, nil
}
