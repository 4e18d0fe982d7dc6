package recurrence

import "time"

// Window bounds the days a rule is active, inclusive on both ends. A nil
// bound is open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether the calendar day of date lies in the window.
func (w Window) Contains(date time.Time) bool {
	day := truncate(date)
	if w.Start != nil && day.Before(truncate(*w.Start)) {
		return false
	}
	if w.End != nil && day.After(truncate(*w.End)) {
		return false
	}
	return true
}

// Intersect returns the window of days inside both w and o.
func (w Window) Intersect(o Window) Window {
	out := w
	if o.Start != nil && (out.Start == nil || truncate(*o.Start).After(truncate(*out.Start))) {
		out.Start = o.Start
	}
	if o.End != nil && (out.End == nil || truncate(*o.End).Before(truncate(*out.End))) {
		out.End = o.End
	}
	return out
}

// IsDue reports whether a task with this rule falls on date within window.
// Only the calendar day of date is considered.
func IsDue(rule Rule, window Window, date time.Time) bool {
	if !window.Contains(date) {
		return false
	}
	day := truncate(date)
	switch rule.Kind {
	case Once:
		return !rule.On.IsZero() && truncate(rule.On).Equal(day)
	case Daily:
		return true
	case Weekly:
		return rule.Days.Has(day.Weekday())
	default:
		return false
	}
}

// truncate drops the time of day and zone, keeping the calendar date.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
