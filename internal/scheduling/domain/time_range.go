package domain

import "time"

// TimeRange represents a half-open time interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps checks if two time ranges overlap. Boundaries are end-exclusive,
// so back-to-back ranges do not overlap.
func (t TimeRange) Overlaps(other TimeRange) bool {
	return t.Start.Before(other.End) && other.Start.Before(t.End)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Contains checks if a time falls within the range.
func (t TimeRange) Contains(at time.Time) bool {
	return !at.Before(t.Start) && at.Before(t.End)
}

// Covers checks if the range fully contains another range.
func (t TimeRange) Covers(other TimeRange) bool {
	return !other.Start.Before(t.Start) && !other.End.After(t.End)
}

// Intersect returns the overlapping portion of two ranges. The second return
// value is false when the ranges do not overlap.
func (t TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	if !t.Overlaps(other) {
		return TimeRange{}, false
	}
	out := t
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Subtract removes another range from this one, returning the zero, one or
// two remaining pieces in chronological order.
func (t TimeRange) Subtract(other TimeRange) []TimeRange {
	if !t.Overlaps(other) {
		return []TimeRange{t}
	}
	var out []TimeRange
	if other.Start.After(t.Start) {
		out = append(out, TimeRange{Start: t.Start, End: other.Start})
	}
	if other.End.Before(t.End) {
		out = append(out, TimeRange{Start: other.End, End: t.End})
	}
	return out
}

// IsZero reports whether the range is uninitialized.
func (t TimeRange) IsZero() bool {
	return t.Start.IsZero() && t.End.IsZero()
}
