package domain

import "time"

// Flexibility describes whether the engine may relocate a calendar event.
type Flexibility string

const (
	// FlexibilityFixed events are external commitments and are never moved.
	FlexibilityFixed Flexibility = "fixed"
	// FlexibilityFlexible events may be relocated during re-planning.
	FlexibilityFlexible Flexibility = "flexible"
)

// EventOrigin records who created a calendar event.
type EventOrigin string

const (
	// OriginUser marks events created directly by the user.
	OriginUser EventOrigin = "user"
	// OriginChief marks events the engine created for a scheduled task.
	OriginChief EventOrigin = "chief"
)

// CalendarEvent is the engine's view of a busy interval in the user's
// calendar. The calendar store owns the event lifecycle; the engine only
// reads events and requests mutations.
type CalendarEvent struct {
	ID          string
	Title       string
	Interval    TimeRange
	Flexibility Flexibility
	Origin      EventOrigin

	// Priority of the task behind a chief-scheduled event, used to pick a
	// displacement victim. User events default to low.
	Priority Priority
}

// IsFixed reports whether the engine must never move the event.
func (e CalendarEvent) IsFixed() bool {
	return e.Flexibility != FlexibilityFlexible
}

// OverlapsWith checks whether two events occupy overlapping intervals.
func (e CalendarEvent) OverlapsWith(other CalendarEvent) bool {
	return e.Interval.Overlaps(other.Interval)
}

// Duration returns the event duration.
func (e CalendarEvent) Duration() time.Duration {
	return e.Interval.Duration()
}
