package domain

import "fmt"

// ConflictSeverity classifies a detected overlap.
type ConflictSeverity string

const (
	// SeverityHard means both events are fixed. Reported, never auto-resolved.
	SeverityHard ConflictSeverity = "hard"
	// SeveritySoft means at least one event is flexible and the engine may
	// resolve the overlap by relocating it.
	SeveritySoft ConflictSeverity = "soft"
)

// Conflict is a pair of overlapping calendar events. Conflicts are computed
// on every calendar read, handed to the re-planner, and recorded as evidence
// in decision log entries; they are not persisted on their own.
type Conflict struct {
	First    CalendarEvent
	Second   CalendarEvent
	Overlap  TimeRange
	Severity ConflictSeverity
}

// NewConflict builds a conflict from two overlapping events. The earlier
// starting event (ties broken by ID) is stored first so conflict output is
// stable across runs.
func NewConflict(a, b CalendarEvent) Conflict {
	if b.Interval.Start.Before(a.Interval.Start) ||
		(b.Interval.Start.Equal(a.Interval.Start) && b.ID < a.ID) {
		a, b = b, a
	}
	overlap, _ := a.Interval.Intersect(b.Interval)
	severity := SeveritySoft
	if a.IsFixed() && b.IsFixed() {
		severity = SeverityHard
	}
	return Conflict{First: a, Second: b, Overlap: overlap, Severity: severity}
}

// Key identifies the conflicting pair independent of interval changes.
func (c Conflict) Key() string {
	return c.First.ID + "|" + c.Second.ID
}

// OverlapMinutes returns the overlap length in whole minutes.
func (c Conflict) OverlapMinutes() int {
	return int(c.Overlap.Duration().Minutes())
}

// String renders the conflict for logs.
func (c Conflict) String() string {
	return fmt.Sprintf("%s conflict: %q and %q overlap %dm",
		c.Severity, c.First.Title, c.Second.Title, c.OverlapMinutes())
}
