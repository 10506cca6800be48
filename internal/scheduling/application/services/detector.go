package services

import (
	"sort"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// ConflictDetector finds every pair of overlapping calendar events.
type ConflictDetector struct{}

// NewConflictDetector creates a detector.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Detect sweeps the events in start order and reports each overlapping pair
// exactly once. Touching intervals do not overlap. The result is ordered by
// the earlier member's start, then the later member's start, then the pair
// key, so repeated runs over the same calendar produce identical output.
func (d *ConflictDetector) Detect(events []domain.CalendarEvent) []domain.Conflict {
	if len(events) < 2 {
		return nil
	}
	sorted := make([]domain.CalendarEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Interval.Start.Equal(sorted[j].Interval.Start) {
			return sorted[i].Interval.Start.Before(sorted[j].Interval.Start)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var conflicts []domain.Conflict
	// Events still able to overlap later starts. Pruned as the sweep passes
	// their end times, keeping each comparison against live events only.
	var active []domain.CalendarEvent
	for _, ev := range sorted {
		live := active[:0]
		for _, a := range active {
			if a.Interval.End.After(ev.Interval.Start) {
				live = append(live, a)
				conflicts = append(conflicts, domain.NewConflict(a, ev))
			}
		}
		active = append(live, ev)
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if !a.First.Interval.Start.Equal(b.First.Interval.Start) {
			return a.First.Interval.Start.Before(b.First.Interval.Start)
		}
		if !a.Second.Interval.Start.Equal(b.Second.Interval.Start) {
			return a.Second.Interval.Start.Before(b.Second.Interval.Start)
		}
		return a.Key() < b.Key()
	})
	return conflicts
}

// HasHard reports whether any detected conflict involves two fixed events.
func HasHard(conflicts []domain.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == domain.SeverityHard {
			return true
		}
	}
	return false
}
