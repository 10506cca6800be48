package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConflict(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	standup := CalendarEvent{
		ID:          "evt-standup",
		Title:       "Standup",
		Interval:    TimeRange{Start: at(9, 0), End: at(9, 30)},
		Flexibility: FlexibilityFixed,
		Origin:      OriginUser,
	}
	review := CalendarEvent{
		ID:          "evt-review",
		Title:       "Design review",
		Interval:    TimeRange{Start: at(9, 15), End: at(10, 0)},
		Flexibility: FlexibilityFixed,
		Origin:      OriginUser,
	}
	focus := CalendarEvent{
		ID:          "evt-focus",
		Title:       "Focus block",
		Interval:    TimeRange{Start: at(9, 15), End: at(10, 0)},
		Flexibility: FlexibilityFlexible,
		Origin:      OriginChief,
	}

	t.Run("both fixed is hard", func(t *testing.T) {
		c := NewConflict(standup, review)
		assert.Equal(t, SeverityHard, c.Severity)
	})

	t.Run("one flexible is soft", func(t *testing.T) {
		c := NewConflict(standup, focus)
		assert.Equal(t, SeveritySoft, c.Severity)
	})

	t.Run("orders by start regardless of argument order", func(t *testing.T) {
		c1 := NewConflict(standup, review)
		c2 := NewConflict(review, standup)

		assert.Equal(t, c1, c2)
		assert.Equal(t, "evt-standup", c1.First.ID)
		assert.Equal(t, c1.Key(), c2.Key())
	})

	t.Run("computes the overlap", func(t *testing.T) {
		c := NewConflict(standup, review)
		assert.Equal(t, at(9, 15), c.Overlap.Start)
		assert.Equal(t, at(9, 30), c.Overlap.End)
		assert.Equal(t, 15, c.OverlapMinutes())
	})

	t.Run("equal starts tie break on id", func(t *testing.T) {
		c := NewConflict(review, focus)
		assert.Equal(t, "evt-focus", c.First.ID)
	})
}
