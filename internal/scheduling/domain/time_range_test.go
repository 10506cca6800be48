package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange_Overlaps(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		range1   TimeRange
		range2   TimeRange
		expected bool
	}{
		{
			name:     "overlapping ranges",
			range1:   TimeRange{Start: now, End: now.Add(2 * time.Hour)},
			range2:   TimeRange{Start: now.Add(1 * time.Hour), End: now.Add(3 * time.Hour)},
			expected: true,
		},
		{
			name:     "non-overlapping ranges",
			range1:   TimeRange{Start: now, End: now.Add(1 * time.Hour)},
			range2:   TimeRange{Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour)},
			expected: false,
		},
		{
			name:     "adjacent ranges do not overlap",
			range1:   TimeRange{Start: now, End: now.Add(1 * time.Hour)},
			range2:   TimeRange{Start: now.Add(1 * time.Hour), End: now.Add(2 * time.Hour)},
			expected: false,
		},
		{
			name:     "one contains the other",
			range1:   TimeRange{Start: now, End: now.Add(3 * time.Hour)},
			range2:   TimeRange{Start: now.Add(1 * time.Hour), End: now.Add(2 * time.Hour)},
			expected: true,
		},
		{
			name:     "same range",
			range1:   TimeRange{Start: now, End: now.Add(1 * time.Hour)},
			range2:   TimeRange{Start: now, End: now.Add(1 * time.Hour)},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.range1.Overlaps(tt.range2))
			assert.Equal(t, tt.expected, tt.range2.Overlaps(tt.range1))
		})
	}
}

func TestTimeRange_Intersect(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	t.Run("partial overlap", func(t *testing.T) {
		a := TimeRange{Start: at(9, 0), End: at(11, 0)}
		b := TimeRange{Start: at(10, 0), End: at(12, 0)}

		got, ok := a.Intersect(b)
		require.True(t, ok)
		assert.Equal(t, at(10, 0), got.Start)
		assert.Equal(t, at(11, 0), got.End)
	})

	t.Run("no overlap", func(t *testing.T) {
		a := TimeRange{Start: at(9, 0), End: at(10, 0)}
		b := TimeRange{Start: at(10, 0), End: at(11, 0)}

		_, ok := a.Intersect(b)
		assert.False(t, ok)
	})
}

func TestTimeRange_Subtract(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	tests := []struct {
		name  string
		base  TimeRange
		other TimeRange
		want  []TimeRange
	}{
		{
			name:  "no overlap leaves base unchanged",
			base:  TimeRange{Start: at(9, 0), End: at(10, 0)},
			other: TimeRange{Start: at(11, 0), End: at(12, 0)},
			want:  []TimeRange{{Start: at(9, 0), End: at(10, 0)}},
		},
		{
			name:  "hole in the middle splits in two",
			base:  TimeRange{Start: at(9, 0), End: at(17, 0)},
			other: TimeRange{Start: at(12, 0), End: at(13, 0)},
			want: []TimeRange{
				{Start: at(9, 0), End: at(12, 0)},
				{Start: at(13, 0), End: at(17, 0)},
			},
		},
		{
			name:  "overlap at the start trims the head",
			base:  TimeRange{Start: at(9, 0), End: at(17, 0)},
			other: TimeRange{Start: at(8, 0), End: at(10, 0)},
			want:  []TimeRange{{Start: at(10, 0), End: at(17, 0)}},
		},
		{
			name:  "full cover removes everything",
			base:  TimeRange{Start: at(9, 0), End: at(10, 0)},
			other: TimeRange{Start: at(8, 0), End: at(11, 0)},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.base.Subtract(tt.other))
		})
	}
}

func TestTimeRange_Covers(t *testing.T) {
	now := time.Now()
	outer := TimeRange{Start: now, End: now.Add(2 * time.Hour)}

	assert.True(t, outer.Covers(TimeRange{Start: now.Add(30 * time.Minute), End: now.Add(time.Hour)}))
	assert.True(t, outer.Covers(outer))
	assert.False(t, outer.Covers(TimeRange{Start: now.Add(time.Hour), End: now.Add(3 * time.Hour)}))
}
