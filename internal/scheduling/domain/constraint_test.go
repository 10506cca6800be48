package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr error
	}{
		{
			name: "valid block window",
			rule: Rule{Kind: RuleTimeWindowBlock, Window: ClockWindow{StartMinute: 18 * 60, EndMinute: 24 * 60}},
		},
		{
			name:    "window end before start",
			rule:    Rule{Kind: RuleTimeWindowPrefer, Window: ClockWindow{StartMinute: 600, EndMinute: 540}},
			wantErr: ErrInvalidWindow,
		},
		{
			name:    "window past midnight",
			rule:    Rule{Kind: RuleTimeWindowBlock, Window: ClockWindow{StartMinute: 1200, EndMinute: 25 * 60}},
			wantErr: ErrInvalidWindow,
		},
		{
			name: "valid min break",
			rule: Rule{Kind: RuleMinBreak, Minutes: 30},
		},
		{
			name:    "nonpositive minutes",
			rule:    Rule{Kind: RuleMaxContinuousWork, Minutes: 0},
			wantErr: ErrInvalidMinutes,
		},
		{
			name:    "unknown kind",
			rule:    Rule{Kind: RuleKind("quiet_hours")},
			wantErr: ErrUnknownRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRuleSet_Merge(t *testing.T) {
	t.Run("last write wins per kind", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(Rule{Kind: RuleMinBreak, Minutes: 15}))
		require.NoError(t, rs.Merge(Rule{Kind: RuleMinBreak, Minutes: 45}))

		assert.Equal(t, 1, rs.Len())
		assert.Equal(t, 45*time.Minute, rs.MinBreak())
	})

	t.Run("different kinds accumulate", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(
			Rule{Kind: RuleMinBreak, Minutes: 30},
			Rule{Kind: RuleMaxContinuousWork, Minutes: 120},
		))

		assert.Equal(t, 2, rs.Len())
		assert.Equal(t, 30*time.Minute, rs.MinBreak())
		assert.Equal(t, 2*time.Hour, rs.MaxContinuousWork())
	})

	t.Run("invalid rule leaves set untouched", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(Rule{Kind: RuleMinBreak, Minutes: 30}))

		err := rs.Merge(
			Rule{Kind: RuleMinBreak, Minutes: 60},
			Rule{Kind: RuleMaxContinuousWork, Minutes: -5},
		)

		require.Error(t, err)
		assert.Equal(t, 1, rs.Len())
		assert.Equal(t, 30*time.Minute, rs.MinBreak())
	})
}

func TestRuleSet_PreferWindow(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("prefer window without block passes through", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(Rule{Kind: RuleTimeWindowPrefer, Window: ClockWindow{StartMinute: 6 * 60, EndMinute: 12 * 60}}))

		win, ok := rs.PreferWindow(day)
		require.True(t, ok)
		assert.Equal(t, day.Add(6*time.Hour), win.Start)
		assert.Equal(t, day.Add(12*time.Hour), win.End)
	})

	t.Run("block rule carves the prefer window", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(
			Rule{Kind: RuleTimeWindowPrefer, Window: ClockWindow{StartMinute: 6 * 60, EndMinute: 12 * 60}},
			Rule{Kind: RuleTimeWindowBlock, Window: ClockWindow{StartMinute: 6 * 60, EndMinute: 9 * 60}},
		))

		win, ok := rs.PreferWindow(day)
		require.True(t, ok)
		assert.Equal(t, day.Add(9*time.Hour), win.Start)
		assert.Equal(t, day.Add(12*time.Hour), win.End)
	})

	t.Run("block covering the whole prefer window drops it", func(t *testing.T) {
		rs := NewRuleSet()
		require.NoError(t, rs.Merge(
			Rule{Kind: RuleTimeWindowPrefer, Window: ClockWindow{StartMinute: 9 * 60, EndMinute: 11 * 60}},
			Rule{Kind: RuleTimeWindowBlock, Window: ClockWindow{StartMinute: 8 * 60, EndMinute: 12 * 60}},
		))

		_, ok := rs.PreferWindow(day)
		assert.False(t, ok)
	})
}

func TestClockWindow_OnDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 15, 42, 7, 0, time.UTC)
	win := ClockWindow{StartMinute: 9 * 60, EndMinute: 17 * 60}

	rng := win.OnDay(day)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), rng.End)
}
