package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWindow  = errors.New("window end must be after window start")
	ErrInvalidMinutes = errors.New("minutes must be positive")
	ErrUnknownRule    = errors.New("unknown rule kind")
)

// RuleKind identifies a constraint rule. The set is closed: free-text
// preferences are normalized into exactly these kinds by the extractor.
type RuleKind string

const (
	// RuleTimeWindowBlock forbids any placement inside the window.
	RuleTimeWindowBlock RuleKind = "time_window_block"
	// RuleTimeWindowPrefer steers placements into the window when possible.
	RuleTimeWindowPrefer RuleKind = "time_window_prefer"
	// RuleMinBreak reserves idle minutes once per half-day.
	RuleMinBreak RuleKind = "min_break"
	// RuleMaxContinuousWork caps contiguous busy minutes.
	RuleMaxContinuousWork RuleKind = "max_continuous_work"
)

// ClockWindow is a daily window in minutes since midnight, end-exclusive.
type ClockWindow struct {
	StartMinute int
	EndMinute   int
}

// OnDay materializes the window on a calendar date.
func (w ClockWindow) OnDay(day time.Time) TimeRange {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return TimeRange{
		Start: midnight.Add(time.Duration(w.StartMinute) * time.Minute),
		End:   midnight.Add(time.Duration(w.EndMinute) * time.Minute),
	}
}

// Rule is a normalized scheduling preference. Window kinds carry a
// ClockWindow; duration kinds carry Minutes.
type Rule struct {
	Kind    RuleKind
	Window  ClockWindow
	Minutes int
	Source  string // the free-text line this rule was parsed from
}

// Validate checks the rule for structural errors before it is applied.
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleTimeWindowBlock, RuleTimeWindowPrefer:
		if r.Window.EndMinute <= r.Window.StartMinute ||
			r.Window.StartMinute < 0 || r.Window.EndMinute > 24*60 {
			return fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, r.Window.StartMinute, r.Window.EndMinute)
		}
	case RuleMinBreak, RuleMaxContinuousWork:
		if r.Minutes <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMinutes, r.Minutes)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRule, r.Kind)
	}
	return nil
}

// RuleSet holds the active constraints, at most one rule per kind.
// Rules of the same kind merge last-write-wins rather than accumulating.
type RuleSet struct {
	rules map[RuleKind]Rule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[RuleKind]Rule)}
}

// Merge validates and applies rules in order, last write per kind winning.
// On the first invalid rule nothing is applied, so a bad parse never
// partially replaces the active constraints.
func (rs *RuleSet) Merge(rules ...Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, r := range rules {
		rs.rules[r.Kind] = r
	}
	return nil
}

// Rule returns the active rule of a kind, if any.
func (rs *RuleSet) Rule(kind RuleKind) (Rule, bool) {
	r, ok := rs.rules[kind]
	return r, ok
}

// Len returns the number of active rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// BlockWindow returns the blocked window materialized on a date.
func (rs *RuleSet) BlockWindow(day time.Time) (TimeRange, bool) {
	r, ok := rs.rules[RuleTimeWindowBlock]
	if !ok {
		return TimeRange{}, false
	}
	return r.Window.OnDay(day), true
}

// PreferWindow returns the preferred window materialized on a date.
// A block rule covering the prefer window wins: the returned window is
// reduced by the blocked range and dropped entirely when nothing remains.
func (rs *RuleSet) PreferWindow(day time.Time) (TimeRange, bool) {
	r, ok := rs.rules[RuleTimeWindowPrefer]
	if !ok {
		return TimeRange{}, false
	}
	prefer := r.Window.OnDay(day)
	block, blocked := rs.BlockWindow(day)
	if !blocked {
		return prefer, true
	}
	remaining := prefer.Subtract(block)
	if len(remaining) == 0 {
		return TimeRange{}, false
	}
	// Keep the largest surviving piece.
	largest := remaining[0]
	for _, piece := range remaining[1:] {
		if piece.Duration() > largest.Duration() {
			largest = piece
		}
	}
	return largest, true
}

// MinBreak returns the mandated break length, zero when unset.
func (rs *RuleSet) MinBreak() time.Duration {
	r, ok := rs.rules[RuleMinBreak]
	if !ok {
		return 0
	}
	return time.Duration(r.Minutes) * time.Minute
}

// MaxContinuousWork returns the contiguous busy ceiling, zero when unset.
func (rs *RuleSet) MaxContinuousWork() time.Duration {
	r, ok := rs.rules[RuleMaxContinuousWork]
	if !ok {
		return 0
	}
	return time.Duration(r.Minutes) * time.Minute
}

// Clone returns an independent copy of the rule set.
func (rs *RuleSet) Clone() *RuleSet {
	out := NewRuleSet()
	for k, v := range rs.rules {
		out.rules[k] = v
	}
	return out
}
