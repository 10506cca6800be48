// Package prefs turns free-text scheduling preferences into the closed set
// of constraint rules the allocator understands.
package prefs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var ErrUnparsableTime = errors.New("unparsable time of day")

// Extractor converts preference text into constraint rules. Implementations
// may be heuristic or model-backed; the engine only consumes validated rules.
type Extractor interface {
	Extract(text string) ([]domain.Rule, error)
}

// RuleBasedExtractor parses preferences line by line with keyword and time
// patterns. Lines that match no known pattern are ignored rather than
// rejected, so general remarks do not block the recognized rules.
type RuleBasedExtractor struct{}

// NewRuleBasedExtractor creates the default heuristic extractor.
func NewRuleBasedExtractor() *RuleBasedExtractor {
	return &RuleBasedExtractor{}
}

var (
	afterRe   = regexp.MustCompile(`after\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	beforeRe  = regexp.MustCompile(`before\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	minutesRe = regexp.MustCompile(`(\d+)\s*(?:min|mins|minute|minutes)`)
	hoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:h|hr|hrs|hour|hours)`)
)

const (
	defaultBreakMinutes = 30

	morningStartMinute   = 6 * 60
	morningEndMinute     = 12 * 60
	afternoonStartMinute = 12 * 60
	afternoonEndMinute   = 18 * 60
	eveningStartMinute   = 18 * 60
	eveningEndMinute     = 22 * 60
)

// Extract parses every non-empty line and returns the recognized rules in
// input order. A line that clearly states a rule but carries a time the
// parser cannot read returns an error and no rules, so a bad update never
// partially applies.
func (e *RuleBasedExtractor) Extract(text string) ([]domain.Rule, error) {
	var rules []domain.Rule
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		rule, ok, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		if ok {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func parseLine(line string) (domain.Rule, bool, error) {
	lower := strings.ToLower(line)

	avoiding := strings.Contains(lower, "avoid") || strings.Contains(lower, "no ") ||
		strings.Contains(lower, "don't") || strings.Contains(lower, "not ")

	switch {
	case avoiding && afterRe.MatchString(lower):
		start, err := matchedMinute(afterRe.FindStringSubmatch(lower))
		if err != nil {
			return domain.Rule{}, false, err
		}
		return domain.Rule{
			Kind:   domain.RuleTimeWindowBlock,
			Window: domain.ClockWindow{StartMinute: start, EndMinute: 24 * 60},
			Source: line,
		}, true, nil

	case avoiding && beforeRe.MatchString(lower):
		end, err := matchedMinute(beforeRe.FindStringSubmatch(lower))
		if err != nil {
			return domain.Rule{}, false, err
		}
		return domain.Rule{
			Kind:   domain.RuleTimeWindowBlock,
			Window: domain.ClockWindow{StartMinute: 0, EndMinute: end},
			Source: line,
		}, true, nil

	case strings.Contains(lower, "deep work") || strings.Contains(lower, "focus"):
		window, err := preferWindow(lower)
		if err != nil {
			return domain.Rule{}, false, err
		}
		return domain.Rule{
			Kind:   domain.RuleTimeWindowPrefer,
			Window: window,
			Source: line,
		}, true, nil

	case strings.Contains(lower, "break") || strings.Contains(lower, "rest") ||
		strings.Contains(lower, "lunch") || strings.Contains(lower, "downtime"):
		minutes := defaultBreakMinutes
		if m := minutesRe.FindStringSubmatch(lower); m != nil {
			minutes, _ = strconv.Atoi(m[1])
		} else if m := hoursRe.FindStringSubmatch(lower); m != nil {
			h, _ := strconv.ParseFloat(m[1], 64)
			minutes = int(h * 60)
		}
		return domain.Rule{
			Kind:    domain.RuleMinBreak,
			Minutes: minutes,
			Source:  line,
		}, true, nil

	case (strings.Contains(lower, "max") || strings.Contains(lower, "no more than") ||
		strings.Contains(lower, "at most") || strings.Contains(lower, "in a row") ||
		strings.Contains(lower, "straight")) && hoursRe.MatchString(lower):
		m := hoursRe.FindStringSubmatch(lower)
		h, _ := strconv.ParseFloat(m[1], 64)
		return domain.Rule{
			Kind:    domain.RuleMaxContinuousWork,
			Minutes: int(h * 60),
			Source:  line,
		}, true, nil
	}

	return domain.Rule{}, false, nil
}

// preferWindow resolves a focus preference to a daily window. Explicit
// before/after times win over the named day parts; an unqualified focus
// preference defaults to the morning.
func preferWindow(lower string) (domain.ClockWindow, error) {
	if m := beforeRe.FindStringSubmatch(lower); m != nil {
		end, err := matchedMinute(m)
		if err != nil {
			return domain.ClockWindow{}, err
		}
		return domain.ClockWindow{StartMinute: morningStartMinute, EndMinute: end}, nil
	}
	if m := afterRe.FindStringSubmatch(lower); m != nil {
		start, err := matchedMinute(m)
		if err != nil {
			return domain.ClockWindow{}, err
		}
		return domain.ClockWindow{StartMinute: start, EndMinute: eveningEndMinute}, nil
	}
	switch {
	case strings.Contains(lower, "afternoon"):
		return domain.ClockWindow{StartMinute: afternoonStartMinute, EndMinute: afternoonEndMinute}, nil
	case strings.Contains(lower, "evening") || strings.Contains(lower, "night"):
		return domain.ClockWindow{StartMinute: eveningStartMinute, EndMinute: eveningEndMinute}, nil
	default:
		return domain.ClockWindow{StartMinute: morningStartMinute, EndMinute: morningEndMinute}, nil
	}
}

// matchedMinute converts a time-pattern submatch (hour, optional minutes,
// optional am/pm) to minutes since midnight. Bare hours up to 23 are read
// as 24-hour clock; "12am" is midnight and "12pm" is noon.
func matchedMinute(m []string) (int, error) {
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, m[0])
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, m[0])
		}
	}
	switch m[3] {
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, m[0])
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, m[0])
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, m[0])
		}
	}
	return hour*60 + minute, nil
}
