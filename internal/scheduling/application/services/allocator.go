package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// ReasonNoFittingWindow marks a task the allocator could not place.
const ReasonNoFittingWindow = "no_fitting_window"

// defaultAdjacencyBreak separates a placement from an adjacent busy run when
// no explicit min_break rule is active.
const defaultAdjacencyBreak = 15 * time.Minute

// PlanRequest is one allocation pass over a working window.
type PlanRequest struct {
	Window domain.TimeRange
	Now    time.Time
	Tasks  []*domain.Task
	Events []domain.CalendarEvent
	Rules  *domain.RuleSet
}

// Placement assigns a task an interval inside the window.
type Placement struct {
	Task      *domain.Task
	Interval  domain.TimeRange
	Preferred bool
}

// Relocation moves a flexible event to make room for a higher-urgency task.
type Relocation struct {
	Event domain.CalendarEvent
	To    domain.TimeRange
}

// Unplaced is a task the allocator left pending, with the reason.
type Unplaced struct {
	Task   *domain.Task
	Reason string
}

// Plan is the allocator's output. It describes mutations without applying
// them; committing placements to the calendar store is the caller's job.
type Plan struct {
	Placements     []Placement
	Relocations    []Relocation
	Unplaced       []Unplaced
	Reasoning      []string
	ProtectedBreak time.Duration
}

// HasChanges reports whether the plan mutates the calendar.
func (p Plan) HasChanges() bool {
	return len(p.Placements) > 0 || len(p.Relocations) > 0
}

// SlotAllocator fits pending tasks into free calendar gaps under the active
// constraint rules. Allocation is deterministic: the same request always
// yields the same plan.
type SlotAllocator struct {
	scorer *UrgencyScorer
}

// NewSlotAllocator creates an allocator.
func NewSlotAllocator(scorer *UrgencyScorer) *SlotAllocator {
	return &SlotAllocator{scorer: scorer}
}

// Allocate plans every pending task in urgency order. Tasks that fit nowhere
// are reported as unplaced rather than forcing a constraint violation: a
// placement never overlaps an event, never enters a blocked window, and
// never extends a contiguous busy run past the max_continuous_work cap.
func (a *SlotAllocator) Allocate(req PlanRequest) Plan {
	var plan Plan

	window := req.Window
	if req.Now.After(window.Start) {
		window.Start = req.Now
	}
	if !window.End.After(window.Start) {
		for _, t := range pendingOf(req.Tasks) {
			plan.Unplaced = append(plan.Unplaced, Unplaced{Task: t, Reason: ReasonNoFittingWindow})
		}
		return plan
	}

	rules := req.Rules
	if rules == nil {
		rules = domain.NewRuleSet()
	}

	events := make([]domain.CalendarEvent, len(req.Events))
	copy(events, req.Events)

	pending := pendingOf(req.Tasks)
	ranked := a.scorer.Rank(pending, req.Now)
	if len(ranked) > 0 {
		plan.Reasoning = append(plan.Reasoning,
			fmt.Sprintf("%d pending task(s) ranked by urgency", len(ranked)))
		if block, ok := rules.BlockWindow(window.Start); ok {
			if _, overlaps := block.Intersect(window); overlaps {
				plan.Reasoning = append(plan.Reasoning,
					fmt.Sprintf("kept %s-%s free to respect a blocked window",
						block.Start.Format("15:04"), block.End.Format("15:04")))
			}
		}
	}

	var placed []domain.TimeRange
	for _, task := range ranked {
		gaps, _ := freeGaps(window, events, placed, rules)

		iv, preferred, ok := a.placeInGaps(task, gaps, window, events, placed, rules)
		if ok {
			placed = append(placed, iv)
			plan.Placements = append(plan.Placements, Placement{Task: task, Interval: iv, Preferred: preferred})
			if d := task.Deadline(); d != nil {
				plan.Reasoning = append(plan.Reasoning, deadlineNote(task.Title(), req.Now, *d))
			}
			continue
		}

		// Single-hop displacement: move one flexible event later in the
		// window if that frees a fitting slot and the event itself still
		// fits afterwards.
		if reloc, iv2, ok2 := a.displaceFor(task, window, events, placed, rules); ok2 {
			for i := range events {
				if events[i].ID == reloc.Event.ID {
					events[i].Interval = reloc.To
					break
				}
			}
			placed = append(placed, iv2)
			plan.Relocations = append(plan.Relocations, reloc)
			plan.Placements = append(plan.Placements, Placement{Task: task, Interval: iv2})
			plan.Reasoning = append(plan.Reasoning,
				fmt.Sprintf("moved %q to fit %q", reloc.Event.Title, task.Title()))
			if d := task.Deadline(); d != nil {
				plan.Reasoning = append(plan.Reasoning, deadlineNote(task.Title(), req.Now, *d))
			}
			continue
		}

		plan.Unplaced = append(plan.Unplaced, Unplaced{Task: task, Reason: ReasonNoFittingWindow})
		plan.Reasoning = append(plan.Reasoning,
			fmt.Sprintf("left %q pending: no fitting window", task.Title()))
	}

	// The protected break is what the final calendar actually keeps clear.
	_, protected := freeGaps(window, events, placed, rules)
	plan.ProtectedBreak = protected
	return plan
}

// deadlineNote explains how a deadline contributed to a task's placement.
func deadlineNote(title string, now, deadline time.Time) string {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return fmt.Sprintf("%q is past its deadline and was scheduled at maximum urgency", title)
	}
	return fmt.Sprintf("%q deadline in %s raised its urgency", title, remainingLabel(remaining))
}

func remainingLabel(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Round(time.Hour).Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// placeInGaps tries the prefer window first, then the earliest fit anywhere.
func (a *SlotAllocator) placeInGaps(
	task *domain.Task,
	gaps []domain.TimeRange,
	window domain.TimeRange,
	events []domain.CalendarEvent,
	placed []domain.TimeRange,
	rules *domain.RuleSet,
) (domain.TimeRange, bool, bool) {
	workCap := rules.MaxContinuousWork()
	if workCap > 0 && task.Duration() > workCap {
		return domain.TimeRange{}, false, false
	}
	busy := mergedBusy(window, events, placed)

	if prefer, ok := rules.PreferWindow(window.Start); ok {
		for _, gap := range gaps {
			start := gap.Start
			if prefer.Start.After(start) {
				start = prefer.Start
			}
			if !start.Before(prefer.End) {
				continue
			}
			if iv, ok := fitInGap(task.Duration(), gap, start, busy, rules); ok && iv.Start.Before(prefer.End) {
				return iv, true, true
			}
		}
	}

	for _, gap := range gaps {
		if iv, ok := fitInGap(task.Duration(), gap, gap.Start, busy, rules); ok {
			return iv, false, true
		}
	}
	return domain.TimeRange{}, false, false
}

// fitInGap positions a block of the given length at the requested start
// within the gap, shifting later by a short break when the adjacent busy run
// would exceed the continuous-work cap.
func fitInGap(
	dur time.Duration,
	gap domain.TimeRange,
	start time.Time,
	busy []domain.TimeRange,
	rules *domain.RuleSet,
) (domain.TimeRange, bool) {
	if start.Before(gap.Start) {
		start = gap.Start
	}
	iv := domain.TimeRange{Start: start, End: start.Add(dur)}
	if iv.End.After(gap.End) {
		return domain.TimeRange{}, false
	}
	workCap := rules.MaxContinuousWork()
	if workCap <= 0 || continuousRun(iv, busy) <= workCap {
		return iv, true
	}

	lead := rules.MinBreak()
	if lead <= 0 {
		lead = defaultAdjacencyBreak
	}
	shifted := domain.TimeRange{Start: start.Add(lead), End: start.Add(lead + dur)}
	if shifted.End.After(gap.End) {
		return domain.TimeRange{}, false
	}
	if continuousRun(shifted, busy) <= workCap {
		return shifted, true
	}
	return domain.TimeRange{}, false
}

// displaceFor picks the lowest-priority flexible event overlapping usable
// space, simulates removing it, and checks that both the task and the
// displaced event fit afterwards.
func (a *SlotAllocator) displaceFor(
	task *domain.Task,
	window domain.TimeRange,
	events []domain.CalendarEvent,
	placed []domain.TimeRange,
	rules *domain.RuleSet,
) (Relocation, domain.TimeRange, bool) {
	var candidates []domain.CalendarEvent
	for _, ev := range events {
		if ev.IsFixed() || !ev.Interval.Overlaps(window) {
			continue
		}
		if ev.Priority.Rank() <= task.Priority().Rank() {
			continue
		}
		candidates = append(candidates, ev)
	}
	// Lowest priority first, earliest start breaking ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority.Rank() != candidates[j].Priority.Rank() {
			return candidates[i].Priority.Rank() > candidates[j].Priority.Rank()
		}
		if !candidates[i].Interval.Start.Equal(candidates[j].Interval.Start) {
			return candidates[i].Interval.Start.Before(candidates[j].Interval.Start)
		}
		return candidates[i].ID < candidates[j].ID
	})

	for _, victim := range candidates {
		remaining := withoutEvent(events, victim.ID)

		gaps, _ := freeGaps(window, remaining, placed, rules)
		iv, _, ok := a.placeInGaps(task, gaps, window, remaining, placed, rules)
		if !ok {
			continue
		}

		// The victim must land after its original start without another hop.
		afterTask := append([]domain.TimeRange{iv}, placed...)
		gaps2, _ := freeGaps(window, remaining, afterTask, rules)
		busy2 := mergedBusy(window, remaining, afterTask)
		for _, gap := range gaps2 {
			start := gap.Start
			if victim.Interval.Start.After(start) {
				start = victim.Interval.Start
			}
			to, ok2 := fitInGap(victim.Duration(), gap, start, busy2, rules)
			if !ok2 {
				continue
			}
			return Relocation{Event: victim, To: to}, iv, true
		}
	}
	return Relocation{}, domain.TimeRange{}, false
}

// freeGaps computes the plannable gaps of the window: the complement of all
// busy intervals, minus the blocked window, minus one reserved break per
// half-day when a min_break rule is active. Returns the gaps and the total
// break time protected.
func freeGaps(
	window domain.TimeRange,
	events []domain.CalendarEvent,
	placed []domain.TimeRange,
	rules *domain.RuleSet,
) ([]domain.TimeRange, time.Duration) {
	busy := mergedBusy(window, events, placed)

	gaps := []domain.TimeRange{window}
	for _, b := range busy {
		gaps = subtractAll(gaps, b)
	}
	if block, ok := rules.BlockWindow(window.Start); ok {
		gaps = subtractAll(gaps, block)
	}

	var protected time.Duration
	if br := rules.MinBreak(); br > 0 {
		mid := window.Start.Add(window.Duration() / 2)
		halves := []domain.TimeRange{
			{Start: window.Start, End: mid},
			{Start: mid, End: window.End},
		}
		for _, half := range halves {
			if idx := breakGapIn(gaps, half, br); idx >= 0 {
				gaps[idx].End = gaps[idx].End.Add(-br)
				protected += br
			}
		}
		// Drop gaps the reservation emptied.
		kept := gaps[:0]
		for _, g := range gaps {
			if g.End.After(g.Start) {
				kept = append(kept, g)
			}
		}
		gaps = kept
	}
	return gaps, protected
}

// breakGapIn returns the index of the smallest gap starting inside the
// half-day that can spare the break, or -1. Taking the break out of the
// smallest adequate gap keeps the large gaps whole for long tasks.
func breakGapIn(gaps []domain.TimeRange, half domain.TimeRange, br time.Duration) int {
	best := -1
	for i, g := range gaps {
		if !half.Contains(g.Start) || g.Duration() < br {
			continue
		}
		if best < 0 || g.Duration() < gaps[best].Duration() {
			best = i
		}
	}
	return best
}

// mergedBusy clips event intervals and placements to the window and merges
// overlapping or touching ranges into maximal busy runs, sorted by start.
func mergedBusy(window domain.TimeRange, events []domain.CalendarEvent, placed []domain.TimeRange) []domain.TimeRange {
	var ranges []domain.TimeRange
	for _, ev := range events {
		if iv, ok := ev.Interval.Intersect(window); ok {
			ranges = append(ranges, iv)
		}
	}
	for _, p := range placed {
		if iv, ok := p.Intersect(window); ok {
			ranges = append(ranges, iv)
		}
	}
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })

	merged := []domain.TimeRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// continuousRun returns the length of the busy run the interval would join,
// counting merged busy blocks touching it on either side.
func continuousRun(iv domain.TimeRange, busy []domain.TimeRange) time.Duration {
	run := iv.Duration()
	for _, b := range busy {
		if b.End.Equal(iv.Start) {
			run += b.Duration()
		}
		if b.Start.Equal(iv.End) {
			run += b.Duration()
		}
	}
	return run
}

func subtractAll(gaps []domain.TimeRange, r domain.TimeRange) []domain.TimeRange {
	var out []domain.TimeRange
	for _, g := range gaps {
		out = append(out, g.Subtract(r)...)
	}
	return out
}

func withoutEvent(events []domain.CalendarEvent, id string) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, len(events)-1)
	for _, ev := range events {
		if ev.ID != id {
			out = append(out, ev)
		}
	}
	return out
}

func pendingOf(tasks []*domain.Task) []*domain.Task {
	var out []*domain.Task
	for _, t := range tasks {
		if t.IsPending() {
			out = append(out, t)
		}
	}
	return out
}
