package services

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocator() *SlotAllocator {
	return NewSlotAllocator(NewUrgencyScorer())
}

func window9to18() domain.TimeRange {
	return domain.TimeRange{Start: dayAt(9, 0), End: dayAt(18, 0)}
}

func deepWorkMorning() domain.Rule {
	return domain.Rule{
		Kind:   domain.RuleTimeWindowPrefer,
		Window: domain.ClockWindow{StartMinute: 6 * 60, EndMinute: 12 * 60},
		Source: "deep work in the mornings",
	}
}

func noMeetingsAfter18() domain.Rule {
	return domain.Rule{
		Kind:   domain.RuleTimeWindowBlock,
		Window: domain.ClockWindow{StartMinute: 18 * 60, EndMinute: 24 * 60},
		Source: "no meetings after 6pm",
	}
}

func middayBreak() domain.Rule {
	return domain.Rule{Kind: domain.RuleMinBreak, Minutes: 30, Source: "keep a midday break"}
}

func TestSlotAllocator_InitialPlanScenario(t *testing.T) {
	sessionID := uuid.New()
	now := dayAt(9, 0)

	deadline := now.Add(20 * time.Hour)
	pitch, err := domain.NewTask(sessionID, "pitch-deck", domain.PriorityUrgent, 3*time.Hour, &deadline)
	require.NoError(t, err)
	legal, err := domain.NewTask(sessionID, "legal-review", domain.PriorityMedium, time.Hour, nil)
	require.NoError(t, err)
	emails, err := domain.NewTask(sessionID, "emails", domain.PriorityLow, 30*time.Minute, nil)
	require.NoError(t, err)
	roadmap, err := domain.NewTask(sessionID, "roadmap", domain.PriorityMedium, time.Hour, nil)
	require.NoError(t, err)

	flexible := flexEvent("evt-flex", dayAt(13, 0), dayAt(13, 30))
	events := []domain.CalendarEvent{
		fixedEvent("evt-standup", dayAt(9, 0), dayAt(9, 30)),
		fixedEvent("evt-sync", dayAt(10, 0), dayAt(11, 0)),
		fixedEvent("evt-1on1", dayAt(11, 30), dayAt(12, 0)),
		flexible,
		fixedEvent("evt-demo", dayAt(15, 0), dayAt(16, 0)),
	}

	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(deepWorkMorning(), noMeetingsAfter18(), middayBreak()))

	plan := newAllocator().Allocate(PlanRequest{
		Window: window9to18(),
		Now:    now,
		Tasks:  []*domain.Task{pitch, legal, emails, roadmap},
		Events: events,
		Rules:  rules,
	})

	byTitle := make(map[string]Placement)
	for _, p := range plan.Placements {
		byTitle[p.Task.Title()] = p
	}

	// The urgent three hour block only exists once the flexible event moves.
	pitchPlacement, ok := byTitle["pitch-deck"]
	require.True(t, ok, "pitch-deck must be placed")
	assert.Equal(t, 3*time.Hour, pitchPlacement.Interval.Duration())
	assert.Equal(t, dayAt(12, 0), pitchPlacement.Interval.Start)

	require.Len(t, plan.Relocations, 1)
	assert.Equal(t, "evt-flex", plan.Relocations[0].Event.ID)
	assert.True(t, plan.Relocations[0].To.Start.After(flexible.Interval.Start),
		"flexible event is relocated later, not removed")

	// The low priority catch-up lands in the preferred morning window.
	emailsPlacement, ok := byTitle["emails"]
	require.True(t, ok, "emails must be placed")
	assert.True(t, emailsPlacement.Preferred)
	assert.Equal(t, dayAt(11, 0), emailsPlacement.Interval.Start)

	// The day cannot hold both hour-long medium tasks; exactly one is placed
	// and the other stays pending with the standard reason.
	_, legalPlaced := byTitle["legal-review"]
	_, roadmapPlaced := byTitle["roadmap"]
	assert.True(t, legalPlaced != roadmapPlaced, "exactly one of the medium tasks fits")
	require.Len(t, plan.Unplaced, 1)
	assert.Equal(t, ReasonNoFittingWindow, plan.Unplaced[0].Reason)

	// A midday break survived in each half of the day.
	assert.Equal(t, time.Hour, plan.ProtectedBreak)

	// The audit trail explains the urgent pick.
	deadlineCited := false
	for _, line := range plan.Reasoning {
		if strings.Contains(line, "pitch-deck") && strings.Contains(line, "deadline") {
			deadlineCited = true
		}
	}
	assert.True(t, deadlineCited, "reasoning cites the pitch-deck deadline, got %v", plan.Reasoning)

	assertPlanIsSafe(t, plan, events, rules, window9to18())
}

func TestSlotAllocator_ReasoningCitesBlockedWindow(t *testing.T) {
	sessionID := uuid.New()
	task, err := domain.NewTask(sessionID, "write brief", domain.PriorityHigh, time.Hour, nil)
	require.NoError(t, err)

	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(domain.Rule{
		Kind:   domain.RuleTimeWindowBlock,
		Window: domain.ClockWindow{StartMinute: 0, EndMinute: 10 * 60},
		Source: "no work before 10am",
	}))

	plan := newAllocator().Allocate(PlanRequest{
		Window: window9to18(),
		Now:    dayAt(9, 0),
		Tasks:  []*domain.Task{task},
		Events: nil,
		Rules:  rules,
	})

	require.Len(t, plan.Placements, 1)
	assert.Equal(t, dayAt(10, 0), plan.Placements[0].Interval.Start)

	blockCited := false
	for _, line := range plan.Reasoning {
		if strings.Contains(line, "blocked window") {
			blockCited = true
		}
	}
	assert.True(t, blockCited, "reasoning cites the blocked window, got %v", plan.Reasoning)
}

func TestSlotAllocator_ProtectedBreakWithoutPendingTasks(t *testing.T) {
	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(middayBreak()))

	events := []domain.CalendarEvent{fixedEvent("evt-lunch", dayAt(13, 0), dayAt(13, 30))}

	plan := newAllocator().Allocate(PlanRequest{
		Window: window9to18(),
		Now:    dayAt(9, 0),
		Tasks:  nil,
		Events: events,
		Rules:  rules,
	})

	assert.Empty(t, plan.Placements)
	// One break is reserved in each half of the day even when there is
	// nothing to place.
	assert.Equal(t, time.Hour, plan.ProtectedBreak)
}

func TestSlotAllocator_Idempotence(t *testing.T) {
	sessionID := uuid.New()
	now := dayAt(9, 0)
	task, err := domain.NewTask(sessionID, "write report", domain.PriorityHigh, time.Hour, nil)
	require.NoError(t, err)

	events := []domain.CalendarEvent{fixedEvent("evt-a", dayAt(10, 0), dayAt(11, 0))}

	alloc := newAllocator()
	first := alloc.Allocate(PlanRequest{
		Window: window9to18(),
		Now:    now,
		Tasks:  []*domain.Task{task},
		Events: events,
		Rules:  domain.NewRuleSet(),
	})
	require.Len(t, first.Placements, 1)

	// Commit the plan, then run again with no new work.
	require.NoError(t, task.MarkScheduled(first.Placements[0].Interval))
	events = append(events, domain.CalendarEvent{
		ID:          "evt-chief",
		Title:       task.Title(),
		Interval:    first.Placements[0].Interval,
		Flexibility: domain.FlexibilityFlexible,
		Origin:      domain.OriginChief,
		Priority:    task.Priority(),
	})

	second := alloc.Allocate(PlanRequest{
		Window: window9to18(),
		Now:    now,
		Tasks:  []*domain.Task{task},
		Events: events,
		Rules:  domain.NewRuleSet(),
	})

	assert.Empty(t, second.Placements)
	assert.Empty(t, second.Relocations)
	assert.Empty(t, second.Unplaced)
}

func TestSlotAllocator_OversizedTaskLeftPending(t *testing.T) {
	sessionID := uuid.New()
	task, err := domain.NewTask(sessionID, "offsite prep", domain.PriorityUrgent, 5*time.Hour, nil)
	require.NoError(t, err)

	events := []domain.CalendarEvent{fixedEvent("evt-mid", dayAt(12, 0), dayAt(13, 0))}

	plan := newAllocator().Allocate(PlanRequest{
		Window: domain.TimeRange{Start: dayAt(9, 0), End: dayAt(17, 0)},
		Now:    dayAt(9, 0),
		Tasks:  []*domain.Task{task},
		Events: events,
		Rules:  domain.NewRuleSet(),
	})

	assert.Empty(t, plan.Placements)
	assert.Empty(t, plan.Relocations)
	require.Len(t, plan.Unplaced, 1)
	assert.Equal(t, ReasonNoFittingWindow, plan.Unplaced[0].Reason)
}

func TestSlotAllocator_MaxContinuousWorkShiftsStart(t *testing.T) {
	sessionID := uuid.New()
	task, err := domain.NewTask(sessionID, "deep work", domain.PriorityHigh, time.Hour, nil)
	require.NoError(t, err)

	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(domain.Rule{Kind: domain.RuleMaxContinuousWork, Minutes: 120}))

	events := []domain.CalendarEvent{fixedEvent("evt-long", dayAt(9, 0), dayAt(11, 0))}

	plan := newAllocator().Allocate(PlanRequest{
		Window: domain.TimeRange{Start: dayAt(9, 0), End: dayAt(17, 0)},
		Now:    dayAt(9, 0),
		Tasks:  []*domain.Task{task},
		Events: events,
		Rules:  rules,
	})

	require.Len(t, plan.Placements, 1)
	// Starting at 11:00 would join the two hour meeting into a three hour
	// run, so the placement is pushed past a short break.
	assert.Equal(t, dayAt(11, 15), plan.Placements[0].Interval.Start)
}

func TestSlotAllocator_MaxContinuousWorkRejectsOversizedTask(t *testing.T) {
	sessionID := uuid.New()
	task, err := domain.NewTask(sessionID, "marathon", domain.PriorityUrgent, 3*time.Hour, nil)
	require.NoError(t, err)

	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(domain.Rule{Kind: domain.RuleMaxContinuousWork, Minutes: 120}))

	plan := newAllocator().Allocate(PlanRequest{
		Window: domain.TimeRange{Start: dayAt(9, 0), End: dayAt(17, 0)},
		Now:    dayAt(9, 0),
		Tasks:  []*domain.Task{task},
		Events: nil,
		Rules:  rules,
	})

	assert.Empty(t, plan.Placements)
	require.Len(t, plan.Unplaced, 1)
	assert.Equal(t, ReasonNoFittingWindow, plan.Unplaced[0].Reason)
}

func TestSlotAllocator_DisplacesLowestPriorityFlexible(t *testing.T) {
	sessionID := uuid.New()
	task, err := domain.NewTask(sessionID, "quarterly planning", domain.PriorityUrgent, 390*time.Minute, nil)
	require.NoError(t, err)

	victim := flexEvent("evt-victim", dayAt(10, 0), dayAt(11, 0))
	victim.Priority = domain.PriorityLow
	events := []domain.CalendarEvent{
		fixedEvent("evt-standup", dayAt(9, 0), dayAt(9, 30)),
		victim,
	}

	plan := newAllocator().Allocate(PlanRequest{
		Window: domain.TimeRange{Start: dayAt(9, 0), End: dayAt(17, 0)},
		Now:    dayAt(9, 0),
		Tasks:  []*domain.Task{task},
		Events: events,
		Rules:  domain.NewRuleSet(),
	})

	require.Len(t, plan.Placements, 1)
	assert.Equal(t, dayAt(9, 30), plan.Placements[0].Interval.Start)
	assert.Equal(t, dayAt(16, 0), plan.Placements[0].Interval.End)

	require.Len(t, plan.Relocations, 1)
	assert.Equal(t, "evt-victim", plan.Relocations[0].Event.ID)
	assert.Equal(t, dayAt(16, 0), plan.Relocations[0].To.Start)
	assert.Equal(t, dayAt(17, 0), plan.Relocations[0].To.End)
}

// assertPlanIsSafe checks the hard allocator invariants: placements stay in
// the window, never overlap anything, and never touch a blocked range.
func assertPlanIsSafe(t *testing.T, plan Plan, events []domain.CalendarEvent, rules *domain.RuleSet, window domain.TimeRange) {
	t.Helper()

	final := applyMoves(events, plan.Relocations)
	var occupied []domain.TimeRange
	for _, ev := range final {
		occupied = append(occupied, ev.Interval)
	}

	block, hasBlock := rules.BlockWindow(window.Start)
	check := func(label string, iv domain.TimeRange) {
		assert.True(t, window.Covers(iv), "%s escapes the window: %v", label, iv)
		if hasBlock {
			assert.False(t, iv.Overlaps(block), "%s enters the blocked window: %v", label, iv)
		}
		for _, busy := range occupied {
			assert.False(t, iv.Overlaps(busy), "%s overlaps an event: %v", label, iv)
		}
		occupied = append(occupied, iv)
	}

	for _, p := range plan.Placements {
		check(p.Task.Title(), p.Interval)
	}
	if hasBlock {
		for _, rel := range plan.Relocations {
			assert.False(t, rel.To.Overlaps(block), "relocation enters the blocked window")
		}
	}
}

func TestSlotAllocator_BlockWindowSafetyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alloc := newAllocator()
	sessionID := uuid.New()

	rules := domain.NewRuleSet()
	require.NoError(t, rules.Merge(noMeetingsAfter18()))

	window := domain.TimeRange{Start: dayAt(9, 0), End: dayAt(20, 0)}

	for trial := 0; trial < 1000; trial++ {
		var events []domain.CalendarEvent
		for i := 0; i < rng.Intn(6); i++ {
			start := dayAt(9, 0).Add(time.Duration(rng.Intn(480)) * time.Minute)
			end := start.Add(time.Duration(15+rng.Intn(120)) * time.Minute)
			ev := fixedEvent(fmt.Sprintf("evt-%d-%d", trial, i), start, end)
			if rng.Intn(3) == 0 {
				ev.Flexibility = domain.FlexibilityFlexible
				ev.Priority = domain.PriorityLow
			}
			events = append(events, ev)
		}

		var tasks []*domain.Task
		priorities := []domain.Priority{
			domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow,
		}
		for i := 0; i < 1+rng.Intn(4); i++ {
			dur := time.Duration(15+rng.Intn(180)) * time.Minute
			task, err := domain.NewTask(sessionID, fmt.Sprintf("task-%d-%d", trial, i),
				priorities[rng.Intn(len(priorities))], dur, nil)
			require.NoError(t, err)
			tasks = append(tasks, task)
		}

		plan := alloc.Allocate(PlanRequest{
			Window: window,
			Now:    dayAt(9, 0),
			Tasks:  tasks,
			Events: events,
			Rules:  rules,
		})
		assertPlanIsSafe(t, plan, events, rules, window)
	}
}
