package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chiefhq/chief/internal/calendar"
	"github.com/chiefhq/chief/internal/scheduling/domain"
	sharedDomain "github.com/chiefhq/chief/internal/shared/domain"
	"github.com/chiefhq/chief/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// SessionStateStore persists the engine status of a session so a restarted
// process resumes where it left off.
type SessionStateStore interface {
	SetStatus(ctx context.Context, sessionID uuid.UUID, status domain.EngineState) error
	Status(ctx context.Context, sessionID uuid.UUID) (domain.EngineState, error)
}

// ReplannerConfig tunes the autonomous loop.
type ReplannerConfig struct {
	// Cadence is the interval between periodic evaluation passes while the
	// schedule is in motion.
	Cadence time.Duration

	// IdleCadence is the slower polling interval used once IdleAfterPasses
	// consecutive periodic passes produced no action.
	IdleCadence time.Duration

	// IdleAfterPasses is how many actionless passes in a row put the loop on
	// the idle cadence.
	IdleAfterPasses int

	// WorkDayStartHour and WorkDayEndHour bound the daily planning window.
	WorkDayStartHour int
	WorkDayEndHour   int

	// StoreRetries is how often a retryable calendar write is retried
	// before the pass gives up on it.
	StoreRetries int

	// StoreBackoff is the linear backoff base between write retries.
	StoreBackoff time.Duration

	// Clock supplies the current time, overridable in tests.
	Clock func() time.Time
}

// DefaultReplannerConfig returns the standard loop settings.
func DefaultReplannerConfig() ReplannerConfig {
	return ReplannerConfig{
		Cadence:          5 * time.Minute,
		IdleCadence:      30 * time.Minute,
		IdleAfterPasses:  3,
		WorkDayStartHour: 9,
		WorkDayEndHour:   17,
		StoreRetries:     2,
		StoreBackoff:     200 * time.Millisecond,
	}
}

// Replanner runs the autonomous scheduling loop for one session. A single
// goroutine owns all planning state; external calls communicate through
// channels, so no pass ever runs concurrently with another.
type Replanner struct {
	sessionID uuid.UUID
	tasks     domain.TaskRepository
	store     calendar.Store
	recorder  *DecisionRecorder
	detector  *ConflictDetector
	allocator *SlotAllocator
	states    SessionStateStore
	publisher eventbus.Publisher
	logger    *slog.Logger
	config    ReplannerConfig

	mu    sync.Mutex
	state domain.EngineState
	rules *domain.RuleSet

	wakeCh  chan domain.DecisionTrigger
	pauseCh chan bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReplanner wires the loop. The rule set starts empty; UpdateRules merges
// extracted preferences in.
func NewReplanner(
	sessionID uuid.UUID,
	tasks domain.TaskRepository,
	store calendar.Store,
	recorder *DecisionRecorder,
	detector *ConflictDetector,
	allocator *SlotAllocator,
	states SessionStateStore,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	config ReplannerConfig,
) *Replanner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Cadence <= 0 {
		config.Cadence = DefaultReplannerConfig().Cadence
	}
	if config.IdleCadence <= 0 {
		config.IdleCadence = config.Cadence
	}
	if config.IdleAfterPasses <= 0 {
		config.IdleAfterPasses = DefaultReplannerConfig().IdleAfterPasses
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Replanner{
		sessionID: sessionID,
		tasks:     tasks,
		store:     store,
		recorder:  recorder,
		detector:  detector,
		allocator: allocator,
		states:    states,
		publisher: publisher,
		logger:    logger,
		config:    config,
		state:     domain.StateIdle,
		rules:     domain.NewRuleSet(),
		wakeCh:    make(chan domain.DecisionTrigger, 8),
		pauseCh:   make(chan bool, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// State returns the current engine state.
func (r *Replanner) State() domain.EngineState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Rules returns a copy of the active constraint rules.
func (r *Replanner) Rules() *domain.RuleSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rules.Clone()
}

// UpdateRules merges extracted preference rules into the active set and
// wakes the loop. An invalid batch changes nothing.
func (r *Replanner) UpdateRules(rules ...domain.Rule) error {
	r.mu.Lock()
	err := r.rules.Merge(rules...)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.wake(domain.TriggerPreferencesChanged)
	return nil
}

// NotifyTaskAdded wakes the loop after a new task was persisted.
func (r *Replanner) NotifyTaskAdded() {
	r.wake(domain.TriggerNewTask)
}

// Pause suspends evaluation at the next wake boundary. A pass already in
// flight completes first.
func (r *Replanner) Pause() {
	select {
	case r.pauseCh <- true:
	default:
	}
}

// Resume continues a paused engine and immediately re-evaluates.
func (r *Replanner) Resume() {
	select {
	case r.pauseCh <- false:
	default:
	}
}

// Start transitions Idle -> Planning, runs the initial plan, then enters the
// autonomous loop until Stop or context cancellation.
func (r *Replanner) Start(ctx context.Context) error {
	if err := r.transition(ctx, domain.StatePlanning); err != nil {
		return err
	}
	if _, err := r.pass(ctx, domain.TriggerInitialPlan); err != nil {
		r.logger.Error("initial planning pass failed", "error", err)
	}
	if err := r.transition(ctx, domain.StateAutonomous); err != nil {
		return err
	}

	go r.loop(ctx)
	return nil
}

// Stop shuts the loop down and waits for it to drain.
func (r *Replanner) Stop(ctx context.Context) error {
	close(r.stopCh)
	select {
	case <-r.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.transition(context.WithoutCancel(ctx), domain.StateIdle)
}

func (r *Replanner) loop(ctx context.Context) {
	defer close(r.doneCh)

	cadence := cadenceControl{
		active: r.config.Cadence,
		idle:   r.config.IdleCadence,
		after:  r.config.IdleAfterPasses,
	}
	ticker := time.NewTicker(cadence.interval())
	defer ticker.Stop()

	retune := func(acted bool) {
		prev := cadence.interval()
		cadence.observe(acted)
		if cur := cadence.interval(); cur != prev {
			ticker.Reset(cur)
			r.logger.Debug("evaluation cadence changed", "interval", cur)
		}
	}

	paused := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case want := <-r.pauseCh:
			if want && !paused {
				paused = true
				if err := r.transition(ctx, domain.StatePaused); err != nil {
					r.logger.Error("pause transition failed", "error", err)
				}
			}
			if !want && paused {
				paused = false
				if err := r.transition(ctx, domain.StateAutonomous); err != nil {
					r.logger.Error("resume transition failed", "error", err)
					continue
				}
				r.runPass(ctx, "")
				retune(true)
			}
		case trigger := <-r.wakeCh:
			if paused {
				continue
			}
			// An external wake counts as activity regardless of the outcome.
			r.runPass(ctx, trigger)
			retune(true)
		case <-ticker.C:
			if paused {
				continue
			}
			retune(r.runPass(ctx, ""))
		}
	}
}

// cadenceControl picks the loop interval: the active cadence while passes
// keep producing actions, the idle cadence once the schedule has settled.
type cadenceControl struct {
	active time.Duration
	idle   time.Duration
	after  int
	quiet  int
}

func (c *cadenceControl) interval() time.Duration {
	if c.after > 0 && c.quiet >= c.after && c.idle > c.active {
		return c.idle
	}
	return c.active
}

func (c *cadenceControl) observe(acted bool) {
	if acted {
		c.quiet = 0
		return
	}
	c.quiet++
}

func (r *Replanner) runPass(ctx context.Context, trigger domain.DecisionTrigger) bool {
	if err := r.transition(ctx, domain.StateReplanning); err != nil {
		r.logger.Error("replanning transition failed", "error", err)
		return false
	}
	acted, err := r.pass(ctx, trigger)
	if err != nil {
		r.logger.Error("planning pass failed", "trigger", trigger, "error", err)
	}
	if err := r.transition(ctx, domain.StateAutonomous); err != nil {
		r.logger.Error("autonomous transition failed", "error", err)
	}
	return acted
}

// pass is one full evaluation: re-read the calendar, resolve conflicts,
// clear constraint violations, place pending tasks, commit, record. The
// returned bool reports whether the pass recorded any action.
func (r *Replanner) pass(ctx context.Context, requested domain.DecisionTrigger) (bool, error) {
	now := r.config.Clock()
	window := r.workWindow(now)
	rules := r.Rules()

	events, err := r.store.ListEvents(ctx, window)
	if err != nil {
		return false, fmt.Errorf("list events: %w", err)
	}
	pending, err := r.tasks.FindPending(ctx, r.sessionID)
	if err != nil {
		return false, fmt.Errorf("load pending tasks: %w", err)
	}

	if len(pending) > 0 {
		r.publishEvent(ctx, domain.NewPlanningStartedEvent(r.sessionID, requested, len(pending)))
	}

	var reasoning []string
	conflictMoves, conflictNotes := r.resolveConflicts(window, events, rules)
	reasoning = append(reasoning, conflictNotes...)
	events = applyMoves(events, conflictMoves)

	violationMoves, violationNotes := r.clearBlockViolations(window, events, rules)
	reasoning = append(reasoning, violationNotes...)
	events = applyMoves(events, violationMoves)

	plan := r.allocator.Allocate(PlanRequest{
		Window: window,
		Now:    now,
		Tasks:  pending,
		Events: events,
		Rules:  rules,
	})
	plan.Relocations = append(append(conflictMoves, violationMoves...), plan.Relocations...)
	plan.Reasoning = append(reasoning, plan.Reasoning...)

	if !plan.HasChanges() && (requested == "" || len(plan.Unplaced) == 0) {
		return false, nil
	}

	trigger := requested
	if trigger == "" {
		switch {
		case len(conflictMoves) > 0:
			trigger = domain.TriggerConflictDetected
		case len(violationMoves) > 0:
			trigger = domain.TriggerConstraintAvoided
		default:
			trigger = domain.TriggerReevaluation
		}
	}

	committed, commitErr := r.commit(ctx, plan)
	entry := EntryFromPlan(r.sessionID, trigger, passTitle(trigger), committed)
	if len(entry.Actions()) > 0 {
		if err := r.recorder.Record(ctx, entry); err != nil {
			r.logger.Error("failed to record decision", "error", err)
		}
	}
	return len(entry.Actions()) > 0, commitErr
}

// commit applies the plan to the calendar store and task repository. Each
// write retries transient failures; a write that still fails is rolled back
// from the plan and reported as a store failure entry.
func (r *Replanner) commit(ctx context.Context, plan Plan) (Plan, error) {
	committed := Plan{
		Reasoning:      plan.Reasoning,
		ProtectedBreak: plan.ProtectedBreak,
		Unplaced:       plan.Unplaced,
	}
	var failures []string
	var firstErr error

	for _, rel := range plan.Relocations {
		if _, err := r.moveWithRetry(ctx, rel.Event.ID, rel.To); err != nil {
			failures = append(failures, fmt.Sprintf("move %q failed: %v", rel.Event.Title, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		committed.Relocations = append(committed.Relocations, rel)
	}

	for _, p := range plan.Placements {
		ev := domain.CalendarEvent{
			Title:       p.Task.Title(),
			Interval:    p.Interval,
			Flexibility: domain.FlexibilityFlexible,
			Origin:      domain.OriginChief,
			Priority:    p.Task.Priority(),
		}
		if _, err := r.createWithRetry(ctx, ev); err != nil {
			failures = append(failures, fmt.Sprintf("create %q failed: %v", p.Task.Title(), err))
			if firstErr == nil {
				firstErr = err
			}
			committed.Unplaced = append(committed.Unplaced, Unplaced{Task: p.Task, Reason: "store_error"})
			continue
		}
		if err := p.Task.MarkScheduled(p.Interval); err != nil {
			r.logger.Error("task not schedulable", "task_id", p.Task.ID(), "error", err)
			continue
		}
		if err := r.tasks.Save(ctx, p.Task); err != nil {
			// The calendar write landed but the task row did not; roll the
			// task back so the next pass reconciles.
			p.Task.MarkPending()
			failures = append(failures, fmt.Sprintf("persist %q failed: %v", p.Task.Title(), err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		committed.Placements = append(committed.Placements, p)
	}

	if len(failures) > 0 {
		entry := domain.NewDecisionLogEntry(r.sessionID, domain.TriggerStoreFailure,
			"Calendar store writes failed", failures, nil, domain.DecisionImpact{})
		if err := r.recorder.Record(ctx, entry); err != nil {
			r.logger.Error("failed to record store failure", "error", err)
		}
	}
	return committed, firstErr
}

func (r *Replanner) moveWithRetry(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error) {
	var ev domain.CalendarEvent
	var err error
	for attempt := 0; attempt <= r.config.StoreRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.CalendarEvent{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * r.config.StoreBackoff):
			}
		}
		ev, err = r.store.MoveEvent(ctx, id, to)
		if err == nil || !calendar.IsRetryable(err) {
			return ev, err
		}
	}
	return ev, err
}

func (r *Replanner) createWithRetry(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	var created domain.CalendarEvent
	var err error
	for attempt := 0; attempt <= r.config.StoreRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.CalendarEvent{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * r.config.StoreBackoff):
			}
		}
		created, err = r.store.CreateEvent(ctx, ev)
		if err == nil || !calendar.IsRetryable(err) {
			return created, err
		}
	}
	return created, err
}

// resolveConflicts relocates the movable half of each soft conflict to the
// earliest fitting gap. Hard conflicts are noted and left in place.
func (r *Replanner) resolveConflicts(
	window domain.TimeRange,
	events []domain.CalendarEvent,
	rules *domain.RuleSet,
) ([]Relocation, []string) {
	var moves []Relocation
	var notes []string

	working := make([]domain.CalendarEvent, len(events))
	copy(working, events)

	for {
		conflicts := r.detector.Detect(working)
		progressed := false
		for _, c := range conflicts {
			if c.Severity == domain.SeverityHard {
				continue
			}
			victim, ok := movableOf(c)
			if !ok {
				continue
			}
			to, found := r.relocationSlot(window, working, victim, rules)
			if !found {
				notes = append(notes, fmt.Sprintf("could not relocate %q out of a conflict", victim.Title))
				continue
			}
			moves = append(moves, Relocation{Event: victim, To: to})
			notes = append(notes, fmt.Sprintf("moved %q to resolve an overlap with %q",
				victim.Title, otherOf(c, victim).Title))
			working = applyMoves(working, []Relocation{{Event: victim, To: to}})
			progressed = true
			break
		}
		if !progressed {
			for _, c := range r.detector.Detect(working) {
				if c.Severity == domain.SeverityHard {
					notes = append(notes, fmt.Sprintf("unresolvable overlap between fixed events %q and %q",
						c.First.Title, c.Second.Title))
				}
			}
			return moves, notes
		}
	}
}

// clearBlockViolations moves chief-created events out of the blocked window,
// typically after a new preference arrived.
func (r *Replanner) clearBlockViolations(
	window domain.TimeRange,
	events []domain.CalendarEvent,
	rules *domain.RuleSet,
) ([]Relocation, []string) {
	block, ok := rules.BlockWindow(window.Start)
	if !ok {
		return nil, nil
	}

	var moves []Relocation
	var notes []string
	working := make([]domain.CalendarEvent, len(events))
	copy(working, events)

	sort.Slice(working, func(i, j int) bool {
		return working[i].Interval.Start.Before(working[j].Interval.Start)
	})
	for _, ev := range working {
		if ev.IsFixed() || ev.Origin != domain.OriginChief || !ev.Interval.Overlaps(block) {
			continue
		}
		to, found := r.relocationSlot(window, working, ev, rules)
		if !found {
			notes = append(notes, fmt.Sprintf("could not move %q out of the blocked window", ev.Title))
			continue
		}
		moves = append(moves, Relocation{Event: ev, To: to})
		notes = append(notes, fmt.Sprintf("moved %q out of the blocked window", ev.Title))
		working = applyMoves(working, []Relocation{{Event: ev, To: to}})
	}
	return moves, notes
}

// relocationSlot finds the earliest constraint-clean gap for an event,
// excluding the event itself from the busy picture.
func (r *Replanner) relocationSlot(
	window domain.TimeRange,
	events []domain.CalendarEvent,
	ev domain.CalendarEvent,
	rules *domain.RuleSet,
) (domain.TimeRange, bool) {
	remaining := withoutEvent(events, ev.ID)
	gaps, _ := freeGaps(window, remaining, nil, rules)
	busy := mergedBusy(window, remaining, nil)
	for _, gap := range gaps {
		if to, ok := fitInGap(ev.Duration(), gap, gap.Start, busy, rules); ok {
			return to, true
		}
	}
	return domain.TimeRange{}, false
}

func (r *Replanner) transition(ctx context.Context, next domain.EngineState) error {
	r.mu.Lock()
	from := r.state
	updated, err := from.Transition(next)
	if err == nil {
		r.state = updated
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Info("engine state changed",
		"session_id", r.sessionID,
		"from", from,
		"to", next,
	)
	if r.states != nil {
		if sErr := r.states.SetStatus(ctx, r.sessionID, next); sErr != nil {
			r.logger.Warn("failed to persist engine state", "error", sErr)
		}
	}
	r.publishEvent(ctx, domain.NewEngineStatusChangedEvent(r.sessionID, from, next))
	return nil
}

func (r *Replanner) publishEvent(ctx context.Context, event sharedDomain.DomainEvent) {
	if r.publisher == nil {
		return
	}
	payload, err := eventbus.Envelope(event)
	if err != nil {
		r.logger.Error("failed to marshal event", "routing_key", event.RoutingKey(), "error", err)
		return
	}
	if err := r.publisher.Publish(ctx, event.RoutingKey(), payload); err != nil {
		r.logger.Error("failed to publish event", "routing_key", event.RoutingKey(), "error", err)
	}
}

func (r *Replanner) wake(trigger domain.DecisionTrigger) {
	select {
	case r.wakeCh <- trigger:
	default:
	}
}

func (r *Replanner) workWindow(now time.Time) domain.TimeRange {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return domain.TimeRange{
		Start: day.Add(time.Duration(r.config.WorkDayStartHour) * time.Hour),
		End:   day.Add(time.Duration(r.config.WorkDayEndHour) * time.Hour),
	}
}

func passTitle(trigger domain.DecisionTrigger) string {
	switch trigger {
	case domain.TriggerInitialPlan:
		return "Initial plan"
	case domain.TriggerNewTask:
		return "Scheduled new work"
	case domain.TriggerConflictDetected:
		return "Resolved calendar conflict"
	case domain.TriggerConstraintAvoided:
		return "Moved work to respect preferences"
	case domain.TriggerPreferencesChanged:
		return "Re-planned for updated preferences"
	case domain.TriggerReevaluation:
		return "Periodic re-evaluation"
	}
	return "Autonomous adjustment"
}

func movableOf(c domain.Conflict) (domain.CalendarEvent, bool) {
	a, b := c.First, c.Second
	switch {
	case a.IsFixed() && b.IsFixed():
		return domain.CalendarEvent{}, false
	case a.IsFixed():
		return b, true
	case b.IsFixed():
		return a, true
	}
	// Both flexible: move the lower priority one, later start breaking ties.
	if a.Priority.Rank() != b.Priority.Rank() {
		if a.Priority.Rank() > b.Priority.Rank() {
			return a, true
		}
		return b, true
	}
	return b, true
}

func otherOf(c domain.Conflict, ev domain.CalendarEvent) domain.CalendarEvent {
	if c.First.ID == ev.ID {
		return c.Second
	}
	return c.First
}

func applyMoves(events []domain.CalendarEvent, moves []Relocation) []domain.CalendarEvent {
	if len(moves) == 0 {
		return events
	}
	out := make([]domain.CalendarEvent, len(events))
	copy(out, events)
	for _, m := range moves {
		for i := range out {
			if out[i].ID == m.Event.ID {
				out[i].Interval = m.To
				break
			}
		}
	}
	return out
}
