package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/chiefhq/chief/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecisionRepo is an in-memory DecisionLogRepository with failure
// injection for retry tests.
type fakeDecisionRepo struct {
	mu       sync.Mutex
	entries  []*domain.DecisionLogEntry
	failures int
	appends  int
}

func (r *fakeDecisionRepo) Append(_ context.Context, entry *domain.DecisionLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends++
	if r.appends <= r.failures {
		return errors.New("database locked")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeDecisionRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.DecisionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, domain.ErrDecisionNotFound
}

func (r *fakeDecisionRepo) FindBySession(_ context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]*domain.DecisionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DecisionLogEntry
	for _, e := range r.entries {
		if e.SessionID() == sessionID && !e.CreatedAt().Before(since) {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeDecisionRepo) DeleteBySession(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.DecisionLogEntry
	for _, e := range r.entries {
		if e.SessionID() != sessionID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

func (r *fakeDecisionRepo) all() []*domain.DecisionLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.DecisionLogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

type publishedMessage struct {
	routingKey string
	payload    []byte
}

type capturingPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (p *capturingPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	body := make([]byte, len(payload))
	copy(body, payload)
	p.published = append(p.published, publishedMessage{routingKey: routingKey, payload: body})
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.published {
		out = append(out, m.routingKey)
	}
	return out
}

func (p *capturingPublisher) messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.published))
	copy(out, p.published)
	return out
}

func TestDecisionRecorder_Record(t *testing.T) {
	sessionID := uuid.New()

	t.Run("appends and publishes", func(t *testing.T) {
		repo := &fakeDecisionRepo{}
		pub := &capturingPublisher{}
		recorder := NewDecisionRecorder(repo, pub, nil, 2, time.Millisecond)

		entry := domain.NewDecisionLogEntry(sessionID, domain.TriggerInitialPlan, "Initial plan",
			[]string{"2 tasks placed"}, nil, domain.DecisionImpact{TasksPlaced: 2})

		require.NoError(t, recorder.Record(context.Background(), entry))
		require.Len(t, repo.all(), 1)
		assert.Equal(t, []string{domain.RoutingKeyDecisionLogged}, pub.keys())
	})

	t.Run("publishes the entry state in the envelope", func(t *testing.T) {
		repo := &fakeDecisionRepo{}
		pub := &capturingPublisher{}
		recorder := NewDecisionRecorder(repo, pub, nil, 0, time.Millisecond)

		entry := domain.NewDecisionLogEntry(sessionID, domain.TriggerConflictDetected,
			"Resolved calendar conflict",
			[]string{"moved \"focus block\" to resolve an overlap"},
			[]domain.DecisionAction{{Type: domain.ActionMoveEvent, EventID: "evt-focus", Title: "focus block"}},
			domain.DecisionImpact{EventsMoved: 1})
		require.NoError(t, recorder.Record(context.Background(), entry))

		msgs := pub.messages()
		require.Len(t, msgs, 1)

		var env eventbus.ConsumedEvent
		require.NoError(t, json.Unmarshal(msgs[0].payload, &env))
		assert.Equal(t, domain.RoutingKeyDecisionLogged, env.RoutingKey)
		assert.Equal(t, entry.ID(), env.AggregateID)
		assert.Equal(t, sessionID, env.Metadata.SessionID)

		var body struct {
			DecisionID uuid.UUID
			Trigger    domain.DecisionTrigger
			Title      string
			Actions    []domain.DecisionAction
			Impact     domain.DecisionImpact
		}
		require.NoError(t, json.Unmarshal(env.Payload, &body))
		assert.Equal(t, entry.ID(), body.DecisionID)
		assert.Equal(t, domain.TriggerConflictDetected, body.Trigger)
		assert.Equal(t, "Resolved calendar conflict", body.Title)
		require.Len(t, body.Actions, 1)
		assert.Equal(t, "evt-focus", body.Actions[0].EventID)
		assert.Equal(t, 1, body.Impact.EventsMoved)
	})

	t.Run("retries transient append failures", func(t *testing.T) {
		repo := &fakeDecisionRepo{failures: 2}
		recorder := NewDecisionRecorder(repo, nil, nil, 2, time.Millisecond)

		entry := domain.NewDecisionLogEntry(sessionID, domain.TriggerNewTask, "Scheduled new work",
			nil, nil, domain.DecisionImpact{})

		require.NoError(t, recorder.Record(context.Background(), entry))
		assert.Equal(t, 3, repo.appends)
		assert.Len(t, repo.all(), 1)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		repo := &fakeDecisionRepo{failures: 10}
		recorder := NewDecisionRecorder(repo, nil, nil, 1, time.Millisecond)

		entry := domain.NewDecisionLogEntry(sessionID, domain.TriggerNewTask, "Scheduled new work",
			nil, nil, domain.DecisionImpact{})

		assert.Error(t, recorder.Record(context.Background(), entry))
		assert.Empty(t, repo.all())
	})
}

func TestEntryFromPlan(t *testing.T) {
	sessionID := uuid.New()
	task := mustTask(t, "pitch-deck", domain.PriorityUrgent, 3*time.Hour, nil)
	pendingTask := mustTask(t, "roadmap", domain.PriorityMedium, time.Hour, nil)

	placedIv := domain.TimeRange{Start: dayAt(12, 0), End: dayAt(15, 0)}
	moved := flexEvent("evt-flex", dayAt(13, 0), dayAt(13, 30))

	plan := Plan{
		Placements: []Placement{{Task: task, Interval: placedIv, Preferred: true}},
		Relocations: []Relocation{{
			Event: moved,
			To:    domain.TimeRange{Start: dayAt(16, 0), End: dayAt(16, 30)},
		}},
		Unplaced:       []Unplaced{{Task: pendingTask, Reason: ReasonNoFittingWindow}},
		Reasoning:      []string{"4 pending task(s) ranked by urgency"},
		ProtectedBreak: time.Hour,
	}

	entry := EntryFromPlan(sessionID, domain.TriggerInitialPlan, "Initial plan", plan)

	actions := entry.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionScheduleTask, actions[0].Type)
	assert.Equal(t, task.ID(), actions[0].TaskID)
	require.NotNil(t, actions[0].To)
	assert.Equal(t, placedIv, *actions[0].To)

	assert.Equal(t, domain.ActionMoveEvent, actions[1].Type)
	assert.Equal(t, "evt-flex", actions[1].EventID)
	require.NotNil(t, actions[1].From)
	assert.Equal(t, moved.Interval, *actions[1].From)

	assert.Equal(t, domain.ActionLeavePending, actions[2].Type)
	assert.Equal(t, ReasonNoFittingWindow, actions[2].Reason)

	impact := entry.Impact()
	assert.Equal(t, 1, impact.TasksPlaced)
	assert.Equal(t, 1, impact.EventsMoved)
	assert.Equal(t, 1, impact.TasksLeftPending)
	assert.Equal(t, 60, impact.ProtectedFocusMinutes)
}
