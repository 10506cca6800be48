package domain

import (
	"time"

	sharedDomain "github.com/chiefhq/chief/internal/shared/domain"
	"github.com/google/uuid"
)

// DecisionTrigger names the cause of an autonomous action.
type DecisionTrigger string

const (
	TriggerInitialPlan        DecisionTrigger = "initial_plan"
	TriggerNewTask            DecisionTrigger = "new_task"
	TriggerConflictDetected   DecisionTrigger = "conflict_detected"
	TriggerConstraintAvoided  DecisionTrigger = "constraint_violation_avoided"
	TriggerStoreFailure       DecisionTrigger = "store_failure"
	TriggerPreferencesChanged DecisionTrigger = "preferences_changed"
	TriggerReevaluation       DecisionTrigger = "schedule_reevaluated"
)

// ActionType names a concrete mutation the engine performed or attempted.
type ActionType string

const (
	ActionScheduleTask ActionType = "schedule_task"
	ActionMoveEvent    ActionType = "move_event"
	ActionLeavePending ActionType = "leave_pending"
)

// DecisionAction is one literal action recorded in a decision entry.
type DecisionAction struct {
	Type    ActionType `json:"type"`
	TaskID  uuid.UUID  `json:"task_id,omitempty"`
	EventID string     `json:"event_id,omitempty"`
	Title   string     `json:"title"`
	From    *TimeRange `json:"from,omitempty"`
	To      *TimeRange `json:"to,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// DecisionImpact quantifies what the decision bought the user.
type DecisionImpact struct {
	TasksPlaced           int `json:"tasks_placed"`
	EventsMoved           int `json:"events_moved"`
	TasksLeftPending      int `json:"tasks_left_pending"`
	ProtectedFocusMinutes int `json:"protected_focus_minutes"`
}

// DecisionLogEntry is one immutable record in the append-only audit trail.
// Entries are ordered by timestamp and never mutated after creation.
type DecisionLogEntry struct {
	sharedDomain.BaseEntity
	sessionID uuid.UUID
	trigger   DecisionTrigger
	title     string
	reasoning []string
	actions   []DecisionAction
	impact    DecisionImpact
}

// NewDecisionLogEntry creates an entry. Reasoning and actions are copied so
// later mutation of the caller's slices cannot alter the record.
func NewDecisionLogEntry(
	sessionID uuid.UUID,
	trigger DecisionTrigger,
	title string,
	reasoning []string,
	actions []DecisionAction,
	impact DecisionImpact,
) *DecisionLogEntry {
	r := make([]string, len(reasoning))
	copy(r, reasoning)
	a := make([]DecisionAction, len(actions))
	copy(a, actions)
	return &DecisionLogEntry{
		BaseEntity: sharedDomain.NewBaseEntity(),
		sessionID:  sessionID,
		trigger:    trigger,
		title:      title,
		reasoning:  r,
		actions:    a,
		impact:     impact,
	}
}

// Getters
func (e *DecisionLogEntry) SessionID() uuid.UUID     { return e.sessionID }
func (e *DecisionLogEntry) Trigger() DecisionTrigger { return e.trigger }
func (e *DecisionLogEntry) Title() string            { return e.title }
func (e *DecisionLogEntry) Impact() DecisionImpact   { return e.impact }

// Reasoning returns a copy of the ordered reasoning statements.
func (e *DecisionLogEntry) Reasoning() []string {
	out := make([]string, len(e.reasoning))
	copy(out, e.reasoning)
	return out
}

// Actions returns a copy of the recorded actions.
func (e *DecisionLogEntry) Actions() []DecisionAction {
	out := make([]DecisionAction, len(e.actions))
	copy(out, e.actions)
	return out
}

// RehydrateDecisionLogEntry recreates an entry from persisted state.
func RehydrateDecisionLogEntry(
	id uuid.UUID,
	sessionID uuid.UUID,
	trigger DecisionTrigger,
	title string,
	reasoning []string,
	actions []DecisionAction,
	impact DecisionImpact,
	createdAt time.Time,
) *DecisionLogEntry {
	return &DecisionLogEntry{
		BaseEntity: sharedDomain.RehydrateBaseEntity(id, createdAt, createdAt),
		sessionID:  sessionID,
		trigger:    trigger,
		title:      title,
		reasoning:  reasoning,
		actions:    actions,
		impact:     impact,
	}
}
