package domain

import (
	sharedDomain "github.com/chiefhq/chief/internal/shared/domain"
	"github.com/google/uuid"
)

// Routing keys for scheduling events.
const (
	RoutingKeyPlanningStarted     = "chief.planning.started"
	RoutingKeyDecisionLogged      = "chief.decision.logged"
	RoutingKeyEngineStatusChanged = "chief.engine.status_changed"
)

// PlanningStartedEvent is emitted when a planning pass begins.
type PlanningStartedEvent struct {
	sharedDomain.BaseEvent
	SessionID    uuid.UUID
	Trigger      DecisionTrigger
	PendingTasks int
}

// NewPlanningStartedEvent creates a planning started event.
func NewPlanningStartedEvent(sessionID uuid.UUID, trigger DecisionTrigger, pendingTasks int) *PlanningStartedEvent {
	base := sharedDomain.NewBaseEvent(sessionID, "ScheduleSession", RoutingKeyPlanningStarted)
	base.SetMetadata(sharedDomain.EventMetadata{SessionID: sessionID})
	return &PlanningStartedEvent{
		BaseEvent:    base,
		SessionID:    sessionID,
		Trigger:      trigger,
		PendingTasks: pendingTasks,
	}
}

// DecisionLoggedEvent is emitted after a decision entry is durably stored.
type DecisionLoggedEvent struct {
	sharedDomain.BaseEvent
	SessionID  uuid.UUID
	DecisionID uuid.UUID
	Trigger    DecisionTrigger
	Title      string
	Actions    []DecisionAction
	Impact     DecisionImpact
}

// NewDecisionLoggedEvent creates a decision logged event.
func NewDecisionLoggedEvent(entry *DecisionLogEntry) *DecisionLoggedEvent {
	base := sharedDomain.NewBaseEvent(entry.ID(), "DecisionLogEntry", RoutingKeyDecisionLogged)
	base.SetMetadata(sharedDomain.EventMetadata{SessionID: entry.SessionID()})
	return &DecisionLoggedEvent{
		BaseEvent:  base,
		SessionID:  entry.SessionID(),
		DecisionID: entry.ID(),
		Trigger:    entry.Trigger(),
		Title:      entry.Title(),
		Actions:    entry.Actions(),
		Impact:     entry.Impact(),
	}
}

// EngineStatusChangedEvent is emitted on every engine state transition.
type EngineStatusChangedEvent struct {
	sharedDomain.BaseEvent
	SessionID uuid.UUID
	From      EngineState
	To        EngineState
}

// NewEngineStatusChangedEvent creates a status change event.
func NewEngineStatusChangedEvent(sessionID uuid.UUID, from, to EngineState) *EngineStatusChangedEvent {
	base := sharedDomain.NewBaseEvent(sessionID, "ScheduleSession", RoutingKeyEngineStatusChanged)
	base.SetMetadata(sharedDomain.EventMetadata{SessionID: sessionID})
	return &EngineStatusChangedEvent{
		BaseEvent: base,
		SessionID: sessionID,
		From:      from,
		To:        to,
	}
}
