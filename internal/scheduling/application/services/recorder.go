package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/chiefhq/chief/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// DecisionRecorder durably appends decision log entries and announces them
// on the event bus. The audit trail is the engine's contract with the user:
// an action that is not recorded did not happen, so writes are retried
// before giving up.
type DecisionRecorder struct {
	repo      domain.DecisionLogRepository
	publisher eventbus.Publisher
	logger    *slog.Logger
	retries   int
	backoff   time.Duration
}

// NewDecisionRecorder creates a recorder. Writes are attempted 1+retries
// times with linear backoff.
func NewDecisionRecorder(
	repo domain.DecisionLogRepository,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	retries int,
	backoff time.Duration,
) *DecisionRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	return &DecisionRecorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		retries:   retries,
		backoff:   backoff,
	}
}

// Record appends the entry, retrying transient failures, then publishes a
// decision logged event. Publish failures are logged only; the durable
// record is what matters.
func (r *DecisionRecorder) Record(ctx context.Context, entry *domain.DecisionLogEntry) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}
		if err = r.repo.Append(ctx, entry); err == nil {
			break
		}
		r.logger.Warn("decision log append failed",
			"decision_id", entry.ID(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	if err != nil {
		return fmt.Errorf("append decision entry: %w", err)
	}

	r.logger.Info("decision recorded",
		"decision_id", entry.ID(),
		"session_id", entry.SessionID(),
		"trigger", entry.Trigger(),
		"actions", len(entry.Actions()),
	)

	if r.publisher != nil {
		payload, mErr := eventbus.Envelope(domain.NewDecisionLoggedEvent(entry))
		if mErr != nil {
			r.logger.Error("failed to marshal decision event", "error", mErr)
			return nil
		}
		if pErr := r.publisher.Publish(ctx, domain.RoutingKeyDecisionLogged, payload); pErr != nil {
			r.logger.Error("failed to publish decision event",
				"decision_id", entry.ID(),
				"error", pErr,
			)
		}
	}
	return nil
}

// EntryFromPlan turns an applied plan into a decision log entry. The entry
// records what was actually committed, including tasks left pending.
func EntryFromPlan(sessionID uuid.UUID, trigger domain.DecisionTrigger, title string, plan Plan) *domain.DecisionLogEntry {
	var actions []domain.DecisionAction
	for _, p := range plan.Placements {
		iv := p.Interval
		reason := "earliest fitting window"
		if p.Preferred {
			reason = "preferred window"
		}
		actions = append(actions, domain.DecisionAction{
			Type:   domain.ActionScheduleTask,
			TaskID: p.Task.ID(),
			Title:  p.Task.Title(),
			To:     &iv,
			Reason: reason,
		})
	}
	for _, rel := range plan.Relocations {
		from := rel.Event.Interval
		to := rel.To
		actions = append(actions, domain.DecisionAction{
			Type:    domain.ActionMoveEvent,
			EventID: rel.Event.ID,
			Title:   rel.Event.Title,
			From:    &from,
			To:      &to,
			Reason:  "displaced for a higher urgency task",
		})
	}
	for _, u := range plan.Unplaced {
		actions = append(actions, domain.DecisionAction{
			Type:   domain.ActionLeavePending,
			TaskID: u.Task.ID(),
			Title:  u.Task.Title(),
			Reason: u.Reason,
		})
	}

	impact := domain.DecisionImpact{
		TasksPlaced:           len(plan.Placements),
		EventsMoved:           len(plan.Relocations),
		TasksLeftPending:      len(plan.Unplaced),
		ProtectedFocusMinutes: int(plan.ProtectedBreak.Minutes()),
	}
	return domain.NewDecisionLogEntry(sessionID, trigger, title, plan.Reasoning, actions, impact)
}
