package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/chiefhq/chief/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrEmptyTitle      = errors.New("task title must not be empty")
	ErrInvalidPriority = errors.New("invalid task priority")
	ErrTaskNotPending  = errors.New("task is not pending")
)

// DefaultTaskDuration is assumed when a task arrives without an estimate.
const DefaultTaskDuration = 30 * time.Minute

// Priority represents the user-stated importance of a task.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority converts a string into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	case "":
		return PriorityMedium, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Rank returns the tier order, 1 = urgent through 4 = low. An unset priority
// ranks low, so untagged calendar events are the cheapest to displace.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	}
	return 4
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a unit of work the engine allocates calendar time for.
// Tasks are never deleted, only completed or cancelled.
type Task struct {
	sharedDomain.BaseEntity
	sessionID uuid.UUID
	title     string
	priority  Priority
	duration  time.Duration
	deadline  *time.Time
	status    TaskStatus
	assigned  *TimeRange
}

// NewTask creates a pending task. Missing priority defaults to medium and a
// nonpositive duration defaults to DefaultTaskDuration.
func NewTask(sessionID uuid.UUID, title string, priority Priority, duration time.Duration, deadline *time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	switch priority {
	case "":
		priority = PriorityMedium
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	if duration <= 0 {
		duration = DefaultTaskDuration
	}
	return &Task{
		BaseEntity: sharedDomain.NewBaseEntity(),
		sessionID:  sessionID,
		title:      title,
		priority:   priority,
		duration:   duration,
		deadline:   deadline,
		status:     TaskStatusPending,
	}, nil
}

// Getters
func (t *Task) SessionID() uuid.UUID    { return t.sessionID }
func (t *Task) Title() string           { return t.title }
func (t *Task) Priority() Priority      { return t.priority }
func (t *Task) Duration() time.Duration { return t.duration }
func (t *Task) Deadline() *time.Time    { return t.deadline }
func (t *Task) Status() TaskStatus      { return t.status }
func (t *Task) Assigned() *TimeRange    { return t.assigned }

// IsPending reports whether the task still needs an interval.
func (t *Task) IsPending() bool {
	return t.status == TaskStatusPending
}

// MarkScheduled assigns the task its interval. Only pending tasks may be
// scheduled.
func (t *Task) MarkScheduled(interval TimeRange) error {
	if t.status != TaskStatusPending {
		return ErrTaskNotPending
	}
	iv := interval
	t.assigned = &iv
	t.status = TaskStatusScheduled
	t.Touch()
	return nil
}

// MarkPending returns the task to the pending pool, clearing its interval.
// Used when a committed calendar write is rolled back.
func (t *Task) MarkPending() {
	t.assigned = nil
	t.status = TaskStatusPending
	t.Touch()
}

// MarkCompleted finishes the task.
func (t *Task) MarkCompleted() {
	t.status = TaskStatusCompleted
	t.Touch()
}

// Cancel cancels the task.
func (t *Task) Cancel() {
	t.status = TaskStatusCancelled
	t.Touch()
}

// RehydrateTask recreates a task from persisted state.
func RehydrateTask(
	id uuid.UUID,
	sessionID uuid.UUID,
	title string,
	priority Priority,
	duration time.Duration,
	deadline *time.Time,
	status TaskStatus,
	assigned *TimeRange,
	createdAt, updatedAt time.Time,
) *Task {
	return &Task{
		BaseEntity: sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		sessionID:  sessionID,
		title:      title,
		priority:   priority,
		duration:   duration,
		deadline:   deadline,
		status:     status,
		assigned:   assigned,
	}
}
