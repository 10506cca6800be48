package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrDecisionNotFound = errors.New("decision log entry not found")
)

// TaskRepository persists tasks.
type TaskRepository interface {
	Save(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*Task, error)
	FindPending(ctx context.Context, sessionID uuid.UUID) ([]*Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DecisionLogRepository persists the append-only decision trail.
type DecisionLogRepository interface {
	Append(ctx context.Context, entry *DecisionLogEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*DecisionLogEntry, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]*DecisionLogEntry, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}
