package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository.
func NewPostgresTaskRepository(pool *pgxpool.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

// Save inserts or updates a task.
func (r *PostgresTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	var assignedStart, assignedEnd *time.Time
	if iv := task.Assigned(); iv != nil {
		assignedStart, assignedEnd = &iv.Start, &iv.End
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			priority = EXCLUDED.priority,
			duration_mins = EXCLUDED.duration_mins,
			deadline = EXCLUDED.deadline,
			status = EXCLUDED.status,
			assigned_start = EXCLUDED.assigned_start,
			assigned_end = EXCLUDED.assigned_end,
			updated_at = EXCLUDED.updated_at`,
		task.ID(),
		task.SessionID(),
		task.Title(),
		string(task.Priority()),
		int64(task.Duration()/time.Minute),
		task.Deadline(),
		string(task.Status()),
		assignedStart,
		assignedEnd,
		task.CreatedAt(),
		task.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// FindByID retrieves a task by its ID.
func (r *PostgresTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE id = $1`, id)
	task, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return task, err
}

// FindBySession returns every task of a session, oldest first.
func (r *PostgresTaskRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Task, error) {
	return r.query(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
}

// FindPending returns the session's pending tasks, oldest first.
func (r *PostgresTaskRepository) FindPending(ctx context.Context, sessionID uuid.UUID) ([]*domain.Task, error) {
	return r.query(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE session_id = $1 AND status = 'pending' ORDER BY created_at, id`, sessionID)
}

// Delete removes a task.
func (r *PostgresTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *PostgresTaskRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		task, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanPgTask(row pgx.Row) (*domain.Task, error) {
	var (
		id, sessionID              uuid.UUID
		title, priority, status    string
		durationMins               int64
		deadline                   *time.Time
		assignedStart, assignedEnd *time.Time
		createdAt, updatedAt       time.Time
	)
	if err := row.Scan(&id, &sessionID, &title, &priority, &durationMins,
		&deadline, &status, &assignedStart, &assignedEnd, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var assigned *domain.TimeRange
	if assignedStart != nil && assignedEnd != nil {
		assigned = &domain.TimeRange{Start: *assignedStart, End: *assignedEnd}
	}

	return domain.RehydrateTask(
		id,
		sessionID,
		title,
		domain.Priority(priority),
		time.Duration(durationMins)*time.Minute,
		deadline,
		domain.TaskStatus(status),
		assigned,
		createdAt,
		updatedAt,
	), nil
}
