package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
)

// SQLiteTaskRepository implements domain.TaskRepository using SQLite.
type SQLiteTaskRepository struct {
	db *sql.DB
}

// NewSQLiteTaskRepository creates a new SQLite task repository.
func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

// Save inserts or updates a task.
func (r *SQLiteTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	var deadline sql.NullString
	if d := task.Deadline(); d != nil {
		deadline = sql.NullString{String: d.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	var assignedStart, assignedEnd sql.NullString
	if iv := task.Assigned(); iv != nil {
		assignedStart = sql.NullString{String: iv.Start.UTC().Format(time.RFC3339Nano), Valid: true}
		assignedEnd = sql.NullString{String: iv.End.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			priority = excluded.priority,
			duration_mins = excluded.duration_mins,
			deadline = excluded.deadline,
			status = excluded.status,
			assigned_start = excluded.assigned_start,
			assigned_end = excluded.assigned_end,
			updated_at = excluded.updated_at`,
		task.ID().String(),
		task.SessionID().String(),
		task.Title(),
		string(task.Priority()),
		int64(task.Duration()/time.Minute),
		deadline,
		string(task.Status()),
		assignedStart,
		assignedEnd,
		task.CreatedAt().UTC().Format(time.RFC3339Nano),
		task.UpdatedAt().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// FindByID retrieves a task by its ID.
func (r *SQLiteTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE id = ?`, id.String())
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return task, err
}

// FindBySession returns every task of a session, oldest first.
func (r *SQLiteTaskRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Task, error) {
	return r.query(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE session_id = ? ORDER BY created_at, id`, sessionID.String())
}

// FindPending returns the session's pending tasks, oldest first.
func (r *SQLiteTaskRepository) FindPending(ctx context.Context, sessionID uuid.UUID) ([]*domain.Task, error) {
	return r.query(ctx, `
		SELECT id, session_id, title, priority, duration_mins, deadline,
			status, assigned_start, assigned_end, created_at, updated_at
		FROM tasks WHERE session_id = ? AND status = 'pending' ORDER BY created_at, id`, sessionID.String())
}

// Delete removes a task.
func (r *SQLiteTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *SQLiteTaskRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		id, sessionID, title, priority, status string
		durationMins                           int64
		deadline, assignedStart, assignedEnd   sql.NullString
		createdAt, updatedAt                   string
	)
	if err := row.Scan(&id, &sessionID, &title, &priority, &durationMins,
		&deadline, &status, &assignedStart, &assignedEnd, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	sessID, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}

	var deadlinePtr *time.Time
	if deadline.Valid {
		t, err := time.Parse(time.RFC3339Nano, deadline.String)
		if err != nil {
			return nil, fmt.Errorf("parse deadline: %w", err)
		}
		deadlinePtr = &t
	}
	var assigned *domain.TimeRange
	if assignedStart.Valid && assignedEnd.Valid {
		start, err := time.Parse(time.RFC3339Nano, assignedStart.String)
		if err != nil {
			return nil, fmt.Errorf("parse assigned start: %w", err)
		}
		end, err := time.Parse(time.RFC3339Nano, assignedEnd.String)
		if err != nil {
			return nil, fmt.Errorf("parse assigned end: %w", err)
		}
		assigned = &domain.TimeRange{Start: start, End: end}
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return domain.RehydrateTask(
		taskID,
		sessID,
		title,
		domain.Priority(priority),
		time.Duration(durationMins)*time.Minute,
		deadlinePtr,
		domain.TaskStatus(status),
		assigned,
		created,
		updated,
	), nil
}
