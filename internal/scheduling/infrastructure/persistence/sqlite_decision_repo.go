package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
)

// SQLiteDecisionLogRepository implements domain.DecisionLogRepository using
// SQLite. The table is append-only; entries are never updated.
type SQLiteDecisionLogRepository struct {
	db *sql.DB
}

// NewSQLiteDecisionLogRepository creates a new SQLite decision log repository.
func NewSQLiteDecisionLogRepository(db *sql.DB) *SQLiteDecisionLogRepository {
	return &SQLiteDecisionLogRepository{db: db}
}

// Append writes a new entry.
func (r *SQLiteDecisionLogRepository) Append(ctx context.Context, entry *domain.DecisionLogEntry) error {
	reasoning, err := json.Marshal(entry.Reasoning())
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}
	actions, err := json.Marshal(entry.Actions())
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	impact, err := json.Marshal(entry.Impact())
	if err != nil {
		return fmt.Errorf("marshal impact: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decision_log (id, session_id, trigger, title, reasoning, actions, impact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID().String(),
		entry.SessionID().String(),
		string(entry.Trigger()),
		entry.Title(),
		string(reasoning),
		string(actions),
		string(impact),
		entry.CreatedAt().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// FindByID retrieves an entry.
func (r *SQLiteDecisionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DecisionLogEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, trigger, title, reasoning, actions, impact, created_at
		FROM decision_log WHERE id = ?`, id.String())
	entry, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDecisionNotFound
	}
	return entry, err
}

// FindBySession returns the session's entries at or after since, oldest
// first. A positive limit caps the result.
func (r *SQLiteDecisionLogRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]*domain.DecisionLogEntry, error) {
	q := `
		SELECT id, session_id, trigger, title, reasoning, actions, impact, created_at
		FROM decision_log WHERE session_id = ? AND created_at >= ?
		ORDER BY created_at, id`
	args := []any{sessionID.String(), since.UTC().Format(time.RFC3339Nano)}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.DecisionLogEntry
	for rows.Next() {
		entry, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteBySession clears a session's trail.
func (r *SQLiteDecisionLogRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM decision_log WHERE session_id = ?`, sessionID.String())
	if err != nil {
		return fmt.Errorf("delete decisions: %w", err)
	}
	return nil
}

func scanDecision(row rowScanner) (*domain.DecisionLogEntry, error) {
	var (
		id, sessionID, trigger, title       string
		reasoningRaw, actionsRaw, impactRaw string
		createdAt                           string
	)
	if err := row.Scan(&id, &sessionID, &trigger, &title,
		&reasoningRaw, &actionsRaw, &impactRaw, &createdAt); err != nil {
		return nil, err
	}

	entryID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse decision id: %w", err)
	}
	sessID, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	var reasoning []string
	if err := json.Unmarshal([]byte(reasoningRaw), &reasoning); err != nil {
		return nil, fmt.Errorf("unmarshal reasoning: %w", err)
	}
	var actions []domain.DecisionAction
	if err := json.Unmarshal([]byte(actionsRaw), &actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	var impact domain.DecisionImpact
	if err := json.Unmarshal([]byte(impactRaw), &impact); err != nil {
		return nil, fmt.Errorf("unmarshal impact: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return domain.RehydrateDecisionLogEntry(
		entryID,
		sessID,
		domain.DecisionTrigger(trigger),
		title,
		reasoning,
		actions,
		impact,
		created,
	), nil
}
