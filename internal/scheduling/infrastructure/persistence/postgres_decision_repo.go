package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDecisionLogRepository implements domain.DecisionLogRepository
// using PostgreSQL.
type PostgresDecisionLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDecisionLogRepository creates a new PostgreSQL decision log
// repository.
func NewPostgresDecisionLogRepository(pool *pgxpool.Pool) *PostgresDecisionLogRepository {
	return &PostgresDecisionLogRepository{pool: pool}
}

// Append writes a new entry.
func (r *PostgresDecisionLogRepository) Append(ctx context.Context, entry *domain.DecisionLogEntry) error {
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

	_, err = r.pool.Exec(ctx, `
		INSERT INTO decision_log (id, session_id, trigger, title, reasoning, actions, impact, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID(),
		entry.SessionID(),
		string(entry.Trigger()),
		entry.Title(),
		reasoning,
		actions,
		impact,
		entry.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// FindByID retrieves an entry.
func (r *PostgresDecisionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DecisionLogEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, trigger, title, reasoning, actions, impact, created_at
		FROM decision_log WHERE id = $1`, id)
	entry, err := scanPgDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDecisionNotFound
	}
	return entry, err
}

// FindBySession returns the session's entries at or after since, oldest
// first. A positive limit caps the result.
func (r *PostgresDecisionLogRepository) FindBySession(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]*domain.DecisionLogEntry, error) {
	q := `
		SELECT id, session_id, trigger, title, reasoning, actions, impact, created_at
		FROM decision_log WHERE session_id = $1 AND created_at >= $2
		ORDER BY created_at, id`
	args := []any{sessionID, since}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.DecisionLogEntry
	for rows.Next() {
		entry, err := scanPgDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteBySession clears a session's trail.
func (r *PostgresDecisionLogRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM decision_log WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete decisions: %w", err)
	}
	return nil
}

func scanPgDecision(row pgx.Row) (*domain.DecisionLogEntry, error) {
	var (
		id, sessionID                       uuid.UUID
		trigger, title                      string
		reasoningRaw, actionsRaw, impactRaw []byte
		createdAt                           time.Time
	)
	if err := row.Scan(&id, &sessionID, &trigger, &title,
		&reasoningRaw, &actionsRaw, &impactRaw, &createdAt); err != nil {
		return nil, err
	}

	var reasoning []string
	if err := json.Unmarshal(reasoningRaw, &reasoning); err != nil {
		return nil, fmt.Errorf("unmarshal reasoning: %w", err)
	}
	var actions []domain.DecisionAction
	if err := json.Unmarshal(actionsRaw, &actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	var impact domain.DecisionImpact
	if err := json.Unmarshal(impactRaw, &impact); err != nil {
		return nil, fmt.Errorf("unmarshal impact: %w", err)
	}

	return domain.RehydrateDecisionLogEntry(
		id,
		sessionID,
		domain.DecisionTrigger(trigger),
		title,
		reasoning,
		actions,
		impact,
		createdAt,
	), nil
}
