package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chief.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteTaskRepository_SaveAndFindByID(t *testing.T) {
	repo := NewSQLiteTaskRepository(openTestDB(t))
	ctx := context.Background()

	sessionID := uuid.New()
	deadline := time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC)
	task, err := domain.NewTask(sessionID, "Finish pitch deck", domain.PriorityUrgent, 3*time.Hour, &deadline)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, task))

	found, err := repo.FindByID(ctx, task.ID())
	require.NoError(t, err)
	assert.Equal(t, task.ID(), found.ID())
	assert.Equal(t, sessionID, found.SessionID())
	assert.Equal(t, "Finish pitch deck", found.Title())
	assert.Equal(t, domain.PriorityUrgent, found.Priority())
	assert.Equal(t, 3*time.Hour, found.Duration())
	assert.Equal(t, domain.TaskStatusPending, found.Status())
	require.NotNil(t, found.Deadline())
	assert.True(t, found.Deadline().Equal(deadline))
	assert.Nil(t, found.Assigned())
}

func TestSQLiteTaskRepository_SaveIsUpsert(t *testing.T) {
	repo := NewSQLiteTaskRepository(openTestDB(t))
	ctx := context.Background()

	task, err := domain.NewTask(uuid.New(), "Write report", domain.PriorityMedium, time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, task))

	slot := domain.TimeRange{
		Start: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	require.NoError(t, task.MarkScheduled(slot))
	require.NoError(t, repo.Save(ctx, task))

	found, err := repo.FindByID(ctx, task.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusScheduled, found.Status())
	require.NotNil(t, found.Assigned())
	assert.True(t, found.Assigned().Start.Equal(slot.Start))
	assert.True(t, found.Assigned().End.Equal(slot.End))
}

func TestSQLiteTaskRepository_FindByIDNotFound(t *testing.T) {
	repo := NewSQLiteTaskRepository(openTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestSQLiteTaskRepository_FindPendingFiltersByStatusAndSession(t *testing.T) {
	repo := NewSQLiteTaskRepository(openTestDB(t))
	ctx := context.Background()

	sessionID := uuid.New()
	pending, err := domain.NewTask(sessionID, "Pending task", domain.PriorityLow, 30*time.Minute, nil)
	require.NoError(t, err)
	scheduled, err := domain.NewTask(sessionID, "Scheduled task", domain.PriorityHigh, time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, scheduled.MarkScheduled(domain.TimeRange{
		Start: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}))
	other, err := domain.NewTask(uuid.New(), "Other session", domain.PriorityLow, 30*time.Minute, nil)
	require.NoError(t, err)

	for _, task := range []*domain.Task{pending, scheduled, other} {
		require.NoError(t, repo.Save(ctx, task))
	}

	got, err := repo.FindPending(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID(), got[0].ID())

	all, err := repo.FindBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteTaskRepository_Delete(t *testing.T) {
	repo := NewSQLiteTaskRepository(openTestDB(t))
	ctx := context.Background()

	task, err := domain.NewTask(uuid.New(), "Disposable", domain.PriorityLow, 15*time.Minute, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, task))

	require.NoError(t, repo.Delete(ctx, task.ID()))

	_, err = repo.FindByID(ctx, task.ID())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, task.ID()), domain.ErrTaskNotFound)
}
