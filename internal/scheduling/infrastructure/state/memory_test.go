package state

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

func TestMemoryStateStore_UnknownSessionIsIdle(t *testing.T) {
	store := NewMemoryStateStore()

	status, err := store.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status)
}

func TestMemoryStateStore_SetAndGet(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, store.SetStatus(ctx, sessionID, domain.StateAutonomous))

	status, err := store.Status(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAutonomous, status)

	require.NoError(t, store.SetStatus(ctx, sessionID, domain.StatePaused))
	status, err = store.Status(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaused, status)
}

func TestMemoryStateStore_SessionsAreIndependent(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, store.SetStatus(ctx, first, domain.StateAutonomous))

	status, err := store.Status(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status)
}

func TestMemoryStateStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()
	sessionID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.SetStatus(ctx, sessionID, domain.StateReplanning)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Status(ctx, sessionID)
		}()
	}
	wg.Wait()

	status, err := store.Status(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReplanning, status)
}
