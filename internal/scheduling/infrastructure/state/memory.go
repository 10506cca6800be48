// Package state persists per-session engine status so a restarted process
// resumes where it left off.
package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// MemoryStateStore keeps engine status in process memory. Suitable for
// single-process deployments and tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]domain.EngineState
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[uuid.UUID]domain.EngineState)}
}

// SetStatus records the session's engine status.
func (s *MemoryStateStore) SetStatus(_ context.Context, sessionID uuid.UUID, status domain.EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = status
	return nil
}

// Status returns the session's last recorded status. Unknown sessions
// report StateIdle.
func (s *MemoryStateStore) Status(_ context.Context, sessionID uuid.UUID) (domain.EngineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.states[sessionID]; ok {
		return status, nil
	}
	return domain.StateIdle, nil
}
