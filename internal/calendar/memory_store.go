package calendar

import (
	"context"
	"sort"
	"sync"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory calendar backend, used for local
// planning sessions and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]domain.CalendarEvent

	failList   error
	failCreate error
	failMove   error
}

// NewMemoryStore creates an empty in-memory calendar.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]domain.CalendarEvent)}
}

// Seed inserts events directly, bypassing failure injection. Events without
// an ID get one assigned.
func (s *MemoryStore) Seed(events ...domain.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		s.events[ev.ID] = ev
	}
}

// FailNextList makes the next ListEvents call return err.
func (s *MemoryStore) FailNextList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = err
}

// FailNextCreate makes the next CreateEvent call return err.
func (s *MemoryStore) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

// FailNextMove makes the next MoveEvent call return err.
func (s *MemoryStore) FailNextMove(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMove = err
}

func (s *MemoryStore) ListEvents(ctx context.Context, window domain.TimeRange) ([]domain.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRetryableError("list", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		err := s.failList
		s.failList = nil
		return nil, err
	}

	var out []domain.CalendarEvent
	for _, ev := range s.events {
		if ev.Interval.Overlaps(window) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Interval.Start.Equal(out[j].Interval.Start) {
			return out[i].Interval.Start.Before(out[j].Interval.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.CalendarEvent{}, NewRetryableError("create", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		err := s.failCreate
		s.failCreate = nil
		return domain.CalendarEvent{}, err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.events[ev.ID] = ev
	return ev, nil
}

func (s *MemoryStore) MoveEvent(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.CalendarEvent{}, NewRetryableError("move", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMove != nil {
		err := s.failMove
		s.failMove = nil
		return domain.CalendarEvent{}, err
	}

	ev, ok := s.events[id]
	if !ok {
		return domain.CalendarEvent{}, NewTerminalError("move", ErrEventNotFound)
	}
	ev.Interval = to
	s.events[id] = ev
	return ev, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return NewRetryableError("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return NewTerminalError("delete", ErrEventNotFound)
	}
	delete(s.events, id)
	return nil
}
