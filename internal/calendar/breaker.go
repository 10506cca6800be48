package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chiefhq/chief/internal/scheduling/domain"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker around a calendar backend.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold trips the breaker after this many consecutive
	// failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend
// stops being hammered. An open breaker surfaces as a retryable store error,
// letting the engine back off and try again on a later pass.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps the store.
func NewBreakerStore(inner Store, logger *slog.Logger, config BreakerConfig) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "calendar-store",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"store", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Terminal errors are the caller's problem, not backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
	}
	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the breaker state for health reporting.
func (s *BreakerStore) State() string {
	return s.breaker.State().String()
}

func (s *BreakerStore) execute(op string, fn func() (any, error)) (any, error) {
	result, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewRetryableError(op, err)
	}
	return result, err
}

func (s *BreakerStore) ListEvents(ctx context.Context, window domain.TimeRange) ([]domain.CalendarEvent, error) {
	result, err := s.execute("list", func() (any, error) {
		return s.inner.ListEvents(ctx, window)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.CalendarEvent), nil
}

func (s *BreakerStore) CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	result, err := s.execute("create", func() (any, error) {
		return s.inner.CreateEvent(ctx, ev)
	})
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return result.(domain.CalendarEvent), nil
}

func (s *BreakerStore) MoveEvent(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error) {
	result, err := s.execute("move", func() (any, error) {
		return s.inner.MoveEvent(ctx, id, to)
	})
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return result.(domain.CalendarEvent), nil
}

func (s *BreakerStore) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.execute("delete", func() (any, error) {
		return nil, s.inner.DeleteEvent(ctx, id)
	})
	return err
}
