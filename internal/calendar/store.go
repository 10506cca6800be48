// Package calendar abstracts the user's calendar backend behind a store
// interface the scheduling engine can read and mutate.
package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var ErrEventNotFound = errors.New("calendar event not found")

// Store is the engine's view of the calendar backend. Implementations wrap
// an in-memory calendar, a CalDAV server or the Google Calendar API.
type Store interface {
	// ListEvents returns every event overlapping the window, ordered by
	// start time then ID.
	ListEvents(ctx context.Context, window domain.TimeRange) ([]domain.CalendarEvent, error)

	// CreateEvent writes a new event and returns it with its assigned ID.
	CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error)

	// MoveEvent changes an existing event's interval.
	MoveEvent(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error)

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, id string) error
}

// StoreError wraps a backend failure with a retry classification. Transient
// failures (timeouts, rate limits, 5xx responses) are retryable; anything
// else is terminal and the engine rolls back instead of retrying.
type StoreError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("calendar %s (%s): %v", e.Op, kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewRetryableError marks a transient backend failure.
func NewRetryableError(op string, err error) *StoreError {
	return &StoreError{Op: op, Retryable: true, Err: err}
}

// NewTerminalError marks a permanent backend failure.
func NewTerminalError(op string, err error) *StoreError {
	return &StoreError{Op: op, Retryable: false, Err: err}
}

// IsRetryable reports whether the engine may retry the failed operation.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
