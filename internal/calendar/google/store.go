// Package google adapts the Google Calendar REST API to the engine's store
// interface.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/chiefhq/chief/internal/calendar"
	"github.com/chiefhq/chief/internal/scheduling/domain"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

const (
	propChief         = "chief"
	propChiefPriority = "chief_priority"
)

// Store reads and mutates events on a Google calendar. Engine-created
// events are tagged through a private extended property; user events with
// no attendees are reported flexible, everything else is fixed.
type Store struct {
	source     oauth2.TokenSource
	logger     *slog.Logger
	baseURL    string
	calendarID string
}

// NewStore creates a Google Calendar store against the user's primary
// calendar.
func NewStore(source oauth2.TokenSource, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		source:     source,
		logger:     logger,
		baseURL:    defaultBaseURL,
		calendarID: "primary",
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func (s *Store) WithBaseURL(baseURL string) *Store {
	if baseURL != "" {
		s.baseURL = baseURL
	}
	return s
}

// WithCalendarID targets a calendar other than the primary one.
func (s *Store) WithCalendarID(calendarID string) *Store {
	if calendarID != "" {
		s.calendarID = calendarID
	}
	return s
}

type googleEvent struct {
	ID                 string `json:"id,omitempty"`
	Summary            string `json:"summary"`
	ExtendedProperties struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties,omitempty"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees,omitempty"`
	Start struct {
		DateTime string `json:"dateTime"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
	} `json:"end"`
}

// ListEvents returns every event overlapping the window, ordered by start
// time then ID.
func (s *Store) ListEvents(ctx context.Context, window domain.TimeRange) ([]domain.CalendarEvent, error) {
	listURL := fmt.Sprintf("%s/calendars/%s/events?timeMin=%s&timeMax=%s&singleEvents=true&orderBy=startTime",
		s.baseURL, s.calendarID,
		window.Start.UTC().Format(time.RFC3339),
		window.End.UTC().Format(time.RFC3339),
	)
	resp, err := s.do(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, calendar.NewRetryableError("list", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := statusError("list", resp); err != nil {
		return nil, err
	}

	var payload struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, calendar.NewRetryableError("list", err)
	}

	events := make([]domain.CalendarEvent, 0, len(payload.Items))
	for _, item := range payload.Items {
		ev, ok := fromGoogleEvent(item)
		if !ok {
			continue
		}
		if !ev.Interval.Overlaps(window) {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Interval.Start.Equal(events[j].Interval.Start) {
			return events[i].Interval.Start.Before(events[j].Interval.Start)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// CreateEvent writes a new event and returns it with its assigned ID.
func (s *Store) CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	body, err := json.Marshal(toGoogleEvent(ev))
	if err != nil {
		return domain.CalendarEvent{}, calendar.NewTerminalError("create", err)
	}

	insertURL := fmt.Sprintf("%s/calendars/%s/events", s.baseURL, s.calendarID)
	resp, err := s.do(ctx, http.MethodPost, insertURL, bytes.NewReader(body))
	if err != nil {
		return domain.CalendarEvent{}, calendar.NewRetryableError("create", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := statusError("create", resp); err != nil {
		return domain.CalendarEvent{}, err
	}

	var created googleEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return domain.CalendarEvent{}, calendar.NewRetryableError("create", err)
	}
	ev.ID = created.ID
	return ev, nil
}

// MoveEvent changes an existing event's interval.
func (s *Store) MoveEvent(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error) {
	eventURL := fmt.Sprintf("%s/calendars/%s/events/%s", s.baseURL, s.calendarID, id)
	resp, err := s.do(ctx, http.MethodGet, eventURL, nil)
	if err != nil {
		return domain.CalendarEvent{}, calendar.NewRetryableError("move", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return domain.CalendarEvent{}, calendar.NewTerminalError("move", calendar.ErrEventNotFound)
	}
	if err := statusError("move", resp); err != nil {
		return domain.CalendarEvent{}, err
	}

	var existing googleEvent
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
		return domain.CalendarEvent{}, calendar.NewRetryableError("move", err)
	}
	existing.Start.DateTime = to.Start.UTC().Format(time.RFC3339)
	existing.End.DateTime = to.End.UTC().Format(time.RFC3339)

	body, err := json.Marshal(existing)
	if err != nil {
		return domain.CalendarEvent{}, calendar.NewTerminalError("move", err)
	}
	putResp, err := s.do(ctx, http.MethodPut, eventURL, bytes.NewReader(body))
	if err != nil {
		return domain.CalendarEvent{}, calendar.NewRetryableError("move", err)
	}
	defer func() { _ = putResp.Body.Close() }()
	if err := statusError("move", putResp); err != nil {
		return domain.CalendarEvent{}, err
	}

	ev, ok := fromGoogleEvent(existing)
	if !ok {
		return domain.CalendarEvent{}, calendar.NewTerminalError("move", fmt.Errorf("event %s has no usable times", id))
	}
	return ev, nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	deleteURL := fmt.Sprintf("%s/calendars/%s/events/%s", s.baseURL, s.calendarID, id)
	resp, err := s.do(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return calendar.NewRetryableError("delete", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return calendar.NewTerminalError("delete", calendar.ErrEventNotFound)
	}
	return statusError("delete", resp)
}

func (s *Store) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := http.Client{
		Timeout: 15 * time.Second,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: s.source,
		},
	}
	return client.Do(req)
}

// statusError classifies non-2xx responses. Rate limits and server errors
// are retryable; any other refusal is terminal.
func statusError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	err := fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return calendar.NewRetryableError(op, err)
	}
	return calendar.NewTerminalError(op, err)
}

func toGoogleEvent(ev domain.CalendarEvent) googleEvent {
	out := googleEvent{
		ID:      ev.ID,
		Summary: ev.Title,
	}
	out.Start.DateTime = ev.Interval.Start.UTC().Format(time.RFC3339)
	out.End.DateTime = ev.Interval.End.UTC().Format(time.RFC3339)
	if ev.Origin == domain.OriginChief {
		out.ExtendedProperties.Private = map[string]string{
			propChief:         "1",
			propChiefPriority: string(ev.Priority),
		}
	}
	return out
}

func fromGoogleEvent(item googleEvent) (domain.CalendarEvent, bool) {
	if item.Start.DateTime == "" || item.End.DateTime == "" {
		// All-day events do not occupy working hours.
		return domain.CalendarEvent{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return domain.CalendarEvent{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return domain.CalendarEvent{}, false
	}

	ev := domain.CalendarEvent{
		ID:          item.ID,
		Title:       item.Summary,
		Interval:    domain.TimeRange{Start: start, End: end},
		Flexibility: domain.FlexibilityFixed,
		Origin:      domain.OriginUser,
		Priority:    domain.PriorityLow,
	}
	if item.ExtendedProperties.Private[propChief] == "1" {
		ev.Origin = domain.OriginChief
		ev.Flexibility = domain.FlexibilityFlexible
		if prio := item.ExtendedProperties.Private[propChiefPriority]; prio != "" {
			ev.Priority = domain.Priority(prio)
		}
	} else if len(item.Attendees) == 0 {
		// Solo blocks with nobody else invited can be shuffled.
		ev.Flexibility = domain.FlexibilityFlexible
	}
	return ev, true
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return t.base.RoundTrip(req)
}
