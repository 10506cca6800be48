// Package caldav adapts a CalDAV calendar (Apple Calendar, Fastmail,
// Nextcloud, etc.) to the engine's store interface.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	caldavc "github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/chiefhq/chief/internal/calendar"
	"github.com/chiefhq/chief/internal/scheduling/domain"
)

// Common CalDAV server URLs.
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// Custom properties marking events the engine created.
const (
	PropXChief         = "X-CHIEF"
	PropXChiefPriority = "X-CHIEF-PRIORITY"
)

// Store reads and mutates events on a CalDAV server. Events carrying the
// X-CHIEF property are engine-created and flexible; user events with no
// attendees are reported flexible too, since they are usually solo blocks
// rather than commitments involving other people.
type Store struct {
	baseURL      string
	username     string
	password     string
	calendarPath string // resolved lazily when empty
	logger       *slog.Logger
}

// NewStore creates a CalDAV-backed calendar store.
func NewStore(baseURL, username, password string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger,
	}
}

// WithCalendarPath pins a specific calendar instead of the principal's first.
func (s *Store) WithCalendarPath(path string) *Store {
	s.calendarPath = path
	return s
}

// ListEvents returns every event overlapping the window, ordered by start
// time then ID.
func (s *Store) ListEvents(ctx context.Context, window domain.TimeRange) ([]domain.CalendarEvent, error) {
	client, calPath, err := s.connect(ctx, "list")
	if err != nil {
		return nil, err
	}

	query := &caldavc.CalendarQuery{
		CompRequest: caldavc.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldavc.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"SUMMARY", "DTSTART", "DTEND", "UID", "ATTENDEE", PropXChief, PropXChiefPriority},
				},
			},
		},
		CompFilter: caldavc.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldavc.CompFilter{
				{
					Name:  "VEVENT",
					Start: window.Start,
					End:   window.End,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, classify("list", err)
	}

	events := make([]domain.CalendarEvent, 0, len(objects))
	for _, obj := range objects {
		ev, ok := parseObject(&obj)
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
	client, calPath, err := s.connect(ctx, "create")
	if err != nil {
		return domain.CalendarEvent{}, err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	eventPath := fmt.Sprintf("%s%s.ics", calPath, ev.ID)
	if _, err := client.PutCalendarObject(ctx, eventPath, toICalendar(ev)); err != nil {
		return domain.CalendarEvent{}, classify("create", err)
	}
	return ev, nil
}

// MoveEvent changes an existing event's interval.
func (s *Store) MoveEvent(ctx context.Context, id string, to domain.TimeRange) (domain.CalendarEvent, error) {
	client, calPath, err := s.connect(ctx, "move")
	if err != nil {
		return domain.CalendarEvent{}, err
	}

	eventPath := fmt.Sprintf("%s%s.ics", calPath, id)
	obj, err := client.GetCalendarObject(ctx, eventPath)
	if err != nil {
		if webdav.IsNotFound(err) {
			return domain.CalendarEvent{}, calendar.NewTerminalError("move", calendar.ErrEventNotFound)
		}
		return domain.CalendarEvent{}, classify("move", err)
	}

	ev, ok := parseObject(obj)
	if !ok {
		return domain.CalendarEvent{}, calendar.NewTerminalError("move", fmt.Errorf("object %s has no event component", eventPath))
	}
	ev.Interval = to
	if _, err := client.PutCalendarObject(ctx, eventPath, toICalendar(ev)); err != nil {
		return domain.CalendarEvent{}, classify("move", err)
	}
	return ev, nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	client, calPath, err := s.connect(ctx, "delete")
	if err != nil {
		return err
	}

	eventPath := fmt.Sprintf("%s%s.ics", calPath, id)
	if err := client.RemoveAll(ctx, eventPath); err != nil {
		if webdav.IsNotFound(err) {
			return calendar.NewTerminalError("delete", calendar.ErrEventNotFound)
		}
		return classify("delete", err)
	}
	return nil
}

func (s *Store) connect(ctx context.Context, op string) (*caldavc.Client, string, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := caldavc.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, s.username, s.password), s.baseURL)
	if err != nil {
		return nil, "", calendar.NewTerminalError(op, err)
	}

	if s.calendarPath != "" {
		return client, s.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", classify(op, err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, "", classify(op, err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, "", classify(op, err)
	}
	if len(cals) == 0 {
		return nil, "", calendar.NewTerminalError(op, errors.New("no calendars found"))
	}
	s.calendarPath = cals[0].Path
	return client, s.calendarPath, nil
}

// classify maps a CalDAV failure to the engine's retryable/terminal split.
// Server errors, rate limits and plain network failures are worth retrying;
// every other HTTP status is a permanent refusal.
func classify(op string, err error) error {
	var httpErr *webdav.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= 500 || httpErr.Code == http.StatusTooManyRequests {
			return calendar.NewRetryableError(op, err)
		}
		return calendar.NewTerminalError(op, err)
	}
	return calendar.NewRetryableError(op, err)
}

func toICalendar(ev domain.CalendarEvent) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Chief//Scheduling Engine//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.Interval.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.Interval.End.UTC())
	event.Props.SetText(ical.PropSummary, ev.Title)

	if ev.Origin == domain.OriginChief {
		chiefProp := ical.NewProp(PropXChief)
		chiefProp.Value = "1"
		event.Props[PropXChief] = []ical.Prop{*chiefProp}

		prioProp := ical.NewProp(PropXChiefPriority)
		prioProp.Value = string(ev.Priority)
		event.Props[PropXChiefPriority] = []ical.Prop{*prioProp}
	}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

func parseObject(obj *caldavc.CalendarObject) (domain.CalendarEvent, bool) {
	if obj == nil || obj.Data == nil {
		return domain.CalendarEvent{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		ev := domain.CalendarEvent{
			ID:          obj.Path,
			Flexibility: domain.FlexibilityFixed,
			Origin:      domain.OriginUser,
			Priority:    domain.PriorityLow,
		}
		if props := child.Props[ical.PropUID]; len(props) > 0 {
			ev.ID = props[0].Value
		}
		if props := child.Props[ical.PropSummary]; len(props) > 0 {
			ev.Title = props[0].Value
		}

		icalEvent := &ical.Event{Component: child}
		start, err := icalEvent.DateTimeStart(time.UTC)
		if err != nil {
			return domain.CalendarEvent{}, false
		}
		end, err := icalEvent.DateTimeEnd(time.UTC)
		if err != nil {
			return domain.CalendarEvent{}, false
		}
		ev.Interval = domain.TimeRange{Start: start, End: end}

		if props := child.Props[PropXChief]; len(props) > 0 && props[0].Value == "1" {
			ev.Origin = domain.OriginChief
			ev.Flexibility = domain.FlexibilityFlexible
			if prio := child.Props[PropXChiefPriority]; len(prio) > 0 {
				ev.Priority = domain.Priority(prio[0].Value)
			}
		} else if len(child.Props[ical.PropAttendee]) == 0 {
			// Solo blocks with nobody else invited can be shuffled.
			ev.Flexibility = domain.FlexibilityFlexible
		}

		return ev, true
	}
	return domain.CalendarEvent{}, false
}
