// Package syscal surfaces upcoming events from the operating system's
// calendar database through an injected EventSource.
package syscal

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/settings"
)

const maxEvents = 10

// timeNow anchors the lookahead window; stubbed in tests.
var timeNow = time.Now

// AuthorizationStatus is the OS-level calendar permission state.
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusAuthorized
	StatusDenied
	StatusRestricted
)

// Event is one calendar entry as reported by the system store.
type Event struct {
	ID       string
	Title    string
	Location string
	Notes    string
	URL      string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// EventSource abstracts the platform calendar store. Implementations
// own the permission dialog; AuthorizationStatus must not prompt.
type EventSource interface {
	AuthorizationStatus() AuthorizationStatus
	RequestAccess(ctx context.Context) (bool, error)
	Events(ctx context.Context, start, end time.Time) ([]Event, error)
}

// Adapter implements service.Service over an EventSource.
type Adapter struct {
	source   EventSource
	settings *settings.Settings
}

// NewAdapter creates a system calendar adapter.
func NewAdapter(source EventSource, st *settings.Settings) *Adapter {
	return &Adapter{source: source, settings: st}
}

// Type returns the service identity.
func (a *Adapter) Type() model.ServiceType {
	return model.ServiceSystemCalendar
}

// Fetch returns events starting within the lookahead window. A prior
// denial fails fast without re-prompting.
func (a *Adapter) Fetch(ctx context.Context) ([]model.Notification, error) {
	switch a.source.AuthorizationStatus() {
	case StatusDenied, StatusRestricted:
		return nil, &service.AccessDeniedError{Service: model.ServiceSystemCalendar}
	}

	granted, err := a.source.RequestAccess(ctx)
	if err != nil {
		return nil, &service.UpstreamError{Service: model.ServiceSystemCalendar, Err: err}
	}
	if !granted {
		return nil, &service.AccessDeniedError{Service: model.ServiceSystemCalendar}
	}

	now := timeNow()
	lookahead := time.Duration(a.settings.CalendarLookaheadHours()) * time.Hour

	events, err := a.source.Events(ctx, now, now.Add(lookahead))
	if err != nil {
		return nil, &service.UpstreamError{Service: model.ServiceSystemCalendar, Err: err}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	var notifications []model.Notification
	for _, ev := range events {
		if len(notifications) == maxEvents {
			break
		}

		id := ev.ID
		if id == "" {
			id = uuid.NewString()
		}

		title := ev.Title
		if title == "" {
			title = "No Title"
		}

		icon := "calendar-clock"
		if ev.AllDay {
			icon = "calendar"
		}

		notifications = append(notifications, model.Notification{
			ID:        "cal-" + id,
			Service:   model.ServiceSystemCalendar,
			Title:     title,
			Subtitle:  timeRange(ev),
			Body:      meetingInfo(ev),
			Timestamp: ev.Start,
			URL:       ev.URL,
			Icon:      icon,
			Priority:  service.MinutesUntilPriority(ev.Start, now),
		})
	}
	return notifications, nil
}

func timeRange(ev Event) string {
	if ev.AllDay {
		return "All Day"
	}
	return ev.Start.Format("3:04 PM") + " - " + ev.End.Format("3:04 PM")
}

// meetingInfo prefers the location, then a generic label when the notes
// carry a known meeting link.
func meetingInfo(ev Event) string {
	if ev.Location != "" {
		return ev.Location
	}
	for _, host := range []string{"zoom.us", "meet.google.com", "teams.microsoft.com"} {
		if strings.Contains(ev.Notes, host) {
			return "Online Meeting"
		}
	}
	return ""
}
