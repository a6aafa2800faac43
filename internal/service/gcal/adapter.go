// Package gcal surfaces upcoming Google Calendar events from the
// user's primary calendar.
package gcal

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/httpx"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/settings"
)

const maxEvents = 10

// timeNow anchors the lookahead window; stubbed in tests.
var timeNow = time.Now

// Adapter implements service.Service for Google Calendar.
type Adapter struct {
	engine   *oauth.Engine
	settings *settings.Settings
	client   *httpx.Client
	cfg      config.Provider

	// BaseURL is the Calendar API root; overridden in tests.
	BaseURL string
}

// NewAdapter creates a Google Calendar adapter.
func NewAdapter(engine *oauth.Engine, st *settings.Settings, cfg config.Provider) *Adapter {
	return &Adapter{
		engine:   engine,
		settings: st,
		client:   httpx.NewClient(),
		cfg:      cfg,
		BaseURL:  "https://www.googleapis.com/calendar/v3",
	}
}

// Type returns the service identity.
func (a *Adapter) Type() model.ServiceType {
	return model.ServiceGoogleCalendar
}

// Fetch lists events on the primary calendar within the configured
// lookahead window. Cancelled events are dropped.
func (a *Adapter) Fetch(ctx context.Context) ([]model.Notification, error) {
	token, err := a.engine.ValidAccessToken(ctx, model.ServiceGoogleCalendar, "", a.cfg)
	if err != nil {
		if err == oauth.ErrNotAuthenticated {
			return nil, &service.NotAuthenticatedError{Service: model.ServiceGoogleCalendar}
		}
		return nil, err
	}

	now := timeNow()
	lookahead := time.Duration(a.settings.CalendarLookaheadHours()) * time.Hour

	params := url.Values{}
	params.Set("timeMin", now.Format(time.RFC3339))
	params.Set("timeMax", now.Add(lookahead).Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", strconv.Itoa(maxEvents))

	var list eventList
	eventsURL := a.BaseURL + "/calendars/primary/events?" + params.Encode()
	if err := a.client.Get(ctx, eventsURL, token, nil, &list); err != nil {
		return nil, &service.UpstreamError{Service: model.ServiceGoogleCalendar, Err: err}
	}

	var notifications []model.Notification
	for _, ev := range list.Items {
		if ev.Status == "cancelled" {
			continue
		}
		start := ev.Start.parsed()
		if start.IsZero() {
			continue
		}

		eventURL := ev.meetingURL()
		if eventURL == "" {
			eventURL = ev.HTMLLink
		}

		icon := "calendar"
		if ev.Start.isAllDay() {
			icon = "calendar-day"
		}

		notifications = append(notifications, model.Notification{
			ID:        "gcal-" + ev.ID,
			Service:   model.ServiceGoogleCalendar,
			Title:     ev.title(),
			Subtitle:  ev.timeRange(),
			Timestamp: start,
			URL:       eventURL,
			Icon:      icon,
			Priority:  service.MinutesUntilPriority(start, now),
		})
	}
	return notifications, nil
}
