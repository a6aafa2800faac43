package gcal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/nhle/workfeed/internal/config"
	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/oauth"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/service/gcal"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/tests/testutil"
)

func newAdapter(t *testing.T, items []map[string]any, query *url.Values) (*gcal.Adapter, *settings.Settings) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if query != nil {
			*query = r.URL.Query()
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	t.Cleanup(srv.Close)

	creds := testutil.NewMemoryCredentials()
	creds.PutBundle(model.ServiceGoogleCalendar, "", credential.Bundle{AccessToken: "token"})

	cfg, err := settings.Load(context.Background(), testutil.NewTestStore(t))
	if err != nil {
		t.Fatal(err)
	}

	adapter := gcal.NewAdapter(oauth.NewEngine(creds, nil), cfg, config.Google("id", "secret"))
	adapter.BaseURL = srv.URL
	return adapter, cfg
}

func timed(id, summary string, start, end time.Time) map[string]any {
	return map[string]any{
		"id":       id,
		"summary":  summary,
		"status":   "confirmed",
		"start":    map[string]any{"dateTime": start.Format(time.RFC3339)},
		"end":      map[string]any{"dateTime": end.Format(time.RFC3339)},
		"htmlLink": "https://calendar.google.com/event?eid=" + id,
	}
}

func TestFetchNotAuthenticated(t *testing.T) {
	cfg, err := settings.Load(context.Background(), testutil.NewTestStore(t))
	if err != nil {
		t.Fatal(err)
	}
	adapter := gcal.NewAdapter(oauth.NewEngine(testutil.NewMemoryCredentials(), nil), cfg, config.Google("id", "secret"))
	if _, err := adapter.Fetch(context.Background()); !service.IsNotAuthenticated(err) {
		t.Fatalf("err = %v, want NotAuthenticatedError", err)
	}
}

func TestFetchWindowAndQuery(t *testing.T) {
	var query url.Values
	adapter, cfg := newAdapter(t, nil, &query)
	if err := cfg.SetCalendarLookaheadHours(context.Background(), 12); err != nil {
		t.Fatal(err)
	}

	if _, err := adapter.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if query.Get("singleEvents") != "true" || query.Get("orderBy") != "startTime" {
		t.Errorf("query = %v", query)
	}
	if query.Get("maxResults") != "10" {
		t.Errorf("maxResults = %q", query.Get("maxResults"))
	}

	timeMin, err := time.Parse(time.RFC3339, query.Get("timeMin"))
	if err != nil {
		t.Fatalf("timeMin %q: %v", query.Get("timeMin"), err)
	}
	timeMax, err := time.Parse(time.RFC3339, query.Get("timeMax"))
	if err != nil {
		t.Fatalf("timeMax %q: %v", query.Get("timeMax"), err)
	}
	if window := timeMax.Sub(timeMin); window != 12*time.Hour {
		t.Errorf("window = %v, want the configured 12h", window)
	}
}

func TestFetchMapsEvents(t *testing.T) {
	now := time.Now()
	soon := now.Add(10 * time.Minute)
	later := now.Add(3 * time.Hour)

	items := []map[string]any{
		timed("e1", "Standup", soon, soon.Add(15*time.Minute)),
		timed("e2", "Planning", later, later.Add(time.Hour)),
		{
			"id": "cancelled", "summary": "Gone", "status": "cancelled",
			"start": map[string]any{"dateTime": soon.Format(time.RFC3339)},
		},
		{
			"id": "allday", "summary": "Conference", "status": "confirmed",
			"start": map[string]any{"date": now.Add(24 * time.Hour).Format("2006-01-02")},
			"end":   map[string]any{"date": now.Add(48 * time.Hour).Format("2006-01-02")},
		},
	}
	adapter, _ := newAdapter(t, items, nil)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d notifications, want 3 (cancelled dropped)", len(got))
	}

	standup := got[0]
	if standup.ID != "gcal-e1" {
		t.Errorf("ID = %q", standup.ID)
	}
	if standup.Priority != model.PriorityHigh {
		t.Errorf("priority = %v, want high within 15 minutes of start", standup.Priority)
	}
	if got[1].Priority != model.PriorityLow {
		t.Errorf("priority = %v, want low beyond the hour", got[1].Priority)
	}

	allDay := got[2]
	if allDay.Subtitle != "All Day" {
		t.Errorf("all-day subtitle = %q", allDay.Subtitle)
	}
	if allDay.Icon != "calendar-day" {
		t.Errorf("all-day icon = %q", allDay.Icon)
	}
}

func TestFetchPrefersMeetingURL(t *testing.T) {
	now := time.Now()
	start := now.Add(time.Hour)
	items := []map[string]any{
		{
			"id": "hangout", "summary": "A", "status": "confirmed",
			"start":       map[string]any{"dateTime": start.Format(time.RFC3339)},
			"htmlLink":    "https://calendar.google.com/a",
			"hangoutLink": "https://meet.google.com/abc",
		},
		{
			"id": "conference", "summary": "B", "status": "confirmed",
			"start":    map[string]any{"dateTime": start.Format(time.RFC3339)},
			"htmlLink": "https://calendar.google.com/b",
			"conferenceData": map[string]any{
				"entryPoints": []map[string]any{
					{"entryPointType": "phone", "uri": "tel:+1555"},
					{"entryPointType": "video", "uri": "https://zoom.us/j/123"},
				},
			},
		},
		{
			"id": "plain", "summary": "C", "status": "confirmed",
			"start":    map[string]any{"dateTime": start.Format(time.RFC3339)},
			"htmlLink": "https://calendar.google.com/c",
		},
	}
	adapter, _ := newAdapter(t, items, nil)

	got, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got[0].URL != "https://meet.google.com/abc" {
		t.Errorf("hangout URL = %q", got[0].URL)
	}
	if got[1].URL != "https://zoom.us/j/123" {
		t.Errorf("video entry point URL = %q", got[1].URL)
	}
	if got[2].URL != "https://calendar.google.com/c" {
		t.Errorf("fallback URL = %q", got[2].URL)
	}
}
