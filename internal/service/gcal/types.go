package gcal

import (
	"time"

	"github.com/nhle/workfeed/internal/service"
)

// eventList is the GET /calendars/{id}/events payload.
type eventList struct {
	Items         []event `json:"items"`
	Summary       string  `json:"summary"`
	NextPageToken string  `json:"nextPageToken"`
}

type event struct {
	ID             string          `json:"id"`
	Summary        string          `json:"summary"`
	Description    string          `json:"description"`
	Status         string          `json:"status"` // "confirmed", "tentative", "cancelled"
	Start          *eventDateTime  `json:"start"`
	End            *eventDateTime  `json:"end"`
	HTMLLink       string          `json:"htmlLink"`
	HangoutLink    string          `json:"hangoutLink"`
	ConferenceData *conferenceData `json:"conferenceData"`
}

type eventDateTime struct {
	DateTime string `json:"dateTime"` // ISO 8601 for timed events
	Date     string `json:"date"`     // "2024-01-15" for all-day events
	TimeZone string `json:"timeZone"`
}

// parsed returns the event boundary as a time, or zero when absent.
func (d *eventDateTime) parsed() time.Time {
	if d == nil {
		return time.Time{}
	}
	if d.DateTime != "" {
		return service.ParseTime(d.DateTime, time.Time{})
	}
	if d.Date != "" {
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// isAllDay reports whether the boundary is a date-only value.
func (d *eventDateTime) isAllDay() bool {
	return d != nil && d.Date != ""
}

type conferenceData struct {
	EntryPoints []entryPoint `json:"entryPoints"`
}

type entryPoint struct {
	EntryPointType string `json:"entryPointType"` // "video", "phone"
	URI            string `json:"uri"`
}

func (e event) title() string {
	if e.Summary != "" {
		return e.Summary
	}
	return "No Title"
}

// timeRange renders the subtitle: "All Day" or "start - end".
func (e event) timeRange() string {
	start := e.Start.parsed()
	if start.IsZero() {
		return ""
	}
	if e.Start.isAllDay() {
		return "All Day"
	}

	startStr := start.Format("3:04 PM")
	if end := e.End.parsed(); !end.IsZero() {
		return startStr + " - " + end.Format("3:04 PM")
	}
	return startStr
}

// meetingURL prefers the hangout link, then any video entry point.
func (e event) meetingURL() string {
	if e.HangoutLink != "" {
		return e.HangoutLink
	}
	if e.ConferenceData != nil {
		for _, entry := range e.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" && entry.URI != "" {
				return entry.URI
			}
		}
	}
	return ""
}
