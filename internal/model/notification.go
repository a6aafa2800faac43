package model

import "time"

// ServiceType identifies one external service integration.
type ServiceType string

const (
	ServiceGitHub         ServiceType = "github"
	ServiceTeams          ServiceType = "teams"
	ServiceNotion         ServiceType = "notion"
	ServiceSystemCalendar ServiceType = "syscal"
	ServiceGoogleCalendar ServiceType = "gcal"
)

// AllServices lists every supported service in display order.
var AllServices = []ServiceType{
	ServiceGitHub,
	ServiceTeams,
	ServiceNotion,
	ServiceSystemCalendar,
	ServiceGoogleCalendar,
}

// DisplayName returns the human-readable service name.
func (s ServiceType) DisplayName() string {
	switch s {
	case ServiceGitHub:
		return "GitHub"
	case ServiceTeams:
		return "Microsoft Teams"
	case ServiceNotion:
		return "Notion"
	case ServiceSystemCalendar:
		return "System Calendar"
	case ServiceGoogleCalendar:
		return "Google Calendar"
	default:
		return string(s)
	}
}

// IsCalendar reports whether the service is a calendar-like source.
// Calendar notifications go to the upcoming section instead of recent.
func (s ServiceType) IsCalendar() bool {
	return s == ServiceSystemCalendar || s == ServiceGoogleCalendar
}

// Priority is the normalized urgency of a notification.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// Notification is the unified representation of a work item surfaced
// from any service. Instances are rebuilt fresh on every poll cycle;
// only IsPinned is stamped in afterwards by the merge step.
type Notification struct {
	// ID is globally unique and service-prefixed (e.g. "gh-thread-123").
	ID string `json:"id"`

	// Service identifies which integration produced this notification.
	Service ServiceType `json:"service"`

	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`

	// Timestamp is the item's own time: last update for activity items,
	// start time for calendar events.
	Timestamp time.Time `json:"timestamp"`

	// URL is the browser link to the item, if one exists.
	URL string `json:"url,omitempty"`

	IsPinned bool `json:"is_pinned"`

	// Icon is a hint for the presentation layer, chosen by item sub-type.
	Icon string `json:"icon"`

	Priority Priority `json:"priority"`
}

// Same reports whether two notifications are the same logical item for
// UI change detection: identity is (ID, IsPinned) only, content drift
// between poll cycles does not count as a change.
func (n Notification) Same(other Notification) bool {
	return n.ID == other.ID && n.IsPinned == other.IsPinned
}
