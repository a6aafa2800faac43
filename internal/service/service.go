// Package service defines the contract every notification source
// implements and the error taxonomy the aggregation engine relies on.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/workfeed/internal/model"
)

// Service is the capability every provider adapter implements. The
// aggregation engine fans out over a homogeneous list of these,
// constructed once at startup.
type Service interface {
	// Type returns the service identity.
	Type() model.ServiceType

	// Fetch retrieves the current notifications for this service. The
	// returned slice is owned by the caller; adapters share no mutable
	// state with each other.
	Fetch(ctx context.Context) ([]model.Notification, error)
}

// NotAuthenticatedError indicates no stored credential for a service.
type NotAuthenticatedError struct {
	Service model.ServiceType
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("%s: not authenticated - connect it in settings", e.Service.DisplayName())
}

// IsNotAuthenticated reports whether err is a NotAuthenticatedError.
func IsNotAuthenticated(err error) bool {
	var target *NotAuthenticatedError
	return errors.As(err, &target)
}

// AccessDeniedError indicates the provider or the OS explicitly refused
// access (e.g. calendar permission previously denied).
type AccessDeniedError struct {
	Service model.ServiceType
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: access denied", e.Service.DisplayName())
}

// IsAccessDenied reports whether err is an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return errors.As(err, &target)
}

// UpstreamError wraps a provider API failure with enough detail to
// diagnose it from the per-service error banner.
type UpstreamError struct {
	Service model.ServiceType
	Detail  string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Service.DisplayName(), e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Service.DisplayName(), e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// timeLayouts are tried in order when parsing provider timestamps:
// ISO-8601 with fractional seconds first, then without.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	time.RFC3339,
}

// ParseTime parses an ISO-8601 timestamp with or without fractional
// seconds, first match wins. Returns fallback when nothing matches.
func ParseTime(value string, fallback time.Time) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return fallback
}

// Dedup removes duplicates from a single service's merged sub-sources,
// by notification id and by resolved target URL. The first occurrence
// wins and input order is preserved.
func Dedup(notifications []model.Notification) []model.Notification {
	seenIDs := make(map[string]bool, len(notifications))
	seenURLs := make(map[string]bool, len(notifications))

	result := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if seenIDs[n.ID] {
			continue
		}
		if n.URL != "" && seenURLs[n.URL] {
			continue
		}

		seenIDs[n.ID] = true
		if n.URL != "" {
			seenURLs[n.URL] = true
		}
		result = append(result, n)
	}
	return result
}

// MinutesUntilPriority maps minutes-until-start to urgency for
// time-bound items: within 15 minutes is high, within the hour normal,
// anything later low.
func MinutesUntilPriority(start, now time.Time) model.Priority {
	minutes := start.Sub(now).Minutes()
	switch {
	case minutes <= 15:
		return model.PriorityHigh
	case minutes <= 60:
		return model.PriorityNormal
	default:
		return model.PriorityLow
	}
}
