// Package store persists the widget's durable local state: settings,
// the pinned-notification set, and the default-branch commit baseline.
package store

import "context"

// Store is the persistence interface consumed by the settings state and
// the GitHub adapter. Implementations must be safe for concurrent
// readers; the aggregation engine polls adapters in parallel.
type Store interface {
	// GetSetting returns the value for key and whether it was present.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting stores or replaces the value for key.
	SetSetting(ctx context.Context, key, value string) error

	// DeleteSetting removes key. Missing keys are ignored.
	DeleteSetting(ctx context.Context, key string) error

	// PinnedIDs returns the pinned notification ids, oldest pin first.
	PinnedIDs(ctx context.Context) ([]string, error)

	// AddPin records a pinned notification id.
	AddPin(ctx context.Context, id string) error

	// RemovePin removes a pinned notification id. Missing ids are
	// ignored.
	RemovePin(ctx context.Context, id string) error

	// Baseline returns the repo -> last-seen-commit-SHA map.
	Baseline(ctx context.Context) (map[string]string, error)

	// ReplaceBaseline replaces the whole baseline map. Repositories
	// absent from the new map are pruned.
	ReplaceBaseline(ctx context.Context, baseline map[string]string) error

	// ClearBaseline drops the baseline entirely.
	ClearBaseline(ctx context.Context) error

	Close() error
}
