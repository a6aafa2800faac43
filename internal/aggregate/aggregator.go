// Package aggregate runs all enabled provider adapters on a timer,
// merges their output, and publishes immutable snapshots of the feed to
// the presentation layer.
package aggregate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/service"
	"github.com/nhle/workfeed/internal/settings"
	"github.com/nhle/workfeed/internal/store"
)

// fetchTimeout bounds one adapter call within a refresh round.
const fetchTimeout = 30 * time.Second

// timeNow is stubbed in tests.
var timeNow = time.Now

// Snapshot is one immutable view of the aggregated feed. The aggregator
// publishes a fresh snapshot after every state change; consumers never
// see a half-applied round.
type Snapshot struct {
	Pinned   []model.Notification
	Groups   []Group
	Recent   []model.Notification
	Upcoming []model.Notification

	IsRefreshing      bool
	LastRefreshAt     time.Time
	ShowingSampleData bool

	// Errors maps each failed service to its banner message. Partial
	// failure leaves other services' notifications intact.
	Errors map[model.ServiceType]string
}

// Aggregator owns the canonical feed state.
type Aggregator struct {
	services []service.Service
	settings *settings.Settings
	st       store.Store

	mu        sync.Mutex
	pool      []model.Notification
	pinnedIDs map[string]bool
	errors    map[model.ServiceType]string

	refreshing    bool
	lastRefreshAt time.Time
	showingSample bool

	snapshots chan Snapshot

	pollMu   sync.Mutex
	pollStop chan struct{}
}

// New creates an aggregator over the given adapter set and loads the
// persisted pin set.
func New(ctx context.Context, services []service.Service, st *settings.Settings, persistence store.Store) (*Aggregator, error) {
	ids, err := persistence.PinnedIDs(ctx)
	if err != nil {
		return nil, err
	}

	pinned := make(map[string]bool, len(ids))
	for _, id := range ids {
		pinned[id] = true
	}

	return &Aggregator{
		services:  services,
		settings:  st,
		st:        persistence,
		pinnedIDs: pinned,
		errors:    make(map[model.ServiceType]string),
		snapshots: make(chan Snapshot, 1),
	}, nil
}

// Snapshots returns the snapshot stream. The channel holds only the
// latest snapshot; a slow consumer sees the newest state, not a backlog.
func (a *Aggregator) Snapshots() <-chan Snapshot {
	return a.snapshots
}

// Snapshot returns the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// RefreshAll runs every enabled-and-authenticated adapter concurrently
// and applies the merged result atomically at the end of the round. One
// adapter's failure never discards another's items. With no eligible
// adapters the fixed sample feed is shown instead.
func (a *Aggregator) RefreshAll(ctx context.Context) {
	a.mu.Lock()
	a.refreshing = true
	a.errors = make(map[model.ServiceType]string)
	a.publishLocked()
	a.mu.Unlock()

	var eligible []service.Service
	for _, svc := range a.services {
		if a.settings.IsEnabled(svc.Type()) && a.settings.IsAuthenticated(svc.Type()) {
			eligible = append(eligible, svc)
		}
	}

	var (
		pool    []model.Notification
		errs    = make(map[model.ServiceType]string)
		sampled bool
	)

	if len(eligible) == 0 {
		pool = model.SampleNotifications(timeNow())
		sampled = true
	} else {
		type result struct {
			service       model.ServiceType
			notifications []model.Notification
			err           error
		}

		results := make(chan result, len(eligible))
		var wg sync.WaitGroup
		for _, svc := range eligible {
			wg.Add(1)
			go func(svc service.Service) {
				defer wg.Done()
				callCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
				defer cancel()

				notifications, err := svc.Fetch(callCtx)
				results <- result{service: svc.Type(), notifications: notifications, err: err}
			}(svc)
		}
		wg.Wait()
		close(results)

		for r := range results {
			if r.err != nil {
				errs[r.service] = r.err.Error()
				continue
			}
			pool = append(pool, r.notifications...)
		}
	}

	a.mu.Lock()
	a.pool = pool
	a.errors = errs
	a.showingSample = sampled
	a.refreshing = false
	a.lastRefreshAt = timeNow()
	a.publishLocked()
	a.mu.Unlock()
}

// TogglePin pins or unpins a notification id. Pinning past capacity is
// silently ignored. The change persists and sections are recomputed
// without a re-fetch.
func (a *Aggregator) TogglePin(ctx context.Context, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pinnedIDs[id] {
		delete(a.pinnedIDs, id)
		if err := a.st.RemovePin(ctx, id); err != nil {
			log.Printf("aggregate: removing pin %s: %v", id, err)
		}
	} else {
		if len(a.pinnedIDs) >= maxPinned {
			return
		}
		a.pinnedIDs[id] = true
		if err := a.st.AddPin(ctx, id); err != nil {
			log.Printf("aggregate: adding pin %s: %v", id, err)
		}
	}
	a.publishLocked()
}

// ClearError dismisses one service's error banner.
func (a *Aggregator) ClearError(svc model.ServiceType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.errors, svc)
	a.publishLocked()
}

// StartPolling begins the repeating refresh timer, replacing any timer
// already running. The interval is re-read from settings every tick so
// changes apply without a restart.
func (a *Aggregator) StartPolling(ctx context.Context) {
	a.pollMu.Lock()
	defer a.pollMu.Unlock()

	if a.pollStop != nil {
		close(a.pollStop)
	}
	stop := make(chan struct{})
	a.pollStop = stop

	go func() {
		for {
			timer := time.NewTimer(a.settings.PollInterval())
			select {
			case <-timer.C:
				a.RefreshAll(ctx)
			case <-stop:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// StopPolling cancels the pending timer. A refresh already in flight
// completes and its result is applied normally.
func (a *Aggregator) StopPolling() {
	a.pollMu.Lock()
	defer a.pollMu.Unlock()
	if a.pollStop != nil {
		close(a.pollStop)
		a.pollStop = nil
	}
}

func (a *Aggregator) snapshotLocked() Snapshot {
	pinned, groups, recent, upcoming := computeSections(a.pool, a.pinnedIDs, timeNow())

	errs := make(map[model.ServiceType]string, len(a.errors))
	for k, v := range a.errors {
		errs[k] = v
	}

	return Snapshot{
		Pinned:            pinned,
		Groups:            groups,
		Recent:            recent,
		Upcoming:          upcoming,
		IsRefreshing:      a.refreshing,
		LastRefreshAt:     a.lastRefreshAt,
		ShowingSampleData: a.showingSample,
		Errors:            errs,
	}
}

// publishLocked replaces the buffered snapshot, keeping only the latest.
func (a *Aggregator) publishLocked() {
	snap := a.snapshotLocked()
	select {
	case <-a.snapshots:
	default:
	}
	a.snapshots <- snap
}
