// Package settings holds the user-facing configuration state: which
// services are enabled and authenticated, polling cadence, repository
// filters, the active GitHub account, and display preferences.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/store"
)

const (
	keyServiceConfigs   = "serviceConfigs"
	keyPollInterval     = "pollIntervalSeconds"
	keyOpacity          = "backgroundOpacity"
	keyLookaheadHours   = "calendarLookaheadHours"
	keyNotificationDays = "githubNotificationDays"
	keySelectedRepos    = "github.selectedRepoNames"
	keyActiveAccount    = "github.activeAccountLogin"
)

// serviceConfig is the persisted per-service flag pair.
type serviceConfig struct {
	Enabled       bool `json:"enabled"`
	Authenticated bool `json:"authenticated"`
}

// Settings is the concurrent-safe settings state. Reads happen from
// concurrently-running adapters during a refresh round; writes happen
// on user action and persist through the store.
type Settings struct {
	mu sync.RWMutex
	st store.Store

	services         map[model.ServiceType]serviceConfig
	pollIntervalSec  int
	opacity          float64
	lookaheadHours   int
	notificationDays int
	selectedRepos    map[string]bool
	activeAccount    string
}

// Load reads all persisted settings from st, applying defaults for
// anything absent.
func Load(ctx context.Context, st store.Store) (*Settings, error) {
	s := &Settings{
		st:               st,
		services:         make(map[model.ServiceType]serviceConfig),
		pollIntervalSec:  60,
		opacity:          1.0,
		lookaheadHours:   24,
		notificationDays: 7,
		selectedRepos:    make(map[string]bool),
	}

	if raw, ok, err := st.GetSetting(ctx, keyServiceConfigs); err != nil {
		return nil, err
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &s.services); err != nil {
			return nil, fmt.Errorf("decoding service configs: %w", err)
		}
	}

	if v, err := loadInt(ctx, st, keyPollInterval, s.pollIntervalSec); err != nil {
		return nil, err
	} else {
		s.pollIntervalSec = v
	}
	if v, err := loadInt(ctx, st, keyLookaheadHours, s.lookaheadHours); err != nil {
		return nil, err
	} else {
		s.lookaheadHours = v
	}
	if v, err := loadInt(ctx, st, keyNotificationDays, s.notificationDays); err != nil {
		return nil, err
	} else {
		s.notificationDays = v
	}

	if raw, ok, err := st.GetSetting(ctx, keyOpacity); err != nil {
		return nil, err
	} else if ok {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			s.opacity = f
		}
	}

	if raw, ok, err := st.GetSetting(ctx, keySelectedRepos); err != nil {
		return nil, err
	} else if ok {
		var repos []string
		if err := json.Unmarshal([]byte(raw), &repos); err != nil {
			return nil, fmt.Errorf("decoding repo selection: %w", err)
		}
		for _, r := range repos {
			s.selectedRepos[r] = true
		}
	}

	if raw, ok, err := st.GetSetting(ctx, keyActiveAccount); err != nil {
		return nil, err
	} else if ok {
		s.activeAccount = credential.NormalizeAccount(raw)
	}

	return s, nil
}

func loadInt(ctx context.Context, st store.Store, key string, fallback int) (int, error) {
	raw, ok, err := st.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback, nil
	}
	return v, nil
}

// IsEnabled reports whether a service is visible in the feed.
func (s *Settings) IsEnabled(service model.ServiceType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services[service].Enabled
}

// IsAuthenticated reports whether a service has been connected.
func (s *Settings) IsAuthenticated(service model.ServiceType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services[service].Authenticated
}

// SetEnabled toggles a service's visibility.
func (s *Settings) SetEnabled(ctx context.Context, service model.ServiceType, enabled bool) error {
	s.mu.Lock()
	cfg := s.services[service]
	cfg.Enabled = enabled
	s.services[service] = cfg
	s.mu.Unlock()
	return s.saveServices(ctx)
}

// MarkAuthenticated records connection state. A freshly-connected
// service is also enabled.
func (s *Settings) MarkAuthenticated(ctx context.Context, service model.ServiceType, authenticated bool) error {
	s.mu.Lock()
	cfg := s.services[service]
	cfg.Authenticated = authenticated
	if authenticated {
		cfg.Enabled = true
	}
	s.services[service] = cfg
	s.mu.Unlock()
	return s.saveServices(ctx)
}

// PollInterval returns the polling cadence.
func (s *Settings) PollInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.pollIntervalSec) * time.Second
}

// SetPollInterval updates the polling cadence in seconds.
func (s *Settings) SetPollInterval(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", seconds)
	}
	s.mu.Lock()
	s.pollIntervalSec = seconds
	s.mu.Unlock()
	return s.st.SetSetting(ctx, keyPollInterval, strconv.Itoa(seconds))
}

// BackgroundOpacity returns the panel opacity preference.
func (s *Settings) BackgroundOpacity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opacity
}

// SetBackgroundOpacity clamps and persists the opacity preference.
func (s *Settings) SetBackgroundOpacity(ctx context.Context, value float64) error {
	value = min(1.0, max(0.1, value))
	s.mu.Lock()
	s.opacity = value
	s.mu.Unlock()
	return s.st.SetSetting(ctx, keyOpacity, strconv.FormatFloat(value, 'f', -1, 64))
}

// CalendarLookaheadHours returns the calendar window size.
func (s *Settings) CalendarLookaheadHours() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookaheadHours
}

// SetCalendarLookaheadHours clamps the window to [1, 72] hours.
func (s *Settings) SetCalendarLookaheadHours(ctx context.Context, hours int) error {
	hours = min(72, max(1, hours))
	s.mu.Lock()
	s.lookaheadHours = hours
	s.mu.Unlock()
	return s.st.SetSetting(ctx, keyLookaheadHours, strconv.Itoa(hours))
}

// NotificationDays returns the notification-age window in days.
func (s *Settings) NotificationDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationDays
}

// SetNotificationDays clamps the age window to [1, 30] days.
func (s *Settings) SetNotificationDays(ctx context.Context, days int) error {
	days = min(30, max(1, days))
	s.mu.Lock()
	s.notificationDays = days
	s.mu.Unlock()
	return s.st.SetSetting(ctx, keyNotificationDays, strconv.Itoa(days))
}

// SelectedRepos returns a copy of the repository filter. An empty
// filter means all repositories.
func (s *Settings) SelectedRepos() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repos := make(map[string]bool, len(s.selectedRepos))
	for r := range s.selectedRepos {
		repos[r] = true
	}
	return repos
}

// SetRepoSelected adds or removes a repository from the filter.
func (s *Settings) SetRepoSelected(ctx context.Context, fullName string, selected bool) error {
	s.mu.Lock()
	if selected {
		s.selectedRepos[fullName] = true
	} else {
		delete(s.selectedRepos, fullName)
	}
	s.mu.Unlock()
	return s.saveSelectedRepos(ctx)
}

// ClearRepoSelection empties the repository filter.
func (s *Settings) ClearRepoSelection(ctx context.Context) error {
	s.mu.Lock()
	s.selectedRepos = make(map[string]bool)
	s.mu.Unlock()
	return s.saveSelectedRepos(ctx)
}

// ActiveAccount returns the active GitHub login, or "" when unset.
func (s *Settings) ActiveAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAccount
}

// SetActiveAccount records the active GitHub login (normalized
// lowercase). An empty login clears the pointer.
func (s *Settings) SetActiveAccount(ctx context.Context, login string) error {
	login = credential.NormalizeAccount(login)
	s.mu.Lock()
	s.activeAccount = login
	s.mu.Unlock()

	if login == "" {
		return s.st.DeleteSetting(ctx, keyActiveAccount)
	}
	return s.st.SetSetting(ctx, keyActiveAccount, login)
}

func (s *Settings) saveServices(ctx context.Context) error {
	s.mu.RLock()
	data, err := json.Marshal(s.services)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding service configs: %w", err)
	}
	return s.st.SetSetting(ctx, keyServiceConfigs, string(data))
}

func (s *Settings) saveSelectedRepos(ctx context.Context) error {
	s.mu.RLock()
	repos := make([]string, 0, len(s.selectedRepos))
	for r := range s.selectedRepos {
		repos = append(repos, r)
	}
	s.mu.RUnlock()

	sort.Strings(repos)
	data, err := json.Marshal(repos)
	if err != nil {
		return fmt.Errorf("encoding repo selection: %w", err)
	}
	return s.st.SetSetting(ctx, keySelectedRepos, string(data))
}
