package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/workfeed/internal/model"
)

// ErrNotFound is returned when no bundle is stored for the requested
// service or (service, account) pair.
var ErrNotFound = errors.New("credential not found")

// Bundle is one stored OAuth credential: an access token plus optional
// refresh token and expiry. A bundle without a refresh token never
// expires (the provider issues durable tokens).
type Bundle struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Store persists OAuth bundles and the per-service account registry.
// Implementations must be safe for concurrent readers; the aggregation
// engine polls services in parallel and each may read credentials.
type Store interface {
	// PutBundle stores b for service, or for (service, account) when
	// account is non-empty.
	PutBundle(service model.ServiceType, account string, b Bundle) error

	// GetBundle returns the stored bundle, or ErrNotFound.
	GetBundle(service model.ServiceType, account string) (Bundle, error)

	// DeleteBundle removes a stored bundle. Deleting a bundle that does
	// not exist is not an error.
	DeleteBundle(service model.ServiceType, account string) error

	// HasBundle reports whether a bundle is stored. Read errors collapse
	// to false; this is a best-effort probe.
	HasBundle(service model.ServiceType, account string) bool

	// ListAccounts returns the registered account ids for service in
	// insertion order (normalized lowercase).
	ListAccounts(service model.ServiceType) ([]string, error)

	// AddAccount registers an account id for service. Adding an id that
	// is already registered is a no-op.
	AddAccount(service model.ServiceType, account string) error

	// RemoveAccount unregisters an account id. Unknown ids are ignored.
	RemoveAccount(service model.ServiceType, account string) error

	// ClearAccounts unregisters every account for service.
	ClearAccounts(service model.ServiceType) error
}

// NormalizeAccount lowercases an account id. Account identity is
// case-insensitive everywhere in the store.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

const serviceName = "workfeed"

// KeyringStore implements Store on top of the system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the system keyring and returns a store backed by it.
func OpenKeyring() (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/workfeed/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("workfeed-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already-open keyring. Used by tests with an
// in-memory backend.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func bundleKey(service model.ServiceType, account string) string {
	if account == "" {
		return "tokens-" + string(service)
	}
	return "tokens-" + string(service) + "-" + NormalizeAccount(account)
}

func registryKey(service model.ServiceType) string {
	return "accounts-" + string(service)
}

// PutBundle stores a bundle as JSON under the service (and account) key.
func (s *KeyringStore) PutBundle(service model.ServiceType, account string, b Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}

	key := bundleKey(service, account)
	if err := s.ring.Set(keyring.Item{Key: key, Data: data}); err != nil {
		return fmt.Errorf("storing credential %q: %w", key, err)
	}
	return nil
}

// GetBundle retrieves and decodes a stored bundle.
func (s *KeyringStore) GetBundle(service model.ServiceType, account string) (Bundle, error) {
	key := bundleKey(service, account)

	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Bundle{}, ErrNotFound
		}
		return Bundle{}, fmt.Errorf("reading credential %q: %w", key, err)
	}

	var b Bundle
	if err := json.Unmarshal(item.Data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decoding credential %q: %w", key, err)
	}
	return b, nil
}

// DeleteBundle removes a stored bundle, ignoring absence.
func (s *KeyringStore) DeleteBundle(service model.ServiceType, account string) error {
	key := bundleKey(service, account)

	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// HasBundle reports whether a bundle exists, collapsing read errors to
// false.
func (s *KeyringStore) HasBundle(service model.ServiceType, account string) bool {
	_, err := s.GetBundle(service, account)
	return err == nil
}

// ListAccounts returns the registered account ids in insertion order.
func (s *KeyringStore) ListAccounts(service model.ServiceType) ([]string, error) {
	item, err := s.ring.Get(registryKey(service))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading account registry for %s: %w", service, err)
	}

	var accounts []string
	if err := json.Unmarshal(item.Data, &accounts); err != nil {
		return nil, fmt.Errorf("decoding account registry for %s: %w", service, err)
	}
	return accounts, nil
}

// AddAccount registers a (normalized) account id, preserving order and
// ignoring duplicates.
func (s *KeyringStore) AddAccount(service model.ServiceType, account string) error {
	account = NormalizeAccount(account)
	if account == "" {
		return fmt.Errorf("account id must not be empty")
	}

	accounts, err := s.ListAccounts(service)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a == account {
			return nil
		}
	}

	return s.saveRegistry(service, append(accounts, account))
}

// RemoveAccount unregisters an account id, ignoring unknown ids.
func (s *KeyringStore) RemoveAccount(service model.ServiceType, account string) error {
	account = NormalizeAccount(account)

	accounts, err := s.ListAccounts(service)
	if err != nil {
		return err
	}

	kept := accounts[:0]
	for _, a := range accounts {
		if a != account {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(accounts) {
		return nil
	}
	return s.saveRegistry(service, kept)
}

// ClearAccounts removes the whole registry for a service.
func (s *KeyringStore) ClearAccounts(service model.ServiceType) error {
	err := s.ring.Remove(registryKey(service))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing account registry for %s: %w", service, err)
	}
	return nil
}

func (s *KeyringStore) saveRegistry(service model.ServiceType, accounts []string) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encoding account registry: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: registryKey(service), Data: data}); err != nil {
		return fmt.Errorf("storing account registry for %s: %w", service, err)
	}
	return nil
}

// Keys returns all stored keyring keys, sorted. Diagnostic helper.
func (s *KeyringStore) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing keyring keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
