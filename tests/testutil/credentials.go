package testutil

import (
	"sync"

	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
)

// MemoryCredentials is an in-memory credential.Store for tests.
type MemoryCredentials struct {
	mu       sync.Mutex
	bundles  map[string]credential.Bundle
	accounts map[model.ServiceType][]string
}

// NewMemoryCredentials creates an empty in-memory credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{
		bundles:  make(map[string]credential.Bundle),
		accounts: make(map[model.ServiceType][]string),
	}
}

func key(service model.ServiceType, account string) string {
	if account == "" {
		return string(service)
	}
	return string(service) + "/" + credential.NormalizeAccount(account)
}

func (m *MemoryCredentials) PutBundle(service model.ServiceType, account string, b credential.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[key(service, account)] = b
	return nil
}

func (m *MemoryCredentials) GetBundle(service model.ServiceType, account string) (credential.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[key(service, account)]
	if !ok {
		return credential.Bundle{}, credential.ErrNotFound
	}
	return b, nil
}

func (m *MemoryCredentials) DeleteBundle(service model.ServiceType, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bundles, key(service, account))
	return nil
}

func (m *MemoryCredentials) HasBundle(service model.ServiceType, account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bundles[key(service, account)]
	return ok
}

func (m *MemoryCredentials) ListAccounts(service model.ServiceType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.accounts[service]...), nil
}

func (m *MemoryCredentials) AddAccount(service model.ServiceType, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account = credential.NormalizeAccount(account)
	for _, a := range m.accounts[service] {
		if a == account {
			return nil
		}
	}
	m.accounts[service] = append(m.accounts[service], account)
	return nil
}

func (m *MemoryCredentials) RemoveAccount(service model.ServiceType, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account = credential.NormalizeAccount(account)
	kept := m.accounts[service][:0]
	for _, a := range m.accounts[service] {
		if a != account {
			kept = append(kept, a)
		}
	}
	m.accounts[service] = kept
	return nil
}

func (m *MemoryCredentials) ClearAccounts(service model.ServiceType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, service)
	return nil
}
