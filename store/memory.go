package store

import (
	"context"
	"fmt"
	"sync"

	clerrors "github.com/suilotto/zkgateway/client/errors"
)

// MemoryStore is an in-process IdentityStore used for tests and local
// development. Data does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	salts     map[string]SaltRecord
	addresses map[string]AddressRecord
}

// NewMemoryStore creates an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		salts:     make(map[string]SaltRecord),
		addresses: make(map[string]AddressRecord),
	}
}

func tripleKey(issuer, subject, audience string) string {
	return fmt.Sprintf("%s|%s|%s", issuer, subject, audience)
}

// GetOrCreateSalt implements IdentityStore.
func (m *MemoryStore) GetOrCreateSalt(_ context.Context, candidate SaltRecord) (string, bool, error) {
	key := tripleKey(candidate.Issuer, candidate.Subject, candidate.Audience)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.salts[key]; ok {
		return existing.Salt, false, nil
	}
	m.salts[key] = candidate
	return candidate.Salt, true, nil
}

// AssociateAddress implements IdentityStore.
func (m *MemoryStore) AssociateAddress(_ context.Context, record AddressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[record.UserID]; ok {
		return nil
	}
	m.addresses[record.UserID] = record
	return nil
}

// AddressForUser implements IdentityStore.
func (m *MemoryStore) AddressForUser(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.addresses[userID]
	if !ok {
		return "", clerrors.ErrNotFound
	}
	return record.Address, nil
}
