package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/suilotto/zkgateway/crypto/salt"
)

// RepairQueue accepts records whose durable write failed, for asynchronous
// retry. Enqueueing is best effort; implementations must not block.
type RepairQueue interface {
	EnqueueSaltRepair(record SaltRecord)
	EnqueueAddressRepair(record AddressRecord)
}

// SaltStore resolves the stable per-identity salt used in address derivation.
// Creation is serialized per identity triple, so two concurrent first-time
// authentications for the same identity cannot race into different salts
// within one process; across processes the backend's conditional insert
// settles the winner.
type SaltStore struct {
	backend IdentityStore
	repairs RepairQueue

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewSaltStore creates a salt store over the given backend. repairs may be
// nil, in which case degraded writes are only logged.
func NewSaltStore(backend IdentityStore, repairs RepairQueue) *SaltStore {
	return &SaltStore{
		backend:  backend,
		repairs:  repairs,
		inflight: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the salt for an identity triple, generating and
// persisting one on first authentication. When persistence fails after
// generation the generated salt is still returned with degraded=true: the
// login proceeds, the caller surfaces a warning, and the write is handed to
// the repair queue. Availability over consistency, deliberately.
func (s *SaltStore) GetOrCreate(ctx context.Context, issuer, subject, audience, userID string) (*salt.Salt, bool, error) {
	lock := s.tripleLock(issuer, subject, audience)
	lock.Lock()
	defer lock.Unlock()

	candidate, err := salt.Generate()
	if err != nil {
		return nil, false, err
	}

	record := SaltRecord{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  audience,
		Salt:      candidate.Decimal(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	stored, _, err := s.backend.GetOrCreateSalt(ctx, record)
	if err != nil {
		log.Printf("Warning: salt persistence failed for issuer %s: %v", issuer, err)
		if s.repairs != nil {
			s.repairs.EnqueueSaltRepair(record)
		}
		// Degraded mode: the salt is usable now but may not be stable
		// across requests until the repair write lands.
		return candidate, true, nil
	}

	if stored == record.Salt {
		return candidate, false, nil
	}
	existing, err := salt.FromDecimal(stored)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// tripleLock returns the creation mutex for an identity triple.
func (s *SaltStore) tripleLock(issuer, subject, audience string) *sync.Mutex {
	key := tripleKey(issuer, subject, audience)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.inflight[key]
	if !ok {
		lock = &sync.Mutex{}
		s.inflight[key] = lock
	}
	return lock
}
