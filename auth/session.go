// Package auth implements the zkLogin authentication flow: ephemeral session
// management, identity-token intake, and the completion state machine that
// turns a freshly issued token into a usable blockchain address.
package auth

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/pkg/errors"

	clerrors "github.com/suilotto/zkgateway/client/errors"
	"github.com/suilotto/zkgateway/crypto/zklogin"
)

// EphemeralSession is a short-lived signing keypair bound to a nonce and an
// epoch validity window. The nonce is derived from exactly {public key, max
// epoch, randomness}; an identity token issued against any other nonce cannot
// be consumed with this session.
type EphemeralSession struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	Randomness []byte
	MaxEpoch   uint64
	Nonce      string
	CreatedAt  time.Time
}

// Expired reports whether the session's validity window has passed at the
// given epoch.
func (s *EphemeralSession) Expired(currentEpoch uint64) bool {
	return currentEpoch >= s.MaxEpoch
}

// SessionStore persists ephemeral sessions scoped to one login context. A
// session survives the browser round trip through the identity provider but
// is not shared across devices or tabs.
type SessionStore interface {
	Get(sessionID string) (*EphemeralSession, bool)
	Put(sessionID string, session *EphemeralSession)
	Delete(sessionID string)
}

// MemorySessionStore is the in-process SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*EphemeralSession
}

// NewMemorySessionStore creates an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*EphemeralSession)}
}

// Get implements SessionStore.
func (m *MemorySessionStore) Get(sessionID string) (*EphemeralSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

// Put implements SessionStore.
func (m *MemorySessionStore) Put(sessionID string, session *EphemeralSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = session
}

// Delete implements SessionStore.
func (m *MemorySessionStore) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// EpochReader supplies the network's current epoch counter.
type EpochReader interface {
	GetCurrentEpoch(ctx context.Context) (uint64, error)
}

// SessionManager creates and reuses ephemeral sessions. At most one live
// session is expected per pending login attempt.
type SessionManager struct {
	epochs   EpochReader
	sessions SessionStore
	window   uint64
}

// NewSessionManager creates a session manager whose sessions stay valid for
// window epochs past the epoch observed at creation.
func NewSessionManager(epochs EpochReader, sessions SessionStore, window uint64) *SessionManager {
	return &SessionManager{epochs: epochs, sessions: sessions, window: window}
}

// Create returns the session for a pending login attempt. An existing
// unexpired session is returned unchanged unless forceNew is set; otherwise a
// fresh keypair, randomness, and nonce are generated against the network's
// current epoch. If the epoch query fails an existing session is still
// returned as is; no session is created or overwritten.
func (m *SessionManager) Create(ctx context.Context, sessionID string, forceNew bool) (*EphemeralSession, error) {
	currentEpoch, err := m.epochs.GetCurrentEpoch(ctx)
	if err != nil {
		// Reuse does not need a fresh epoch; only creation does. Expiry of
		// the returned session is settled later, when the network is back.
		if existing, ok := m.sessions.Get(sessionID); ok && !forceNew {
			return existing, nil
		}
		if errors.Is(err, clerrors.ErrNetworkUnavailable) {
			return nil, err
		}
		return nil, errors.Wrap(clerrors.ErrNetworkUnavailable, err.Error())
	}

	if !forceNew {
		if existing, ok := m.sessions.Get(sessionID); ok && !existing.Expired(currentEpoch) {
			return existing, nil
		}
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ephemeral keypair")
	}
	randomness, err := zklogin.GenerateRandomness()
	if err != nil {
		return nil, err
	}

	maxEpoch := currentEpoch + m.window
	session := &EphemeralSession{
		PublicKey:  pub,
		PrivateKey: priv,
		Randomness: randomness,
		MaxEpoch:   maxEpoch,
		Nonce:      zklogin.DeriveNonce(pub, maxEpoch, randomness),
		CreatedAt:  time.Now().UTC(),
	}
	m.sessions.Put(sessionID, session)
	return session, nil
}

// Get returns the pending session for a login attempt.
func (m *SessionManager) Get(sessionID string) (*EphemeralSession, bool) {
	return m.sessions.Get(sessionID)
}

// Clear discards the pending session for a login attempt.
func (m *SessionManager) Clear(sessionID string) {
	m.sessions.Delete(sessionID)
}
