package auth

import (
	"context"
	"encoding/base64"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	clerrors "github.com/suilotto/zkgateway/client/errors"
	"github.com/suilotto/zkgateway/client/prover"
	"github.com/suilotto/zkgateway/crypto/salt"
	"github.com/suilotto/zkgateway/crypto/zklogin"
	"github.com/suilotto/zkgateway/store"
)

// State is a phase of the authentication completion flow.
type State string

const (
	StateIdle           State = "idle"
	StateKeypairPending State = "keypair_pending"
	StateTokenReceived  State = "token_received"
	StateSaltResolving  State = "salt_resolving"
	StateProofResolving State = "proof_resolving"
	StateAddressDerived State = "address_derived"
	StatePersisting     State = "persisting"
	StateComplete       State = "complete"
	StateError          State = "error"
)

// StateEvent is published to subscribers on every flow transition.
type StateEvent struct {
	SessionID string    `json:"sessionId"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// ProofFetcher requests zero-knowledge proofs. Satisfied by prover.Client.
type ProofFetcher interface {
	GetProof(ctx context.Context, req prover.Request) (*zklogin.Proof, error)
}

// Result is a completed authentication: everything needed to assemble
// composite signatures until the session's validity window closes.
type Result struct {
	Address  string
	Proof    *zklogin.Proof
	Session  *EphemeralSession
	Salt     *salt.Salt
	Claims   *zklogin.Claims
	Warnings []string
}

// AddressSeed computes the seed bound into this result's composite
// signatures.
func (r *Result) AddressSeed() *big.Int {
	return zklogin.DeriveAddressSeed(r.Salt, zklogin.SubjectClaim, r.Claims.Subject, r.Claims.Audience)
}

// Flow runs authentication completion: identity token in, blockchain address
// and proof out. Each login attempt moves through keypair, salt, proof,
// address, and persistence phases; transitions are published so a websocket
// handler can stream progress to the caller.
type Flow struct {
	sessions *SessionManager
	tokens   *TokenSource
	salts    *store.SaltStore
	prover   ProofFetcher
	identity store.IdentityStore
	repairs  store.RepairQueue

	mu          sync.RWMutex
	states      map[string]State
	results     map[string]*Result
	subscribers map[string][]chan StateEvent
}

// NewFlow assembles the completion flow. repairs may be nil; degraded
// persistence is then only logged.
func NewFlow(sessions *SessionManager, tokens *TokenSource, salts *store.SaltStore, proofs ProofFetcher, identity store.IdentityStore, repairs store.RepairQueue) *Flow {
	return &Flow{
		sessions:    sessions,
		tokens:      tokens,
		salts:       salts,
		prover:      proofs,
		identity:    identity,
		repairs:     repairs,
		states:      make(map[string]State),
		results:     make(map[string]*Result),
		subscribers: make(map[string][]chan StateEvent),
	}
}

// State returns the current phase for a login attempt.
func (f *Flow) State(sessionID string) State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.states[sessionID]; ok {
		return s
	}
	return StateIdle
}

// Result returns the completed authentication for a session, if any.
func (f *Flow) Result(sessionID string) (*Result, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.results[sessionID]
	return r, ok
}

// Subscribe returns a channel receiving state events for a login attempt.
// The channel is buffered; slow consumers drop events rather than stall the
// flow. Close the subscription with Unsubscribe.
func (f *Flow) Subscribe(sessionID string) chan StateEvent {
	ch := make(chan StateEvent, 16)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[sessionID] = append(f.subscribers[sessionID], ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (f *Flow) Unsubscribe(sessionID string, ch chan StateEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subscribers[sessionID]
	for i, sub := range subs {
		if sub == ch {
			f.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (f *Flow) transition(sessionID string, state State, flowErr error) {
	event := StateEvent{SessionID: sessionID, State: state, At: time.Now().UTC()}
	if flowErr != nil {
		event.Error = flowErr.Error()
	}

	f.mu.Lock()
	f.states[sessionID] = state
	subs := make([]chan StateEvent, len(f.subscribers[sessionID]))
	copy(subs, f.subscribers[sessionID])
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (f *Flow) fail(sessionID string, err error) error {
	f.transition(sessionID, StateError, err)
	return err
}

// Begin creates or reuses the ephemeral session for a login attempt and
// returns it with the nonce the authorization request must carry.
func (f *Flow) Begin(ctx context.Context, sessionID string, forceNew bool) (*EphemeralSession, error) {
	f.transition(sessionID, StateKeypairPending, nil)
	session, err := f.sessions.Create(ctx, sessionID, forceNew)
	if err != nil {
		return nil, f.fail(sessionID, err)
	}
	return session, nil
}

// OfferToken records an identity token that arrived over a delivery channel
// other than the completion call itself.
func (f *Flow) OfferToken(sessionID, rawToken string, origin TokenOrigin) {
	f.tokens.Offer(sessionID, rawToken, origin)
	if rawToken != "" {
		f.transition(sessionID, StateTokenReceived, nil)
	}
}

// Complete runs the full completion pipeline for a login attempt. rawToken
// may be empty, in which case the best pending token offered earlier is
// consumed. platformUserID optionally ties the derived address to an
// application account.
//
// A nonce mismatch is a hard failure: the token was not issued for this
// session's keypair and no proof request is attempted. A persistence failure
// after address derivation degrades to success with a warning; the durable
// write is handed to the repair queue.
func (f *Flow) Complete(ctx context.Context, sessionID, rawToken, platformUserID string) (*Result, error) {
	session, ok := f.sessions.Get(sessionID)
	if !ok {
		return nil, f.fail(sessionID, errors.Wrap(clerrors.ErrSessionNotFound, sessionID))
	}

	// An explicit token outranks and retires whatever was offered earlier;
	// a pending token is never left behind to feed a later completion.
	pending, origin, offered := f.tokens.Take(sessionID)
	if rawToken == "" {
		if !offered {
			return nil, f.fail(sessionID, clerrors.ErrTokenMissing)
		}
		log.Printf("Consuming identity token from %s channel for session %s", origin, sessionID)
		rawToken = pending
	}
	f.transition(sessionID, StateTokenReceived, nil)

	claims, err := zklogin.DecodeClaims(rawToken)
	if err != nil {
		return nil, f.fail(sessionID, err)
	}
	if claims.Nonce != session.Nonce {
		return nil, f.fail(sessionID, errors.Wrapf(clerrors.ErrNonceMismatch,
			"token nonce %q does not match session nonce %q", claims.Nonce, session.Nonce))
	}

	f.transition(sessionID, StateSaltResolving, nil)
	identitySalt, degraded, err := f.salts.GetOrCreate(ctx, claims.Issuer, claims.Subject, claims.Audience, platformUserID)
	if err != nil {
		return nil, f.fail(sessionID, err)
	}
	var warnings []string
	if degraded {
		warnings = append(warnings, "salt persistence degraded; repair queued")
	}

	f.transition(sessionID, StateProofResolving, nil)
	proof, err := f.prover.GetProof(ctx, prover.Request{
		JWT:                        rawToken,
		ExtendedEphemeralPublicKey: zklogin.ExtendedEphemeralPublicKey(session.PublicKey),
		MaxEpoch:                   session.MaxEpoch,
		JWTRandomness:              base64.StdEncoding.EncodeToString(session.Randomness),
		Salt:                       identitySalt.Decimal(),
		KeyClaimName:               zklogin.SubjectClaim,
	})
	if err != nil {
		return nil, f.fail(sessionID, err)
	}

	address := zklogin.AddressFromClaims(claims, identitySalt)
	f.transition(sessionID, StateAddressDerived, nil)

	result := &Result{
		Address:  address,
		Proof:    proof,
		Session:  session,
		Salt:     identitySalt,
		Claims:   claims,
		Warnings: warnings,
	}

	if platformUserID != "" {
		f.transition(sessionID, StatePersisting, nil)
		record := store.AddressRecord{
			UserID:    platformUserID,
			Address:   address,
			CreatedAt: time.Now().UTC(),
		}
		if err := f.identity.AssociateAddress(ctx, record); err != nil {
			log.Printf("Warning: address association failed for user %s: %v", platformUserID, err)
			result.Warnings = append(result.Warnings, "address association degraded; repair queued")
			if f.repairs != nil {
				f.repairs.EnqueueAddressRepair(record)
			}
		}
	}

	f.mu.Lock()
	f.results[sessionID] = result
	f.mu.Unlock()
	f.transition(sessionID, StateComplete, nil)
	return result, nil
}

// Clear discards the session, pending token, and completed result for a
// login attempt.
func (f *Flow) Clear(sessionID string) {
	f.sessions.Clear(sessionID)
	f.tokens.Take(sessionID)
	f.transition(sessionID, StateIdle, nil)
	f.mu.Lock()
	delete(f.states, sessionID)
	delete(f.results, sessionID)
	f.mu.Unlock()
}
