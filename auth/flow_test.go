package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrors "github.com/suilotto/zkgateway/client/errors"
	"github.com/suilotto/zkgateway/client/prover"
	"github.com/suilotto/zkgateway/crypto/zklogin"
	"github.com/suilotto/zkgateway/store"
)

func issueTestToken(t *testing.T, nonce string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "accounts.example.com",
		"sub":   "u1",
		"aud":   "app1",
		"nonce": nonce,
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte("test-idp-secret"))
	require.NoError(t, err)
	return signed
}

type fakeProver struct {
	calls    []prover.Request
	err      error
	maxEpoch uint64
}

func (f *fakeProver) GetProof(_ context.Context, req prover.Request) (*zklogin.Proof, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	idx := 2
	return &zklogin.Proof{
		ProofPoints: zklogin.ProofPoints{
			A: []string{"1", "2", "3"},
			B: [][]string{{"4", "5"}, {"6", "7"}},
			C: []string{"8", "9", "10"},
		},
		IssBase64Details: zklogin.IssBase64Details{Value: "aXNz", IndexMod4: &idx},
		HeaderBase64:     "eyJhbGciOiJSUzI1NiJ9",
		MaxEpoch:         req.MaxEpoch,
	}, nil
}

func newTestFlow(t *testing.T) (*Flow, *fakeProver, *recordingQueue) {
	t.Helper()
	queue := &recordingQueue{}
	proofs := &fakeProver{}
	memory := store.NewMemoryStore()
	flow := NewFlow(
		NewSessionManager(&fakeEpochReader{epoch: 100}, NewMemorySessionStore(), 10),
		NewTokenSource(),
		store.NewSaltStore(memory, queue),
		proofs,
		memory,
		queue,
	)
	return flow, proofs, queue
}

// recordingQueue captures repair enqueues.
type recordingQueue struct {
	salts     []store.SaltRecord
	addresses []store.AddressRecord
}

func (q *recordingQueue) EnqueueSaltRepair(r store.SaltRecord)       { q.salts = append(q.salts, r) }
func (q *recordingQueue) EnqueueAddressRepair(r store.AddressRecord) { q.addresses = append(q.addresses, r) }

func TestFlowComplete(t *testing.T) {
	flow, proofs, _ := newTestFlow(t)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	events := flow.Subscribe("s1")
	result, err := flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "user-1")
	require.NoError(t, err)

	assert.Regexp(t, "^0x[0-9a-f]{64}$", result.Address)
	assert.Empty(t, result.Warnings)
	require.Len(t, proofs.calls, 1)
	assert.Equal(t, session.MaxEpoch, proofs.calls[0].MaxEpoch)
	assert.Equal(t, zklogin.ExtendedEphemeralPublicKey(session.PublicKey), proofs.calls[0].ExtendedEphemeralPublicKey)
	assert.Equal(t, "sub", proofs.calls[0].KeyClaimName)
	assert.Equal(t, result.Salt.Decimal(), proofs.calls[0].Salt)

	assert.Equal(t, StateComplete, flow.State("s1"))
	stored, ok := flow.Result("s1")
	require.True(t, ok)
	assert.Equal(t, result.Address, stored.Address)

	var seen []State
	for len(events) > 0 {
		seen = append(seen, (<-events).State)
	}
	assert.Equal(t, []State{
		StateTokenReceived, StateSaltResolving, StateProofResolving,
		StateAddressDerived, StatePersisting, StateComplete,
	}, seen)
}

func TestFlowAddressStableAcrossLogins(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)
	first, err := flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "")
	require.NoError(t, err)

	session, err = flow.Begin(ctx, "s1", true)
	require.NoError(t, err)
	second, err := flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "")
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address, "same identity must derive the same address across sessions")
}

func TestFlowNonceMismatch(t *testing.T) {
	flow, proofs, _ := newTestFlow(t)
	ctx := context.Background()

	_, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	_, err = flow.Complete(ctx, "s1", issueTestToken(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAA"), "")
	assert.ErrorIs(t, err, clerrors.ErrNonceMismatch)
	assert.Empty(t, proofs.calls, "no proof request may follow a nonce mismatch")
	assert.Equal(t, StateError, flow.State("s1"))
}

func TestFlowMissingSession(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	_, err := flow.Complete(context.Background(), "ghost", "token", "")
	assert.ErrorIs(t, err, clerrors.ErrSessionNotFound)
}

func TestFlowMissingToken(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	_, err := flow.Begin(context.Background(), "s1", false)
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), "s1", "", "")
	assert.ErrorIs(t, err, clerrors.ErrTokenMissing)
}

func TestFlowExplicitTokenRetiresPendingOffer(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	flow.OfferToken("s1", issueTestToken(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAA"), OriginFragment)
	_, err = flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "")
	require.NoError(t, err)
	assert.False(t, flow.tokens.Peek("s1"), "completion must retire the offered token")

	// The stale offer is gone; a token-less completion cannot replay it.
	_, err = flow.Complete(ctx, "s1", "", "")
	assert.ErrorIs(t, err, clerrors.ErrTokenMissing)
}

func TestFlowConsumesOfferedToken(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	flow.OfferToken("s1", issueTestToken(t, session.Nonce), OriginFragment)
	result, err := flow.Complete(ctx, "s1", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Address)
}

func TestFlowProverFailurePropagates(t *testing.T) {
	flow, proofs, _ := newTestFlow(t)
	proofs.err = errors.Wrap(clerrors.ErrRateLimited, "prover returned status 429")
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	_, err = flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "")
	assert.ErrorIs(t, err, clerrors.ErrRateLimited)
	assert.Equal(t, StateError, flow.State("s1"))
}

func TestFlowPersistenceFailureDegrades(t *testing.T) {
	queue := &recordingQueue{}
	proofs := &fakeProver{}
	flow := NewFlow(
		NewSessionManager(&fakeEpochReader{epoch: 100}, NewMemorySessionStore(), 10),
		NewTokenSource(),
		store.NewSaltStore(store.NewMemoryStore(), queue),
		proofs,
		&failingIdentityStore{},
		queue,
	)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)

	result, err := flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "user-1")
	require.NoError(t, err, "association failure must not fail the login")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, StateComplete, flow.State("s1"))
	require.Len(t, queue.addresses, 1)
	assert.Equal(t, result.Address, queue.addresses[0].Address)
}

// failingIdentityStore accepts salts but refuses address writes.
type failingIdentityStore struct{ store.MemoryStore }

func (f *failingIdentityStore) AssociateAddress(context.Context, store.AddressRecord) error {
	return errors.New("connection refused")
}

func TestFlowClear(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	session, err := flow.Begin(ctx, "s1", false)
	require.NoError(t, err)
	_, err = flow.Complete(ctx, "s1", issueTestToken(t, session.Nonce), "")
	require.NoError(t, err)

	flow.Clear("s1")
	assert.Equal(t, StateIdle, flow.State("s1"))
	_, ok := flow.Result("s1")
	assert.False(t, ok)
	_, ok = flow.sessions.Get("s1")
	assert.False(t, ok)
}
