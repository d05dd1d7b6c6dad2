package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suilotto/zkgateway/auth"
	clerrors "github.com/suilotto/zkgateway/client/errors"
	"github.com/suilotto/zkgateway/client/prover"
	"github.com/suilotto/zkgateway/client/sui"
	"github.com/suilotto/zkgateway/crypto/zklogin"
	"github.com/suilotto/zkgateway/store"
)

var testJWTSecret = []byte("handler-test-secret")

type fakeEpochReader struct{ epoch uint64 }

func (f *fakeEpochReader) GetCurrentEpoch(context.Context) (uint64, error) {
	return f.epoch, nil
}

type fakeProver struct{}

func (f *fakeProver) GetProof(_ context.Context, req prover.Request) (*zklogin.Proof, error) {
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

type fakeExecutor struct {
	lastSignature string
	err           error
}

func (f *fakeExecutor) ExecuteTransaction(_ context.Context, _, signature string) (*sui.ExecuteResult, error) {
	f.lastSignature = signature
	if f.err != nil {
		return nil, f.err
	}
	return &sui.ExecuteResult{Digest: "9g7s", Status: "success"}, nil
}

func newTestFlow() *auth.Flow {
	memory := store.NewMemoryStore()
	return auth.NewFlow(
		auth.NewSessionManager(&fakeEpochReader{epoch: 100}, auth.NewMemorySessionStore(), 10),
		auth.NewTokenSource(),
		store.NewSaltStore(memory, nil),
		&fakeProver{},
		memory,
		nil,
	)
}

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

func postJSON(t *testing.T, handler echo.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestNonceHandler(t *testing.T) {
	flow := newTestFlow()
	rec := postJSON(t, NonceHandler(flow), "/auth/nonce", NonceRequest{SessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NonceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Nonce, zklogin.NonceLength)
	assert.Equal(t, uint64(110), resp.MaxEpoch)
}

func TestNonceHandlerRequiresSessionID(t *testing.T) {
	rec := postJSON(t, NonceHandler(newTestFlow()), "/auth/nonce", NonceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func completeLogin(t *testing.T, flow *auth.Flow) CallbackResponse {
	t.Helper()
	session, err := flow.Begin(context.Background(), "s1", false)
	require.NoError(t, err)

	rec := postJSON(t, CallbackHandler(flow, testJWTSecret), "/auth/callback", CallbackRequest{
		SessionID: "s1",
		Token:     issueTestToken(t, session.Nonce),
		UserID:    "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCallbackHandler(t *testing.T) {
	flow := newTestFlow()
	resp := completeLogin(t, flow)

	assert.Regexp(t, "^0x[0-9a-f]{64}$", resp.Address)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, uint64(110), resp.MaxEpoch)

	parsed, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) { return testJWTSecret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "s1", claims["session_id"])
	assert.Equal(t, resp.Address, claims["address"])
}

func TestCallbackHandlerNonceMismatch(t *testing.T) {
	flow := newTestFlow()
	_, err := flow.Begin(context.Background(), "s1", false)
	require.NoError(t, err)

	rec := postJSON(t, CallbackHandler(flow, testJWTSecret), "/auth/callback", CallbackRequest{
		SessionID: "s1",
		Token:     issueTestToken(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAA"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackHandlerUnknownSession(t *testing.T) {
	rec := postJSON(t, CallbackHandler(newTestFlow(), testJWTSecret), "/auth/callback", CallbackRequest{
		SessionID: "ghost",
		Token:     "token",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler(t *testing.T) {
	flow := newTestFlow()
	resp := completeLogin(t, flow)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/session/s1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/auth/session/:session_id")
	c.SetParamNames("session_id")
	c.SetParamValues("s1")
	require.NoError(t, SessionHandler(flow)(c))

	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, auth.StateComplete, got.State)
	assert.Equal(t, resp.Address, got.Address)
}

func TestSubmitHandler(t *testing.T) {
	flow := newTestFlow()
	completeLogin(t, flow)

	executor := &fakeExecutor{}
	txBytes := base64.StdEncoding.EncodeToString([]byte("transaction payload"))
	rec := postJSON(t, SubmitHandler(flow, executor), "/tx/submit", SubmitRequest{
		SessionID: "s1",
		TxBytes:   txBytes,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "9g7s", resp.Digest)
	assert.Equal(t, "success", resp.Status)

	// The executor saw a serialized composite signature: scheme flag 0x05
	// followed by the JSON envelope.
	raw, err := base64.StdEncoding.DecodeString(executor.lastSignature)
	require.NoError(t, err)
	assert.Equal(t, byte(0x05), raw[0])
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw[1:], &envelope))
	assert.Contains(t, envelope, "proofPoints")
	assert.Contains(t, envelope, "userSignature")
}

func TestSubmitHandlerWithoutCompletedLogin(t *testing.T) {
	rec := postJSON(t, SubmitHandler(newTestFlow(), &fakeExecutor{}), "/tx/submit", SubmitRequest{
		SessionID: "s1",
		TxBytes:   base64.StdEncoding.EncodeToString([]byte("tx")),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{clerrors.ErrSessionNotFound, http.StatusNotFound},
		{clerrors.ErrNonceMismatch, http.StatusBadRequest},
		{clerrors.ErrTokenMissing, http.StatusBadRequest},
		{clerrors.ErrRateLimited, http.StatusTooManyRequests},
		{clerrors.ErrMalformedProof, http.StatusBadGateway},
		{clerrors.ErrProverUnavailable, http.StatusServiceUnavailable},
		{clerrors.ErrNetworkUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), tc.err.Error())
	}
}
