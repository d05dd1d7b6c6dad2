package server

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suilotto/zkgateway/auth"
	"github.com/suilotto/zkgateway/bridge/handlers"
	"github.com/suilotto/zkgateway/client/prover"
	"github.com/suilotto/zkgateway/client/sui"
	"github.com/suilotto/zkgateway/crypto/zklogin"
	"github.com/suilotto/zkgateway/store"
)

var testJWTSecret = []byte("server-test-secret")

type fakeEpochReader struct{}

func (f *fakeEpochReader) GetCurrentEpoch(context.Context) (uint64, error) { return 100, nil }

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

type fakeExecutor struct{}

func (f *fakeExecutor) ExecuteTransaction(context.Context, string, string) (*sui.ExecuteResult, error) {
	return &sui.ExecuteResult{Digest: "9g7s", Status: "success"}, nil
}

func newTestServer() *Server {
	memory := store.NewMemoryStore()
	flow := auth.NewFlow(
		auth.NewSessionManager(&fakeEpochReader{}, auth.NewMemorySessionStore(), 10),
		auth.NewTokenSource(),
		store.NewSaltStore(memory, nil),
		&fakeProver{},
		memory,
		nil,
	)
	s := NewServer(&Config{JWTSecret: testJWTSecret}, flow, &fakeExecutor{})
	s.SetupRoutes(nil)
	return s
}

func doJSON(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func issueIdentityToken(t *testing.T, nonce string) string {
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

func TestHealthRoute(t *testing.T) {
	rec := doJSON(newTestServer(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRoundTrip(t *testing.T) {
	s := newTestServer()

	rec := doJSON(s, http.MethodPost, "/auth/nonce", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var nonceResp handlers.NonceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nonceResp))

	callback, err := json.Marshal(handlers.CallbackRequest{
		SessionID: "s1",
		Token:     issueIdentityToken(t, nonceResp.Nonce),
	})
	require.NoError(t, err)
	rec = doJSON(s, http.MethodPost, "/auth/callback", string(callback))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var callbackResp handlers.CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &callbackResp))
	require.NotEmpty(t, callbackResp.Token)

	// Session state endpoint reflects the completed login.
	rec = doJSON(s, http.MethodGet, "/auth/session/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessionResp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessionResp))
	assert.Equal(t, auth.StateComplete, sessionResp.State)

	// Transaction submission requires the gateway JWT.
	submit, err := json.Marshal(handlers.SubmitRequest{
		SessionID: "s1",
		TxBytes:   base64.StdEncoding.EncodeToString([]byte("transaction payload")),
	})
	require.NoError(t, err)

	// echo-jwt reports a missing token as 400 and reserves 401 for a token
	// that fails verification.
	rec = doJSON(s, http.MethodPost, "/tx/submit", string(submit))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "submission without a token must be rejected")

	req := httptest.NewRequest(http.MethodPost, "/tx/submit", strings.NewReader(string(submit)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-valid-token")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a forged token must be rejected")

	req = httptest.NewRequest(http.MethodPost, "/tx/submit", strings.NewReader(string(submit)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+callbackResp.Token)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submitResp handlers.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	assert.Equal(t, "success", submitResp.Status)
}

func TestLogoutRoute(t *testing.T) {
	s := newTestServer()

	rec := doJSON(s, http.MethodPost, "/auth/nonce", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodDelete, "/auth/session/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(s, http.MethodGet, "/auth/session/s1", "")
	var sessionResp handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessionResp))
	assert.Equal(t, auth.StateIdle, sessionResp.State)
}
