// Package prover provides the client for the external zero-knowledge prover
// service, with request de-duplication through a TTL cache, bounded
// retry-with-backoff on transient failures, and structural validation of
// every response before it becomes visible to callers or the cache.
package prover

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"

	"github.com/suilotto/zkgateway/client/config"
	clerrors "github.com/suilotto/zkgateway/client/errors"
	"github.com/suilotto/zkgateway/crypto/zklogin"
)

// fingerprintTokenPrefix is how much of the identity token participates in
// the cache fingerprint. The prefix covers the token header and keeps full
// tokens out of cache keys.
const fingerprintTokenPrefix = 20

// Request is the fixed request shape the external prover accepts.
type Request struct {
	JWT                        string `json:"jwt"`
	ExtendedEphemeralPublicKey string `json:"extendedEphemeralPublicKey"`
	MaxEpoch                   uint64 `json:"maxEpoch"`
	JWTRandomness              string `json:"jwtRandomness"`
	Salt                       string `json:"salt"`
	KeyClaimName               string `json:"keyClaimName"`
}

// proofResponseSchema validates the prover response shape at the boundary,
// before anything is written to the cache.
var proofResponseSchema = z.Struct(z.Shape{
	"proofPoints": z.Struct(z.Shape{
		"a": z.Slice(z.String()).Required(z.Message("proof points group a is required")).Min(1),
		"b": z.Slice(z.Slice(z.String())).Required(z.Message("proof points group b is required")).Min(1),
		"c": z.Slice(z.String()).Required(z.Message("proof points group c is required")).Min(1),
	}).Required(),
	"issBase64Details": z.Struct(z.Shape{
		"value":     z.String().Required(),
		"indexMod4": z.Int().Required(),
	}).Required(),
	"headerBase64": z.String().Required(),
})

// proofEnvelope is the zog parse destination for a prover response.
type proofEnvelope struct {
	ProofPoints struct {
		A []string   `json:"a"`
		B [][]string `json:"b"`
		C []string   `json:"c"`
	} `json:"proofPoints"`
	IssBase64Details struct {
		Value     string `json:"value"`
		IndexMod4 int    `json:"indexMod4"`
	} `json:"issBase64Details"`
	HeaderBase64 string `json:"headerBase64"`
}

// Client requests proofs from the external prover. Safe for concurrent use:
// the cache is content-addressed and write-once per fingerprint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *Cache

	maxRetries int
	retryDelay time.Duration

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient creates a prover client using the network's retry policy and
// proof-cache TTL.
func NewClient(cfg config.NetworkConfig, cache *Cache) *Client {
	return &Client{
		endpoint:   cfg.Prover,
		httpClient: &http.Client{Timeout: cfg.ProverTimeout},
		cache:      cache,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		sleep:      time.Sleep,
	}
}

// GetProof returns the zero-knowledge proof for the request, serving from
// cache when an entry is live. On a miss it calls the prover, retrying up to
// the configured limit with exponential backoff on rate limiting (402/429)
// and server errors; any other error status fails immediately. Responses are
// structurally validated before the cache write, so cached entries are always
// well-formed.
func (c *Client) GetProof(ctx context.Context, req Request) (*zklogin.Proof, error) {
	fingerprint := Fingerprint(req)
	if proof, ok := c.cache.Get(fingerprint); ok {
		return proof, nil
	}

	proof, err := c.requestWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	proof.MaxEpoch = req.MaxEpoch

	if err := proof.Validate(); err != nil {
		return nil, err
	}
	c.cache.Set(fingerprint, proof)
	return proof, nil
}

// requestWithRetry drives the retry loop. Individual attempt failures are
// handled here and not surfaced; only the final outcome propagates.
func (c *Client) requestWithRetry(ctx context.Context, req Request) (*zklogin.Proof, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(delay)
			delay *= 2
		}

		proof, retryable, err := c.requestOnce(ctx, req)
		if err == nil {
			return proof, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// requestOnce performs a single prover round trip. The second return value
// reports whether the failure is transient and worth retrying.
func (c *Client) requestOnce(ctx context.Context, req Request) (*zklogin.Proof, bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to encode prover request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, errors.Wrap(clerrors.ErrProverUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.decodeProof(resp.Body)
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, errors.Wrapf(clerrors.ErrRateLimited, "prover returned status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, errors.Wrapf(clerrors.ErrProverUnavailable, "prover returned status %d", resp.StatusCode)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, false, errors.Wrapf(clerrors.ErrProverRejected, "status %d: %s", resp.StatusCode, snippet)
	}
}

// decodeProof parses and structurally validates a prover response body.
func (c *Client) decodeProof(body io.Reader) (*zklogin.Proof, bool, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, true, errors.Wrap(clerrors.ErrProverUnavailable, err.Error())
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false, errors.Wrap(clerrors.ErrMalformedProof, "response is not a JSON object")
	}

	var envelope proofEnvelope
	if issues := proofResponseSchema.Parse(payload, &envelope); issues != nil {
		return nil, false, errors.Wrapf(clerrors.ErrMalformedProof, "prover response validation failed: %v", issues)
	}

	idx := envelope.IssBase64Details.IndexMod4
	proof := &zklogin.Proof{
		ProofPoints: zklogin.ProofPoints{
			A: envelope.ProofPoints.A,
			B: envelope.ProofPoints.B,
			C: envelope.ProofPoints.C,
		},
		IssBase64Details: zklogin.IssBase64Details{
			Value:     envelope.IssBase64Details.Value,
			IndexMod4: &idx,
		},
		HeaderBase64: envelope.HeaderBase64,
	}
	return proof, false, nil
}

// Fingerprint derives the cache key for a request: a hash over the token
// prefix, the extended ephemeral public key, the salt and the max epoch.
// Identical inputs always map to the same entry, so concurrent requests for
// the same proof de-duplicate naturally.
func Fingerprint(req Request) string {
	h := blake3.New(32, nil)

	tokenPrefix := req.JWT
	if len(tokenPrefix) > fingerprintTokenPrefix {
		tokenPrefix = tokenPrefix[:fingerprintTokenPrefix]
	}
	fmt.Fprintf(h, "%s|%s|%s|%d", tokenPrefix, req.ExtendedEphemeralPublicKey, req.Salt, req.MaxEpoch)
	return hex.EncodeToString(h.Sum(nil))
}
