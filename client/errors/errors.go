// Package errors defines the error taxonomy shared by the zkLogin gateway
// components. Flows and handlers match against these sentinels with errors.Is;
// call sites add context with github.com/pkg/errors wrapping.
package errors

import "errors"

var (
	// Network errors
	ErrNetworkUnavailable = errors.New("blockchain network unavailable")
	ErrProverUnavailable  = errors.New("prover service unavailable")

	// Authentication flow errors
	ErrNonceMismatch   = errors.New("identity token nonce does not match pending session")
	ErrSessionNotFound = errors.New("no ephemeral session for this login attempt")
	ErrTokenMissing    = errors.New("no identity token delivered for this session")

	// Salt errors
	ErrSaltPersistenceDegraded = errors.New("salt generated but not durably saved")

	// Prover errors
	ErrRateLimited    = errors.New("prover rate limit exceeded")
	ErrProverRejected = errors.New("prover rejected the request")
	ErrMalformedProof = errors.New("prover response failed structural validation")

	// Signature assembly errors
	ErrInvalidSignatureInputs = errors.New("composite signature inputs incomplete")

	// Store errors
	ErrNotFound = errors.New("record not found")
)
