// Package handlers provides HTTP handlers for the zkLogin gateway server.
package handlers

import (
	"github.com/suilotto/zkgateway/auth"
)

// NonceRequest asks for an ephemeral session to direct an OAuth request at.
type NonceRequest struct {
	SessionID string `json:"session_id"`
	ForceNew  bool   `json:"force_new,omitempty"`
}

// NonceResponse carries the nonce the authorization request must embed and
// the window the session stays valid for.
type NonceResponse struct {
	SessionID string `json:"session_id"`
	Nonce     string `json:"nonce"`
	MaxEpoch  uint64 `json:"max_epoch"`
}

// CallbackRequest delivers an identity token back from the provider round
// trip. Token is required; UserID optionally ties the derived address to a
// platform account.
type CallbackRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	UserID    string `json:"user_id,omitempty"`
}

// CallbackResponse is a completed authentication. Token is the gateway's
// own JWT for the transaction endpoints.
type CallbackResponse struct {
	Address  string   `json:"address"`
	MaxEpoch uint64   `json:"max_epoch"`
	Cached   bool     `json:"proof_cached"`
	Token    string   `json:"token"`
	Warnings []string `json:"warnings,omitempty"`
}

// SessionResponse reports the state of a login attempt.
type SessionResponse struct {
	SessionID string     `json:"session_id"`
	State     auth.State `json:"state"`
	Address   string     `json:"address,omitempty"`
	MaxEpoch  uint64     `json:"max_epoch,omitempty"`
}

// SubmitRequest carries base64 transaction bytes to sign and execute with a
// completed session's proof.
type SubmitRequest struct {
	SessionID string `json:"session_id"`
	TxBytes   string `json:"tx_bytes"`
}

// SubmitResponse is the node's execution outcome.
type SubmitResponse struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
