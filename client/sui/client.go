// Package sui provides a minimal JSON-RPC client for the blockchain
// operations the zkLogin gateway depends on: the current epoch query and
// transaction execution. Everything else on the node is out of scope and
// consumed by the hosting platform directly.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/suilotto/zkgateway/client/config"
	clerrors "github.com/suilotto/zkgateway/client/errors"
)

// Client talks JSON-RPC 2.0 to a fullnode endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the configured network.
func NewClient(cfg config.NetworkConfig) *Client {
	return &Client{
		endpoint:   cfg.RPC,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// ExecuteResult carries the node's response to a transaction execution.
type ExecuteResult struct {
	Digest  string          `json:"digest"`
	Status  string          `json:"status"`
	Effects json.RawMessage `json:"effects,omitempty"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// GetCurrentEpoch queries the node for its current epoch counter. A failure
// here is always surfaced as ErrNetworkUnavailable; the caller must not
// create or overwrite an ephemeral session without a fresh epoch.
func (c *Client) GetCurrentEpoch(ctx context.Context) (uint64, error) {
	var state struct {
		Epoch string `json:"epoch"`
	}
	if err := c.call(ctx, "suix_getLatestSuiSystemState", nil, &state); err != nil {
		return 0, errors.Wrap(clerrors.ErrNetworkUnavailable, err.Error())
	}
	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(clerrors.ErrNetworkUnavailable, "node returned unparseable epoch %q", state.Epoch)
	}
	return epoch, nil
}

// ExecuteTransaction submits signed transaction bytes together with the
// composite zkLogin signature. Submission is not retried here: transaction
// execution is not idempotent-safe to blindly resubmit.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytesB64, signature string) (*ExecuteResult, error) {
	params := []any{
		txBytesB64,
		[]string{signature},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	}

	var raw struct {
		Digest  string `json:"digest"`
		Effects struct {
			Status struct {
				Status string `json:"status"`
				Error  string `json:"error,omitempty"`
			} `json:"status"`
		} `json:"effects"`
	}
	if err := c.call(ctx, "sui_executeTransactionBlock", params, &raw); err != nil {
		return nil, errors.Wrap(clerrors.ErrNetworkUnavailable, err.Error())
	}

	result := &ExecuteResult{Digest: raw.Digest, Status: raw.Effects.Status.Status}
	if raw.Effects.Status.Status == "failure" {
		return result, fmt.Errorf("transaction %s failed on chain: %s", raw.Digest, raw.Effects.Status.Error)
	}
	return result, nil
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	return json.Unmarshal(envelope.Result, out)
}

// TransactionDigest computes the local base58 digest of raw transaction
// bytes, matching the digest the node reports after execution.
func TransactionDigest(txBytes []byte) string {
	digest := blake2b.Sum256(txBytes)
	return base58.Encode(digest[:])
}
