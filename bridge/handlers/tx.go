package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suilotto/zkgateway/auth"
	"github.com/suilotto/zkgateway/client/sui"
	"github.com/suilotto/zkgateway/crypto/zklogin"
)

// TransactionExecutor submits signed transactions. Satisfied by sui.Client.
type TransactionExecutor interface {
	ExecuteTransaction(ctx context.Context, txBytesB64, signature string) (*sui.ExecuteResult, error)
}

// SubmitHandler signs transaction bytes with a completed session's ephemeral
// key, assembles the composite signature from the cached proof, and submits
// the result to the node. The proof is reused for every transaction until
// the session's validity window closes.
func SubmitHandler(flow *auth.Flow, executor TransactionExecutor) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req SubmitRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		}
		if req.SessionID == "" || req.TxBytes == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id and tx_bytes are required"})
		}
		if claimed := sessionFromToken(c); claimed != "" && claimed != req.SessionID {
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "token was not issued for this session"})
		}

		result, ok := flow.Result(req.SessionID)
		if !ok {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no completed authentication for session"})
		}

		txBytes, err := base64.StdEncoding.DecodeString(req.TxBytes)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "tx_bytes is not valid base64"})
		}

		userSignature := zklogin.SignTransaction(result.Session.PrivateKey, txBytes)
		signature, err := zklogin.AssembleSignature(result.Proof, result.AddressSeed(), result.Session.MaxEpoch, userSignature)
		if err != nil {
			return errorJSON(c, err)
		}

		executed, err := executor.ExecuteTransaction(c.Request().Context(), req.TxBytes, signature)
		if err != nil {
			if executed != nil && executed.Digest != "" {
				return c.JSON(http.StatusUnprocessableEntity, SubmitResponse{Digest: executed.Digest, Status: executed.Status})
			}
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, SubmitResponse{Digest: executed.Digest, Status: executed.Status})
	}
}
