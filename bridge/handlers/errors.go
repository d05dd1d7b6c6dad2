package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	clerrors "github.com/suilotto/zkgateway/client/errors"
)

// statusForError maps flow errors onto HTTP status codes. Unrecognized
// errors surface as 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, clerrors.ErrSessionNotFound), errors.Is(err, clerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clerrors.ErrTokenMissing),
		errors.Is(err, clerrors.ErrNonceMismatch),
		errors.Is(err, clerrors.ErrInvalidSignatureInputs):
		return http.StatusBadRequest
	case errors.Is(err, clerrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, clerrors.ErrProverRejected), errors.Is(err, clerrors.ErrMalformedProof):
		return http.StatusBadGateway
	case errors.Is(err, clerrors.ErrProverUnavailable), errors.Is(err, clerrors.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorJSON writes the uniform error payload for a flow error.
func errorJSON(c echo.Context, err error) error {
	return c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
}
