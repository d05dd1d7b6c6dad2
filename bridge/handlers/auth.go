package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suilotto/zkgateway/auth"
)

// NonceHandler creates or reuses the ephemeral session for a login attempt
// and returns the nonce the OAuth authorization request must carry.
func NonceHandler(flow *auth.Flow) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req NonceRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		}
		if req.SessionID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id is required"})
		}

		session, err := flow.Begin(c.Request().Context(), req.SessionID, req.ForceNew)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, NonceResponse{
			SessionID: req.SessionID,
			Nonce:     session.Nonce,
			MaxEpoch:  session.MaxEpoch,
		})
	}
}

// CallbackHandler completes a login attempt with an identity token. The
// token may arrive in the POST body or, for providers that redirect with a
// query parameter, in id_token on the query string. On success a gateway
// JWT is issued for the transaction endpoints.
func CallbackHandler(flow *auth.Flow, jwtSecret []byte) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req CallbackRequest
		if c.Request().Method == http.MethodPost {
			if err := c.Bind(&req); err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
			}
		}
		if req.SessionID == "" {
			req.SessionID = c.QueryParam("session_id")
		}
		if req.SessionID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id is required"})
		}
		if queryToken := c.QueryParam("id_token"); queryToken != "" {
			flow.OfferToken(req.SessionID, queryToken, auth.OriginQuery)
		}

		result, err := flow.Complete(c.Request().Context(), req.SessionID, req.Token, req.UserID)
		if err != nil {
			return errorJSON(c, err)
		}
		gatewayToken, err := issueSessionToken(jwtSecret, req.SessionID, result.Address, result.Session.MaxEpoch)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue session token"})
		}
		return c.JSON(http.StatusOK, CallbackResponse{
			Address:  result.Address,
			MaxEpoch: result.Session.MaxEpoch,
			Cached:   result.Proof.Cached,
			Token:    gatewayToken,
			Warnings: result.Warnings,
		})
	}
}

// SessionHandler reports the state of a login attempt.
func SessionHandler(flow *auth.Flow) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")
		resp := SessionResponse{SessionID: sessionID, State: flow.State(sessionID)}
		if result, ok := flow.Result(sessionID); ok {
			resp.Address = result.Address
			resp.MaxEpoch = result.Session.MaxEpoch
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// LogoutHandler discards a login attempt's session, pending token, and
// completed result.
func LogoutHandler(flow *auth.Flow) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")
		flow.Clear(sessionID)
		return c.NoContent(http.StatusNoContent)
	}
}
