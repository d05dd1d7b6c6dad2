package handlers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SessionClaims is the gateway's own JWT, issued on completed authentication
// and required on transaction endpoints. It is unrelated to the provider's
// identity token, which never leaves the completion flow.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	Address   string `json:"address"`
	jwt.RegisteredClaims
}

// issueSessionToken signs a gateway JWT for a completed login.
func issueSessionToken(jwtSecret []byte, sessionID, address string, maxEpoch uint64) (string, error) {
	claims := &SessionClaims{
		SessionID: sessionID,
		Address:   address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "zkgateway",
			Subject:   sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// sessionFromToken reads the session ID out of the JWT the middleware has
// already verified.
func sessionFromToken(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sessionID, _ := claims["session_id"].(string)
	return sessionID
}
