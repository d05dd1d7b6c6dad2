// Package zklogin implements the client-side zkLogin primitives: nonce
// derivation for ephemeral keypairs, identity-token claim decoding, blockchain
// address derivation, and composite signature assembly. Everything in this
// package is pure computation; network access lives in the client packages.
package zklogin

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SubjectClaim is the provider's standard subject claim, fixed as the key
// claim for address-seed derivation and proof requests.
const SubjectClaim = "sub"

// Claims carries the identity-token fields the zkLogin flow consumes. The
// token signature is verified by the prover circuit, not here, so claims are
// decoded without local signature verification.
type Claims struct {
	Issuer   string
	Subject  string
	Audience string
	Nonce    string
}

// DecodeClaims extracts the zkLogin-relevant claims from a raw identity token.
// All four fields are required; a token missing any of them cannot complete
// the flow and is rejected up front.
func DecodeClaims(rawToken string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	iss, err := mapClaims.GetIssuer()
	if err != nil || iss == "" {
		return nil, fmt.Errorf("identity token has no issuer claim")
	}
	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("identity token has no subject claim")
	}
	aud, err := mapClaims.GetAudience()
	if err != nil || len(aud) == 0 || aud[0] == "" {
		return nil, fmt.Errorf("identity token has no audience claim")
	}
	nonce, _ := mapClaims["nonce"].(string)
	if nonce == "" {
		return nil, fmt.Errorf("identity token has no nonce claim")
	}

	return &Claims{
		Issuer:   iss,
		Subject:  sub,
		Audience: aud[0],
		Nonce:    nonce,
	}, nil
}
