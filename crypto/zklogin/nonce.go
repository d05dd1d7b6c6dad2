package zklogin

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"lukechampine.com/blake3"
)

const (
	// NonceLength is the length of the derived nonce embedded in the OAuth
	// request and echoed back in the identity token.
	NonceLength = 27

	// RandomnessSize is the size of the per-session randomness blended into
	// the nonce (128 bits).
	RandomnessSize = 16

	// ed25519SchemeFlag is the network's scheme flag for Ed25519 ephemeral
	// keys, prepended to the public key in its extended encoding.
	ed25519SchemeFlag byte = 0x00
)

// GenerateRandomness produces the session randomness bound into the nonce.
func GenerateRandomness() ([]byte, error) {
	r := make([]byte, RandomnessSize)
	if _, err := io.ReadFull(rand.Reader, r); err != nil {
		return nil, fmt.Errorf("failed to generate session randomness: %w", err)
	}
	return r, nil
}

// DeriveNonce computes the nonce binding an ephemeral public key to a validity
// window. The derivation is deterministic over exactly {public key, max epoch,
// randomness}: an identity token issued against any other nonce cannot be used
// with the session that produced this one.
func DeriveNonce(pub ed25519.PublicKey, maxEpoch uint64, randomness []byte) string {
	h := blake3.New(32, nil)
	h.Write(pub)

	var epochBytes [8]byte
	binary.BigEndian.PutUint64(epochBytes[:], maxEpoch)
	h.Write(epochBytes[:])
	h.Write(randomness)

	digest := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(digest)[:NonceLength]
}

// ExtendedEphemeralPublicKey encodes the ephemeral public key in the extended
// form the prover expects: the scheme flag followed by the raw key bytes,
// base64 encoded.
func ExtendedEphemeralPublicKey(pub ed25519.PublicKey) string {
	extended := make([]byte, 0, 1+len(pub))
	extended = append(extended, ed25519SchemeFlag)
	extended = append(extended, pub...)
	return base64.StdEncoding.EncodeToString(extended)
}
