package zklogin

import (
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"

	"github.com/suilotto/zkgateway/crypto/salt"
)

// zkLoginSchemeFlag is the network's signature-scheme flag for zkLogin
// accounts, mixed into both the address preimage and the serialized
// composite signature.
const zkLoginSchemeFlag byte = 0x05

// DeriveAddressSeed computes the address seed from the per-identity salt and
// the token claims. The seed basis {salt, key claim name, subject, audience}
// must match the basis the prover saw when the proof was requested, or the
// composite signature is rejected by the network.
func DeriveAddressSeed(s *salt.Salt, keyClaimName, subject, audience string) *big.Int {
	h := blake3.New(32, nil)
	writeLengthPrefixed(h, s.Bytes())
	writeLengthPrefixed(h, []byte(keyClaimName))
	writeLengthPrefixed(h, []byte(subject))
	writeLengthPrefixed(h, []byte(audience))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// DeriveAddress computes the deterministic blockchain address for an identity
// token and salt. It is a pure function of its inputs: the same (token, salt)
// pair always yields the same address, and the address is not computable from
// the token alone.
func DeriveAddress(rawToken string, s *salt.Salt) (string, error) {
	claims, err := DecodeClaims(rawToken)
	if err != nil {
		return "", err
	}
	return AddressFromClaims(claims, s), nil
}

// AddressFromClaims derives the address from already-decoded claims. Split out
// so the completion flow can reuse claims it has already validated.
func AddressFromClaims(claims *Claims, s *salt.Salt) string {
	seed := DeriveAddressSeed(s, SubjectClaim, claims.Subject, claims.Audience)

	iss := []byte(claims.Issuer)
	preimage := make([]byte, 0, 2+len(iss)+32)
	preimage = append(preimage, zkLoginSchemeFlag)
	preimage = append(preimage, byte(len(iss)))
	preimage = append(preimage, iss...)
	preimage = append(preimage, seed.FillBytes(make([]byte, 32))...)

	digest := blake2b.Sum256(preimage)
	return "0x" + hex.EncodeToString(digest[:])
}

// writeLengthPrefixed writes a 2-byte big-endian length followed by the data,
// keeping field boundaries unambiguous in the seed preimage.
func writeLengthPrefixed(h *blake3.Hasher, data []byte) {
	h.Write([]byte{byte(len(data) >> 8), byte(len(data))})
	h.Write(data)
}
