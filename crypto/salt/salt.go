// Package salt provides cryptographically secure salt generation for zkLogin
// address derivation. Salts are uniform random integers below 2^128, the
// largest value the network accepts as an address-derivation salt.
package salt

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// SaltBits is the size of the salt in bits, matching the network's
// integer-salt constraint.
const SaltBits = 128

// maxSalt is the exclusive upper bound for salt values (2^128).
var maxSalt = new(big.Int).Lsh(big.NewInt(1), SaltBits)

// Salt represents a per-identity secret blending value. The same salt must be
// supplied on every authentication for a given identity triple or the derived
// address changes.
type Salt struct {
	value *big.Int
}

// Generate creates a new salt drawn uniformly from [0, 2^128). Uniformity
// matters: concatenating random digit strings biases the distribution, so the
// bound is enforced by rejection sampling inside crypto/rand.
func Generate() (*Salt, error) {
	v, err := rand.Int(rand.Reader, maxSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random salt: %w", err)
	}
	return &Salt{value: v}, nil
}

// FromDecimal parses a salt from its decimal string form, the representation
// used by the prover request and the durable identity store.
func FromDecimal(s string) (*Salt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("salt is not a decimal integer: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("salt must be non-negative")
	}
	if v.Cmp(maxSalt) >= 0 {
		return nil, fmt.Errorf("salt exceeds %d-bit bound", SaltBits)
	}
	return &Salt{value: v}, nil
}

// Decimal returns the canonical decimal encoding of the salt.
func (s *Salt) Decimal() string {
	if s == nil || s.value == nil {
		return ""
	}
	return s.value.String()
}

// Bytes returns the salt as a fixed 16-byte big-endian value.
func (s *Salt) Bytes() []byte {
	if s == nil || s.value == nil {
		return nil
	}
	return s.value.FillBytes(make([]byte, SaltBits/8))
}

// BigInt returns a copy of the underlying integer.
func (s *Salt) BigInt() *big.Int {
	if s == nil || s.value == nil {
		return nil
	}
	return new(big.Int).Set(s.value)
}

// String returns a redacted representation for logging (does not expose the
// salt value).
func (s *Salt) String() string {
	if s == nil || s.value == nil {
		return "Salt{<nil>}"
	}
	return fmt.Sprintf("Salt{bits=%d}", s.value.BitLen())
}

// Equal compares two salts in constant time.
func (s *Salt) Equal(other *Salt) bool {
	if s == nil || other == nil {
		return s == other
	}
	return subtle.ConstantTimeCompare(s.Bytes(), other.Bytes()) == 1
}

// IsEmpty reports whether the salt carries no value.
func (s *Salt) IsEmpty() bool {
	return s == nil || s.value == nil
}
