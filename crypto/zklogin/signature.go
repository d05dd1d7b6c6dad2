package zklogin

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	clerrors "github.com/suilotto/zkgateway/client/errors"
)

// CompositeSignature is the network's zkLogin signature envelope: the cached
// proof components, the address seed, the validity watermark, and the raw
// ephemeral signature over the transaction. Assembled per transaction, used
// once, never persisted.
type CompositeSignature struct {
	ProofPoints      ProofPoints      `json:"proofPoints"`
	IssBase64Details IssBase64Details `json:"issBase64Details"`
	HeaderBase64     string           `json:"headerBase64"`
	AddressSeed      string           `json:"addressSeed"`
	MaxEpoch         uint64           `json:"maxEpoch"`
	UserSignature    string           `json:"userSignature"`
}

// SignTransaction signs the transaction bytes with the ephemeral private key,
// producing the network's serialized ephemeral signature (scheme flag,
// signature, public key).
func SignTransaction(priv ed25519.PrivateKey, txBytes []byte) string {
	digest := blake2b.Sum256(txBytes)
	sig := ed25519.Sign(priv, digest[:])

	pub := priv.Public().(ed25519.PublicKey)
	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, ed25519SchemeFlag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized)
}

// AssembleSignature combines the proof, address seed, max epoch and ephemeral
// signature into the serialized composite signature the network verifies.
// Every required field is checked before assembly: a missing field fails here,
// locally, before any network call is attempted.
func AssembleSignature(proof *Proof, addressSeed *big.Int, maxEpoch uint64, userSignature string) (string, error) {
	if field := proof.missingField(); field != "" {
		return "", errors.Wrapf(clerrors.ErrInvalidSignatureInputs, "proof missing %s", field)
	}
	if addressSeed == nil || addressSeed.Sign() == 0 {
		return "", errors.Wrap(clerrors.ErrInvalidSignatureInputs, "missing address seed")
	}
	if maxEpoch == 0 {
		return "", errors.Wrap(clerrors.ErrInvalidSignatureInputs, "missing max epoch")
	}
	if userSignature == "" {
		return "", errors.Wrap(clerrors.ErrInvalidSignatureInputs, "missing ephemeral signature")
	}

	composite := CompositeSignature{
		ProofPoints:      proof.ProofPoints,
		IssBase64Details: proof.IssBase64Details,
		HeaderBase64:     proof.HeaderBase64,
		AddressSeed:      addressSeed.String(),
		MaxEpoch:         maxEpoch,
		UserSignature:    userSignature,
	}

	payload, err := json.Marshal(composite)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize composite signature")
	}

	serialized := make([]byte, 0, 1+len(payload))
	serialized = append(serialized, zkLoginSchemeFlag)
	serialized = append(serialized, payload...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}
