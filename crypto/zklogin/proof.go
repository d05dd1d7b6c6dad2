package zklogin

import (
	"github.com/pkg/errors"

	clerrors "github.com/suilotto/zkgateway/client/errors"
)

// ProofPoints holds the three proof point groups of a Groth16-style proof as
// the prover returns them.
type ProofPoints struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}

// IssBase64Details describes how the issuer claim is located inside the
// base64-encoded token payload.
type IssBase64Details struct {
	Value     string `json:"value"`
	IndexMod4 *int   `json:"indexMod4"`
}

// Proof is a zero-knowledge proof binding an identity token to an ephemeral
// public key. Proofs are bound to a max epoch and cached by input fingerprint;
// a cached proof carries Cached=true so callers can tell a hit from a fresh
// prover round-trip.
type Proof struct {
	ProofPoints      ProofPoints      `json:"proofPoints"`
	IssBase64Details IssBase64Details `json:"issBase64Details"`
	HeaderBase64     string           `json:"headerBase64"`
	MaxEpoch         uint64           `json:"maxEpoch,omitempty"`

	Cached bool `json:"-"`
}

// missingField returns the path of the first absent required field, or "" if
// the proof is structurally complete.
func (p *Proof) missingField() string {
	switch {
	case p == nil:
		return "proof"
	case len(p.ProofPoints.A) == 0:
		return "proofPoints.a"
	case len(p.ProofPoints.B) == 0:
		return "proofPoints.b"
	case len(p.ProofPoints.C) == 0:
		return "proofPoints.c"
	case p.IssBase64Details.Value == "":
		return "issBase64Details.value"
	case p.IssBase64Details.IndexMod4 == nil:
		return "issBase64Details.indexMod4"
	case p.HeaderBase64 == "":
		return "headerBase64"
	}
	return ""
}

// Validate checks that all required proof components are present. The prover
// client runs this before any cache write, so cached entries are always
// structurally valid.
func (p *Proof) Validate() error {
	if field := p.missingField(); field != "" {
		return errors.Wrapf(clerrors.ErrMalformedProof, "missing %s", field)
	}
	return nil
}

// Clone returns a deep copy, so cache reads never alias cached slices.
func (p *Proof) Clone() *Proof {
	if p == nil {
		return nil
	}
	out := *p
	out.ProofPoints.A = append([]string(nil), p.ProofPoints.A...)
	out.ProofPoints.C = append([]string(nil), p.ProofPoints.C...)
	out.ProofPoints.B = make([][]string, len(p.ProofPoints.B))
	for i, row := range p.ProofPoints.B {
		out.ProofPoints.B[i] = append([]string(nil), row...)
	}
	if p.IssBase64Details.IndexMod4 != nil {
		idx := *p.IssBase64Details.IndexMod4
		out.IssBase64Details.IndexMod4 = &idx
	}
	return &out
}
