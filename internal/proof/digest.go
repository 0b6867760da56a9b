// digest.go - Placeholder proof backend.
//
// DigestEngine is not a proof system. Its artifact is a domain-separated
// SHA-256 digest over the public fields, so verification only detects
// inconsistency between the artifact and the fields it claims to cover.

package proof

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"
)

const digestDomain = "cfc_proof_simulation"

// DigestEngine is the default placeholder backend.
type DigestEngine struct {
	now func() time.Time
}

// NewDigestEngine creates a placeholder engine.
func NewDigestEngine() *DigestEngine {
	return &DigestEngine{now: time.Now}
}

func (e *DigestEngine) Name() string { return "digest" }

// Generate packages the digest of the public fields as the proof artifact.
func (e *DigestEngine) Generate(fingerprint, startRoot, endRoot string, publicInputs []string) (*CFCProof, error) {
	return &CFCProof{
		Fingerprint:  fingerprint,
		StartRoot:    startRoot,
		EndRoot:      endRoot,
		ProofBytes:   transitionDigest(fingerprint, startRoot, endRoot, publicInputs),
		PublicInputs: append([]string(nil), publicInputs...),
		Timestamp:    e.now().Unix(),
	}, nil
}

// Verify recomputes the digest and compares it with the artifact.
func (e *DigestEngine) Verify(p *CFCProof) bool {
	if p == nil {
		return false
	}
	expected := transitionDigest(p.Fingerprint, p.StartRoot, p.EndRoot, p.PublicInputs)
	return subtle.ConstantTimeCompare(expected, p.ProofBytes) == 1
}

func transitionDigest(fingerprint, startRoot, endRoot string, publicInputs []string) []byte {
	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte(fingerprint))
	h.Write([]byte(startRoot))
	h.Write([]byte(endRoot))
	for _, input := range publicInputs {
		h.Write([]byte(input))
	}
	return h.Sum(nil)
}
