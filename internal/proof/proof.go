// proof.go - State transition proofs and EndCaps.
//
// A CFCProof attests that a state transition function (identified by its
// fingerprint) moved an identity's CSTATE root from a start root to an end
// root over an ordered list of public inputs. Proof systems plug in behind
// the Engine interface; both methods depend only on the four public fields,
// so a backend can be swapped without touching callers.

package proof

import (
	"fmt"

	"zerotrace/internal/fault"
)

// SendMessageCFC is the fingerprint of the send_message transition.
const SendMessageCFC = "0xdeadbeefcafebabe"

// CFCProof is a proof artifact plus the public fields it was generated over.
type CFCProof struct {
	Fingerprint  string   `json:"cfc_fingerprint"`
	StartRoot    string   `json:"start_cstate_root"`
	EndRoot      string   `json:"end_cstate_root"`
	ProofBytes   []byte   `json:"proof_bytes"`
	PublicInputs []string `json:"public_inputs"`
	Timestamp    int64    `json:"timestamp"`
}

// Clone returns a deep copy of p.
func (p *CFCProof) Clone() *CFCProof {
	out := *p
	out.ProofBytes = append([]byte(nil), p.ProofBytes...)
	out.PublicInputs = append([]string(nil), p.PublicInputs...)
	return &out
}

// EndCap is the submission bundle stored alongside a message.
type EndCap struct {
	Proof                CFCProof `json:"proof"`
	EncryptedBlobAddress string   `json:"encrypted_blob_address"`
	VAANonce             uint64   `json:"vaa_nonce"`
	Signature            string   `json:"signature"`
}

// Clone returns a deep copy of e.
func (e *EndCap) Clone() EndCap {
	out := *e
	out.Proof = *e.Proof.Clone()
	return out
}

// Engine generates and verifies transition proofs.
//
// Generate must be a function of the four public fields only (plus a
// timestamp that is not part of the proof statement). Verify recomputes from
// the proof's own public fields, touches no external state and never uses
// randomness.
type Engine interface {
	Name() string
	Generate(fingerprint, startRoot, endRoot string, publicInputs []string) (*CFCProof, error)
	Verify(p *CFCProof) bool
}

// ForSendMessage generates the proof for a send_message transition whose
// only public input is the message commitment.
func ForSendMessage(e Engine, startRoot, endRoot, messageCommitment string) (*CFCProof, error) {
	return e.Generate(SendMessageCFC, startRoot, endRoot, []string{messageCommitment})
}

// CreateEndCap assembles an EndCap. Only structural completeness is checked.
func CreateEndCap(p *CFCProof, blobAddress string, vaaNonce uint64, signature string) (*EndCap, error) {
	switch {
	case p == nil:
		return nil, fmt.Errorf("%w: missing proof", fault.ErrIncompleteEndCap)
	case blobAddress == "":
		return nil, fmt.Errorf("%w: missing blob address", fault.ErrIncompleteEndCap)
	case signature == "":
		return nil, fmt.Errorf("%w: missing signature", fault.ErrIncompleteEndCap)
	}
	return &EndCap{
		Proof:                *p,
		EncryptedBlobAddress: blobAddress,
		VAANonce:             vaaNonce,
		Signature:            signature,
	}, nil
}
