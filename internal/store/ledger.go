// ledger.go - Append-only ledger of finalized state transitions.
//
// Every finalized send records one Transition. A (identity, vaa_nonce) pair
// may appear only once; a second submission is a replay. The ledger can be
// exported to and imported from a single JSON file.
//
// NOTE: Ledger is not thread-safe by itself; use a sync.Mutex for concurrent access.

package store

import (
	"encoding/json"
	"fmt"
	"os"

	"zerotrace/internal/fault"
	"zerotrace/internal/proof"
)

// Transition is one finalized CSTATE transition.
type Transition struct {
	IdentityHash      string       `json:"identity_hash"`
	VAANonce          uint64       `json:"vaa_nonce"`
	ThreadID          string       `json:"thread_id"`
	MessageCommitment string       `json:"message_commitment"`
	StartRoot         string       `json:"start_cstate_root"`
	EndRoot           string       `json:"end_cstate_root"`
	BlobAddress       string       `json:"encrypted_blob_address"`
	Timestamp         int64        `json:"timestamp"`
	EndCap            proof.EndCap `json:"endcap"`
}

type nonceKey struct {
	identity string
	nonce    uint64
}

// Ledger is the append-only transition log.
type Ledger struct {
	Transitions []*Transition `json:"transitions"`

	seen map[nonceKey]struct{}
}

// NewLedger creates a new, empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Transitions: make([]*Transition, 0),
		seen:        make(map[nonceKey]struct{}),
	}
}

// Append records a transition. A repeated (identity, vaa_nonce) pair is
// rejected with a replay error and the ledger is left unchanged.
func (l *Ledger) Append(t *Transition) error {
	if l.HasNonce(t.IdentityHash, t.VAANonce) {
		return fmt.Errorf("%w: %s/%d", fault.ErrNonceReplayed, short(t.IdentityHash), t.VAANonce)
	}
	l.seen[nonceKey{t.IdentityHash, t.VAANonce}] = struct{}{}
	l.Transitions = append(l.Transitions, t)
	return nil
}

// HasNonce reports whether the identity already used the nonce.
func (l *Ledger) HasNonce(identityHash string, nonce uint64) bool {
	_, ok := l.seen[nonceKey{identityHash, nonce}]
	return ok
}

// For returns the identity's transitions in append order.
func (l *Ledger) For(identityHash string) []*Transition {
	out := make([]*Transition, 0)
	for _, t := range l.Transitions {
		if t.IdentityHash == identityHash {
			out = append(out, t)
		}
	}
	return out
}

// Latest returns the most recent transition, or nil.
func (l *Ledger) Latest() *Transition {
	if len(l.Transitions) == 0 {
		return nil
	}
	return l.Transitions[len(l.Transitions)-1]
}

func (l *Ledger) Len() int {
	return len(l.Transitions)
}

// VerifyAll re-verifies every stored proof and checks that it covers the
// transition it is stored with. It returns the first failure.
func (l *Ledger) VerifyAll(e proof.Engine) error {
	for i, t := range l.Transitions {
		if err := VerifyTransition(e, t); err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}
	return nil
}

// VerifyTransition checks a single entry.
func VerifyTransition(e proof.Engine, t *Transition) error {
	p := &t.EndCap.Proof
	if p.StartRoot != t.StartRoot || p.EndRoot != t.EndRoot ||
		len(p.PublicInputs) != 1 || p.PublicInputs[0] != t.MessageCommitment {
		return fmt.Errorf("%w: proof does not cover transition", fault.ErrProofMalformed)
	}
	if !e.Verify(p) {
		return fault.ErrProofRejected
	}
	return nil
}

// SaveToFile saves the ledger as indented JSON, overwriting path.
func (l *Ledger) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// LoadLedgerFromFile loads a ledger exported with SaveToFile. Duplicate
// (identity, vaa_nonce) pairs in the file are rejected.
func LoadLedgerFromFile(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var raw Ledger
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrBadLedger, err)
	}
	l := NewLedger()
	for _, t := range raw.Transitions {
		if t == nil {
			continue
		}
		if err := l.Append(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
