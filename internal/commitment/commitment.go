// commitment.go - Message commitments and CSTATE roots.
//
// A message commitment binds sender, thread, encryption nonce and plaintext
// hash into one 32-byte digest without revealing the plaintext. It is a two
// round chain over two different primitives: SHA-256 first, Keccak-256 second.
// The CSTATE root summarises an identity's list of thread-root commitments as
// a pairwise Merkle reduction in which an odd trailing node is carried up
// unchanged, never duplicated.

package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

const (
	commitmentDomain = "zerotrace_commitment_v1"
	permutationTag   = "poseidon2_simulation"
)

// EmptyRoot is the CSTATE root of an identity with no history.
var EmptyRoot = strings.Repeat("0", 64)

// HashPlaintext returns the hex SHA-256 digest of the plaintext.
func HashPlaintext(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// MessageCommitment computes the commitment for one message.
//
//	first  = SHA-256(domain || sender || thread || nonce || plaintextHash)
//	result = Keccak-256(first || tag)
func MessageCommitment(senderHash, threadID string, nonce []byte, plaintextHash string) string {
	h := sha256.New()
	h.Write([]byte(commitmentDomain))
	h.Write([]byte(senderHash))
	h.Write([]byte(threadID))
	h.Write(nonce)
	h.Write([]byte(plaintextHash))
	first := h.Sum(nil)

	k := sha3.NewLegacyKeccak256()
	k.Write(first)
	k.Write([]byte(permutationTag))
	return hex.EncodeToString(k.Sum(nil))
}

// CstateRoot reduces leaves to a single root. Empty input yields EmptyRoot
// and a single leaf is returned as is.
func CstateRoot(leaves []string) string {
	if len(leaves) == 0 {
		return EmptyRoot
	}
	level := make([]string, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i]) // carry odd node
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

func hashPair(left, right string) string {
	h := sha256.New()
	h.Write([]byte(left))
	h.Write([]byte(right))
	return hex.EncodeToString(h.Sum(nil))
}

// StateCommitment is the snapshot computed when a message commitment is
// appended to an identity's history. It is never stored; its root becomes
// the identity's new CSTATE root.
type StateCommitment struct {
	CstateRoot        string `json:"cstate_root"`
	ThreadID          string `json:"thread_id"`
	MessageCommitment string `json:"message_commitment"`
	Timestamp         int64  `json:"timestamp"`
}

// NewStateCommitment computes the candidate root over a copy of existing
// with messageCommitment appended. existing is not modified.
func NewStateCommitment(threadID, messageCommitment string, existing []string, now time.Time) StateCommitment {
	all := make([]string, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, messageCommitment)
	return StateCommitment{
		CstateRoot:        CstateRoot(all),
		ThreadID:          threadID,
		MessageCommitment: messageCommitment,
		Timestamp:         now.Unix(),
	}
}
