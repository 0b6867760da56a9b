// store.go - In-memory message store.
//
// Store holds the five keyed maps of the messaging core. Entries are never
// deleted and history lists only grow.
//
// NOTE: Store is not thread-safe by itself; messaging.Service serializes all
// access with its own lock.

package store

import (
	"sort"

	"zerotrace/internal/commitment"
	"zerotrace/internal/envelope"
	"zerotrace/internal/proof"
)

// Message is an encrypted message as stored on a thread.
type Message struct {
	ThreadID          string
	SenderID          string
	Ciphertext        []byte
	Nonce             []byte
	Timestamp         int64
	MessageCommitment string
	EndCap            *proof.EndCap
}

// Store is the messaging core's state.
type Store struct {
	messages    map[string][]Message
	threadKeys  map[string]envelope.Key
	cstateRoots map[string]string
	threadRoots map[string][]string
	vaaNonces   map[string]uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		messages:    make(map[string][]Message),
		threadKeys:  make(map[string]envelope.Key),
		cstateRoots: make(map[string]string),
		threadRoots: make(map[string][]string),
		vaaNonces:   make(map[string]uint64),
	}
}

// ThreadKey returns the key for a thread if one was created.
func (s *Store) ThreadKey(threadID string) (envelope.Key, bool) {
	k, ok := s.threadKeys[threadID]
	return k, ok
}

// SetThreadKey records the key for a thread. An existing key is never
// replaced; the key in effect is returned.
func (s *Store) SetThreadKey(threadID string, key envelope.Key) envelope.Key {
	if k, ok := s.threadKeys[threadID]; ok {
		return k
	}
	s.threadKeys[threadID] = key
	return key
}

// GetOrCreateThreadKey returns the thread's key, generating it on first use.
func (s *Store) GetOrCreateThreadKey(threadID string) (envelope.Key, error) {
	if k, ok := s.threadKeys[threadID]; ok {
		return k, nil
	}
	k, err := envelope.NewKey()
	if err != nil {
		return envelope.Key{}, err
	}
	return s.SetThreadKey(threadID, k), nil
}

// CstateRoot returns the identity's current root, or the empty sentinel.
func (s *Store) CstateRoot(identityHash string) string {
	if r, ok := s.cstateRoots[identityHash]; ok {
		return r
	}
	return commitment.EmptyRoot
}

func (s *Store) SetCstateRoot(identityHash, root string) {
	s.cstateRoots[identityHash] = root
}

// AddThreadRoot appends a thread-root commitment to the identity's history.
func (s *Store) AddThreadRoot(identityHash, root string) {
	s.threadRoots[identityHash] = append(s.threadRoots[identityHash], root)
}

// ThreadRoots returns a copy of the identity's thread-root history.
func (s *Store) ThreadRoots(identityHash string) []string {
	return append([]string{}, s.threadRoots[identityHash]...)
}

// PeekVAANonce returns the nonce NextVAANonce would issue, without issuing it.
func (s *Store) PeekVAANonce(identityHash string) uint64 {
	return s.vaaNonces[identityHash] + 1
}

// RaiseVAANonce marks n as issued for the identity if it is above the
// last issued nonce. The counter never moves backwards.
func (s *Store) RaiseVAANonce(identityHash string, n uint64) {
	if n > s.vaaNonces[identityHash] {
		s.vaaNonces[identityHash] = n
	}
}

// NextVAANonce issues the identity's next replay nonce. The first is 1.
func (s *Store) NextVAANonce(identityHash string) uint64 {
	n := s.vaaNonces[identityHash] + 1
	s.vaaNonces[identityHash] = n
	return n
}

// Clone returns a copy of m that shares no memory with it.
func (m Message) Clone() Message {
	out := m
	out.Ciphertext = append([]byte(nil), m.Ciphertext...)
	out.Nonce = append([]byte(nil), m.Nonce...)
	if m.EndCap != nil {
		ec := m.EndCap.Clone()
		out.EndCap = &ec
	}
	return out
}

// AppendMessage stores a copy of m at the end of its thread.
func (s *Store) AppendMessage(m Message) {
	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], m.Clone())
}

// Messages returns deep copies of the thread's messages in append order.
func (s *Store) Messages(threadID string) []Message {
	stored := s.messages[threadID]
	out := make([]Message, len(stored))
	for i, m := range stored {
		out[i] = m.Clone()
	}
	return out
}

// ThreadIDs lists every thread with at least one message, sorted.
func (s *Store) ThreadIDs() []string {
	ids := make([]string, 0, len(s.messages))
	for id := range s.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Identities lists every identity with a CSTATE root, sorted.
func (s *Store) Identities() []string {
	ids := make([]string, 0, len(s.cstateRoots))
	for id := range s.cstateRoots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats reports map sizes for health checks.
func (s *Store) Stats() (threads, identities int) {
	return len(s.messages), len(s.cstateRoots)
}
