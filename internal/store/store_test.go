package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrace/internal/commitment"
	"zerotrace/internal/envelope"
	"zerotrace/internal/fault"
	"zerotrace/internal/proof"
)

func TestVAANonceMonotonic(t *testing.T) {
	s := New()
	for want := uint64(1); want <= 5; want++ {
		assert.Equal(t, want, s.PeekVAANonce("alice"))
		assert.Equal(t, want, s.NextVAANonce("alice"))
	}
	// independent sequence per identity
	assert.Equal(t, uint64(1), s.NextVAANonce("bob"))
	assert.Equal(t, uint64(6), s.NextVAANonce("alice"))
}

func TestRaiseVAANonce(t *testing.T) {
	s := New()
	s.RaiseVAANonce("alice", 4)
	assert.Equal(t, uint64(5), s.PeekVAANonce("alice"))

	s.RaiseVAANonce("alice", 2)
	assert.Equal(t, uint64(5), s.NextVAANonce("alice"), "raise never lowers the counter")
	assert.Equal(t, uint64(1), s.PeekVAANonce("bob"))
}

func TestThreadKeyIsFixed(t *testing.T) {
	s := New()
	_, ok := s.ThreadKey("t")
	assert.False(t, ok)

	first, err := s.GetOrCreateThreadKey("t")
	require.NoError(t, err)
	again, err := s.GetOrCreateThreadKey("t")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := envelope.NewKey()
	require.NoError(t, err)
	assert.Equal(t, first, s.SetThreadKey("t", other), "existing key must not be replaced")

	k, ok := s.ThreadKey("t")
	assert.True(t, ok)
	assert.Equal(t, first, k)
}

func TestCstateRootsAndHistory(t *testing.T) {
	s := New()
	assert.Equal(t, commitment.EmptyRoot, s.CstateRoot("alice"))
	assert.Empty(t, s.ThreadRoots("alice"))

	s.AddThreadRoot("alice", "aa")
	s.AddThreadRoot("alice", "bb")
	s.SetCstateRoot("alice", "cc")

	roots := s.ThreadRoots("alice")
	assert.Equal(t, []string{"aa", "bb"}, roots)
	roots[0] = "zz"
	assert.Equal(t, []string{"aa", "bb"}, s.ThreadRoots("alice"), "returned slice is a copy")
	assert.Equal(t, "cc", s.CstateRoot("alice"))

	s.SetCstateRoot("aaron", "dd")
	assert.Equal(t, []string{"aaron", "alice"}, s.Identities())
}

func TestMessagesAndThreadIDs(t *testing.T) {
	s := New()
	s.AppendMessage(Message{ThreadID: "b:c", SenderID: "b", Timestamp: 1})
	s.AppendMessage(Message{ThreadID: "a:b", SenderID: "a", Timestamp: 2})
	s.AppendMessage(Message{ThreadID: "a:b", SenderID: "b", Timestamp: 3})

	msgs := s.Messages("a:b")
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[0].Timestamp)
	assert.Equal(t, int64(3), msgs[1].Timestamp)
	assert.Empty(t, s.Messages("x:y"))
	assert.Equal(t, []string{"a:b", "b:c"}, s.ThreadIDs())

	threads, identities := s.Stats()
	assert.Equal(t, 2, threads)
	assert.Equal(t, 0, identities)
}

func TestMessagesAreCopies(t *testing.T) {
	p, err := proof.ForSendMessage(proof.NewDigestEngine(), commitment.EmptyRoot, commitment.EmptyRoot, "aa")
	require.NoError(t, err)
	ec, err := proof.CreateEndCap(p, "da://encrypted/x", 1, "sig")
	require.NoError(t, err)

	in := Message{ThreadID: "a:b", Ciphertext: []byte{1, 2, 3}, Nonce: []byte{9}, EndCap: ec}
	s := New()
	s.AppendMessage(in)

	// the caller's values stay its own
	in.Ciphertext[0] = 0xff
	ec.VAANonce = 42

	got := s.Messages("a:b")
	require.Len(t, got, 1)
	assert.Equal(t, []byte{1, 2, 3}, got[0].Ciphertext)
	assert.Equal(t, uint64(1), got[0].EndCap.VAANonce)

	got[0].Ciphertext[1] = 0xff
	got[0].Nonce[0] = 0
	got[0].EndCap.VAANonce = 99
	got[0].EndCap.Proof.ProofBytes[0] ^= 0xff

	again := s.Messages("a:b")[0]
	assert.Equal(t, []byte{1, 2, 3}, again.Ciphertext)
	assert.Equal(t, []byte{9}, again.Nonce)
	assert.Equal(t, uint64(1), again.EndCap.VAANonce)
	assert.True(t, proof.NewDigestEngine().Verify(&again.EndCap.Proof))
}

func newTransition(t *testing.T, e proof.Engine, identity string, nonce uint64) *Transition {
	t.Helper()
	mc := commitment.HashPlaintext("m")
	end := commitment.CstateRoot([]string{mc})
	p, err := proof.ForSendMessage(e, commitment.EmptyRoot, end, mc)
	require.NoError(t, err)
	ec, err := proof.CreateEndCap(p, "da://encrypted/test", nonce, "sig")
	require.NoError(t, err)
	return &Transition{
		IdentityHash:      identity,
		VAANonce:          nonce,
		ThreadID:          "a:b",
		MessageCommitment: mc,
		StartRoot:         commitment.EmptyRoot,
		EndRoot:           end,
		BlobAddress:       ec.EncryptedBlobAddress,
		Timestamp:         p.Timestamp,
		EndCap:            *ec,
	}
}

func TestLedgerRejectsReplay(t *testing.T) {
	e := proof.NewDigestEngine()
	l := NewLedger()
	require.NoError(t, l.Append(newTransition(t, e, "alice", 1)))
	require.NoError(t, l.Append(newTransition(t, e, "bob", 1)))

	err := l.Append(newTransition(t, e, "alice", 1))
	assert.True(t, fault.IsErrReplay(err))
	assert.Equal(t, 2, l.Len())
	assert.Len(t, l.For("alice"), 1)
	assert.Equal(t, "bob", l.Latest().IdentityHash)
	assert.True(t, l.HasNonce("alice", 1))
	assert.False(t, l.HasNonce("alice", 2))
}

func TestLedgerVerifyAll(t *testing.T) {
	e := proof.NewDigestEngine()
	l := NewLedger()
	assert.Nil(t, l.Latest())
	require.NoError(t, l.Append(newTransition(t, e, "alice", 1)))
	require.NoError(t, l.Append(newTransition(t, e, "alice", 2)))
	require.NoError(t, l.VerifyAll(e))

	l.Transitions[1].EndCap.Proof.ProofBytes[0] ^= 1
	assert.True(t, fault.IsErrProofVerification(l.VerifyAll(e)))

	l.Transitions[1].EndCap.Proof.ProofBytes[0] ^= 1
	l.Transitions[1].EndRoot = commitment.EmptyRoot
	assert.True(t, fault.IsErrProofVerification(l.VerifyAll(e)))
}

func TestLedgerFileRoundTrip(t *testing.T) {
	e := proof.NewDigestEngine()
	l := NewLedger()
	require.NoError(t, l.Append(newTransition(t, e, "alice", 1)))
	require.NoError(t, l.Append(newTransition(t, e, "alice", 2)))

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, l.SaveToFile(path))

	loaded, err := LoadLedgerFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.True(t, loaded.HasNonce("alice", 2))
	require.NoError(t, loaded.VerifyAll(e))

	err = loaded.Append(newTransition(t, e, "alice", 2))
	assert.True(t, fault.IsErrReplay(err))
}

func TestLoadLedgerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadLedgerFromFile(path)
	assert.True(t, fault.IsErrEncoding(err))

	_, err = LoadLedgerFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
