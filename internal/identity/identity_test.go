package identity

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrace/internal/fault"
)

func TestFromSeedIsDeterministic(t *testing.T) {
	a, err := FromSeed([]byte("alice"))
	require.NoError(t, err)
	b, err := FromSeed([]byte("alice"))
	require.NoError(t, err)

	assert.Equal(t, a.IdentityHash(), b.IdentityHash())
	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.Len(t, a.IdentityHash(), 64)

	msg := []byte("hello")
	sigA := a.Sign(msg)
	sigB := b.Sign(msg)
	assert.Equal(t, sigA, sigB, "ed25519 signatures are deterministic")
	assert.True(t, Verify(msg, sigA, b.PublicKey()))
	assert.True(t, Verify(msg, sigB, a.PublicKey()))

	other, err := FromSeed([]byte("bob"))
	require.NoError(t, err)
	assert.NotEqual(t, a.IdentityHash(), other.IdentityHash())
}

func TestFromSeedRejectsEmptySeed(t *testing.T) {
	m, err := FromSeed(nil)
	assert.Nil(t, m)
	require.Error(t, err)
	assert.True(t, fault.IsErrKeyDerivation(err))

	_, err = FromSeed([]byte{})
	assert.True(t, fault.IsErrKeyDerivation(err))
}

func TestExpandSeedRejectsShortMaterial(t *testing.T) {
	_, _, err := expandSeed(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, fault.IsErrKeyDerivation(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestCreate(t *testing.T) {
	t.Run("fresh identities differ", func(t *testing.T) {
		a, err := Create()
		require.NoError(t, err)
		b, err := Create()
		require.NoError(t, err)
		assert.NotEqual(t, a.IdentityHash(), b.IdentityHash())
		assert.Equal(t, ComputeIdentityHash(a.PublicKey()), a.IdentityHash())
	})

	t.Run("random source failure is surfaced", func(t *testing.T) {
		_, err := generate(failingReader{})
		require.Error(t, err)
		assert.True(t, fault.IsErrKeyDerivation(err))
	})
}

func TestVerify(t *testing.T) {
	m, err := Create()
	require.NoError(t, err)
	msg := []byte("commitment:1")
	sig := m.Sign(msg)

	assert.True(t, Verify(msg, sig, m.PublicKey()))
	assert.False(t, Verify([]byte("commitment:2"), sig, m.PublicKey()))

	tampered := bytes.Clone(sig)
	tampered[0] ^= 0xff
	assert.False(t, Verify(msg, tampered, m.PublicKey()))
	assert.False(t, Verify(msg, sig[:10], m.PublicKey()))
	assert.False(t, Verify(msg, sig, []byte("short")))
}

func TestAttestation(t *testing.T) {
	m, err := FromSeed([]byte("issuer"))
	require.NoError(t, err)

	att := m.CreateAttestation("email", "alice@example.org")
	assert.Equal(t, m.IdentityHash(), att.Issuer)
	assert.Equal(t, "email", att.Claim)
	assert.Len(t, att.ValueHash, 64)
	assert.NotContains(t, att.ValueHash, "alice")
	assert.True(t, VerifyAttestation(att, m.PublicKey()))

	forged := att
	forged.Claim = "handle"
	assert.False(t, VerifyAttestation(forged, m.PublicKey()))

	other, err := Create()
	require.NoError(t, err)
	assert.False(t, VerifyAttestation(att, other.PublicKey()))
}

func TestContactsAndExport(t *testing.T) {
	alice, err := FromSeed([]byte("alice"))
	require.NoError(t, err)
	bob, err := FromSeed([]byte("bob"))
	require.NoError(t, err)

	_, ok := alice.Contact(bob.IdentityHash())
	assert.False(t, ok)
	alice.AddContact(bob.IdentityHash(), bob.PublicKey())
	pk, ok := alice.Contact(bob.IdentityHash())
	require.True(t, ok)
	assert.Equal(t, bob.PublicKey(), pk)

	exported := alice.Export()
	assert.Equal(t, alice.IdentityHash(), exported.IdentityHash)
	assert.Equal(t, alice.PublicKey(), exported.PublicKey)
	assert.NotNil(t, exported.Attestations)
	assert.Empty(t, exported.Attestations)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	m, created, err := r.Resolve("abc")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, r.Len(), "resolve does not register")

	seeded, err := FromSeed([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, seeded.IdentityHash(), m.IdentityHash())

	r.Register("abc", m)
	again, created, err := r.Resolve("abc")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, m, again)

	other, err := Create()
	require.NoError(t, err)
	r.Register("abc", other)
	got, ok := r.Get("abc")
	require.True(t, ok)
	assert.Same(t, m, got, "existing registration is kept")

	_, _, err = r.Resolve("")
	assert.True(t, fault.IsErrKeyDerivation(err))
}
