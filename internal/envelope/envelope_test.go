package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrace/internal/fault"
)

func TestRoundTrip(t *testing.T) {
	texts := []string{
		"",
		"hi",
		"Hello from ZeroTrace! This message is end-to-end encrypted.",
		"многоязычный текст ✓ 日本語 🚀",
		string(make([]byte, 4096)),
	}
	for i := 0; i < 3; i++ {
		key, err := NewKey()
		require.NoError(t, err)
		for _, text := range texts {
			ct, nonce, err := Encrypt(key, text)
			require.NoError(t, err)
			assert.Len(t, nonce, NonceSize)
			assert.Len(t, ct, len(text)+16)

			got, err := Decrypt(key, ct, nonce)
			require.NoError(t, err)
			assert.Equal(t, text, got)
		}
	}
}

func TestFreshNonces(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	_, n1, err := Encrypt(key, "same")
	require.NoError(t, err)
	_, n2, err := Encrypt(key, "same")
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
}

func TestDecryptFailures(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	ct, nonce, err := Encrypt(key, "secret")
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewKey()
		require.NoError(t, err)
		_, err = Decrypt(other, ct, nonce)
		require.Error(t, err)
		assert.True(t, fault.IsErrCrypto(err))
	})

	t.Run("corrupted ciphertext", func(t *testing.T) {
		bad := append([]byte(nil), ct...)
		bad[0] ^= 0x01
		_, err := Decrypt(key, bad, nonce)
		assert.True(t, fault.IsErrCrypto(err))
	})

	t.Run("tampered nonce", func(t *testing.T) {
		bad := append([]byte(nil), nonce...)
		bad[5] ^= 0x80
		_, err := Decrypt(key, ct, bad)
		assert.True(t, fault.IsErrCrypto(err))
	})

	t.Run("nonce of wrong size", func(t *testing.T) {
		_, err := Decrypt(key, ct, nonce[:12])
		assert.True(t, fault.IsErrEncoding(err))
		assert.False(t, fault.IsErrCrypto(err))
	})
}

func TestDecryptRejectsNonUTF8(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	ct, nonce, err := Encrypt(key, "\xff\xfe")
	require.NoError(t, err)
	_, err = Decrypt(key, ct, nonce)
	assert.True(t, fault.IsErrEncoding(err))
}
