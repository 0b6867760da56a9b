// envelope.go - Authenticated encryption of message bodies.
//
// Each thread has one 32-byte symmetric key. Messages are sealed with
// XChaCha20-Poly1305 under a fresh random 24-byte nonce; the nonce travels
// next to the ciphertext and also feeds the message commitment.

package envelope

import (
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"

	"zerotrace/internal/fault"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSizeX
)

// Key is a per-thread symmetric key.
type Key [KeySize]byte

// NewKey returns a key read from crypto/rand.
func NewKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("%w: %v", fault.ErrEncryptFailed, err)
	}
	return k, nil
}

// Encrypt seals plaintext under key and returns the ciphertext and the nonce
// that was used.
func Encrypt(key Key, plaintext string) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrInvalidKeyLength, err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrEncryptFailed, err)
	}
	ciphertext = aead.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext. A wrong key, tampered ciphertext or tampered
// nonce fails with a CryptoError; a nonce of the wrong size or a plaintext
// that is not UTF-8 fails with an EncodingError.
func Decrypt(key Key, ciphertext, nonce []byte) (string, error) {
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("%w: got %d bytes", fault.ErrBadNonce, len(nonce))
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", fault.ErrInvalidKeyLength, err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fault.ErrDecryptFailed, err)
	}
	if !utf8.Valid(plaintext) {
		return "", fault.ErrNotUTF8
	}
	return string(plaintext), nil
}
