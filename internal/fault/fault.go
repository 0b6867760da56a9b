// fault.go - Error classes for the zerotrace messaging core.
//
// Every error the core returns belongs to exactly one class. Callers test the
// class with the IsErrX helpers, which see through fmt.Errorf("%w") wrapping,
// so call sites are free to add context without breaking classification.

package fault

import "errors"

// error classes
type (
	KeyDerivationError     string
	CryptoError            string
	ProofVerificationError string
	EncodingError          string
	ReplayError            string
	InvalidError           string
	NotFoundError          string
)

// common errors - keep in alphabetic order within each class
var (
	ErrEmptySeed        = KeyDerivationError("seed is empty")
	ErrKeyMaterial      = KeyDerivationError("seed cannot be expanded into key material")
	ErrRandomSource     = KeyDerivationError("random source failed")
	ErrDecryptFailed    = CryptoError("decryption failed")
	ErrEncryptFailed    = CryptoError("encryption failed")
	ErrInvalidKeyLength = CryptoError("symmetric key length is invalid")
	ErrInvalidSignature = CryptoError("signature is invalid")
	ErrProofMalformed   = ProofVerificationError("proof artifact is malformed")
	ErrProofRejected    = ProofVerificationError("proof verification failed")
	ErrBadHex           = EncodingError("malformed hex field")
	ErrBadLedger        = EncodingError("ledger file is malformed")
	ErrBadNonce         = EncodingError("nonce has wrong length")
	ErrNotUTF8          = EncodingError("plaintext is not valid UTF-8")
	ErrNonceReplayed    = ReplayError("vaa nonce already recorded for identity")
	ErrEmptySender      = InvalidError("sender identity hash is required")
	ErrEmptyThread      = InvalidError("thread id is required")
	ErrIncompleteEndCap = InvalidError("endcap is incomplete")
	ErrInvalidConfig    = InvalidError("configuration is invalid")
	ErrInvalidRequest   = InvalidError("request body is invalid")
	ErrUnknownBackend   = InvalidError("unknown proof backend")
	ErrIdentityNotFound = NotFoundError("identity not found")
)

func (e KeyDerivationError) Error() string     { return string(e) }
func (e CryptoError) Error() string            { return string(e) }
func (e ProofVerificationError) Error() string { return string(e) }
func (e EncodingError) Error() string          { return string(e) }
func (e ReplayError) Error() string            { return string(e) }
func (e InvalidError) Error() string           { return string(e) }
func (e NotFoundError) Error() string          { return string(e) }

// determine the class of an error
func IsErrKeyDerivation(e error) bool {
	var target KeyDerivationError
	return errors.As(e, &target)
}

func IsErrCrypto(e error) bool {
	var target CryptoError
	return errors.As(e, &target)
}

func IsErrProofVerification(e error) bool {
	var target ProofVerificationError
	return errors.As(e, &target)
}

func IsErrEncoding(e error) bool {
	var target EncodingError
	return errors.As(e, &target)
}

func IsErrReplay(e error) bool {
	var target ReplayError
	return errors.As(e, &target)
}

func IsErrInvalid(e error) bool {
	var target InvalidError
	return errors.As(e, &target)
}

func IsErrNotFound(e error) bool {
	var target NotFoundError
	return errors.As(e, &target)
}
