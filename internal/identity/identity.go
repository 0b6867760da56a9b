// identity.go - Ed25519 identities, identity hashes and attestations.
//
// An identity is an Ed25519 keypair. Its public handle is the identity hash,
// SHA-256("zerotrace_identity" || public key) in lowercase hex, which stays
// fixed for the life of the keypair. Identities are created either from fresh
// randomness or deterministically from a seed.

package identity

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ed25519"

	"zerotrace/internal/fault"
)

const identityDomain = "zerotrace_identity"

// Identity is the exportable, public part of an identity.
type Identity struct {
	PublicKey    []byte        `json:"public_key"`
	IdentityHash string        `json:"identity_hash"`
	Attestations []Attestation `json:"attestations"`
}

// Attestation is a signed claim issued by an identity. Only the hash of the
// claim value is carried, never the value itself.
type Attestation struct {
	Issuer    string `json:"issuer"`
	Claim     string `json:"claim"`
	ValueHash string `json:"value_hash"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// Manager holds an identity's keypair and the public keys it trusts.
type Manager struct {
	private      ed25519.PrivateKey
	public       ed25519.PublicKey
	identityHash string
	contacts     map[string]ed25519.PublicKey
}

// Create generates a new identity from crypto/rand.
func Create() (*Manager, error) {
	return generate(rand.Reader)
}

func generate(random io.Reader) (*Manager, error) {
	public, private, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrRandomSource, err)
	}
	return newManager(private, public), nil
}

// FromSeed derives an identity deterministically: the Ed25519 seed is
// SHA-256(seed). The same seed always yields the same identity hash and the
// same signatures. Derivation never falls back to random keys; any failure is
// returned as a KeyDerivationError.
func FromSeed(seed []byte) (*Manager, error) {
	if len(seed) == 0 {
		return nil, fault.ErrEmptySeed
	}
	material := sha256.Sum256(seed)
	private, public, err := expandSeed(material[:])
	if err != nil {
		return nil, err
	}
	return newManager(private, public), nil
}

// expandSeed turns 32 bytes of key material into an Ed25519 keypair and
// checks the result before handing it out.
func expandSeed(material []byte) (private ed25519.PrivateKey, public ed25519.PublicKey, err error) {
	if len(material) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("%w: need %d bytes, got %d", fault.ErrKeyMaterial, ed25519.SeedSize, len(material))
	}
	private = ed25519.NewKeyFromSeed(material)
	public, ok := private.Public().(ed25519.PublicKey)
	if !ok || len(public) != ed25519.PublicKeySize {
		return nil, nil, fault.ErrKeyMaterial
	}
	if !bytes.Equal(public, private[ed25519.SeedSize:]) {
		return nil, nil, fault.ErrKeyMaterial
	}
	return private, public, nil
}

func newManager(private ed25519.PrivateKey, public ed25519.PublicKey) *Manager {
	return &Manager{
		private:      private,
		public:       public,
		identityHash: ComputeIdentityHash(public),
		contacts:     make(map[string]ed25519.PublicKey),
	}
}

// ComputeIdentityHash returns the identity hash of a public key.
func ComputeIdentityHash(publicKey []byte) string {
	h := sha256.New()
	h.Write([]byte(identityDomain))
	h.Write(publicKey)
	return hex.EncodeToString(h.Sum(nil))
}

// IdentityHash returns the identity hash.
func (m *Manager) IdentityHash() string {
	return m.identityHash
}

// PublicKey returns a copy of the Ed25519 public key.
func (m *Manager) PublicKey() []byte {
	out := make([]byte, len(m.public))
	copy(out, m.public)
	return out
}

// Sign signs message with the identity's private key.
func (m *Manager) Sign(message []byte) []byte {
	return ed25519.Sign(m.private, message)
}

// Verify reports whether signature is a valid signature of message under
// publicKey. Malformed keys or signatures verify as false.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// AddContact records the public key of another identity.
func (m *Manager) AddContact(identityHash string, publicKey []byte) {
	pk := make(ed25519.PublicKey, len(publicKey))
	copy(pk, publicKey)
	m.contacts[identityHash] = pk
}

// Contact returns the stored public key for identityHash.
func (m *Manager) Contact(identityHash string) ([]byte, bool) {
	pk, ok := m.contacts[identityHash]
	return pk, ok
}

// CreateAttestation issues a claim about this identity. The signed message
// is "claim:value_hash:issuer".
func (m *Manager) CreateAttestation(claim, value string) Attestation {
	sum := sha256.Sum256([]byte(value))
	valueHash := hex.EncodeToString(sum[:])
	signature := m.Sign(attestationMessage(claim, valueHash, m.identityHash))
	return Attestation{
		Issuer:    m.identityHash,
		Claim:     claim,
		ValueHash: valueHash,
		Signature: hex.EncodeToString(signature),
		Timestamp: time.Now().Unix(),
	}
}

// VerifyAttestation checks an attestation's signature against the issuer's
// public key. The public key must hash to the attestation's issuer.
func VerifyAttestation(att Attestation, publicKey []byte) bool {
	if ComputeIdentityHash(publicKey) != att.Issuer {
		return false
	}
	signature, err := hex.DecodeString(att.Signature)
	if err != nil {
		return false
	}
	return Verify(attestationMessage(att.Claim, att.ValueHash, att.Issuer), signature, publicKey)
}

func attestationMessage(claim, valueHash, issuer string) []byte {
	return []byte(claim + ":" + valueHash + ":" + issuer)
}

// Export returns the public identity record.
func (m *Manager) Export() Identity {
	return Identity{
		PublicKey:    m.PublicKey(),
		IdentityHash: m.identityHash,
		Attestations: []Attestation{},
	}
}
