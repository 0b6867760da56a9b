// Package messaging is the zerotrace messaging core.
//
// Overview:
//   - Service ties identities, symmetric encryption, commitments and proofs into one send operation
//   - Every send moves an identity's CSTATE root forward by exactly one message commitment
//   - Each transition carries a proof, a vaa nonce and a signature, bundled as an EndCap
//
// Security Model:
//   - Messages are sealed with XChaCha20-Poly1305 under a per-thread key
//   - Message commitments chain SHA-256 and Keccak-256 so no single primitive carries them
//   - vaa nonces are strictly increasing per identity; the ledger rejects a repeated nonce
//   - A send that fails proof self-verification leaves no trace in the store
//
// Usage:
//   - New(store.New(), engine) creates a service; a nil engine selects the digest backend
//   - ThreadID(a, b) gives the canonical id for a two-party thread
//   - Send, then GetMessages or ReadDecrypted on the thread and GetCState on the sender
//
// WARNING: the default digest backend is not a proof system. It only detects
// inconsistent artifacts. Use the groth16 backend where a succinct proof is required.
package messaging
