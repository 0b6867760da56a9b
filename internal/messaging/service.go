// service.go - The messaging core.
//
// Service owns the store, the identity registry and the transition ledger.
// One mutex serializes every send for its whole duration, so a send is never
// observable half applied. Reads take the same lock only long enough to copy
// what they need.

package messaging

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"zerotrace/internal/commitment"
	"zerotrace/internal/envelope"
	"zerotrace/internal/fault"
	"zerotrace/internal/identity"
	"zerotrace/internal/logging"
	"zerotrace/internal/metrics"
	"zerotrace/internal/proof"
	"zerotrace/internal/store"
)

// SendRequest is the input to Send. SenderSignature is carried for callers
// that produce one; the service does not check it.
type SendRequest struct {
	ThreadID           string
	RecipientID        string
	Plaintext          string
	SenderIdentityHash string
	SenderSignature    string
}

// SendResult describes a finalized send.
type SendResult struct {
	Status            string
	ThreadID          string
	MessageTimestamp  int64
	CstateRoot        string
	ProofVerified     bool
	VAANonce          uint64
	MessageCommitment string
	BlobAddress       string
}

// CreatedIdentity is the public part of a fresh identity.
type CreatedIdentity struct {
	IdentityHash string
	PublicKey    string
}

// DecryptedMessage is a message as returned by ReadDecrypted.
type DecryptedMessage struct {
	Sender       string
	Plaintext    string
	Timestamp    int64
	Commitment   string
	ProofPresent bool
}

// CState is an identity's current state commitment.
type CState struct {
	CstateRoot      string
	ThreadRootCount int
	ThreadRoots     []string
}

// ThreadSummary describes one thread an identity takes part in.
type ThreadSummary struct {
	ThreadID          string
	OtherIdentityHash string
	LastMessageTime   int64
	MessageCount      int
}

// Service is the messaging core.
type Service struct {
	mu       sync.Mutex
	store    *store.Store
	registry *identity.Registry
	ledger   *store.Ledger
	engine   proof.Engine

	log       *logging.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	newBlobID func() string
}

type Option func(*Service)

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now for message and proof timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLedger starts the service from an existing ledger, for example one
// loaded with store.LoadLedgerFromFile. New restores each identity's vaa
// nonce counter and, for identities the store has no history for, its
// thread roots and CSTATE root from the ledger's transitions.
func WithLedger(l *store.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// New creates a service over st. A nil engine selects the digest backend.
func New(st *store.Store, engine proof.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = proof.NewDigestEngine()
	}
	s := &Service{
		store:     st,
		registry:  identity.NewRegistry(),
		ledger:    store.NewLedger(),
		engine:    engine,
		log:       logging.Nop(),
		now:       time.Now,
		newBlobID: newBlobID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore()
	return s
}

func (s *Service) restore() {
	fresh := make(map[string]bool)
	for _, t := range s.ledger.Transitions {
		id := t.IdentityHash
		if _, seen := fresh[id]; !seen {
			fresh[id] = len(s.store.ThreadRoots(id)) == 0
		}
		s.store.RaiseVAANonce(id, t.VAANonce)
		if fresh[id] {
			s.store.AddThreadRoot(id, t.MessageCommitment)
			s.store.SetCstateRoot(id, t.EndRoot)
		}
	}
	if n := s.ledger.Len(); n > 0 {
		s.log.Info().Int("transitions", n).Int("identities", len(fresh)).Msg("state restored from ledger")
	}
}

// Engine returns the proof backend in use.
func (s *Service) Engine() proof.Engine {
	return s.engine
}

// CreateIdentity creates a random identity and registers it.
func (s *Service) CreateIdentity() (*CreatedIdentity, error) {
	m, err := identity.Create()
	if err != nil {
		return nil, err
	}
	hash := m.IdentityHash()

	s.mu.Lock()
	s.registry.Register(hash, m)
	s.mu.Unlock()

	s.metrics.RecordIdentityCreated()
	s.log.Info().Str("identity", logging.Short(hash)).Msg("identity created")
	s.log.Audit("identity_created", map[string]any{"identity_hash": hash})

	return &CreatedIdentity{
		IdentityHash: hash,
		PublicKey:    hex.EncodeToString(m.PublicKey()),
	}, nil
}

// Send runs the send pipeline under the service lock. On any error the store,
// registry and ledger are unchanged.
func (s *Service) Send(req SendRequest) (*SendResult, error) {
	switch {
	case req.SenderIdentityHash == "":
		s.metrics.RecordSend(metrics.StatusInvalid)
		return nil, fault.ErrEmptySender
	case req.ThreadID == "":
		s.metrics.RecordSend(metrics.StatusInvalid)
		return nil, fault.ErrEmptyThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &sendPipeline{svc: s, req: req, state: Init, now: s.now()}
	res, err := p.run()
	if err != nil {
		s.metrics.RecordSend(sendStatus(err))
		s.log.Warn().Err(err).
			Str("sender", logging.Short(req.SenderIdentityHash)).
			Str("thread", req.ThreadID).
			Msg("send aborted")
		s.log.Audit("send_aborted", map[string]any{
			"sender":    req.SenderIdentityHash,
			"thread_id": req.ThreadID,
			"error":     err.Error(),
		})
		return nil, err
	}

	threads, _ := s.store.Stats()
	s.metrics.RecordSend(metrics.StatusSent)
	s.metrics.SetSizes(threads, s.ledger.Len())
	s.log.Info().
		Str("sender", logging.Short(req.SenderIdentityHash)).
		Str("thread", req.ThreadID).
		Uint64("vaa_nonce", res.VAANonce).
		Str("cstate_root", logging.Short(res.CstateRoot)).
		Msg("message sent")
	s.log.Audit("message_sent", map[string]any{
		"sender":             req.SenderIdentityHash,
		"thread_id":          req.ThreadID,
		"vaa_nonce":          res.VAANonce,
		"message_commitment": res.MessageCommitment,
		"cstate_root":        res.CstateRoot,
	})
	return res, nil
}

func sendStatus(err error) string {
	switch {
	case fault.IsErrProofVerification(err):
		return metrics.StatusProofRejected
	case fault.IsErrCrypto(err):
		return metrics.StatusCryptoFailed
	case fault.IsErrInvalid(err):
		return metrics.StatusInvalid
	default:
		return metrics.StatusError
	}
}

// GetMessages returns the thread's stored messages in encrypted form.
func (s *Service) GetMessages(threadID string) []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Messages(threadID)
}

// ReadDecrypted decrypts the thread's messages. A message that fails to
// decrypt is skipped; the rest are still returned. A thread without a key
// yields an empty list.
func (s *Service) ReadDecrypted(threadID string) []DecryptedMessage {
	s.mu.Lock()
	key, ok := s.store.ThreadKey(threadID)
	msgs := s.store.Messages(threadID)
	s.mu.Unlock()

	out := make([]DecryptedMessage, 0, len(msgs))
	if !ok {
		return out
	}
	for _, m := range msgs {
		text, err := envelope.Decrypt(key, m.Ciphertext, m.Nonce)
		if err != nil {
			s.metrics.RecordDecryptFailure()
			s.log.Warn().Err(err).
				Str("thread", threadID).
				Str("commitment", logging.Short(m.MessageCommitment)).
				Msg("skipping undecryptable message")
			continue
		}
		out = append(out, DecryptedMessage{
			Sender:       m.SenderID,
			Plaintext:    text,
			Timestamp:    m.Timestamp,
			Commitment:   m.MessageCommitment,
			ProofPresent: m.EndCap != nil,
		})
	}
	return out
}

// GetCState returns the identity's current root and thread-root history.
func (s *Service) GetCState(identityHash string) CState {
	s.mu.Lock()
	defer s.mu.Unlock()
	roots := s.store.ThreadRoots(identityHash)
	return CState{
		CstateRoot:      s.store.CstateRoot(identityHash),
		ThreadRootCount: len(roots),
		ThreadRoots:     roots,
	}
}

// ThreadsFor lists the threads whose id has identityHash as one of its two
// ":"-separated parts, sorted by thread id.
func (s *Service) ThreadsFor(identityHash string) []ThreadSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ThreadSummary, 0)
	for _, id := range s.store.ThreadIDs() {
		parts := strings.Split(id, ":")
		if len(parts) != 2 {
			continue
		}
		var other string
		switch identityHash {
		case parts[0]:
			other = parts[1]
		case parts[1]:
			other = parts[0]
		default:
			continue
		}
		msgs := s.store.Messages(id)
		if len(msgs) == 0 {
			continue
		}
		out = append(out, ThreadSummary{
			ThreadID:          id,
			OtherIdentityHash: other,
			LastMessageTime:   msgs[len(msgs)-1].Timestamp,
			MessageCount:      len(msgs),
		})
	}
	return out
}

// Transitions returns the identity's ledger entries in append order.
func (s *Service) Transitions(identityHash string) []store.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.ledger.For(identityHash)
	out := make([]store.Transition, len(entries))
	for i, t := range entries {
		out[i] = *t
		out[i].EndCap = t.EndCap.Clone()
	}
	return out
}

// SaveLedger exports the transition ledger to path.
func (s *Service) SaveLedger(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SaveToFile(path)
}

// Stats is a point-in-time size summary.
type Stats struct {
	Threads     int
	Identities  int
	Registered  int
	Transitions int
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, identities := s.store.Stats()
	return Stats{
		Threads:     threads,
		Identities:  identities,
		Registered:  s.registry.Len(),
		Transitions: s.ledger.Len(),
	}
}

// CheckStore confirms that every identity's CSTATE root is the Merkle root of
// its thread-root history.
func (s *Service) CheckStore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.store.Identities() {
		if commitment.CstateRoot(s.store.ThreadRoots(id)) != s.store.CstateRoot(id) {
			return fmt.Errorf("cstate root of %s does not match its thread roots", logging.Short(id))
		}
	}
	return nil
}

// ProbeProofBackend runs a generate and verify round trip on fixed inputs.
func (s *Service) ProbeProofBackend() error {
	p, err := s.engine.Generate("health", strings.Repeat("0", 64), strings.Repeat("f", 64), []string{"probe"})
	if err != nil {
		return err
	}
	if !s.engine.Verify(p) {
		return fault.ErrProofRejected
	}
	return nil
}

// VerifyLatestTransition re-verifies the newest ledger entry.
func (s *Service) VerifyLatestTransition() error {
	s.mu.Lock()
	latest := s.ledger.Latest()
	s.mu.Unlock()
	if latest == nil {
		return nil
	}
	return store.VerifyTransition(s.engine, latest)
}

// VerifyLedger re-verifies every ledger entry.
func (s *Service) VerifyLedger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.VerifyAll(s.engine)
}

// ThreadID returns the canonical id for a thread between a and b: the two
// hashes in lexical order joined by ":". The service never enforces this form.
func ThreadID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}
