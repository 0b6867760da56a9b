// pipeline.go - The send pipeline.
//
// A send moves through Init, Encrypted, Committed, Proved and Finalized, or
// stops in Aborted. Every step before finalize works on values it owns or on
// copies taken from the store; finalize is the only step that writes.

package messaging

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"zerotrace/internal/commitment"
	"zerotrace/internal/envelope"
	"zerotrace/internal/fault"
	"zerotrace/internal/identity"
	"zerotrace/internal/logging"
	"zerotrace/internal/proof"
	"zerotrace/internal/store"
)

// State of a send pipeline run.
type State int

const (
	Init State = iota
	Encrypted
	Committed
	Proved
	Finalized
	Aborted
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Encrypted:
		return "encrypted"
	case Committed:
		return "committed"
	case Proved:
		return "proved"
	case Finalized:
		return "finalized"
	case Aborted:
		return "aborted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

const blobAddressPrefix = "da://encrypted/"

// sendPipeline carries one send from Init to Finalized.
type sendPipeline struct {
	svc   *Service
	req   SendRequest
	state State
	now   time.Time

	sender        *identity.Manager
	senderCreated bool
	key           envelope.Key
	keyCreated    bool

	ciphertext []byte
	nonce      []byte

	messageCommitment string
	startRoot         string
	candidate         commitment.StateCommitment

	cfc      *proof.CFCProof
	vaaNonce uint64
	endCap   *proof.EndCap
}

func (p *sendPipeline) abort(err error) error {
	p.state = Aborted
	return err
}

func (p *sendPipeline) run() (*SendResult, error) {
	steps := []func() error{
		p.encrypt,
		p.commit,
		p.prove,
		p.finalize,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, p.abort(err)
		}
	}
	return &SendResult{
		Status:            "sent",
		ThreadID:          p.req.ThreadID,
		MessageTimestamp:  p.now.Unix(),
		CstateRoot:        p.candidate.CstateRoot,
		ProofVerified:     true,
		VAANonce:          p.vaaNonce,
		MessageCommitment: p.messageCommitment,
		BlobAddress:       p.endCap.EncryptedBlobAddress,
	}, nil
}

// encrypt resolves the sender and thread key and seals the plaintext.
func (p *sendPipeline) encrypt() error {
	st := p.svc.store

	m, created, err := p.svc.registry.Resolve(p.req.SenderIdentityHash)
	if err != nil {
		return err
	}
	p.sender, p.senderCreated = m, created

	if k, ok := st.ThreadKey(p.req.ThreadID); ok {
		p.key = k
	} else {
		if p.key, err = envelope.NewKey(); err != nil {
			return err
		}
		p.keyCreated = true
	}

	p.ciphertext, p.nonce, err = envelope.Encrypt(p.key, p.req.Plaintext)
	if err != nil {
		return err
	}
	p.state = Encrypted
	return nil
}

// commit derives the message commitment and the candidate end root.
func (p *sendPipeline) commit() error {
	st := p.svc.store
	sender := p.req.SenderIdentityHash

	p.messageCommitment = commitment.MessageCommitment(
		sender, p.req.ThreadID, p.nonce, commitment.HashPlaintext(p.req.Plaintext))
	p.startRoot = st.CstateRoot(sender)
	p.candidate = commitment.NewStateCommitment(
		p.req.ThreadID, p.messageCommitment, st.ThreadRoots(sender), p.now)
	p.state = Committed
	return nil
}

// prove generates the transition proof, self-verifies it and assembles the
// EndCap. The vaa nonce is only peeked here; it is issued in finalize.
func (p *sendPipeline) prove() error {
	svc := p.svc
	sender := p.req.SenderIdentityHash

	start := time.Now()
	cfc, err := proof.ForSendMessage(svc.engine, p.startRoot, p.candidate.CstateRoot, p.messageCommitment)
	if err != nil {
		return err
	}
	verified := svc.engine.Verify(cfc)
	svc.metrics.RecordProof(svc.engine.Name(), time.Since(start))
	if !verified {
		return fmt.Errorf("%w: %s transition for %s", fault.ErrProofRejected, proof.SendMessageCFC, logging.Short(sender))
	}
	p.cfc = cfc

	p.vaaNonce = svc.store.PeekVAANonce(sender)
	if svc.ledger.HasNonce(sender, p.vaaNonce) {
		return fmt.Errorf("%w: %s/%d", fault.ErrNonceReplayed, logging.Short(sender), p.vaaNonce)
	}
	signature := hex.EncodeToString(p.sender.Sign(EndCapMessage(p.messageCommitment, p.vaaNonce)))
	blob := blobAddressPrefix + svc.newBlobID()

	p.endCap, err = proof.CreateEndCap(cfc, blob, p.vaaNonce, signature)
	if err != nil {
		return err
	}
	p.state = Proved
	return nil
}

// finalize persists the transition. The nonce check and the ledger append
// come before any store write, so a failure leaves everything unchanged.
func (p *sendPipeline) finalize() error {
	svc := p.svc
	st := svc.store
	sender := p.req.SenderIdentityHash

	if n := st.PeekVAANonce(sender); n != p.vaaNonce {
		return fmt.Errorf("%w: %s/%d, next is %d", fault.ErrNonceReplayed, logging.Short(sender), p.vaaNonce, n)
	}
	err := svc.ledger.Append(&store.Transition{
		IdentityHash:      sender,
		VAANonce:          p.vaaNonce,
		ThreadID:          p.req.ThreadID,
		MessageCommitment: p.messageCommitment,
		StartRoot:         p.startRoot,
		EndRoot:           p.candidate.CstateRoot,
		BlobAddress:       p.endCap.EncryptedBlobAddress,
		Timestamp:         p.now.Unix(),
		EndCap:            p.endCap.Clone(),
	})
	if err != nil {
		return err
	}

	if p.senderCreated {
		svc.registry.Register(sender, p.sender)
	}
	if p.keyCreated {
		st.SetThreadKey(p.req.ThreadID, p.key)
	}
	st.NextVAANonce(sender)
	st.SetCstateRoot(sender, p.candidate.CstateRoot)
	st.AddThreadRoot(sender, p.messageCommitment)
	st.AppendMessage(store.Message{
		ThreadID:          p.req.ThreadID,
		SenderID:          sender,
		Ciphertext:        p.ciphertext,
		Nonce:             p.nonce,
		Timestamp:         p.now.Unix(),
		MessageCommitment: p.messageCommitment,
		EndCap:            p.endCap,
	})
	p.state = Finalized
	return nil
}

// EndCapMessage is the byte string signed into an EndCap.
func EndCapMessage(messageCommitment string, vaaNonce uint64) []byte {
	return []byte(messageCommitment + ":" + strconv.FormatUint(vaaNonce, 10))
}

func newBlobID() string {
	return uuid.NewString()
}
