// types.go - JSON request and response bodies.

package api

import (
	"zerotrace/internal/messaging"
	"zerotrace/internal/proof"
	"zerotrace/internal/store"
)

type identityResponse struct {
	IdentityHash string `json:"identity_hash"`
	PublicKey    string `json:"public_key"`
}

type sendRequest struct {
	ThreadID           string `json:"thread_id"`
	RecipientID        string `json:"recipient_id"`
	Plaintext          string `json:"plaintext"`
	SenderIdentityHash string `json:"sender_identity_hash"`
	SenderSignature    string `json:"sender_signature"`
}

type sendResponse struct {
	Status        string `json:"status"`
	ThreadID      string `json:"thread_id"`
	MessageID     int64  `json:"message_id"`
	CstateRoot    string `json:"cstate_root"`
	ProofVerified bool   `json:"proof_verified"`
	VAANonce      uint64 `json:"vaa_nonce"`
}

// messageJSON is a stored message; ciphertext and iv are base64 by way of
// encoding/json's []byte handling.
type messageJSON struct {
	ThreadID          string        `json:"thread_id"`
	SenderID          string        `json:"sender_id"`
	Ciphertext        []byte        `json:"ciphertext"`
	IV                []byte        `json:"iv"`
	Timestamp         int64         `json:"timestamp"`
	MessageCommitment string        `json:"message_commitment"`
	EndCap            *proof.EndCap `json:"endcap"`
}

func toMessageJSON(msgs []store.Message) []messageJSON {
	out := make([]messageJSON, len(msgs))
	for i, m := range msgs {
		out[i] = messageJSON{
			ThreadID:          m.ThreadID,
			SenderID:          m.SenderID,
			Ciphertext:        m.Ciphertext,
			IV:                m.Nonce,
			Timestamp:         m.Timestamp,
			MessageCommitment: m.MessageCommitment,
			EndCap:            m.EndCap,
		}
	}
	return out
}

type readItem struct {
	Sender       string `json:"sender"`
	Text         string `json:"text"`
	Timestamp    int64  `json:"timestamp"`
	Commitment   string `json:"commitment"`
	ProofPresent bool   `json:"proof_present"`
}

func toReadItems(msgs []messaging.DecryptedMessage) []readItem {
	out := make([]readItem, len(msgs))
	for i, m := range msgs {
		out[i] = readItem{
			Sender:       m.Sender,
			Text:         m.Plaintext,
			Timestamp:    m.Timestamp,
			Commitment:   m.Commitment,
			ProofPresent: m.ProofPresent,
		}
	}
	return out
}

type cstateResponse struct {
	CstateRoot  string   `json:"cstate_root"`
	ThreadCount int      `json:"thread_count"`
	ThreadRoots []string `json:"thread_roots"`
}

type threadItem struct {
	ThreadID          string `json:"thread_id"`
	OtherIdentityHash string `json:"other_identity_hash"`
	LastMessageTime   int64  `json:"last_message_time"`
	MessageCount      int    `json:"message_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
