package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrace/internal/commitment"
	"zerotrace/internal/fault"
	"zerotrace/internal/health"
	"zerotrace/internal/messaging"
	"zerotrace/internal/metrics"
	"zerotrace/internal/ratelimit"
	"zerotrace/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, opts Options) (*gin.Engine, *messaging.Service) {
	t.Helper()
	if opts.Service == nil {
		opts.Service = messaging.New(store.New(), nil)
	}
	return NewServer(opts).Router(), opts.Service
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSendAndReadFlow(t *testing.T) {
	router, _ := newTestRouter(t, Options{Metrics: metrics.New()})

	alice := decode[identityResponse](t, do(t, router, http.MethodPost, "/identity/create", nil))
	bob := decode[identityResponse](t, do(t, router, http.MethodPost, "/identity/create", nil))
	require.Len(t, alice.IdentityHash, 64)
	require.Len(t, alice.PublicKey, 64)
	thread := messaging.ThreadID(alice.IdentityHash, bob.IdentityHash)

	rec := do(t, router, http.MethodPost, "/send", sendRequest{
		ThreadID:           thread,
		RecipientID:        bob.IdentityHash,
		Plaintext:          "hello bob",
		SenderIdentityHash: alice.IdentityHash,
		SenderSignature:    "unused",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decode[sendResponse](t, rec)
	assert.Equal(t, "sent", sent.Status)
	assert.True(t, sent.ProofVerified)
	assert.Equal(t, thread, sent.ThreadID)

	msgs := decode[[]messageJSON](t, do(t, router, http.MethodGet, "/messages/"+thread, nil))
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].IV, 24)
	require.NotNil(t, msgs[0].EndCap)
	assert.Equal(t, uint64(1), msgs[0].EndCap.VAANonce)

	read := decode[[]readItem](t, do(t, router, http.MethodGet, "/read/"+thread, nil))
	require.Len(t, read, 1)
	assert.Equal(t, "hello bob", read[0].Text)
	assert.True(t, read[0].ProofPresent)

	cs := decode[cstateResponse](t, do(t, router, http.MethodGet, "/cstate/"+alice.IdentityHash, nil))
	assert.Equal(t, sent.CstateRoot, cs.CstateRoot)
	assert.Equal(t, 1, cs.ThreadCount)

	threads := decode[[]threadItem](t, do(t, router, http.MethodGet, "/threads/"+bob.IdentityHash, nil))
	require.Len(t, threads, 1)
	assert.Equal(t, alice.IdentityHash, threads[0].OtherIdentityHash)

	ledger := decode[[]store.Transition](t, do(t, router, http.MethodGet, "/ledger/"+alice.IdentityHash, nil))
	require.Len(t, ledger, 1)
	assert.Equal(t, commitment.EmptyRoot, ledger[0].StartRoot)
	assert.Equal(t, sent.CstateRoot, ledger[0].EndRoot)

	rec = do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `zerotrace_send_total{status="sent"} 1`)
}

func TestEmptyResults(t *testing.T) {
	router, _ := newTestRouter(t, Options{})

	rec := do(t, router, http.MethodGet, "/messages/none", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, router, http.MethodGet, "/read/none", nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	cs := decode[cstateResponse](t, do(t, router, http.MethodGet, "/cstate/nobody", nil))
	assert.Equal(t, commitment.EmptyRoot, cs.CstateRoot)
	assert.Equal(t, 0, cs.ThreadCount)
}

func TestSendRejectsBadRequests(t *testing.T) {
	router, _ := newTestRouter(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/send", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/send", sendRequest{ThreadID: "a:b", Plaintext: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "sender identity hash is required")
}

func TestSendRateLimited(t *testing.T) {
	m := metrics.New()
	router, _ := newTestRouter(t, Options{Limiter: ratelimit.NewPerIdentity(0.001, 1), Metrics: m})
	body := sendRequest{ThreadID: "a:b", Plaintext: "x", SenderIdentityHash: "a"}

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/send", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, http.MethodPost, "/send", body).Code)

	body.SenderIdentityHash = "b"
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/send", body).Code)
}

func TestHealth(t *testing.T) {
	checker := health.NewChecker("test")
	checker.Register("store", func(context.Context) error { return nil })
	router, _ := newTestRouter(t, Options{Health: checker})

	rec := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.Healthy, decode[health.Report](t, rec).Status)

	checker.Register("proof_backend", func(context.Context) error { return errors.New("down") })
	rec = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, Options{})
	rec := do(t, router, http.MethodOptions, "/send", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fault.ErrEmptyThread, http.StatusBadRequest},
		{fault.ErrBadNonce, http.StatusBadRequest},
		{fault.ErrIdentityNotFound, http.StatusNotFound},
		{fault.ErrNonceReplayed, http.StatusConflict},
		{fault.ErrProofRejected, http.StatusInternalServerError},
		{fault.ErrDecryptFailed, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
