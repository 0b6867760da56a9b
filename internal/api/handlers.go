// handlers.go - HTTP handlers over the messaging service.

package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"zerotrace/internal/fault"
	"zerotrace/internal/health"
	"zerotrace/internal/messaging"
)

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case fault.IsErrInvalid(err), fault.IsErrEncoding(err):
		return http.StatusBadRequest
	case fault.IsErrNotFound(err):
		return http.StatusNotFound
	case fault.IsErrReplay(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) createIdentity(c *gin.Context) {
	id, err := s.svc.CreateIdentity()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, identityResponse{IdentityHash: id.IdentityHash, PublicKey: id.PublicKey})
}

func (s *Server) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", fault.ErrInvalidRequest, err))
		return
	}
	if !s.limiter.Allow(req.SenderIdentityHash) {
		s.metrics.RecordRateLimited("/send")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	res, err := s.svc.Send(messaging.SendRequest{
		ThreadID:           req.ThreadID,
		RecipientID:        req.RecipientID,
		Plaintext:          req.Plaintext,
		SenderIdentityHash: req.SenderIdentityHash,
		SenderSignature:    req.SenderSignature,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sendResponse{
		Status:        res.Status,
		ThreadID:      res.ThreadID,
		MessageID:     res.MessageTimestamp,
		CstateRoot:    res.CstateRoot,
		ProofVerified: res.ProofVerified,
		VAANonce:      res.VAANonce,
	})
}

func (s *Server) messages(c *gin.Context) {
	c.JSON(http.StatusOK, toMessageJSON(s.svc.GetMessages(c.Param("thread_id"))))
}

func (s *Server) read(c *gin.Context) {
	c.JSON(http.StatusOK, toReadItems(s.svc.ReadDecrypted(c.Param("thread_id"))))
}

func (s *Server) cstate(c *gin.Context) {
	cs := s.svc.GetCState(c.Param("identity_hash"))
	c.JSON(http.StatusOK, cstateResponse{
		CstateRoot:  cs.CstateRoot,
		ThreadCount: cs.ThreadRootCount,
		ThreadRoots: cs.ThreadRoots,
	})
}

func (s *Server) threads(c *gin.Context) {
	summaries := s.svc.ThreadsFor(c.Param("identity_hash"))
	out := make([]threadItem, len(summaries))
	for i, t := range summaries {
		out[i] = threadItem{
			ThreadID:          t.ThreadID,
			OtherIdentityHash: t.OtherIdentityHash,
			LastMessageTime:   t.LastMessageTime,
			MessageCount:      t.MessageCount,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) ledger(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Transitions(c.Param("identity_hash")))
}

func (s *Server) health(c *gin.Context) {
	if s.checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	report := s.checker.Check(c.Request.Context())
	code := http.StatusOK
	if report.Status == health.Unhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}
