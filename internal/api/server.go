// server.go - HTTP surface of the zerotrace daemon.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zerotrace/internal/health"
	"zerotrace/internal/logging"
	"zerotrace/internal/messaging"
	"zerotrace/internal/metrics"
	"zerotrace/internal/ratelimit"
)

// Server routes HTTP requests to the messaging service.
type Server struct {
	svc       *messaging.Service
	limiter   *ratelimit.PerIdentity
	metrics   *metrics.Collector
	checker   *health.Checker
	log       *logging.Logger
	staticDir string
}

// Options are the collaborators of a Server. Only Service is required.
type Options struct {
	Service   *messaging.Service
	Limiter   *ratelimit.PerIdentity
	Metrics   *metrics.Collector
	Health    *health.Checker
	Logger    *logging.Logger
	StaticDir string
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		svc:       opts.Service,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		checker:   opts.Health,
		log:       log,
		staticDir: opts.StaticDir,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors())

	router.POST("/identity/create", s.createIdentity)
	router.POST("/send", s.send)
	router.GET("/messages/:thread_id", s.messages)
	router.GET("/read/:thread_id", s.read)
	router.GET("/cstate/:identity_hash", s.cstate)
	router.GET("/threads/:identity_hash", s.threads)
	router.GET("/ledger/:identity_hash", s.ledger)
	router.GET("/health", s.health)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.staticDir != "" {
		router.StaticFS("/ui", http.Dir(s.staticDir))
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/ui/")
		})
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// cors allows any origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
