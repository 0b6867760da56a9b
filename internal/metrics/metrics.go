// metrics.go - Prometheus metrics for the messaging core.
//
// Collector owns its own registry so that tests and multiple services in one
// process never collide on the default registerer. All methods are safe on a
// nil *Collector, which records nothing.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zerotrace"

// send outcomes
const (
	StatusSent          = "sent"
	StatusProofRejected = "proof_rejected"
	StatusCryptoFailed  = "crypto_failed"
	StatusInvalid       = "invalid"
	StatusError         = "error"
)

// Collector holds the registered metrics.
type Collector struct {
	registry *prometheus.Registry

	SendsTotal          *prometheus.CounterVec
	ProofSeconds        *prometheus.HistogramVec
	DecryptFailures     prometheus.Counter
	IdentitiesCreated   prometheus.Counter
	RateLimitedRequests *prometheus.CounterVec
	Threads             prometheus.Gauge
	Transitions         prometheus.Gauge
}

// New creates a collector with a fresh registry, including the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		SendsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "send",
				Name:      "total",
				Help:      "Send pipeline invocations by outcome",
			},
			[]string{"status"},
		),
		ProofSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proof",
				Name:      "duration_seconds",
				Help:      "Proof generation plus self-verification time",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"backend"},
		),
		DecryptFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "decrypt_failures_total",
			Help:      "Stored messages skipped on read because they failed to decrypt",
		}),
		IdentitiesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "created_total",
			Help:      "Identities created with fresh randomness",
		}),
		RateLimitedRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests refused by the rate limiter",
			},
			[]string{"route"},
		),
		Threads: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "threads",
			Help:      "Threads with at least one message",
		}),
		Transitions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transitions",
			Help:      "Finalized transitions recorded in the ledger",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordSend(status string) {
	if c == nil {
		return
	}
	c.SendsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordProof(backend string, d time.Duration) {
	if c == nil {
		return
	}
	c.ProofSeconds.WithLabelValues(backend).Observe(d.Seconds())
}

func (c *Collector) RecordDecryptFailure() {
	if c == nil {
		return
	}
	c.DecryptFailures.Inc()
}

func (c *Collector) RecordIdentityCreated() {
	if c == nil {
		return
	}
	c.IdentitiesCreated.Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	if c == nil {
		return
	}
	c.RateLimitedRequests.WithLabelValues(route).Inc()
}

// SetSizes updates the store gauges.
func (c *Collector) SetSizes(threads, transitions int) {
	if c == nil {
		return
	}
	c.Threads.Set(float64(threads))
	c.Transitions.Set(float64(transitions))
}
