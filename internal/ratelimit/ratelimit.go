// ratelimit.go - Per-identity token buckets.

package ratelimit

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// PerIdentity keeps one token bucket per key. A zero or negative rate
// disables limiting.
type PerIdentity struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewPerIdentity allows perSecond events per key with the given burst.
func NewPerIdentity(perSecond float64, burst int) *PerIdentity {
	if burst < 1 {
		burst = 1
	}
	return &PerIdentity{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (p *PerIdentity) limiter(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = l
	}
	return l
}

// Allow consumes a token for key if one is available.
func (p *PerIdentity) Allow(key string) bool {
	if p == nil || p.limit <= 0 {
		return true
	}
	return p.limiter(key).Allow()
}

// Tokens reports the tokens currently available to key. Without a limit
// it is unbounded.
func (p *PerIdentity) Tokens(key string) float64 {
	if p == nil || p.limit <= 0 {
		return math.Inf(1)
	}
	p.mu.Lock()
	l, ok := p.limiters[key]
	p.mu.Unlock()
	if !ok {
		return float64(p.burst)
	}
	return l.Tokens()
}

// Reset forgets the bucket for key.
func (p *PerIdentity) Reset(key string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.limiters, key)
	p.mu.Unlock()
}
