// health.go - Component health checks for the zerotrace daemon.

package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// CheckFunc probes one component. Returning an error wrapped with
// MarkDegraded reports the component as degraded instead of unhealthy.
type CheckFunc func(ctx context.Context) error

type degradedError struct{ err error }

func (d degradedError) Error() string { return d.err.Error() }
func (d degradedError) Unwrap() error { return d.err }

// MarkDegraded flags err as a degraded, still serving, condition.
func MarkDegraded(err error) error {
	if err == nil {
		return nil
	}
	return degradedError{err}
}

// ComponentHealth is the last result for one component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// Report is the overall system health.
type Report struct {
	Status     Status            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
}

// Checker runs the registered component checks.
type Checker struct {
	mu         sync.Mutex
	components map[string]*ComponentHealth
	checks     map[string]CheckFunc
	started    time.Time
	version    string
}

func NewChecker(version string) *Checker {
	return &Checker{
		components: make(map[string]*ComponentHealth),
		checks:     make(map[string]CheckFunc),
		started:    time.Now(),
		version:    version,
	}
}

// Register adds or replaces a component check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components[name] = &ComponentHealth{
		Name:      name,
		Status:    Healthy,
		Message:   "registered",
		LastCheck: time.Now(),
	}
	c.checks[name] = check
}

// Check runs every registered check and returns the aggregated report.
// Components are listed by name.
func (c *Checker) Check(ctx context.Context) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, component := range c.components {
		start := time.Now()
		err := c.checks[name](ctx)
		component.Latency = time.Since(start)
		component.LastCheck = time.Now()

		var degraded degradedError
		switch {
		case err == nil:
			component.Status = Healthy
			component.Message = "OK"
		case errors.As(err, &degraded):
			component.Status = Degraded
			component.Message = err.Error()
		default:
			component.Status = Unhealthy
			component.Message = err.Error()
		}
	}
	return c.report()
}

func (c *Checker) report() *Report {
	overall := Healthy
	components := make([]ComponentHealth, 0, len(c.components))
	for _, component := range c.components {
		if component.Status == Unhealthy {
			overall = Unhealthy
		} else if component.Status == Degraded && overall == Healthy {
			overall = Degraded
		}
		components = append(components, *component)
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	return &Report{
		Status:     overall,
		Timestamp:  time.Now(),
		Components: components,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Version:    c.version,
	}
}
