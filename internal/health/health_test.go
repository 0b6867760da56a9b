package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestCheckerAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   Status
	}{
		{"empty", nil, Healthy},
		{"all healthy", map[string]CheckFunc{"store": ok, "ledger": ok}, Healthy},
		{"one degraded", map[string]CheckFunc{
			"store":  ok,
			"ledger": func(context.Context) error { return MarkDegraded(errors.New("slow")) },
		}, Degraded},
		{"unhealthy wins", map[string]CheckFunc{
			"store":  func(context.Context) error { return errors.New("down") },
			"ledger": func(context.Context) error { return MarkDegraded(errors.New("slow")) },
		}, Unhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			r := c.Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Len(t, r.Components, len(tt.checks))
			assert.Equal(t, "test", r.Version)
		})
	}
}

func TestCheckerComponentDetail(t *testing.T) {
	c := NewChecker("v")
	c.Register("proof_backend", func(context.Context) error { return errors.New("round trip failed") })
	c.Register("store", ok)

	r := c.Check(context.Background())
	require.Len(t, r.Components, 2)
	assert.Equal(t, "proof_backend", r.Components[0].Name)
	assert.Equal(t, Unhealthy, r.Components[0].Status)
	assert.Equal(t, "round trip failed", r.Components[0].Message)
	assert.Equal(t, "store", r.Components[1].Name)
	assert.Equal(t, "OK", r.Components[1].Message)
}

func TestMarkDegradedNil(t *testing.T) {
	assert.NoError(t, MarkDegraded(nil))
}
