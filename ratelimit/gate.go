package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-githubapp/core"
)

// Gate serializes and paces outbound calls. Two constraints apply: at most
// MaxInFlight calls hold a permit at once, and successive call starts are
// at least MinInterval apart. Callers queue in FIFO order and are never
// rejected; backpressure shows up as latency only.
type Gate struct {
	maxInFlight int
	minInterval time.Duration
	slots       *semaphore.Weighted
	pacer       *rate.Limiter
}

func NewGate(maxInFlight int, minInterval time.Duration) *Gate {
	if maxInFlight <= 0 {
		maxInFlight = core.DefaultMaxInFlight
	}
	if minInterval < 0 {
		minInterval = 0
	}
	gate := &Gate{
		maxInFlight: maxInFlight,
		minInterval: minInterval,
		slots:       semaphore.NewWeighted(int64(maxInFlight)),
	}
	if minInterval > 0 {
		gate.pacer = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return gate
}

// Admit suspends the caller until a slot is available under both
// constraints. The returned permit must be released when the call finishes,
// success or failure. A cancelled context abandons the wait; the in-flight
// work of other callers is unaffected.
func (g *Gate) Admit(ctx context.Context) (core.Permit, error) {
	if g == nil || g.slots == nil {
		return nil, core.BadConfigError("ratelimit: gate is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ratelimit: admission abandoned: %w", err)
	}
	if g.pacer != nil {
		if err := g.pacer.Wait(ctx); err != nil {
			g.slots.Release(1)
			return nil, fmt.Errorf("ratelimit: admission abandoned: %w", err)
		}
	}
	return &gatePermit{gate: g}, nil
}

// MaxInFlight returns the configured concurrency ceiling.
func (g *Gate) MaxInFlight() int {
	if g == nil {
		return 0
	}
	return g.maxInFlight
}

// MinInterval returns the configured minimum spacing between call starts.
func (g *Gate) MinInterval() time.Duration {
	if g == nil {
		return 0
	}
	return g.minInterval
}

type gatePermit struct {
	gate *Gate
	once sync.Once
}

func (p *gatePermit) Release() {
	if p == nil || p.gate == nil {
		return
	}
	p.once.Do(func() {
		p.gate.slots.Release(1)
	})
}

var _ core.AdmissionGate = (*Gate)(nil)
