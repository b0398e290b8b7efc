package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_SpacingAndSingleFlight(t *testing.T) {
	const spacing = 20 * time.Millisecond
	const calls = 4
	gate := NewGate(1, spacing)

	var mu sync.Mutex
	var starts []time.Time
	var inFlight int32
	var maxInFlight int32

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			permit, err := gate.Admit(context.Background())
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			current := atomic.AddInt32(&inFlight, 1)
			for {
				observed := atomic.LoadInt32(&maxInFlight)
				if current <= observed || atomic.CompareAndSwapInt32(&maxInFlight, observed, current) {
					break
				}
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			permit.Release()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("expected at most 1 call in flight, observed %d", got)
	}
	if len(starts) != calls {
		t.Fatalf("expected %d admitted calls, got %d", calls, len(starts))
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		if gap < spacing-2*time.Millisecond {
			t.Fatalf("expected starts at least %s apart, call %d started %s after call %d", spacing, i, gap, i-1)
		}
	}
}

func TestGate_NeverRejectsQueuedCallers(t *testing.T) {
	gate := NewGate(1, 0)

	permit, err := gate.Admit(context.Background())
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	admitted := make(chan struct{})
	go func() {
		queued, queueErr := gate.Admit(context.Background())
		if queueErr != nil {
			t.Errorf("queued admit: %v", queueErr)
			return
		}
		queued.Release()
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatalf("queued caller admitted while slot held")
	case <-time.After(20 * time.Millisecond):
	}

	permit.Release()
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatalf("queued caller was never admitted")
	}
}

func TestGate_AbandonedWaitReturnsError(t *testing.T) {
	gate := NewGate(1, 0)
	permit, err := gate.Admit(context.Background())
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	defer permit.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := gate.Admit(ctx); err == nil {
		t.Fatalf("expected abandoned admission to error")
	}
}

func TestGate_PermitReleaseIsIdempotent(t *testing.T) {
	gate := NewGate(1, 0)
	permit, err := gate.Admit(context.Background())
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	permit.Release()
	permit.Release()

	next, err := gate.Admit(context.Background())
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	next.Release()
}
