package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-githubapp/core"
)

type countingExchanger struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	now   func() time.Time
}

func (e *countingExchanger) Exchange(_ context.Context, installationID int64) (core.InstallationToken, error) {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	e.calls++
	count := e.calls
	e.mu.Unlock()
	return core.InstallationToken{
		Token:     fmt.Sprintf("ghs_inst%d_v%d", installationID, count),
		ExpiresAt: e.now().Add(time.Hour),
	}, nil
}

func (e *countingExchanger) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type trackingCache struct {
	inner TokenCache
	reads int32
}

func (c *trackingCache) GetOrCompute(
	ctx context.Context,
	key string,
	factory func(ctx context.Context) (core.InstallationToken, error),
) (core.InstallationToken, error) {
	atomic.AddInt32(&c.reads, 1)
	return c.inner.GetOrCompute(ctx, key, factory)
}

func newTestManager(t *testing.T, cache TokenCache, exchanger TokenExchanger) *Manager {
	t.Helper()
	_, keyPEM := testRSAKey(t)
	signer, err := NewAssertionSigner(AssertionSignerConfig{AppID: 42, PrivateKey: keyPEM})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	manager, err := NewManager(ManagerConfig{Signer: signer, Exchanger: exchanger, Cache: cache})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager
}

func TestManager_ResolvesAppCredentialWithoutCacheLookup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	cache := &trackingCache{inner: NewMemoryTokenCache(time.Minute)}
	exchanger := &countingExchanger{now: func() time.Time { return now }}
	manager := newTestManager(t, cache, exchanger)

	cred, err := manager.ResolveCredential(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve app credential: %v", err)
	}
	if cred.Kind != core.CredentialKindApp {
		t.Fatalf("expected app credential, got %q", cred.Kind)
	}
	if atomic.LoadInt32(&cache.reads) != 0 {
		t.Fatalf("app-scoped resolution must not touch the token cache")
	}
	if exchanger.count() != 0 {
		t.Fatalf("app-scoped resolution must not exchange tokens")
	}
}

func TestManager_CachesInstallationTokenWithinTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	cache := NewMemoryTokenCache(time.Minute)
	cache.Now = func() time.Time { return now }
	exchanger := &countingExchanger{now: func() time.Time { return now }}
	manager := newTestManager(t, cache, exchanger)

	id := int64(777)
	first, err := manager.ResolveCredential(context.Background(), &id)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := manager.ResolveCredential(context.Background(), &id)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if exchanger.count() != 1 {
		t.Fatalf("expected exactly one exchange call, got %d", exchanger.count())
	}
	if first.Token != second.Token {
		t.Fatalf("expected identical cached token, got %q vs %q", first.Token, second.Token)
	}
	if first.Kind != core.CredentialKindInstallation {
		t.Fatalf("expected installation credential, got %q", first.Kind)
	}
}

func TestManager_ExpiredCacheEntryBehavesAsMiss(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	cache := NewMemoryTokenCache(time.Minute)
	cache.Now = func() time.Time { return now }
	exchanger := &countingExchanger{now: func() time.Time { return now }}
	manager := newTestManager(t, cache, exchanger)

	id := int64(777)
	first, err := manager.ResolveCredential(context.Background(), &id)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	now = now.Add(time.Minute + time.Second)

	second, err := manager.ResolveCredential(context.Background(), &id)
	if err != nil {
		t.Fatalf("post-ttl resolve: %v", err)
	}
	if exchanger.count() != 2 {
		t.Fatalf("expected a new exchange after ttl, got %d calls", exchanger.count())
	}
	if first.Token == second.Token {
		t.Fatalf("expected a different token after ttl expiry")
	}
}

func TestManager_IndependentInstallationsUseSeparateEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	cache := NewMemoryTokenCache(time.Minute)
	cache.Now = func() time.Time { return now }
	exchanger := &countingExchanger{now: func() time.Time { return now }}
	manager := newTestManager(t, cache, exchanger)

	first := int64(1)
	second := int64(2)
	credOne, err := manager.ResolveCredential(context.Background(), &first)
	if err != nil {
		t.Fatalf("resolve installation 1: %v", err)
	}
	credTwo, err := manager.ResolveCredential(context.Background(), &second)
	if err != nil {
		t.Fatalf("resolve installation 2: %v", err)
	}
	if credOne.Token == credTwo.Token {
		t.Fatalf("expected per-installation tokens")
	}
	if exchanger.count() != 2 {
		t.Fatalf("expected one exchange per installation, got %d", exchanger.count())
	}
}

func TestManager_ConcurrentMissesCollapseIntoOneExchange(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	cache := NewMemoryTokenCache(time.Minute)
	cache.Now = func() time.Time { return now }
	release := make(chan struct{})
	exchanger := &countingExchanger{now: func() time.Time { return now }, block: release}
	manager := newTestManager(t, cache, exchanger)

	id := int64(9)
	const resolvers = 8
	var wg sync.WaitGroup
	tokens := make([]string, resolvers)
	errs := make([]error, resolvers)
	for i := range resolvers {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			cred, err := manager.ResolveCredential(context.Background(), &id)
			tokens[slot] = cred.Token
			errs[slot] = err
		}(i)
	}

	// Give every resolver time to join the in-flight group before the
	// single exchange is allowed to finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for slot, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d failed: %v", slot, err)
		}
	}
	if exchanger.count() != 1 {
		t.Fatalf("expected concurrent misses to collapse into one exchange, got %d", exchanger.count())
	}
	for slot := 1; slot < resolvers; slot++ {
		if tokens[slot] != tokens[0] {
			t.Fatalf("expected every resolver to observe the same token")
		}
	}
}

func TestManager_RejectsNonPositiveInstallationID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	manager := newTestManager(t, NewMemoryTokenCache(time.Minute), &countingExchanger{now: func() time.Time { return now }})

	id := int64(0)
	if _, err := manager.ResolveCredential(context.Background(), &id); err == nil {
		t.Fatalf("expected rejection of non-positive installation id")
	}
}
