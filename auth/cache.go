package auth

import (
	"context"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-githubapp/core"
)

// TokenCache is the expiring-map contract for installation tokens: a read
// after the entry's deadline behaves as a miss and the factory runs again.
type TokenCache interface {
	GetOrCompute(ctx context.Context, key string, factory func(ctx context.Context) (core.InstallationToken, error)) (core.InstallationToken, error)
}

// RepositoryTokenCache backs the token cache with a go-repository-cache
// service. This is the production implementation.
type RepositoryTokenCache struct {
	service repositorycache.CacheService
}

func NewRepositoryTokenCache(ttl time.Duration) (*RepositoryTokenCache, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, core.BadConfigError("auth: build token cache service: "+err.Error(), map[string]any{
			"ttl": ttl.String(),
		})
	}
	return &RepositoryTokenCache{service: service}, nil
}

func (c *RepositoryTokenCache) GetOrCompute(
	ctx context.Context,
	key string,
	factory func(ctx context.Context) (core.InstallationToken, error),
) (core.InstallationToken, error) {
	if c == nil || c.service == nil {
		return core.InstallationToken{}, core.BadConfigError("auth: token cache is not configured", nil)
	}
	return repositorycache.GetOrFetch(ctx, c.service, key, factory)
}

// MemoryTokenCache is a deterministic expiring map with an injectable
// clock. Each key holds at most the most recent successful computation.
type MemoryTokenCache struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryTokenEntry
}

type memoryTokenEntry struct {
	token    core.InstallationToken
	deadline time.Time
}

func NewMemoryTokenCache(ttl time.Duration) *MemoryTokenCache {
	return &MemoryTokenCache{
		TTL:     ttl,
		Now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]memoryTokenEntry{},
	}
}

func (c *MemoryTokenCache) GetOrCompute(
	ctx context.Context,
	key string,
	factory func(ctx context.Context) (core.InstallationToken, error),
) (core.InstallationToken, error) {
	if c == nil {
		return core.InstallationToken{}, core.BadConfigError("auth: token cache is nil", nil)
	}
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.deadline.After(now) {
		return entry.token, nil
	}

	token, err := factory(ctx)
	if err != nil {
		return core.InstallationToken{}, err
	}

	c.mu.Lock()
	c.entries[key] = memoryTokenEntry{token: token, deadline: now.Add(c.ttl())}
	c.mu.Unlock()
	return token, nil
}

func (c *MemoryTokenCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return time.Duration(core.DefaultTokenTTLSeconds) * time.Second
}

func (c *MemoryTokenCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	_ TokenCache = (*RepositoryTokenCache)(nil)
	_ TokenCache = (*MemoryTokenCache)(nil)
)
