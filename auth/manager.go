package auth

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-githubapp/core"
)

// Manager owns credential resolution: app-scoped calls get a fresh signed
// assertion, installation-scoped calls get a cached-or-exchanged
// installation token. The manager is the only writer of the token cache.
type Manager struct {
	signer    *AssertionSigner
	exchanger TokenExchanger
	cache     TokenCache
	logger    core.Logger

	flight singleflight.Group
}

type ManagerConfig struct {
	Signer    *AssertionSigner
	Exchanger TokenExchanger
	Cache     TokenCache
	Logger    core.Logger
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Signer == nil {
		return nil, core.BadConfigError("auth: assertion signer is required", nil)
	}
	if cfg.Exchanger == nil {
		return nil, core.BadConfigError("auth: token exchanger is required", nil)
	}
	if cfg.Cache == nil {
		return nil, core.BadConfigError("auth: token cache is required", nil)
	}
	return &Manager{
		signer:    cfg.Signer,
		exchanger: cfg.Exchanger,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
	}, nil
}

// ResolveCredential returns the bearer credential for a call. A nil
// installation id never touches the cache: installation-deletion events and
// app-level endpoints authenticate with the assertion alone.
func (m *Manager) ResolveCredential(ctx context.Context, installationID *int64) (core.Credential, error) {
	if m == nil {
		return core.Credential{}, core.BadConfigError("auth: credential manager is nil", nil)
	}
	if installationID == nil {
		return m.signer.SignAssertion()
	}

	id := *installationID
	if id <= 0 {
		return core.Credential{}, core.BadConfigError(
			"auth: installation id must be positive",
			map[string]any{"installation_id": id},
		)
	}

	key := core.InstallationTokenCacheKey(id)
	// Concurrent misses for the same installation collapse into one
	// exchange call; independent installations proceed in parallel.
	result, err, _ := m.flight.Do(key, func() (any, error) {
		return m.cache.GetOrCompute(ctx, key, func(ctx context.Context) (core.InstallationToken, error) {
			token, exchangeErr := m.exchanger.Exchange(ctx, id)
			if exchangeErr != nil {
				return core.InstallationToken{}, exchangeErr
			}
			m.logDebug("auth: installation token minted",
				"installation_id", id,
				"expires_at", token.ExpiresAt,
			)
			return token, nil
		})
	})
	if err != nil {
		return core.Credential{}, core.MapError(err)
	}

	token, ok := result.(core.InstallationToken)
	if !ok {
		return core.Credential{}, core.MapError(core.BadConfigError("auth: unexpected cache payload type", nil))
	}
	expiresAt := token.ExpiresAt
	return core.Credential{
		Kind:      core.CredentialKindInstallation,
		Token:     token.Token,
		ExpiresAt: &expiresAt,
	}, nil
}

func (m *Manager) logDebug(message string, args ...any) {
	if m == nil || m.logger == nil {
		return
	}
	m.logger.Debug(message, args...)
}

var _ core.CredentialResolver = (*Manager)(nil)
