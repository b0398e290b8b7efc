// Package githubapp assembles the authenticated API adapter: credential
// management, admission control, request execution, pagination, and the
// inbound webhook boundary.
package githubapp

import (
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-githubapp/auth"
	"github.com/goliatone/go-githubapp/core"
	"github.com/goliatone/go-githubapp/inbound"
	"github.com/goliatone/go-githubapp/ratelimit"
	"github.com/goliatone/go-githubapp/transport"
)

type Config = core.Config

type RateLimitConfig = core.RateLimitConfig

type Credential = core.Credential

type Client = core.Client

type TransportRequest = core.TransportRequest

type TransportResponse = core.TransportResponse

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// App is the process-wide adapter instance. All calls issued through its
// clients share one admission gate and one token cache.
type App struct {
	config     core.Config
	logger     core.Logger
	gate       *ratelimit.Gate
	tracker    *ratelimit.Tracker
	executor   *transport.Executor
	resolver   core.CredentialResolver
	dispatcher *inbound.Dispatcher
	supervisor *inbound.Supervisor
}

func New(cfg Config, options ...Option) (*App, error) {
	builder := defaultAppBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	resolved, err := resolveConfig(builder)
	if err != nil {
		return nil, core.MapError(err)
	}

	provider, logger := glog.Resolve("githubapp", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("githubapp"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	baseURL, err := resolved.APIBaseURL()
	if err != nil {
		return nil, core.MapError(err)
	}

	gate := ratelimit.NewGate(resolved.RateLimit.MaxInFlight, resolved.RateLimit.MinInterval())
	tracker := ratelimit.NewTracker()
	executor := transport.NewExecutor(transport.ExecutorConfig{
		Client:  builder.httpClient,
		Gate:    gate,
		Tracker: tracker,
		BaseURL: baseURL,
		Debug:   resolved.Debug,
		Logger:  logger,
	})

	signer, err := auth.NewAssertionSigner(auth.AssertionSignerConfig{
		AppID:      resolved.AppID,
		PrivateKey: resolved.PrivateKey,
		Now:        builder.now,
	})
	if err != nil {
		return nil, core.MapError(err)
	}

	exchanger := builder.exchanger
	if exchanger == nil {
		exchanger, err = auth.NewHTTPTokenExchanger(signer, executor, baseURL)
		if err != nil {
			return nil, core.MapError(err)
		}
	}

	cache := builder.tokenCache
	if cache == nil {
		cache, err = auth.NewRepositoryTokenCache(resolved.TokenTTL())
		if err != nil {
			return nil, core.MapError(err)
		}
	}

	resolver, err := auth.NewManager(auth.ManagerConfig{
		Signer:    signer,
		Exchanger: exchanger,
		Cache:     cache,
		Logger:    logger,
	})
	if err != nil {
		return nil, core.MapError(err)
	}

	supervisor := inbound.NewSupervisor(builder.supervisorBuffer, logger)
	supervisor.ContinueOnAuthError = builder.continueOnAuthError

	return &App{
		config:     resolved,
		logger:     logger,
		gate:       gate,
		tracker:    tracker,
		executor:   executor,
		resolver:   resolver,
		dispatcher: inbound.NewDispatcher(builder.verifier, logger),
		supervisor: supervisor,
	}, nil
}

// AsApp returns the app-scoped client: every call authenticates with a
// fresh signed assertion under the "Bearer" scheme.
func (a *App) AsApp() core.Client {
	return &appClient{app: a}
}

// AsInstallation returns a client scoped to one installation: calls
// authenticate with the cached-or-exchanged installation token under the
// "token" scheme.
func (a *App) AsInstallation(installationID int64) core.Client {
	return &installationClient{app: a, installationID: installationID}
}

// ClientForEvent picks the client variant matching a webhook event: events
// without a usable installation (installation deletions among them) get
// the app-scoped client.
func (a *App) ClientForEvent(event inbound.Event) core.Client {
	if event.InstallationID == nil || event.Name == "installation" && event.Action == "deleted" {
		return a.AsApp()
	}
	return a.AsInstallation(*event.InstallationID)
}

// Resolver exposes the credential manager.
func (a *App) Resolver() core.CredentialResolver {
	if a == nil {
		return nil
	}
	return a.resolver
}

// Executor exposes the request executor.
func (a *App) Executor() core.RequestExecutor {
	if a == nil {
		return nil
	}
	return a.executor
}

// Gate exposes the shared admission gate.
func (a *App) Gate() *ratelimit.Gate {
	if a == nil {
		return nil
	}
	return a.gate
}

// RateLimit returns the last-observed upstream quota snapshot.
func (a *App) RateLimit() ratelimit.Snapshot {
	if a == nil {
		return ratelimit.Snapshot{}
	}
	return a.tracker.Snapshot()
}

// Webhooks exposes the inbound event dispatcher.
func (a *App) Webhooks() *inbound.Dispatcher {
	if a == nil {
		return nil
	}
	return a.dispatcher
}

// Supervisor exposes the background dispatch supervisor.
func (a *App) Supervisor() *inbound.Supervisor {
	if a == nil {
		return nil
	}
	return a.supervisor
}

// Config returns the resolved configuration.
func (a *App) Config() Config {
	if a == nil {
		return Config{}
	}
	return a.config
}
