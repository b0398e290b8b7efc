package githubapp

import (
	"time"

	"github.com/goliatone/go-githubapp/auth"
	"github.com/goliatone/go-githubapp/core"
	"github.com/goliatone/go-githubapp/inbound"
)

type appBuilder struct {
	runtimeConfig       core.Config
	logger              core.Logger
	loggerProvider      core.LoggerProvider
	httpClient          core.HTTPDoer
	tokenCache          auth.TokenCache
	exchanger           auth.TokenExchanger
	verifier            inbound.Verifier
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	now                 func() time.Time
	supervisorBuffer    int
	continueOnAuthError bool
}

func defaultAppBuilder(runtime core.Config) appBuilder {
	return appBuilder{
		runtimeConfig:       runtime,
		configProvider:      NewCfgxConfigProvider(nil),
		optionsResolver:     GoOptionsResolver{},
		continueOnAuthError: true,
	}
}

type Option func(*appBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *appBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *appBuilder) {
		b.loggerProvider = provider
	}
}

// WithHTTPClient replaces the transport's HTTP client. Timeouts on the
// underlying call belong to this client.
func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *appBuilder) {
		b.httpClient = client
	}
}

func WithTokenCache(cache auth.TokenCache) Option {
	return func(b *appBuilder) {
		b.tokenCache = cache
	}
}

func WithTokenExchanger(exchanger auth.TokenExchanger) Option {
	return func(b *appBuilder) {
		b.exchanger = exchanger
	}
}

func WithWebhookVerifier(verifier inbound.Verifier) Option {
	return func(b *appBuilder) {
		b.verifier = verifier
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *appBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *appBuilder) {
		b.optionsResolver = resolver
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *appBuilder) {
		b.now = now
	}
}

func WithSupervisorBuffer(buffer int) Option {
	return func(b *appBuilder) {
		b.supervisorBuffer = buffer
	}
}

// WithAbortOnAuthError makes the supervisor refuse new background work
// after an authentication failure instead of logging and continuing.
func WithAbortOnAuthError() Option {
	return func(b *appBuilder) {
		b.continueOnAuthError = false
	}
}
