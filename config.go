package githubapp

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"

	"github.com/goliatone/go-githubapp/core"
)

// ConfigProvider loads configuration from an external source on top of
// defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults core.Config) (core.Config, error)
}

// RawConfigLoader supplies raw configuration values (file, env, flags) to
// the cfgx provider.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, loaded, and runtime configuration into
// the effective config.
type OptionsResolver interface {
	Resolve(defaults core.Config, loaded core.Config, runtime core.Config) (core.Config, error)
}

func resolveConfig(builder appBuilder) (core.Config, error) {
	provider := builder.configProvider
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	resolver := builder.optionsResolver
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := provider.Load(context.Background(), defaults)
	if err != nil {
		return core.Config{}, err
	}
	return resolver.Resolve(defaults, loaded, builder.runtimeConfig)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults core.Config) (core.Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return core.Config{}, err
	}
	cfg, err := cfgx.Build[core.Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded < runtime with go-options and
// validates the merged result. Validation runs once, on the effective
// config, so partial layers never fail early.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults core.Config, loaded core.Config, runtime core.Config) (core.Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return core.Config{}, fmt.Errorf("githubapp: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return core.Config{}, fmt.Errorf("githubapp: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[core.Config](merged.Value,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return core.Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return core.Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg core.Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.AppID != 0 {
		layer["app_id"] = cfg.AppID
	}
	if includeZero || cfg.PrivateKey != "" {
		layer["private_key"] = cfg.PrivateKey
	}
	if includeZero || cfg.Host != "" {
		layer["host"] = cfg.Host
	}
	if includeZero || cfg.TokenTTLSeconds != 0 {
		layer["token_ttl_seconds"] = cfg.TokenTTLSeconds
	}
	if includeZero || cfg.Debug {
		layer["debug"] = cfg.Debug
	}
	if includeZero || cfg.RateLimit.MaxInFlight != 0 || cfg.RateLimit.MinIntervalMS != 0 {
		layer["rate_limit"] = map[string]any{
			"max_in_flight":   cfg.RateLimit.MaxInFlight,
			"min_interval_ms": cfg.RateLimit.MinIntervalMS,
		}
	}
	return layer
}
