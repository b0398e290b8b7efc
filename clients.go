package githubapp

import (
	"context"

	"github.com/goliatone/go-githubapp/core"
)

// appClient and installationClient are the only core.Client variants: the
// authentication scope is fixed at construction, never carried as loose
// fields on a dynamic object.

type appClient struct {
	app *App
}

func (c *appClient) Credential(ctx context.Context) (core.Credential, error) {
	if c == nil || c.app == nil || c.app.resolver == nil {
		return core.Credential{}, core.BadConfigError("githubapp: app client is not configured", nil)
	}
	return c.app.resolver.ResolveCredential(ctx, nil)
}

func (c *appClient) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	cred, err := c.Credential(ctx)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return c.app.executor.Execute(ctx, req, cred)
}

type installationClient struct {
	app            *App
	installationID int64
}

func (c *installationClient) Credential(ctx context.Context) (core.Credential, error) {
	if c == nil || c.app == nil || c.app.resolver == nil {
		return core.Credential{}, core.BadConfigError("githubapp: installation client is not configured", nil)
	}
	id := c.installationID
	return c.app.resolver.ResolveCredential(ctx, &id)
}

func (c *installationClient) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	cred, err := c.Credential(ctx)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return c.app.executor.Execute(ctx, req, cred)
}

var (
	_ core.Client = (*appClient)(nil)
	_ core.Client = (*installationClient)(nil)
)
