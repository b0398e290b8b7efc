package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-githubapp/core"
)

// TokenExchanger trades a fresh app assertion for an installation-scoped
// access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, installationID int64) (core.InstallationToken, error)
}

// HTTPTokenExchanger calls the platform's token-exchange endpoint through
// the request executor, so exchange calls share admission control with
// every other outbound call.
type HTTPTokenExchanger struct {
	Signer   *AssertionSigner
	Executor core.RequestExecutor
	BaseURL  string
}

func NewHTTPTokenExchanger(signer *AssertionSigner, executor core.RequestExecutor, baseURL string) (*HTTPTokenExchanger, error) {
	if signer == nil {
		return nil, core.BadConfigError("auth: assertion signer is required", nil)
	}
	if executor == nil {
		return nil, core.BadConfigError("auth: request executor is required", nil)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, core.BadConfigError("auth: token exchange base url is required", nil)
	}
	return &HTTPTokenExchanger{Signer: signer, Executor: executor, BaseURL: baseURL}, nil
}

func (e *HTTPTokenExchanger) Exchange(ctx context.Context, installationID int64) (core.InstallationToken, error) {
	if e == nil || e.Signer == nil || e.Executor == nil {
		return core.InstallationToken{}, core.BadConfigError("auth: token exchanger is not configured", nil)
	}
	if installationID <= 0 {
		return core.InstallationToken{}, core.BadConfigError(
			"auth: installation id must be positive",
			map[string]any{"installation_id": installationID},
		)
	}

	assertion, err := e.Signer.SignAssertion()
	if err != nil {
		return core.InstallationToken{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", e.BaseURL, installationID)
	res, err := e.Executor.Execute(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    url,
		Metadata: map[string]any{
			"operation":       "token_exchange",
			"installation_id": installationID,
		},
	}, assertion)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryAuth {
			return core.InstallationToken{}, core.AuthenticationError(
				"auth: platform rejected the app assertion; if the PEM file is intact this is a key mismatch, verify the key belongs to app "+
					strconv.FormatInt(e.Signer.AppID(), 10)+
					", otherwise re-download the key (malformed private key)",
				map[string]any{"installation_id": installationID},
			)
		}
		return core.InstallationToken{}, err
	}

	var token core.InstallationToken
	if err := json.Unmarshal(res.Body, &token); err != nil {
		return core.InstallationToken{}, core.TransportError(
			err,
			"auth: decode token exchange response",
			map[string]any{"installation_id": installationID},
		)
	}
	if strings.TrimSpace(token.Token) == "" {
		return core.InstallationToken{}, core.AuthenticationError(
			"auth: token exchange response carried no token",
			map[string]any{"installation_id": installationID},
		)
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	if token.ExpiresAt.IsZero() {
		token.ExpiresAt = time.Now().UTC().Add(time.Hour)
	}
	return token, nil
}

var _ TokenExchanger = (*HTTPTokenExchanger)(nil)
