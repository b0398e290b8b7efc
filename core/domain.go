package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidCredentialKind = errors.New("core: invalid credential kind")
	ErrMissingCredential     = errors.New("core: credential token is empty")
)

// CredentialKind is the sealed set of credential variants the adapter issues.
type CredentialKind string

const (
	// CredentialKindApp is a short-lived signed assertion proving the caller
	// is the application itself.
	CredentialKindApp CredentialKind = "app"
	// CredentialKindInstallation is a bearer token scoped to one
	// installation, obtained by exchanging an assertion.
	CredentialKindInstallation CredentialKind = "installation"
)

// Credential is a bearer credential ready to be attached to a request.
type Credential struct {
	Kind      CredentialKind
	Token     string
	ExpiresAt *time.Time
}

// AuthScheme returns the authorization header scheme for the credential
// kind: app assertions use "Bearer", installation tokens use "token".
func (c Credential) AuthScheme() string {
	if c.Kind == CredentialKindInstallation {
		return "token"
	}
	return "Bearer"
}

// AuthorizationHeader renders the full authorization header value.
func (c Credential) AuthorizationHeader() string {
	return c.AuthScheme() + " " + strings.TrimSpace(c.Token)
}

func (c Credential) Validate() error {
	switch c.Kind {
	case CredentialKindApp, CredentialKindInstallation:
	default:
		return ErrInvalidCredentialKind
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingCredential
	}
	return nil
}

// Expired reports whether the credential is past its expiry at the given
// instant. Credentials without a recorded expiry never report expired.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.UTC().After(now.UTC())
}

// InstallationToken is the decoded result of a token-exchange call.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InstallationTokenCacheKey is the cache key contract for installation
// tokens: installation:<id>:token.
func InstallationTokenCacheKey(installationID int64) string {
	return "installation:" + strconv.FormatInt(installationID, 10) + ":token"
}
