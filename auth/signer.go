package auth

import (
	"crypto/rsa"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-githubapp/core"
)

// AssertionTTL is the platform's maximum allowed assertion validity window;
// it also covers the maximum tolerated clock skew.
const AssertionTTL = 60 * time.Second

// AssertionSigner mints short-lived RS256 assertions identifying the
// application itself. Assertions are created fresh on every call and never
// reused past their window.
type AssertionSigner struct {
	appID int64
	key   *rsa.PrivateKey
	now   func() time.Time
}

type AssertionSignerConfig struct {
	AppID      int64
	PrivateKey string
	Now        func() time.Time
}

func NewAssertionSigner(cfg AssertionSignerConfig) (*AssertionSigner, error) {
	if cfg.AppID <= 0 {
		return nil, core.BadConfigError("auth: app id is required", nil)
	}
	pem := strings.TrimSpace(cfg.PrivateKey)
	if pem == "" {
		return nil, core.BadConfigError("auth: private key is required", nil)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, core.SigningError(
			err,
			"auth: private key is not a valid PEM-encoded RSA key",
			map[string]any{"app_id": cfg.AppID},
		)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AssertionSigner{appID: cfg.AppID, key: key, now: now}, nil
}

// SignAssertion builds and signs a claim set with issued-at now, expiry
// now+60s, and the application id as issuer.
func (s *AssertionSigner) SignAssertion() (core.Credential, error) {
	if s == nil || s.key == nil {
		return core.Credential{}, core.SigningError(nil, "auth: assertion signer is not configured", nil)
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(AssertionTTL)
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    strconv.FormatInt(s.appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return core.Credential{}, core.SigningError(
			err,
			"auth: sign app assertion",
			map[string]any{"app_id": s.appID},
		)
	}
	return core.Credential{
		Kind:      core.CredentialKindApp,
		Token:     signed,
		ExpiresAt: &expiresAt,
	}, nil
}

// AppID returns the configured application id.
func (s *AssertionSigner) AppID() int64 {
	if s == nil {
		return 0
	}
	return s.appID
}
