package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-githubapp/core"
)

func testRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return key, string(pem.EncodeToMemory(block))
}

func TestAssertionSigner_ClaimsMatchAppIdentity(t *testing.T) {
	key, keyPEM := testRSAKey(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	signer, err := NewAssertionSigner(AssertionSignerConfig{
		AppID:      4242,
		PrivateKey: keyPEM,
		Now:        func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	cred, err := signer.SignAssertion()
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	if cred.Kind != core.CredentialKindApp {
		t.Fatalf("expected app credential, got %q", cred.Kind)
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(cred.Token, &claims, func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse assertion: %v", err)
	}
	if !parsed.Valid {
		t.Fatalf("expected valid assertion")
	}
	if claims.Issuer != "4242" {
		t.Fatalf("expected issuer to be the app id, got %q", claims.Issuer)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 60*time.Second {
		t.Fatalf("expected 60s assertion window, got %s", got)
	}
	if cred.ExpiresAt == nil || !cred.ExpiresAt.Equal(now.Add(60*time.Second)) {
		t.Fatalf("expected credential expiry %s, got %+v", now.Add(60*time.Second), cred.ExpiresAt)
	}
}

func TestAssertionSigner_FreshAssertionPerCall(t *testing.T) {
	_, keyPEM := testRSAKey(t)
	current := time.Unix(1_700_000_000, 0).UTC()

	signer, err := NewAssertionSigner(AssertionSignerConfig{
		AppID:      7,
		PrivateKey: keyPEM,
		Now: func() time.Time {
			current = current.Add(time.Second)
			return current
		},
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	first, err := signer.SignAssertion()
	if err != nil {
		t.Fatalf("first assertion: %v", err)
	}
	second, err := signer.SignAssertion()
	if err != nil {
		t.Fatalf("second assertion: %v", err)
	}
	if first.Token == second.Token {
		t.Fatalf("expected a fresh assertion per signing call")
	}
}

func TestNewAssertionSigner_RejectsMalformedKey(t *testing.T) {
	_, err := NewAssertionSigner(AssertionSignerConfig{
		AppID:      42,
		PrivateKey: "not a pem block",
	})
	if err == nil {
		t.Fatalf("expected signing error for malformed key material")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != core.AdapterErrorSigningFailed {
		t.Fatalf("expected %q, got %q", core.AdapterErrorSigningFailed, richErr.TextCode)
	}
}

func TestNewAssertionSigner_RequiresIdentity(t *testing.T) {
	if _, err := NewAssertionSigner(AssertionSignerConfig{PrivateKey: "x"}); err == nil {
		t.Fatalf("expected app id requirement")
	}
	if _, err := NewAssertionSigner(AssertionSignerConfig{AppID: 1}); err == nil {
		t.Fatalf("expected private key requirement")
	}
}
