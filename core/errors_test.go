package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_PreservesRichErrors(t *testing.T) {
	source := RateLimitedError("upstream throttled", map[string]any{"retry_after_ms": int64(1500)})

	mapped := MapError(source)
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", mapped.Category)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 envelope, got %d", mapped.Code)
	}
	if mapped.TextCode != AdapterErrorRateLimited {
		t.Fatalf("expected %q, got %q", AdapterErrorRateLimited, mapped.TextCode)
	}
}

func TestMapError_ClassifiesPlainErrors(t *testing.T) {
	cases := []struct {
		name     string
		input    error
		textCode string
	}{
		{"throttle message", errors.New("request throttled by upstream"), AdapterErrorRateLimited},
		{"bad credentials", errors.New("bad credentials"), AdapterErrorUnauthorized},
		{"pem problem", errors.New("invalid PEM block"), AdapterErrorSigningFailed},
		{"missing value", errors.New("app id is required"), AdapterErrorBadConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.input)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Code == 0 {
				t.Fatalf("expected http code to be filled in")
			}
		})
	}
}

func TestMapError_NilStaysNil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}

func TestTransportError_WrapsSource(t *testing.T) {
	source := errors.New("connection reset")
	wrapped := TransportError(source, "transport: execute http request", nil)

	if !errors.Is(wrapped, source) {
		t.Fatalf("expected wrapped source to survive errors.Is")
	}
	if wrapped.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", wrapped.Category)
	}
	if wrapped.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 envelope, got %d", wrapped.Code)
	}
}

func TestAuthenticationError_Envelope(t *testing.T) {
	err := AuthenticationError("platform rejected the credential", nil)
	if err.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 envelope, got %d", err.Code)
	}
	if err.TextCode != AdapterErrorUnauthorized {
		t.Fatalf("expected %q, got %q", AdapterErrorUnauthorized, err.TextCode)
	}
}
