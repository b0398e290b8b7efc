package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AdapterErrorBadConfig       = "GITHUBAPP_BAD_CONFIG"
	AdapterErrorSigningFailed   = "GITHUBAPP_SIGNING_FAILED"
	AdapterErrorUnauthorized    = "GITHUBAPP_UNAUTHORIZED"
	AdapterErrorRateLimited     = "GITHUBAPP_RATE_LIMITED"
	AdapterErrorExternalFailure = "GITHUBAPP_EXTERNAL_FAILURE"
	AdapterErrorInternal        = "GITHUBAPP_INTERNAL_ERROR"
)

// BadConfigError marks configuration problems detected before any network
// attempt. Non-retryable.
func BadConfigError(message string, metadata map[string]any) *goerrors.Error {
	return newAdapterError(message, goerrors.CategoryBadInput, AdapterErrorBadConfig, metadata)
}

// SigningError marks assertion signing failures, typically malformed key
// material. Non-retryable.
func SigningError(source error, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newAdapterError(message, goerrors.CategoryBadInput, AdapterErrorSigningFailed, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithTextCode(AdapterErrorSigningFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureAdapterErrorEnvelope(err)
}

// AuthenticationError marks credential rejections by the platform. The
// message carries guidance distinguishing a secret mismatch from malformed
// key material, the two most common misconfigurations.
func AuthenticationError(message string, metadata map[string]any) *goerrors.Error {
	return newAdapterError(message, goerrors.CategoryAuth, AdapterErrorUnauthorized, metadata)
}

// RateLimitedError marks upstream throttling responses. The adapter paces
// preventively and never retries these automatically.
func RateLimitedError(message string, metadata map[string]any) *goerrors.Error {
	return newAdapterError(message, goerrors.CategoryRateLimit, AdapterErrorRateLimited, metadata)
}

// TransportError wraps network-level failures as-is.
func TransportError(source error, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newAdapterError(message, goerrors.CategoryExternal, AdapterErrorExternalFailure, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithTextCode(AdapterErrorExternalFailure)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureAdapterErrorEnvelope(err)
}

// MapError guarantees every error leaving the adapter carries a category,
// HTTP code, and text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAdapterErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newAdapterError(err.Error(), goerrors.CategoryRateLimit, AdapterErrorRateLimited, nil)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "bad credentials"):
		return newAdapterError(err.Error(), goerrors.CategoryAuth, AdapterErrorUnauthorized, nil)
	case strings.Contains(msg, "private key"), strings.Contains(msg, "pem"):
		return newAdapterError(err.Error(), goerrors.CategoryBadInput, AdapterErrorSigningFailed, nil)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newAdapterError(err.Error(), goerrors.CategoryBadInput, AdapterErrorBadConfig, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAdapterErrorEnvelope(mapped)
}

func newAdapterError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureAdapterErrorEnvelope(err)
}

func ensureAdapterErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = adapterHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAdapterTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAdapterTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AdapterErrorBadConfig
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return AdapterErrorUnauthorized
	case goerrors.CategoryRateLimit:
		return AdapterErrorRateLimited
	case goerrors.CategoryExternal:
		return AdapterErrorExternalFailure
	default:
		return AdapterErrorInternal
	}
}

func adapterHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
