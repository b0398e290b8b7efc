package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-githubapp/core"
	"github.com/goliatone/go-githubapp/ratelimit"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

const acceptHeader = "application/vnd.github.v3+json"

// Executor performs one authenticated call: it attaches the credential in
// the scheme matching its kind, waits for gate admission, and normalizes
// non-2xx and transport failures into the adapter error envelope.
type Executor struct {
	Client               core.HTTPDoer
	Gate                 core.AdmissionGate
	Tracker              *ratelimit.Tracker
	BaseURL              string
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Debug                bool
	Logger               core.Logger
}

type ExecutorConfig struct {
	Client  core.HTTPDoer
	Gate    core.AdmissionGate
	Tracker *ratelimit.Tracker
	BaseURL string
	Debug   bool
	Logger  core.Logger
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Executor{
		Client:               client,
		Gate:                 cfg.Gate,
		Tracker:              cfg.Tracker,
		BaseURL:              strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		DefaultHeaders:       map[string]string{"Accept": acceptHeader},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
		Debug:                cfg.Debug,
		Logger:               cfg.Logger,
	}
}

func (e *Executor) Execute(ctx context.Context, req core.TransportRequest, cred core.Credential) (core.TransportResponse, error) {
	if e == nil || e.Client == nil {
		return core.TransportResponse{}, core.BadConfigError("transport: executor requires an http client", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cred.Validate(); err != nil {
		return core.TransportResponse{}, core.BadConfigError("transport: "+err.Error(), nil)
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	parsedURL, err := e.resolveURL(req.URL)
	if err != nil {
		return core.TransportResponse{}, err
	}

	query := parsedURL.Query()
	for key, value := range req.Query {
		if strings.TrimSpace(key) == "" {
			continue
		}
		query.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	parsedURL.RawQuery = query.Encode()

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, core.BadConfigError(
			"transport: create http request: "+err.Error(),
			map[string]any{"method": method, "url": parsedURL.String()},
		)
	}
	for key, value := range e.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	httpReq.Header.Set("Authorization", cred.AuthorizationHeader())

	if e.Gate != nil {
		permit, admitErr := e.Gate.Admit(ctx)
		if admitErr != nil {
			return core.TransportResponse{}, core.MapError(admitErr)
		}
		defer permit.Release()
	}

	startedAt := time.Now().UTC()
	e.debugLog("transport: request start", "method", method, "url", parsedURL.String(), "auth_scheme", cred.AuthScheme())

	httpRes, err := e.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, core.TransportError(
			err,
			"transport: execute http request",
			map[string]any{"method": method, "url": parsedURL.String()},
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := e.MaxResponseBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultResponseBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.TransportResponse{}, core.TransportError(
			err,
			"transport: read response body",
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}
	if int64(len(body)) > maxBodyBytes {
		return core.TransportResponse{}, core.TransportError(
			nil,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			map[string]any{"status_code": httpRes.StatusCode, "response_limit_b": maxBodyBytes},
		)
	}

	headers := flattenHeaders(httpRes.Header)
	if e.Tracker != nil {
		e.Tracker.Observe(httpRes.StatusCode, headers)
	}

	durationMS := time.Since(startedAt).Milliseconds()
	e.debugLog("transport: request done",
		"method", method,
		"url", parsedURL.String(),
		"status_code", httpRes.StatusCode,
		"duration_ms", durationMS,
	)

	if err := e.statusError(httpRes.StatusCode, method, parsedURL.String(), headers, body); err != nil {
		return core.TransportResponse{}, err
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    headers,
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": durationMS,
			"method":      method,
		},
	}, nil
}

// statusError maps non-2xx responses onto the adapter taxonomy. Throttling
// is checked before generic auth failures because the platform reports
// secondary limits as 403.
func (e *Executor) statusError(statusCode int, method string, callURL string, headers map[string]string, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	metadata := map[string]any{
		"method":      method,
		"url":         callURL,
		"status_code": statusCode,
	}
	if ratelimit.Throttled(statusCode, headers) {
		if retryAfter, ok := ratelimit.RetryAfter(headers, time.Now().UTC()); ok {
			metadata["retry_after_ms"] = retryAfter.Milliseconds()
		}
		return core.RateLimitedError("transport: upstream throttled the request", metadata)
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.AuthenticationError("transport: platform rejected the credential", metadata)
	default:
		if snippet := bodySnippet(body); snippet != "" {
			metadata["body"] = snippet
		}
		return core.TransportError(
			nil,
			fmt.Sprintf("transport: request failed with status %d", statusCode),
			metadata,
		)
	}
}

// resolveURL accepts absolute URLs (pagination cursors are absolute) and
// resolves relative paths against the configured API base.
func (e *Executor) resolveURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, core.BadConfigError("transport: request url is required", nil)
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, core.BadConfigError("transport: invalid request url: "+err.Error(), map[string]any{"url": raw})
		}
		return parsed, nil
	}
	base := e.BaseURL
	if base == "" {
		return nil, core.BadConfigError("transport: base url is required for relative paths", map[string]any{"url": raw})
	}
	parsed, err := url.Parse(base + "/" + strings.TrimLeft(raw, "/"))
	if err != nil {
		return nil, core.BadConfigError("transport: invalid request url: "+err.Error(), map[string]any{"url": raw})
	}
	return parsed, nil
}

func (e *Executor) debugLog(message string, args ...any) {
	if e == nil || !e.Debug || e.Logger == nil {
		return
	}
	e.Logger.Debug(message, args...)
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func bodySnippet(body []byte) string {
	const limit = 256
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > limit {
		return trimmed[:limit]
	}
	return trimmed
}

var _ core.RequestExecutor = (*Executor)(nil)
