package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialResolver resolves the bearer credential for a call. A nil
// installation id yields an app-scoped assertion credential; a non-nil id
// yields a cached-or-exchanged installation token.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context, installationID *int64) (Credential, error)
}

// Permit is one unit of admission capacity. Release frees the slot for the
// next queued caller; it is safe to call more than once.
type Permit interface {
	Release()
}

// AdmissionGate suspends callers until capacity allows another outbound
// call. Admission is FIFO and never rejects; backpressure is latency only.
type AdmissionGate interface {
	Admit(ctx context.Context) (Permit, error)
}

// RequestExecutor performs one authenticated call under admission control
// and normalizes failures into the adapter error envelope.
type RequestExecutor interface {
	Execute(ctx context.Context, req TransportRequest, cred Credential) (TransportResponse, error)
}

// Client is the capability set the adapter exposes for one authentication
// scope: resolve the scope's credential and issue authenticated requests.
// The app-scoped and installation-scoped variants are the only
// implementations.
type Client interface {
	Credential(ctx context.Context) (Credential, error)
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}
