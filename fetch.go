// Package fetch is an asynchronous HTTP(S) GET engine. Each request runs as
// one background job that resolves, connects, negotiates TLS, sends a
// minimal GET and follows redirects, then hands a deep-copied result back
// to the goroutine that drains the job queue.
package fetch

import (
	"github.com/arvhen/go-fetch/internal/conn"
	"github.com/arvhen/go-fetch/internal/model"
	"github.com/arvhen/go-fetch/internal/target"
)

type Request = model.Request
type Result = model.Result
type Callback = model.Callback
type Target = target.Target
type ResolveConfig = conn.ResolveConfig

// Failure taxonomy, re-exported so callers can match with errors.Is.
var (
	ErrMalformedURL = target.ErrMalformedURL
	ErrDNS          = conn.ErrDNS
	ErrConnect      = conn.ErrConnect
	ErrTLSSetup     = conn.ErrTLSSetup
	ErrTLSHandshake = conn.ErrTLSHandshake
	ErrIO           = conn.ErrIO
	ErrTimeout      = conn.ErrTimeout
	ErrCanceled     = conn.ErrCanceled
)

// NewRequest parses rawURL and returns a configurable Request.
// Fails on anything that isn't an absolute http/https URL.
func NewRequest(rawURL string) (*Request, error) {
	return model.NewRequest(rawURL)
}
