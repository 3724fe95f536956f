package conn

import "errors"

// Failure taxonomy for one connection attempt. Everything funnels through
// the same cleanup path in Run; callers match with errors.Is.
var (
	ErrDNS          = errors.New("fetch: dns resolution failed")
	ErrConnect      = errors.New("fetch: all connection attempts failed")
	ErrTLSSetup     = errors.New("fetch: tls setup failed")
	ErrTLSHandshake = errors.New("fetch: tls handshake failed")
	ErrIO           = errors.New("fetch: i/o failure")
	ErrTimeout      = errors.New("fetch: deadline exceeded")
	ErrCanceled     = errors.New("fetch: canceled")
)
