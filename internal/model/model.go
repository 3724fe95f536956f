// Package model holds the request and result types shared between the
// client surface and the connection worker.
package model

import (
	"sync/atomic"
	"time"

	"github.com/arvhen/go-fetch/internal/target"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10
)

// Callback receives the deep-copied result on the owning goroutine once a
// request finishes. res.Status is -1 when no HTTP response was obtained.
type Callback func(res *Result, userData any)

// Request is one fetch. The URL and parsed target never change after
// creation; the outcome fields are written exactly once, by the completion
// path, before Done flips. A reference count keeps the Request alive while
// its background job is outstanding.
type Request struct {
	URL    string
	Target target.Target

	Timeout      time.Duration
	MaxRedirects int

	Callback Callback
	UserData any

	refs atomic.Int32

	status  atomic.Int32
	headers atomic.Value // string
	body    atomic.Value // string
	done    atomic.Bool
}

// NewRequest parses rawURL and returns a Request with one reference held by
// the caller. Fails on anything that isn't an absolute http/https URL.
func NewRequest(rawURL string) (*Request, error) {
	t, err := target.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	r := &Request{
		URL:          rawURL,
		Target:       t,
		Timeout:      DefaultTimeout,
		MaxRedirects: DefaultMaxRedirects,
	}
	r.status.Store(-1)
	r.refs.Store(1)
	return r, nil
}

// SetTimeout overrides the per-phase deadline. Must be called before Start.
func (r *Request) SetTimeout(d time.Duration) {
	if d > 0 {
		r.Timeout = d
	}
}

// SetMaxRedirects overrides the redirect hop cap. Must be called before Start.
func (r *Request) SetMaxRedirects(n int) {
	if n >= 0 {
		r.MaxRedirects = n
	}
}

// OnComplete installs the completion callback. Must be called before Start.
func (r *Request) OnComplete(cb Callback, userData any) {
	r.Callback = cb
	r.UserData = userData
}

// Retain takes an additional reference, keeping the Request alive while a
// job holds it. Paired with Release.
func (r *Request) Retain() { r.refs.Add(1) }

// Release drops one reference and reports whether it was the last.
func (r *Request) Release() bool { return r.refs.Add(-1) == 0 }

// Complete records the outcome. Called once, on the owning goroutine.
func (r *Request) Complete(res *Result) {
	r.status.Store(int32(res.Status))
	r.headers.Store(res.Headers)
	r.body.Store(res.Body)
	r.done.Store(true)
}

// Status is -1 until completion, and stays -1 on transport failure.
func (r *Request) Status() int { return int(r.status.Load()) }

func (r *Request) Headers() string {
	if s, ok := r.headers.Load().(string); ok {
		return s
	}
	return ""
}

func (r *Request) Body() string {
	if s, ok := r.body.Load().(string); ok {
		return s
	}
	return ""
}

func (r *Request) Done() bool { return r.done.Load() }

// Result is the outcome of one worker run. Exactly one goroutine owns a
// Result at a time; only Clone copies cross the thread boundary.
type Result struct {
	Status  int
	Headers string
	Body    string
	Raw     []byte
}

// Failure is the descriptor delivered when no HTTP response was obtained.
// Strings are empty, never absent.
func Failure() *Result {
	return &Result{Status: -1}
}

// Clone returns a self-contained deep copy. The raw byte slice is
// duplicated so the copy shares no memory with the worker's buffers.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	if r.Raw != nil {
		c.Raw = make([]byte, len(r.Raw))
		copy(c.Raw, r.Raw)
	}
	return &c
}
