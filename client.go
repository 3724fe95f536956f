package fetch

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/arvhen/go-fetch/internal/conn"
	"github.com/arvhen/go-fetch/internal/model"
	"github.com/arvhen/go-fetch/jobqueue"
	"github.com/arvhen/go-fetch/logging"
)

// Client starts requests on a job queue. A zero-option client verifies TLS
// certificates, uses the system resolver and stays silent.
type Client struct {
	queue        *jobqueue.Queue
	resolve      *conn.ResolveConfig
	tls          *tls.Config
	insecure     bool
	userAgent    string
	pollInterval time.Duration
	log          *slog.Logger
}

type Option func(*Client)

// WithResolve sets name-resolution behavior (custom DNS server, address
// family, static hosts).
func WithResolve(cfg *ResolveConfig) Option {
	return func(c *Client) { c.resolve = cfg.Clone() }
}

// WithTLSConfig supplies a base TLS config, cloned per attempt.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) { c.tls = cfg.Clone() }
}

// WithInsecureTLS disables certificate verification. Explicit opt-in only;
// verification failures are fatal otherwise.
func WithInsecureTLS() Option {
	return func(c *Client) { c.insecure = true }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithPollInterval tunes how often workers check readiness and
// cancellation. Defaults to 1ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(q *jobqueue.Queue, opts ...Option) *Client {
	c := &Client{queue: q, log: logging.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start enqueues req as one background job and returns its ID. The request
// is retained until its cleanup runs on the dispatching goroutine, so it
// outlives the caller dropping it mid-flight.
func (c *Client) Start(req *Request) (jobqueue.ID, error) {
	tlsCfg := c.tls.Clone()
	if c.insecure {
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		tlsCfg.InsecureSkipVerify = true
	}
	maxRedirects := req.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = -1 // zero on the request means "don't follow"
	}
	opts := conn.Options{
		Timeout:      req.Timeout,
		MaxRedirects: maxRedirects,
		TLS:          tlsCfg,
		Resolve:      c.resolve.Clone(),
		UserAgent:    c.userAgent,
		PollInterval: c.pollInterval,
		Logger:       c.log,
	}
	tgt := req.Target
	url := req.URL
	worker := func(ctx context.Context) *model.Result {
		res, err := conn.New(tgt, opts).Run(ctx)
		if err != nil {
			c.log.Debug("fetch failed", "url", url, "err", err)
			return model.Failure()
		}
		return res
	}

	req.Retain()
	id, err := c.queue.Submit(worker, func(res *model.Result, userData any) {
		req.Complete(res)
		if req.Callback != nil {
			req.Callback(res, userData)
		}
	}, func(*model.Result) {
		req.Release()
	}, req.UserData)
	if err != nil {
		req.Release()
		return jobqueue.ID{}, err
	}
	return id, nil
}
