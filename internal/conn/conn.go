// Package conn drives one HTTP(S) GET through DNS resolution, non-blocking
// TCP connect, optional TLS, request transmission, response reception and
// redirect-following. One Machine serves one request and runs entirely on
// the worker goroutine that calls Run; machines share nothing with each
// other.
package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/arvhen/go-fetch/internal/model"
	"github.com/arvhen/go-fetch/internal/target"
	"github.com/arvhen/go-fetch/internal/wire"
	"github.com/arvhen/go-fetch/logging"
)

type step int8

const (
	stepResolve step = iota
	stepConnectAttempt
	stepConnectWait
	stepTLSSetup
	stepTLSHandshake
	stepSend
	stepReceive
	stepParse
	stepFinalize
	stepDone
)

var stepNames = [...]string{
	"resolve", "connect-attempt", "connect-wait", "tls-setup",
	"tls-handshake", "send", "receive", "parse", "finalize", "done",
}

func (s step) String() string { return stepNames[s] }

const (
	chunkSize           = 4096
	defaultPollInterval = time.Millisecond
)

// live counts sockets currently owned by machines, pending or established.
// Tests use it to verify that every exit path releases its resources.
var live atomic.Int64

func Live() int64 { return live.Load() }

func followable(status int) bool {
	switch status {
	case 301, 302, 307, 308:
		return true
	}
	return false
}

// Options configures one machine. Timeout bounds each phase (connect,
// handshake, receive) separately, the way the deadline is re-armed at
// phase entry.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int // 0 means the default; negative disables following
	TLS          *tls.Config
	Resolve      *ResolveConfig
	UserAgent    string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Machine is the connection automaton for one request. current target and
// the per-attempt fields below it are replaced on every redirect hop; the
// visited history and hop count survive hops.
type Machine struct {
	opts    Options
	target  target.Target
	visited []string
	hops    int

	step     step
	deadline time.Time

	addrs  []net.IP
	next   int
	sock   *pending
	tcp    net.Conn
	tlsc   *tls.Conn
	buf    []byte
	result *model.Result

	log *slog.Logger
}

func New(t target.Target, opts Options) *Machine {
	if opts.Timeout <= 0 {
		opts.Timeout = model.DefaultTimeout
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = model.DefaultMaxRedirects
	} else if opts.MaxRedirects < 0 {
		opts.MaxRedirects = 0 // explicit "don't follow"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Machine{
		opts:    opts,
		target:  t,
		visited: []string{t.String()},
		step:    stepResolve,
		log:     opts.Logger,
	}
}

// Run advances the automaton until completion, cancellation or an
// unrecoverable error. Cancellation is observed between polls, so the
// worker exits within roughly one poll interval of the signal. Every exit
// path releases the attempt's resources; the returned Result is owned by
// the caller.
func (m *Machine) Run(ctx context.Context) (*model.Result, error) {
	defer m.closeAttempt()
	for {
		select {
		case <-ctx.Done():
			return nil, ErrCanceled
		default:
		}
		if m.step == stepDone {
			return m.result, nil
		}
		if err := m.poll(ctx); err != nil {
			return nil, err
		}
	}
}

// poll executes one bounded step of the automaton.
func (m *Machine) poll(ctx context.Context) error {
	switch m.step {
	case stepResolve:
		return m.resolve(ctx)
	case stepConnectAttempt:
		return m.connectAttempt()
	case stepConnectWait:
		return m.connectWait()
	case stepTLSSetup:
		return m.tlsSetup()
	case stepTLSHandshake:
		return m.tlsHandshake(ctx)
	case stepSend:
		return m.send()
	case stepReceive:
		return m.receive()
	case stepParse:
		return m.parse()
	case stepFinalize:
		return m.finalize()
	}
	return nil
}

func (m *Machine) resolve(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	addrs, err := m.opts.Resolve.lookup(lctx, m.target.Host)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCanceled
		}
		if lctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: dns %s", ErrTimeout, m.target.Host)
		}
		return fmt.Errorf("%w: %v", ErrDNS, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: no addresses for %s", ErrDNS, m.target.Host)
	}
	m.addrs, m.next = addrs, 0
	m.deadline = time.Now().Add(m.opts.Timeout) // bounds all candidates together
	m.moveTo(stepConnectAttempt)
	return nil
}

func (m *Machine) connectAttempt() error {
	port, err := strconv.Atoi(m.target.Port)
	if err != nil || port <= 0 || port > 0xffff {
		return fmt.Errorf("%w: bad port %q", ErrConnect, m.target.Port)
	}
	for m.next < len(m.addrs) {
		ip := m.addrs[m.next]
		m.next++
		p, established, err := dialStart(ip, port)
		if err != nil {
			m.log.Debug("connect attempt failed", "addr", ip.String(), "err", err)
			continue
		}
		live.Add(1)
		m.sock = p
		if established {
			return m.finishConnect()
		}
		m.moveTo(stepConnectWait)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConnect, net.JoinHostPort(m.target.Host, m.target.Port))
}

func (m *Machine) connectWait() error {
	ok, err := m.sock.waitWritable(m.pollMs())
	if err != nil {
		m.log.Debug("candidate rejected", "err", err)
		m.closeSock()
		m.moveTo(stepConnectAttempt) // try the next candidate
		return nil
	}
	if ok {
		return m.finishConnect()
	}
	if time.Now().After(m.deadline) {
		return fmt.Errorf("%w: connect %s", ErrTimeout, m.target.Host)
	}
	return nil
}

// finishConnect moves socket ownership from the pending connect to an
// established net.Conn registered with the runtime poller.
func (m *Machine) finishConnect() error {
	c, err := m.sock.establish()
	m.sock = nil
	if err != nil {
		live.Add(-1)
		m.log.Debug("establish failed", "err", err)
		m.moveTo(stepConnectAttempt)
		return nil
	}
	m.tcp = c
	if m.target.HTTPS {
		m.moveTo(stepTLSSetup)
	} else {
		m.moveTo(stepSend)
	}
	return nil
}

func (m *Machine) tlsSetup() error {
	cfg := m.opts.TLS.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = m.target.Host
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	cfg.Renegotiation = tls.RenegotiateNever
	m.tlsc = tls.Client(m.tcp, cfg)
	m.deadline = time.Now().Add(m.opts.Timeout)
	m.moveTo(stepTLSHandshake)
	return nil
}

func (m *Machine) tlsHandshake(ctx context.Context) error {
	// crypto/tls owns the want-read/want-write loop; the deadline and ctx
	// bound it at the same boundary the poll loop covers elsewhere.
	m.tlsc.SetDeadline(m.deadline)
	if err := m.tlsc.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrCanceled
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: tls handshake", ErrTimeout)
		}
		// certificate verification failures land here; fail closed
		return fmt.Errorf("%w: %v", ErrTLSHandshake, err)
	}
	m.tlsc.SetDeadline(time.Time{})
	m.moveTo(stepSend)
	return nil
}

func (m *Machine) send() error {
	c := m.stream()
	c.SetWriteDeadline(time.Now().Add(m.opts.Timeout))
	if err := wire.WriteRequest(c, m.target.Path, m.target.HostHeader(), m.opts.UserAgent); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: send", ErrTimeout)
		}
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	c.SetWriteDeadline(time.Time{})
	m.buf = make([]byte, 0, chunkSize)
	m.deadline = time.Now().Add(m.opts.Timeout)
	m.moveTo(stepReceive)
	return nil
}

func (m *Machine) receive() error {
	if time.Now().After(m.deadline) {
		return fmt.Errorf("%w: receive", ErrTimeout)
	}
	if cap(m.buf)-len(m.buf) < chunkSize {
		grown := make([]byte, len(m.buf), 2*cap(m.buf))
		copy(grown, m.buf)
		m.buf = grown
	}
	c := m.stream()
	c.SetReadDeadline(time.Now().Add(m.opts.PollInterval))
	n, err := c.Read(m.buf[len(m.buf):cap(m.buf)])
	m.buf = m.buf[:len(m.buf)+n]
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// peer close ends the response; ErrUnexpectedEOF covers TLS peers
		// that skip close-notify
		m.moveTo(stepParse)
	case errors.Is(err, os.ErrDeadlineExceeded):
		// poll interval elapsed without data; the deadline check above
		// bounds how long this repeats
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (m *Machine) parse() error {
	status, headers, body := wire.Split(m.buf)
	m.result = &model.Result{Status: status, Headers: headers, Body: body, Raw: m.buf}
	if followable(status) && m.hops < m.opts.MaxRedirects {
		if loc, ok := wire.Header(headers, "Location"); ok {
			if next, err := m.target.ResolveLocation(loc); err == nil {
				if m.seen(next.String()) {
					// loop: stop following, deliver the redirect as final
					m.log.Debug("redirect loop", "url", next.String())
				} else {
					m.visited = append(m.visited, next.String())
					m.hops++
					m.resetAttempt()
					m.target = next
					m.log.Debug("following redirect", "url", next.String(), "hop", m.hops)
					m.moveTo(stepResolve)
					return nil
				}
			}
		}
	}
	m.moveTo(stepFinalize)
	return nil
}

func (m *Machine) finalize() error {
	// ownership of result (and its raw buffer) moves to Run's caller
	m.moveTo(stepDone)
	return nil
}

// Hops reports how many redirects were followed.
func (m *Machine) Hops() int { return m.hops }

func (m *Machine) stream() net.Conn {
	if m.tlsc != nil {
		return m.tlsc
	}
	return m.tcp
}

func (m *Machine) pollMs() int {
	if ms := int(m.opts.PollInterval / time.Millisecond); ms > 0 {
		return ms
	}
	return 1
}

func (m *Machine) seen(url string) bool {
	for _, v := range m.visited {
		if v == url {
			return true
		}
	}
	return false
}

func (m *Machine) moveTo(s step) {
	m.log.Debug("step", "from", m.step.String(), "to", s.String())
	m.step = s
}

func (m *Machine) closeSock() {
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
		live.Add(-1)
	}
}

// closeAttempt releases every per-attempt resource. Idempotent; Run defers
// it so error, cancel and success exits share one cleanup path.
func (m *Machine) closeAttempt() {
	m.closeSock()
	switch {
	case m.tlsc != nil:
		m.tlsc.Close() // closes the wrapped conn too
		m.tlsc, m.tcp = nil, nil
		live.Add(-1)
	case m.tcp != nil:
		m.tcp.Close()
		m.tcp = nil
		live.Add(-1)
	}
	m.addrs, m.buf = nil, nil
}

// resetAttempt additionally drops the parsed response before a redirect hop.
func (m *Machine) resetAttempt() {
	m.closeAttempt()
	m.result = nil
}
