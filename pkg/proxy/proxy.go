package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	gltls "globaleaks/tlsworker/pkg/security/tls"
	"globaleaks/tlsworker/pkg/telemetry/logging"
	"globaleaks/tlsworker/pkg/telemetry/metrics"
	"globaleaks/tlsworker/pkg/telemetry/tracing"
	"globaleaks/tlsworker/pkg/worker"
)

// Defaults applied to zero Config fields.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultBufferSize       = 32 * 1024
	DefaultHalfCloseTimeout = 30 * time.Second

	maxAcceptDelay = time.Second
)

// Config holds the relay settings.
type Config struct {
	// BackendAddr is host:port of the backend. The host must be one of
	// worker.AllowedProxyHosts.
	BackendAddr string

	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	// IdleTimeout closes a connection when neither direction moved a byte
	// for this long. Zero disables it.
	IdleTimeout time.Duration

	// HalfCloseTimeout bounds how long the remaining direction may stay
	// silent once the other one has finished.
	HalfCloseTimeout time.Duration

	// BufferSize is the per-direction copy buffer.
	BufferSize int
}

// Admitter decides whether newly accepted connections are served.
type Admitter interface {
	Admitting() bool
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Proxy) { p.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Proxy) { p.metrics = c }
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(p *Proxy) { p.tracer = t }
}

// WithAdmitter sets the admission gate consulted after each accept.
func WithAdmitter(a Admitter) Option {
	return func(p *Proxy) { p.admitter = a }
}

// Proxy terminates TLS and relays each connection to the backend.
type Proxy struct {
	cfg Config

	log      *logging.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	admitter Admitter

	buffers sync.Pool
	active  atomic.Int64

	mu    sync.Mutex
	conns map[*Conn]struct{}
	idle  chan struct{}
}

// New creates a Proxy. It fails with worker.ErrExternalProxyTarget when
// the backend host is not the local machine.
func New(cfg Config, opts ...Option) (*Proxy, error) {
	host, _, err := net.SplitHostPort(cfg.BackendAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid backend address %q: %w", cfg.BackendAddr, err)
	}
	if !slices.Contains(worker.AllowedProxyHosts, host) {
		return nil, fmt.Errorf("%w: %s . . aborting", worker.ErrExternalProxyTarget, cfg.BackendAddr)
	}

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.HalfCloseTimeout <= 0 {
		cfg.HalfCloseTimeout = DefaultHalfCloseTimeout
	}
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}

	p := &Proxy{
		cfg:   cfg,
		conns: make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logging.Discard()
	}

	size := cfg.BufferSize
	p.buffers.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Proxy) Config() Config {
	return p.cfg
}

// Serve accepts connections from ln until it is closed. Each connection
// is handled on its own goroutine. Serve returns nil once ln is closed.
func (p *Proxy) Serve(ctx context.Context, ln net.Listener) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			p.log.Warn("accept failed, retrying", "listener", addrString(ln.Addr()), "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		c, ok := p.track(conn)
		if !ok {
			p.refuse(conn)
			continue
		}
		go p.handle(ctx, c)
	}
}

// Handle runs one connection to completion. Failures are logged and
// counted, never returned. A connection arriving while the admitter
// refuses is closed at once.
func (p *Proxy) Handle(ctx context.Context, conn net.Conn) {
	c, ok := p.track(conn)
	if !ok {
		p.refuse(conn)
		return
	}
	p.handle(ctx, c)
}

// Active returns the number of connections not yet closed.
func (p *Proxy) Active() int64 {
	return p.active.Load()
}

// Connections returns a snapshot of the open connections.
func (p *Proxy) Connections() []*Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Conn, 0, len(p.conns))
	for c := range p.conns {
		out = append(out, c)
	}
	return out
}

// Wait blocks until every connection has closed or ctx is done.
func (p *Proxy) Wait(ctx context.Context) error {
	p.mu.Lock()
	if len(p.conns) == 0 {
		p.mu.Unlock()
		return nil
	}
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseAll closes every open connection.
func (p *Proxy) CloseAll() {
	for _, c := range p.Connections() {
		c.setState(StateClosing)
		c.close()
	}
}

// track registers conn unless the admitter refuses it. The admission
// check and the registration happen under one lock, so a connection is
// either refused or visible to Wait.
func (p *Proxy) track(conn net.Conn) (*Conn, bool) {
	id := uuid.New().String()
	c := newConn(id, conn)
	c.log = p.log.With("conn_id", id, "listener", c.Listener, "remote", c.Remote)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.admitter != nil && !p.admitter.Admitting() {
		return nil, false
	}
	p.conns[c] = struct{}{}
	p.active.Add(1)
	return c, true
}

func (p *Proxy) refuse(conn net.Conn) {
	conn.Close()
	p.metrics.ConnectionRejected("draining")
	p.log.Debug("connection refused while draining", "remote", addrString(conn.RemoteAddr()))
}

func (p *Proxy) untrack(c *Conn) {
	p.active.Add(-1)
	p.mu.Lock()
	delete(p.conns, c)
	if len(p.conns) == 0 && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
	p.mu.Unlock()
}

func (p *Proxy) handle(ctx context.Context, c *Conn) {
	defer p.untrack(c)

	done := p.metrics.ConnectionAccepted(c.Listener)
	defer done()

	ctx = logging.WithConnID(ctx, c.ID)
	ctx = logging.WithListener(ctx, c.Listener)
	ctx = logging.WithRemoteAddr(ctx, c.Remote)
	ctx, span := p.tracer.StartConnection(ctx, tracing.ConnInfo{ID: c.ID, Listener: c.Listener, Remote: c.Remote})
	log := c.log
	if tid := tracing.TraceID(ctx); tid != "" {
		ctx = logging.WithTraceID(ctx, tid)
		log = log.With("trace_id", tid)
	}

	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	reason, err := p.serveConn(ctx, c, span)

	c.setState(StateClosing)
	c.close()
	c.setState(StateClosed)

	up, down := c.BytesUp(), c.BytesDown()
	p.metrics.AddRelayedBytes(metrics.DirectionUpstream, up)
	p.metrics.AddRelayedBytes(metrics.DirectionDownstream, down)
	tracing.EndConnection(span, up, down, reason, err)

	args := []any{
		"reason", reason,
		"bytes_up", up,
		"bytes_down", down,
		"duration", time.Since(c.Started),
	}
	if err != nil {
		log.Debug("connection closed with error", append(args, "error", err)...)
		return
	}
	log.Debug("connection closed", args...)
}

// serveConn runs the handshake, dial and relay stages and returns the
// close reason.
func (p *Proxy) serveConn(ctx context.Context, c *Conn, span trace.Span) (string, error) {
	c.setState(StateHandshaking)
	if err := p.handshake(ctx, c, span); err != nil {
		return "handshake_failed", err
	}

	backend, err := p.dial(ctx, c)
	if err != nil {
		return "backend_unavailable", err
	}
	if !c.setBackend(backend) {
		return "canceled", &ConnError{ConnID: c.ID, Stage: StageDial, Err: net.ErrClosed}
	}

	c.setState(StateRelaying)
	if err := p.relay(c); err != nil {
		if errors.Is(err, ErrIdleTimeout) {
			return "idle_timeout", err
		}
		if errors.Is(err, ErrHalfCloseTimeout) {
			return "half_close_timeout", err
		}
		return "relay_error", err
	}
	return "completed", nil
}

func (p *Proxy) handshake(ctx context.Context, c *Conn, span trace.Span) error {
	tc, ok := c.client.(*tls.Conn)
	if !ok {
		p.metrics.RecordHandshakeFailure("not_tls")
		return &ConnError{ConnID: c.ID, Stage: StageHandshake, Err: errors.New("not a TLS connection")}
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
	defer cancel()

	start := time.Now()
	err := tc.HandshakeContext(hctx)
	elapsed := time.Since(start)
	if err != nil {
		reason := handshakeFailureReason(err)
		p.metrics.RecordHandshakeFailure(reason)
		p.metrics.ConnectionRejected("handshake")
		c.log.Info("TLS handshake failed", "reason", reason, "error", logging.EscapeControl(err.Error()))
		return &ConnError{ConnID: c.ID, Stage: StageHandshake, Err: err}
	}

	st := tc.ConnectionState()
	version := gltls.VersionName(st.Version)
	p.metrics.RecordHandshake(version, elapsed)
	tracing.SetHandshakeAttributes(span, version, tls.CipherSuiteName(st.CipherSuite), st.DidResume, elapsed)
	c.log.Debug("TLS handshake complete",
		"version", version,
		"cipher", tls.CipherSuiteName(st.CipherSuite),
		"resumed", st.DidResume,
		"duration", elapsed,
	)
	return nil
}

func (p *Proxy) dial(ctx context.Context, c *Conn) (net.Conn, error) {
	ctx, span := p.tracer.Start(ctx, tracing.SpanDial)
	tracing.SetBackendAttributes(span, p.cfg.BackendAddr)

	d := net.Dialer{Timeout: p.cfg.DialTimeout}
	backend, err := d.DialContext(ctx, "tcp", p.cfg.BackendAddr)
	tracing.SetError(span, err)
	tracing.SetStatus(span, err)
	span.End()
	if err != nil {
		p.metrics.RecordBackendDialError()
		p.metrics.ConnectionRejected("backend")
		c.log.Warn("backend connection failed", "backend", p.cfg.BackendAddr, "error", err)
		return nil, &ConnError{ConnID: c.ID, Stage: StageDial, Err: err}
	}
	return backend, nil
}

// relay copies both directions until both have finished or one fails.
func (p *Proxy) relay(c *Conn) error {
	var idle *idleTimer
	if p.cfg.IdleTimeout > 0 {
		idle = newIdleTimer(p.cfg.IdleTimeout, c.close)
		defer idle.stop()
	}

	type result struct {
		dir string
		err error
	}
	results := make(chan result, 2)
	go func() {
		results <- result{metrics.DirectionUpstream, p.pipe(c.backend, c.client, &c.up, &c.upLinger, idle)}
	}()
	go func() {
		results <- result{metrics.DirectionDownstream, p.pipe(c.client, c.backend, &c.down, &c.downLinger, idle)}
	}()

	var first error
	lingering := false
	for range 2 {
		r := <-results
		switch {
		case r.err != nil:
			if first == nil {
				first = r.err
				c.setState(StateClosing)
				// Unblocks the other direction.
				c.close()
			}
		case !lingering && first == nil:
			lingering = true
			p.linger(c, r.dir)
		}
	}

	if idle.expired() {
		return &ConnError{ConnID: c.ID, Stage: StageRelay, Err: ErrIdleTimeout}
	}
	if lingering && errors.Is(first, os.ErrDeadlineExceeded) {
		return &ConnError{ConnID: c.ID, Stage: StageRelay, Err: ErrHalfCloseTimeout}
	}
	if first != nil {
		return &ConnError{ConnID: c.ID, Stage: StageRelay, Err: first}
	}
	return nil
}

// linger bounds the reads of the direction still running after finished
// has completed, including a read that is already blocked.
func (p *Proxy) linger(c *Conn, finished string) {
	src, l := c.backend, &c.downLinger
	if finished == metrics.DirectionDownstream {
		src, l = c.client, &c.upLinger
	}
	d := p.cfg.HalfCloseTimeout
	l.Store(int64(d))
	src.SetReadDeadline(time.Now().Add(d))
	c.log.Debug("half-closed, waiting for the peer", "finished", finished, "timeout", d)
}

// pipe copies src to dst through one pooled buffer and half-closes dst
// when src reaches EOF.
func (p *Proxy) pipe(dst, src net.Conn, n, linger *atomic.Int64, idle *idleTimer) error {
	bp := p.buffers.Get().(*[]byte)
	defer p.buffers.Put(bp)

	w := countingWriter{w: dst, n: n, touch: idle.touch}
	if _, err := io.CopyBuffer(w, lingerReader{conn: src, linger: linger}, *bp); err != nil {
		return err
	}
	if err := closeWrite(dst); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
