package proxy

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"globaleaks/tlsworker/pkg/telemetry/logging"
)

// State is the position of a connection in its lifecycle.
type State int32

// Connection states, in order.
const (
	StateAccepted State = iota
	StateHandshaking
	StateRelaying
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one client connection and, once dialled, its backend peer.
type Conn struct {
	ID       string
	Listener string
	Remote   string
	Started  time.Time

	client  net.Conn
	backend net.Conn

	state atomic.Int32
	up    atomic.Int64
	down  atomic.Int64

	// Read linger per direction, set once the opposite direction is done.
	upLinger   atomic.Int64
	downLinger atomic.Int64

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once

	log *logging.Logger
}

func newConn(id string, client net.Conn) *Conn {
	c := &Conn{
		ID:       id,
		Listener: addrString(client.LocalAddr()),
		Remote:   addrString(client.RemoteAddr()),
		Started:  time.Now(),
		client:   client,
	}
	c.state.Store(int32(StateAccepted))
	return c
}

// State returns the current state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// BytesUp returns the bytes relayed from client to backend so far.
func (c *Conn) BytesUp() int64 { return c.up.Load() }

// BytesDown returns the bytes relayed from backend to client so far.
func (c *Conn) BytesDown() int64 { return c.down.Load() }

// setState moves the connection forward. Backward moves are ignored.
func (c *Conn) setState(s State) {
	for {
		cur := c.state.Load()
		if int32(s) <= cur {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			c.log.Debug("connection state", "from", State(cur).String(), "to", s.String())
			return
		}
	}
}

// setBackend attaches the dialled backend. It reports false, closing b,
// when the connection was closed while the dial was in flight.
func (c *Conn) setBackend(b net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		b.Close()
		return false
	}
	c.backend = b
	return true
}

// close closes both sockets. Safe to call from any goroutine, any number
// of times.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.client.Close()
		c.mu.Lock()
		c.closed = true
		b := c.backend
		c.mu.Unlock()
		if b != nil {
			b.Close()
		}
	})
}

type closeWriter interface {
	CloseWrite() error
}

// closeWrite half-closes dst. For TLS connections a close_notify is sent
// and then the underlying TCP stream is shut down for writing.
func closeWrite(dst net.Conn) error {
	if tc, ok := dst.(*tls.Conn); ok {
		if err := tc.CloseWrite(); err != nil {
			return err
		}
		if cw, ok := tc.NetConn().(closeWriter); ok {
			return cw.CloseWrite()
		}
		return nil
	}
	if cw, ok := dst.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

// countingWriter counts written bytes and marks activity. It hides any
// ReaderFrom of the destination so io.CopyBuffer uses the fixed buffer.
type countingWriter struct {
	w     io.Writer
	n     *atomic.Int64
	touch func()
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.n.Add(int64(n))
		cw.touch()
	}
	return n, err
}

// lingerReader hides any WriterTo of the source. Once linger is non-zero
// every Read must complete within it.
type lingerReader struct {
	conn   net.Conn
	linger *atomic.Int64
}

func (r lingerReader) Read(p []byte) (int, error) {
	if d := time.Duration(r.linger.Load()); d > 0 {
		r.conn.SetReadDeadline(time.Now().Add(d))
	}
	return r.conn.Read(p)
}

// idleTimer fires when no direction made progress for timeout.
type idleTimer struct {
	timeout time.Duration
	t       *time.Timer
	fired   atomic.Bool
}

func newIdleTimer(timeout time.Duration, onIdle func()) *idleTimer {
	it := &idleTimer{timeout: timeout}
	it.t = time.AfterFunc(timeout, func() {
		it.fired.Store(true)
		onIdle()
	})
	return it
}

func (it *idleTimer) touch() {
	if it == nil {
		return
	}
	it.t.Reset(it.timeout)
}

func (it *idleTimer) stop() {
	if it == nil {
		return
	}
	it.t.Stop()
}

func (it *idleTimer) expired() bool {
	return it != nil && it.fired.Load()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
