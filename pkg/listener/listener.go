package listener

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Descriptor errors.
var (
	ErrNotSocket      = errors.New("descriptor is not a socket")
	ErrNotStream      = errors.New("socket is not a stream socket")
	ErrNotListening   = errors.New("socket is not listening")
	ErrListenerClosed = errors.New("listener set is closed")
)

// Listener is one inherited listening socket wrapped for TLS. Accept
// returns *tls.Conn values whose handshake has not run yet.
type Listener struct {
	FD   int
	Addr net.Addr

	ln net.Listener

	closeOnce sync.Once
	closeErr  error
}

// Accept waits for the next connection.
func (l *Listener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

// Close stops accepting. Only the first call closes the socket; later
// calls return the first result.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

func (l *Listener) String() string {
	return fmt.Sprintf("fd %d (%s)", l.FD, l.Addr)
}

// Inspect checks that fd is an open, listening stream socket and returns
// a description of it.
func Inspect(fd int) (string, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return "", fmt.Errorf("descriptor %d is not open: %w", fd, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return "", fmt.Errorf("descriptor %d: %w (mode %o)", fd, ErrNotSocket, st.Mode)
	}

	typ, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return "", fmt.Errorf("descriptor %d: failed to read socket type: %w", fd, err)
	}
	if typ != unix.SOCK_STREAM {
		return "", fmt.Errorf("descriptor %d: %w", fd, ErrNotStream)
	}

	accepting, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN)
	if err != nil {
		return "", fmt.Errorf("descriptor %d: failed to read listen state: %w", fd, err)
	}
	if accepting != 1 {
		return "", fmt.Errorf("descriptor %d: %w", fd, ErrNotListening)
	}

	return fmt.Sprintf("socket inode=%d mode=%o", st.Ino, st.Mode), nil
}

// openOne wraps fd. net.FileListener duplicates the descriptor, so the
// original is closed once the listener exists.
func openOne(fd int, conf *tls.Config) (*Listener, error) {
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tls-socket-%d", fd))
	if f == nil {
		return nil, fmt.Errorf("descriptor %d is invalid", fd)
	}
	defer f.Close()

	inner, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("descriptor %d: failed to create listener: %w", fd, err)
	}

	return &Listener{
		FD:   fd,
		Addr: inner.Addr(),
		ln:   tls.NewListener(inner, conf),
	}, nil
}

// Set is the collection of listeners opened at startup.
type Set struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners []*Listener
	closed    bool
}

// Open validates and wraps every descriptor, in order, with the shared
// TLS configuration. On the first failure the listeners opened so far are
// closed and the error is returned.
func Open(fds []int, conf *tls.Config, logger *slog.Logger) (*Set, error) {
	if len(fds) == 0 {
		return nil, errors.New("no listening descriptors supplied")
	}
	if conf == nil {
		return nil, errors.New("TLS configuration is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Set{logger: logger}
	for _, fd := range fds {
		desc, err := Inspect(fd)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		logger.Info("Opening socket", "fd", fd, "stat", desc)

		l, err := openOne(fd, conf)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.listeners = append(s.listeners, l)

		logger.Info("TLS proxy listening", "fd", fd, "addr", l.Addr.String())
	}

	return s, nil
}

// Listeners returns the listeners in descriptor order.
func (s *Set) Listeners() []*Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Listener(nil), s.listeners...)
}

// Open returns the number of listeners still accepting.
func (s *Set) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return len(s.listeners)
}

// Close closes every listener. Established connections are not touched.
// It is safe to call more than once.
func (s *Set) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("%s: %w", l, err))
		}
	}
	return errors.Join(errs...)
}
