package worker

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultConfigFD is the descriptor the supervisor writes the
// configuration to.
const DefaultConfigFD = 42

// MaxConfigSize bounds the configuration document.
const MaxConfigSize = 1 << 20

// Channel reads the one-shot configuration handed down by the supervisor.
//
// Read consumes the descriptor to end of stream exactly once. Later calls
// return the result of the first one without touching the descriptor.
type Channel struct {
	fd   int
	open func() (io.ReadCloser, error)

	once sync.Once
	cfg  *Config
	err  error
}

// NewChannel returns a channel reading from the inherited descriptor fd.
func NewChannel(fd int) *Channel {
	return &Channel{
		fd:   fd,
		open: func() (io.ReadCloser, error) { return openFD(fd) },
	}
}

// NewChannelFromReader returns a channel reading from r instead of an
// inherited descriptor, for tests and for embedding the server.
func NewChannelFromReader(r io.Reader) *Channel {
	return &Channel{
		fd:   -1,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// FD returns the descriptor this channel reads, or -1.
func (c *Channel) FD() int {
	return c.fd
}

// Read blocks until the writer closes its end, then parses and validates
// the document. The descriptor is closed before Read returns.
func (c *Channel) Read() (*Config, error) {
	c.once.Do(func() {
		c.cfg, c.err = c.read()
	})
	return c.cfg, c.err
}

func (c *Channel) read() (*Config, error) {
	rc, err := c.open()
	if err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(io.LimitReader(rc, MaxConfigSize+1))
	closeErr := rc.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read configuration from descriptor %d: %w", c.fd, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close configuration descriptor %d: %w", c.fd, closeErr)
	}
	if len(data) > MaxConfigSize {
		return nil, fmt.Errorf("configuration exceeds %d bytes", MaxConfigSize)
	}

	return ParseConfig(data)
}

// openFD wraps an inherited descriptor after checking that it is open.
func openFD(fd int) (io.ReadCloser, error) {
	if fd < 0 {
		return nil, fmt.Errorf("invalid configuration descriptor %d", fd)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("configuration descriptor %d is not open: %w", fd, err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("config-fd-%d", fd))
	if f == nil {
		return nil, fmt.Errorf("invalid configuration descriptor %d", fd)
	}
	return f, nil
}
