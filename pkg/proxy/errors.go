package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Stage names the step of a connection that failed.
type Stage string

// Connection stages.
const (
	StageHandshake Stage = "handshake"
	StageDial      Stage = "dial"
	StageRelay     Stage = "relay"
)

// ErrIdleTimeout is reported when neither direction moved a byte for the
// configured idle timeout.
var ErrIdleTimeout = errors.New("connection idle timeout")

// ErrHalfCloseTimeout is reported when one direction finished and the
// other stayed silent for the configured half-close timeout.
var ErrHalfCloseTimeout = errors.New("half-close timeout")

// ConnError is a recoverable failure of one connection. It never
// propagates past Handle.
type ConnError struct {
	ConnID string
	Stage  Stage
	Err    error
}

// Error implements the error interface.
func (e *ConnError) Error() string {
	return fmt.Sprintf("connection %s: %s failed: %v", e.ConnID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// IsConnError reports whether err carries a ConnError.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}

// handshakeFailureReason maps a handshake error to a low-cardinality
// metric label.
func handshakeFailureReason(err error) string {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	default:
		return "protocol"
	}
}
