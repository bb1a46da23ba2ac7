package tracing

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanConnection = "tls.connection"
	SpanHandshake  = "tls.handshake"
	SpanDial       = "backend.dial"
)

// Attribute keys. Network keys follow the OpenTelemetry conventions, the
// rest live under "gl.".
const (
	AttrConnID          = "gl.connection.id"
	AttrListener        = "gl.listener"
	AttrPeerAddress     = "network.peer.address"
	AttrBackendAddress  = "server.address"
	AttrTLSVersion      = "tls.protocol.version"
	AttrTLSCipher       = "tls.cipher"
	AttrTLSResumed      = "tls.resumed"
	AttrHandshakeMillis = "gl.handshake.duration_ms"
	AttrBytesUpstream   = "gl.bytes.client_to_backend"
	AttrBytesDownstream = "gl.bytes.backend_to_client"
	AttrCloseReason     = "gl.close.reason"
	AttrErrorMessage    = "error.message"
)

// ConnInfo identifies a client connection.
type ConnInfo struct {
	ID       string
	Listener string
	Remote   string
}

func (c ConnInfo) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrConnID, c.ID),
		attribute.String(AttrListener, c.Listener),
		attribute.String(AttrPeerAddress, c.Remote),
	}
}

// SetHandshakeAttributes records the negotiated session.
func SetHandshakeAttributes(span trace.Span, version, cipher string, resumed bool, d time.Duration) {
	span.SetAttributes(
		attribute.String(AttrTLSVersion, version),
		attribute.String(AttrTLSCipher, cipher),
		attribute.Bool(AttrTLSResumed, resumed),
		attribute.Int64(AttrHandshakeMillis, d.Milliseconds()),
	)
}

// SetBackendAttributes records the backend address.
func SetBackendAttributes(span trace.Span, addr string) {
	span.SetAttributes(attribute.String(AttrBackendAddress, addr))
}

// EndConnection records the byte counts and close reason, sets the status
// and ends span.
func EndConnection(span trace.Span, up, down int64, reason string, err error) {
	span.SetAttributes(
		attribute.Int64(AttrBytesUpstream, up),
		attribute.Int64(AttrBytesDownstream, down),
		attribute.String(AttrCloseReason, reason),
	)
	SetError(span, err)
	SetStatus(span, err)
	span.End()
}
