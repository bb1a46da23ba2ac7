// Package listener wraps the listening sockets inherited from the
// supervisor.
//
// The worker never binds or listens itself. Each descriptor named in
// tls_socket_fds must already be a listening TCP socket; Open checks that
// with fstat and getsockopt before wrapping it in a TLS listener built from
// the shared server context. Closing the set stops accepting without
// touching connections already established.
package listener
