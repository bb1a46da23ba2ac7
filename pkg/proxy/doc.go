// Package proxy relays decrypted client traffic to the local backend.
//
// Every accepted connection is owned by one goroutine that drives it
// through a fixed sequence of states:
//
//	Accepted -> Handshaking -> Relaying -> Closing -> Closed
//
// The TLS handshake runs explicitly with a deadline. The backend is dialled
// only once the handshake has completed, so a client that never finishes
// the handshake never costs a backend connection.
//
// # Relay
//
// Two goroutines copy bytes, one per direction, each through a single
// fixed-size buffer. A direction only reads when its previous chunk has
// been written, so a slow consumer stalls its producer instead of growing
// memory.
//
// When one side finishes sending, the proxy half-closes the other side
// (CloseWrite) and keeps relaying the opposite direction until it ends
// too. From then on each read of the remaining direction is bounded by
// HalfCloseTimeout, so a peer that never closes cannot pin the connection.
// An error in either direction closes both connections.
//
// # Errors
//
// Nothing a single connection does is fatal to the process. Failures are
// wrapped in a ConnError, logged, counted and dropped at the end of Handle.
//
// # Usage
//
//	p, err := proxy.New(proxy.Config{BackendAddr: "127.0.0.1:8082"},
//	    proxy.WithLogger(log),
//	    proxy.WithMetrics(collector),
//	    proxy.WithAdmitter(controller),
//	)
//	if err != nil {
//	    return err
//	}
//	go p.Serve(ctx, ln)
//	...
//	p.Wait(drainCtx)
package proxy
