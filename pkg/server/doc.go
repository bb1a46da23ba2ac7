// Package server runs the TLS worker: it reads the supervisor's
// configuration, opens the inherited listeners and relays connections
// until the lifecycle controller says stop.
//
// # Startup
//
// Start performs these steps in order. The first failure aborts startup
// with a *worker.StartupError naming the step, and nothing is accepted:
//
//  1. read the JSON configuration from the config descriptor (once)
//  2. refuse any backend other than 127.0.0.1 or localhost
//  3. validate the key, certificate, chain and DH parameters
//  4. build the TLS server configuration
//  5. wrap every inherited descriptor as a TLS listener
//  6. start the admin endpoints, if metrics or health are enabled
//
// The certificate monitor, parent watcher and settings watcher are then
// started, and one accept loop runs per listener.
//
// # Shutdown
//
//	srv := server.New(cfg, server.Deps{Telemetry: tel, Signals: sigs})
//	if err := srv.Start(ctx); err != nil {
//	    return err // exit non-zero
//	}
//	err := srv.Run(ctx)
//
// SIGTERM or SIGINT starts a drain: listeners close, open connections
// finish (bounded by proxy.drain_timeout when set), then Run returns nil.
// If the supervisor dies, everything closes at once and Run returns
// ErrSupervisorGone.
package server
