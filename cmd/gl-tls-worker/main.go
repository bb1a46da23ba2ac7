// gl-tls-worker terminates TLS for a GlobaLeaks backend.
//
// The supervisor starts the worker with the listening sockets already open
// and writes a JSON document describing the key material and the backend
// to descriptor 42. The worker relays every accepted connection to the
// backend on 127.0.0.1 until it is told to stop.
//
// Usage:
//
//	# Run under the supervisor
//	gl-tls-worker
//
//	# Read the configuration from another descriptor, with debug logs
//	gl-tls-worker run --config-fd 3 --log-level debug
//
//	# Check a configuration document offline
//	gl-tls-worker validate config.json
//
//	# Inspect a certificate
//	gl-tls-worker certs info server.crt
package main

import "os"

// parentPID is read during package initialization, before any setup
// work, so a supervisor that dies while the worker starts is noticed.
var parentPID = os.Getppid()

func main() {
	Execute()
}
