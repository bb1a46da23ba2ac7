// Package security groups the worker's transport security code.
//
// The tls subpackage validates the key material handed over by the
// supervisor, builds the server TLS configuration and watches the
// certificate for upcoming expiry.
package security
