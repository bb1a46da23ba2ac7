// Package lifecycle tracks whether the worker is running, draining or
// stopped, and turns signals into transitions.
//
// A drain is requested by SIGTERM or SIGINT: listeners stop accepting and
// open connections are allowed to finish. Losing the supervisor is
// different. It stops the worker at once, whatever the current state.
// The loss is detected two ways: the kernel delivers ParentDeathSignal
// (see SetParentDeathSignal), and a ParentWatcher notices the parent pid
// changing.
//
// SIGUSR1 only logs a status line.
package lifecycle
