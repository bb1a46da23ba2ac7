package cli

import (
	"os"
	"os/signal"
	"syscall"

	"globaleaks/tlsworker/pkg/lifecycle"
)

// WorkerSignals are the signals the worker reacts to.
var WorkerSignals = []os.Signal{
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGUSR1,
	lifecycle.ParentDeathSignal,
}

// NotifyWorkerSignals subscribes to WorkerSignals. Call stop to
// unsubscribe.
func NotifyWorkerSignals() (signals <-chan os.Signal, stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, WorkerSignals...)
	return ch, func() { signal.Stop(ch) }
}
