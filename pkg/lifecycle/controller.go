package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"globaleaks/tlsworker/pkg/telemetry/logging"
)

// State is the process-wide lifecycle state.
type State int32

// Lifecycle states. Transitions only move forward.
const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrSupervisorGone is the stop cause when the parent process died.
var ErrSupervisorGone = errors.New("supervisor process is gone")

// ParentDeathSignal is delivered by the kernel when the supervisor exits.
// See SetParentDeathSignal.
const ParentDeathSignal = syscall.SIGHUP

// Status is a point-in-time view of the controller.
type Status struct {
	State  State
	Uptime time.Duration
	Reason string

	// Extra holds key/value pairs contributed by diagnostics.
	Extra []any
}

// Controller owns the Running -> Draining -> Stopped state machine.
type Controller struct {
	log     *logging.Logger
	started time.Time

	state atomic.Int32

	draining chan struct{}
	stopped  chan struct{}

	mu          sync.Mutex
	reason      string
	cause       error
	diagnostics []func() []any
	observers   []func(State)
}

// New creates a controller in the Running state.
func New(log *logging.Logger) *Controller {
	if log == nil {
		log = logging.Discard()
	}
	return &Controller{
		log:      log,
		started:  time.Now(),
		draining: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Admitting reports whether new connections should be served.
func (c *Controller) Admitting() bool {
	return c.State() == StateRunning
}

// Draining is closed once the controller leaves Running.
func (c *Controller) Draining() <-chan struct{} {
	return c.draining
}

// Stopped is closed once the controller reaches Stopped.
func (c *Controller) Stopped() <-chan struct{} {
	return c.stopped
}

// Cause returns the error passed to Stop, if any.
func (c *Controller) Cause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// OnTransition registers fn to be called with every new state.
func (c *Controller) OnTransition(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// OnDiagnostic registers fn to contribute key/value pairs to Status.
func (c *Controller) OnDiagnostic(fn func() []any) {
	c.mu.Lock()
	c.diagnostics = append(c.diagnostics, fn)
	c.mu.Unlock()
}

// Drain moves Running to Draining. It reports whether the transition
// happened; calls in any other state are ignored.
func (c *Controller) Drain(reason string) bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return false
	}
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()

	close(c.draining)
	c.log.Info("draining", "reason", reason)
	c.notify(StateDraining)
	return true
}

// Stop moves to Stopped from any state. cause is nil for an orderly stop.
// It reports whether the transition happened.
func (c *Controller) Stop(cause error) bool {
	prev := c.state.Swap(int32(StateStopped))
	if State(prev) == StateStopped {
		return false
	}
	c.mu.Lock()
	c.cause = cause
	if c.reason == "" && cause != nil {
		c.reason = cause.Error()
	}
	c.mu.Unlock()

	if State(prev) == StateRunning {
		close(c.draining)
	}
	close(c.stopped)

	if cause != nil {
		c.log.Info("stopped", "from", State(prev).String(), "cause", cause.Error())
	} else {
		c.log.Info("stopped", "from", State(prev).String())
	}
	c.notify(StateStopped)
	return true
}

// Status returns the current state, uptime and diagnostics.
func (c *Controller) Status() Status {
	c.mu.Lock()
	diags := append([]func() []any(nil), c.diagnostics...)
	reason := c.reason
	c.mu.Unlock()

	st := Status{
		State:  c.State(),
		Uptime: time.Since(c.started).Truncate(time.Second),
		Reason: reason,
	}
	for _, fn := range diags {
		st.Extra = append(st.Extra, fn()...)
	}
	return st
}

// LogStatus writes the status line requested by SIGUSR1.
func (c *Controller) LogStatus() {
	st := c.Status()
	args := []any{"state", st.State.String(), "uptime", st.Uptime}
	if st.Reason != "" {
		args = append(args, "reason", st.Reason)
	}
	c.log.Info("Received sig", append(args, st.Extra...)...)
}

// Run dispatches signals until the controller stops or ctx is done.
//
//	SIGTERM, SIGINT     begin draining
//	ParentDeathSignal   stop with ErrSupervisorGone
//	SIGUSR1             log a status line
func (c *Controller) Run(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopped:
			return
		case sig := <-signals:
			c.HandleSignal(sig)
		}
	}
}

// HandleSignal applies the action bound to sig.
func (c *Controller) HandleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		c.log.Info(fmt.Sprintf("Received %s . . . quitting", signalName(sig)))
		c.Drain(signalName(sig))
	case ParentDeathSignal:
		c.log.Warn(fmt.Sprintf("Received %s . . . supervisor is gone", signalName(sig)))
		c.Stop(ErrSupervisorGone)
	case syscall.SIGUSR1:
		c.LogStatus()
	default:
		c.log.Debug("ignoring signal", "signal", sig.String())
	}
}

func (c *Controller) notify(s State) {
	// A concurrent Stop may already have overtaken a Drain.
	if c.State() != s {
		return
	}
	c.mu.Lock()
	obs := append(([]func(State))(nil), c.observers...)
	c.mu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGUSR1:
		return "SIGUSR1"
	default:
		return sig.String()
	}
}
