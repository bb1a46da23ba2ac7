package lifecycle

import (
	"context"
	"os"
	"time"

	"globaleaks/tlsworker/pkg/telemetry/logging"
)

// DefaultParentPollInterval is how often ParentWatcher checks the parent.
const DefaultParentPollInterval = time.Second

// ParentWatcher calls onGone once the process has been re-parented,
// which happens when the supervisor exits.
type ParentWatcher struct {
	interval time.Duration
	initial  int
	getppid  func() int
	onGone   func()
	log      *logging.Logger
}

// NewParentWatcher watches for the process to leave parent. A parent of
// zero or less uses the current parent pid. Callers should capture the
// pid as early as possible, since a parent that dies first is never seen.
func NewParentWatcher(parent int, interval time.Duration, onGone func(), log *logging.Logger) *ParentWatcher {
	if parent <= 0 {
		parent = os.Getppid()
	}
	if interval <= 0 {
		interval = DefaultParentPollInterval
	}
	if log == nil {
		log = logging.Discard()
	}
	return &ParentWatcher{
		interval: interval,
		initial:  parent,
		getppid:  os.Getppid,
		onGone:   onGone,
		log:      log,
	}
}

// Parent returns the parent pid being watched.
func (w *ParentWatcher) Parent() int {
	return w.initial
}

// Check compares the current parent once and calls onGone when it
// changed. It reports whether the parent went away.
func (w *ParentWatcher) Check() bool {
	ppid := w.getppid()
	if ppid == w.initial {
		return false
	}
	w.log.Warn("parent process changed", "was", w.initial, "now", ppid)
	w.onGone()
	return true
}

// Watch checks immediately, then polls until the parent changes or ctx
// is done. It returns true when the parent went away.
func (w *ParentWatcher) Watch(ctx context.Context) bool {
	if w.Check() {
		return true
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if w.Check() {
				return true
			}
		}
	}
}
