//go:build linux

package lifecycle

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SetParentDeathSignal asks the kernel to send sig when the parent exits.
func SetParentDeathSignal(sig syscall.Signal) error {
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(sig), 0, 0, 0)
}
