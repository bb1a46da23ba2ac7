//go:build !linux

package lifecycle

import "syscall"

// SetParentDeathSignal is a no-op here; ParentWatcher covers this platform.
func SetParentDeathSignal(sig syscall.Signal) error {
	return nil
}
