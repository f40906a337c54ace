//go:build linux

// Package logchan implements the writer side of the Log Channel: a named
// pipe between the gateway process and a dedicated log-writer child.
// Sequence numbers and timestamps are assigned solely by the reader side
// (internal/logwriter); this package only frames and serializes writes.
package logchan

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// createFIFO creates the named pipe at path if it does not already exist.
func createFIFO(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil
		}
		return fmt.Errorf("logchan: mkfifo %s: %w", path, err)
	}
	return nil
}
