//go:build !linux

package logchan

import "errors"

// ErrUnsupportedPlatform indicates the Log Channel's named-pipe transport
// is only implemented for Linux.
var ErrUnsupportedPlatform = errors.New("logchan: named pipes are only supported on linux")

func createFIFO(path string) error {
	return ErrUnsupportedPlatform
}
