//go:build unix

package security

import (
	"golang.org/x/sys/unix"

	"usbzero/internal/execute"
)

func processElevation() execute.Elevation {
	if unix.Geteuid() == 0 {
		return execute.ElevationRoot
	}
	return execute.ElevationNone
}

func sudoSupported() bool { return true }
