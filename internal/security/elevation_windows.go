//go:build windows

package security

import (
	"golang.org/x/sys/windows"

	"usbzero/internal/execute"
)

// Процесс считается привилегированным при повышенном токене
func processElevation() execute.Elevation {
	if windows.GetCurrentProcessToken().IsElevated() {
		return execute.ElevationAdmin
	}
	return execute.ElevationNone
}

func sudoSupported() bool { return false }
