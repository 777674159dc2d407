//go:build !unix && !windows

package security

import "usbzero/internal/execute"

func processElevation() execute.Elevation { return execute.ElevationNone }

func sudoSupported() bool { return false }
