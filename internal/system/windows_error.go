package system

import "strings"

const (
	// Windows error codes
	ERROR_NOT_READY = 0x15
	ERROR_DISK_FULL = 112
)

// IsWindowsError сопоставляет текст ошибки с кодом Windows.
// Используется и для POSIX сообщений "no space left on device".
func IsWindowsError(err error, code uint32) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	switch code {
	case ERROR_DISK_FULL:
		return strings.Contains(msg, "disk full") ||
			strings.Contains(msg, "not enough space") ||
			strings.Contains(msg, "no space")
	case ERROR_NOT_READY:
		return strings.Contains(msg, "not ready") ||
			strings.Contains(msg, "no medium")
	}
	return false
}
