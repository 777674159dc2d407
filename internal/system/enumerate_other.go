//go:build !linux && !windows

package system

import (
	"context"

	"usbzero/internal/execute"
	"usbzero/internal/logging"
)

// На прочих ОС съемные устройства не поддерживаются
type noopEnumerator struct{}

func newPlatformEnumerator(execute.Runner, *logging.EnterpriseLogger) Enumerator {
	return noopEnumerator{}
}

func (noopEnumerator) ListRemovableDevices(context.Context) []DeviceDescriptor {
	return []DeviceDescriptor{}
}

func (noopEnumerator) ResolveModel(context.Context, DeviceDescriptor) string {
	return UnknownModel
}
