//go:build windows

package system

import (
	"context"

	"golang.org/x/sys/windows"

	"usbzero/internal/execute"
	"usbzero/internal/logging"
)

type windowsEnumerator struct {
	runner execute.Runner
	logger *logging.EnterpriseLogger
}

func newPlatformEnumerator(runner execute.Runner, logger *logging.EnterpriseLogger) Enumerator {
	return &windowsEnumerator{runner: runner, logger: logger}
}

func (e *windowsEnumerator) ListRemovableDevices(ctx context.Context) []DeviceDescriptor {
	devices := make([]DeviceDescriptor, 0)

	mask, err := windows.GetLogicalDrives()
	if err != nil {
		e.logger.Log("WARN", "GetLogicalDrives failed", "error", err)
		return devices
	}

	for c := 0; c < 26; c++ {
		if mask&(1<<uint(c)) == 0 {
			continue
		}
		letter := string(rune('A'+c)) + ":"
		root := letter + `\`
		rootPtr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		if windows.GetDriveType(rootPtr) != windows.DRIVE_REMOVABLE {
			continue
		}

		var free, total, totalFree uint64
		if err := windows.GetDiskFreeSpaceEx(rootPtr, &free, &total, &totalFree); err != nil {
			// Пустой кардридер
			continue
		}

		devices = append(devices, DeviceDescriptor{
			Path:          root,
			DisplayLetter: letter,
			Model:         UnknownModel,
			Removable:     true,
			SizeBytes:     total,
		})
	}
	return devices
}

// ResolveModel: раздел по букве, затем модель диска по индексу
func (e *windowsEnumerator) ResolveModel(ctx context.Context, dev DeviceDescriptor) string {
	if e.runner == nil {
		return UnknownModel
	}
	letter := dev.DisplayLetter
	if letter == "" {
		letter = dev.Path
	}

	res, err := e.runner.Run(ctx, execute.Command{Name: "wmic", Args: []string{"path", "Win32_LogicalDiskToPartition", "get", "*"}})
	if err != nil || !res.Success() {
		return UnknownModel
	}
	index := parseWmicDiskIndex(res.Stdout, letter)
	if index == "" {
		return UnknownModel
	}

	res, err = e.runner.Run(ctx, execute.Command{Name: "wmic", Args: []string{"diskdrive", "get", "index,model"}})
	if err != nil || !res.Success() {
		return UnknownModel
	}
	if m := normalizeModel(parseWmicModel(res.Stdout, index)); m != "" {
		return m
	}
	return UnknownModel
}
