//go:build linux

package system

import (
	"context"
	"path/filepath"

	"github.com/jaypipes/ghw"

	"usbzero/internal/execute"
	"usbzero/internal/logging"
)

type linuxEnumerator struct {
	runner execute.Runner
	logger *logging.EnterpriseLogger
	// blockInfo подменяется в тестах
	blockInfo func() (*ghw.BlockInfo, error)
}

func newPlatformEnumerator(runner execute.Runner, logger *logging.EnterpriseLogger) Enumerator {
	return &linuxEnumerator{
		runner:    runner,
		logger:    logger,
		blockInfo: func() (*ghw.BlockInfo, error) { return ghw.Block() },
	}
}

func (e *linuxEnumerator) ListRemovableDevices(ctx context.Context) []DeviceDescriptor {
	if devices, ok := e.fromGhw(); ok {
		return devices
	}
	return e.fromLsblk(ctx)
}

func (e *linuxEnumerator) fromGhw() ([]DeviceDescriptor, bool) {
	blockStorage, err := e.blockInfo()
	if err != nil || blockStorage == nil {
		e.logger.Log("WARN", "ghw block query failed, falling back to lsblk", "error", err)
		return nil, false
	}

	devices := make([]DeviceDescriptor, 0)
	for _, b := range blockStorage.Disks {
		if b == nil || !b.IsRemovable || skipKernelDevice(b.Name) {
			continue
		}
		model := normalizeModel(b.Model)
		if model == "" {
			model = UnknownModel
		}
		devices = append(devices, DeviceDescriptor{
			Path:          filepath.Join("/dev", b.Name),
			DisplayLetter: b.Name,
			Model:         model,
			Removable:     true,
			SizeBytes:     b.SizeBytes,
		})
	}
	return devices, true
}

func (e *linuxEnumerator) fromLsblk(ctx context.Context) []DeviceDescriptor {
	if e.runner == nil {
		return []DeviceDescriptor{}
	}
	res, err := e.runner.Run(ctx, execute.Command{Name: "lsblk", Args: []string{"-dpno", "NAME,RM,TYPE"}})
	if err != nil || !res.Success() {
		e.logger.Log("WARN", "lsblk query failed", "error", err, "exit_status", res.ExitStatus)
		return []DeviceDescriptor{}
	}
	devices := parseLsblk(res.Stdout)
	if devices == nil {
		return []DeviceDescriptor{}
	}
	return devices
}

// ResolveModel: udevadm ID_MODEL, затем модель из ghw, затем "Unknown"
func (e *linuxEnumerator) ResolveModel(ctx context.Context, dev DeviceDescriptor) string {
	if e.runner != nil && dev.Path != "" {
		res, err := e.runner.Run(ctx, execute.Command{Name: "udevadm", Args: []string{"info", "--query=property", "--name=" + dev.Path}})
		if err == nil && res.Success() {
			if m := parseUdevModel(res.Stdout); m != "" {
				return m
			}
		}
	}
	if m := normalizeModel(dev.Model); m != "" && m != UnknownModel {
		return m
	}
	return UnknownModel
}
