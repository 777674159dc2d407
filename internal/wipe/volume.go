package wipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/execute"
	"usbzero/internal/failure"
	"usbzero/internal/system"
)

// VolumePlatform стирание тома Windows: format и файлы заполнения
type VolumePlatform struct {
	opts PlatformOptions
}

func NewVolumePlatform(opts PlatformOptions) *VolumePlatform {
	if opts.Filesystem == "" || opts.Filesystem == "ext4" {
		opts.Filesystem = "NTFS"
	}
	return &VolumePlatform{opts: opts}
}

func (p *VolumePlatform) Name() string { return "windows" }

func (p *VolumePlatform) SupportsHpaDco() bool { return false }

func (p *VolumePlatform) Format(ctx context.Context, dev system.DeviceDescriptor) error {
	letter := volumeLetter(dev)
	p.opts.logger().Log("INFO", "Форматирование тома", "volume", letter, "fs", p.opts.Filesystem)

	cmd := execute.Command{
		Name:              "format",
		Args:              []string{letter, "/fs:" + p.opts.Filesystem, "/q", "/x", "/y"},
		RequiresPrivilege: true,
	}
	if _, err := execute.Check(ctx, p.opts.Runner, failure.ErrFormatFailed, cmd); err != nil {
		return cerr.Wrapf(err, "format %s", letter)
	}
	return nil
}

// OverwritePass пишет файл прохода в корень тома, синхронизирует и удаляет его.
// Артефакт это путь удаленного файла.
func (p *VolumePlatform) OverwritePass(ctx context.Context, dev system.DeviceDescriptor, passIndex int, alg Algorithm) (string, error) {
	root := dev.Path
	if root == "" {
		root = volumeLetter(dev) + `\`
	}
	name := filepath.Join(root, fmt.Sprintf("usbzero_wipe_pass_%d.bin", passIndex))

	if err := p.writePassFile(ctx, name, PassPattern(alg, passIndex)); err != nil {
		_ = os.Remove(name)
		if system.IsWindowsError(err, system.ERROR_DISK_FULL) {
			err = cerr.WithHint(err, "volume is smaller than the pass payload, lower wipe.pass_payload_mb")
		} else if system.IsWindowsError(err, system.ERROR_NOT_READY) {
			err = cerr.WithHint(err, "device is not ready, reinsert it and retry")
		}
		return "", cerr.Mark(cerr.Wrapf(err, "pass %d", passIndex+1), failure.ErrOverwriteFailed)
	}

	if err := os.Remove(name); err != nil {
		return "", cerr.Mark(cerr.Wrapf(err, "remove %s", name), failure.ErrOverwriteFailed)
	}
	return name, nil
}

func (p *VolumePlatform) writePassFile(ctx context.Context, name string, pattern Pattern) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	// WritePattern синхронизирует файл перед возвратом
	if _, err := WritePattern(ctx, f, pattern, p.opts.payloadBytes(), p.opts.Write); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func volumeLetter(dev system.DeviceDescriptor) string {
	if dev.DisplayLetter != "" {
		return strings.TrimSuffix(dev.DisplayLetter, `\`)
	}
	return strings.TrimSuffix(dev.Path, `\`)
}
