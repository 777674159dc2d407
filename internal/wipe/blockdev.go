package wipe

import (
	"context"
	"fmt"
	"io"
	"strconv"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/execute"
	"usbzero/internal/failure"
	"usbzero/internal/system"
)

// BlockDevicePlatform стирание блочного устройства Linux через parted, mkfs и dd
type BlockDevicePlatform struct {
	opts PlatformOptions
}

func NewBlockDevicePlatform(opts PlatformOptions) *BlockDevicePlatform {
	if opts.Filesystem == "" {
		opts.Filesystem = "ext4"
	}
	return &BlockDevicePlatform{opts: opts}
}

func (p *BlockDevicePlatform) Name() string { return "linux" }

func (p *BlockDevicePlatform) SupportsHpaDco() bool { return true }

// Format: новая GPT, один раздел на весь диск, mkfs на разделе
func (p *BlockDevicePlatform) Format(ctx context.Context, dev system.DeviceDescriptor) error {
	log := p.opts.logger()
	log.Log("INFO", "Форматирование устройства", "device", dev.Path, "fs", p.opts.Filesystem)

	steps := []execute.Command{
		{Name: "parted", Args: []string{"-s", dev.Path, "mklabel", "gpt"}, RequiresPrivilege: true},
		{Name: "parted", Args: []string{"-s", dev.Path, "mkpart", "primary", "0%", "100%"}, RequiresPrivilege: true},
	}
	for _, cmd := range steps {
		if _, err := execute.Check(ctx, p.opts.Runner, failure.ErrFormatFailed, cmd); err != nil {
			return cerr.Wrapf(err, "format %s", dev.Path)
		}
	}

	// Ядру нужно время, чтобы появился узел раздела
	if res, err := p.opts.Runner.Run(ctx, execute.Command{Name: "udevadm", Args: []string{"settle"}, RequiresPrivilege: true}); err != nil || !res.Success() {
		log.Log("DEBUG", "udevadm settle unavailable", "error", err)
	}
	if err := sleepContext(ctx, p.opts.SettleDelay); err != nil {
		return cerr.Mark(cerr.Wrap(err, "format interrupted"), failure.ErrFormatFailed)
	}

	part := PartitionPath(dev.Path)
	mkfs := execute.Command{Name: "mkfs." + p.opts.Filesystem, Args: []string{"-F", part}, RequiresPrivilege: true}
	if p.opts.Filesystem == "vfat" || p.opts.Filesystem == "exfat" {
		mkfs.Args = []string{part}
	}
	if _, err := execute.Check(ctx, p.opts.Runner, failure.ErrFormatFailed, mkfs); err != nil {
		return cerr.Wrapf(err, "format %s", dev.Path)
	}

	log.Log("INFO", "Форматирование завершено", "device", dev.Path, "partition", part)
	return nil
}

// OverwritePass передает паттерн прохода в dd через stdin
func (p *BlockDevicePlatform) OverwritePass(ctx context.Context, dev system.DeviceDescriptor, passIndex int, alg Algorithm) (string, error) {
	pattern := PassPattern(alg, passIndex)
	size := p.opts.payloadBytes()
	mb := size / (1024 * 1024)

	pr, pw := io.Pipe()
	go func() {
		_, err := WritePattern(ctx, pw, pattern, size, p.opts.Write)
		pw.CloseWithError(err)
	}()

	cmd := execute.Command{
		Name: "dd",
		Args: []string{
			"of=" + dev.Path,
			"bs=1M",
			"count=" + strconv.FormatInt(mb, 10),
			"iflag=fullblock",
			"conv=fsync",
			"status=none",
		},
		RequiresPrivilege: true,
		Stdin:             pr,
	}
	_, err := execute.Check(ctx, p.opts.Runner, failure.ErrOverwriteFailed, cmd)
	// dd мог завершиться раньше, чем прочитал весь поток
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Pass %d complete (%s, %d MiB)", passIndex+1, pattern, mb), nil
}

// PartitionPath имя первого раздела: nvme0n1 -> nvme0n1p1, sdb -> sdb1
func PartitionPath(dev string) string {
	if dev == "" {
		return ""
	}
	last := dev[len(dev)-1]
	if last >= '0' && last <= '9' {
		return dev + "p1"
	}
	return dev + "1"
}
