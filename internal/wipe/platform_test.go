package wipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usbzero/internal/execute"
	"usbzero/internal/execute/executetest"
	"usbzero/internal/failure"
	"usbzero/internal/system"
)

func TestBlockDeviceFormatSequence(t *testing.T) {
	runner := executetest.NewFakeRunner()
	p := NewBlockDevicePlatform(PlatformOptions{Runner: runner})

	require.NoError(t, p.Format(context.Background(), system.DeviceDescriptor{Path: "/dev/sdx"}))
	assert.Equal(t, []string{
		"parted -s /dev/sdx mklabel gpt",
		"parted -s /dev/sdx mkpart primary 0% 100%",
		"udevadm settle",
		"mkfs.ext4 -F /dev/sdx1",
	}, runner.Calls())

	for _, c := range runner.Commands() {
		assert.True(t, c.RequiresPrivilege, c.String())
	}
}

func TestBlockDeviceFormatFailureStopsAndCarriesStderr(t *testing.T) {
	runner := executetest.NewFakeRunner().
		On("parted -s /dev/sdx mkpart", execute.Result{ExitStatus: 1, Stderr: "Error: Partition(s) on /dev/sdx are being used."}, nil)
	p := NewBlockDevicePlatform(PlatformOptions{Runner: runner})

	err := p.Format(context.Background(), system.DeviceDescriptor{Path: "/dev/sdx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrFormatFailed)
	assert.Equal(t, "Error: Partition(s) on /dev/sdx are being used.", failure.Diagnostic(err))
	assert.Len(t, runner.Calls(), 2)
}

func TestBlockDeviceOverwritePassStreamsPayload(t *testing.T) {
	runner := executetest.NewFakeRunner()
	p := NewBlockDevicePlatform(PlatformOptions{Runner: runner, PassPayloadMB: 1})

	artifact, err := p.OverwritePass(context.Background(), system.DeviceDescriptor{Path: "/dev/sdx"}, 1, AlgorithmDoD5220)
	require.NoError(t, err)
	assert.Equal(t, "Pass 2 complete (0xFF, 1 MiB)", artifact)
	assert.Equal(t, []string{"dd of=/dev/sdx bs=1M count=1 iflag=fullblock conv=fsync status=none"}, runner.Calls())
	assert.Equal(t, []int64{1024 * 1024}, runner.StdinBytes())
}

func TestBlockDeviceOverwritePassFailure(t *testing.T) {
	runner := executetest.NewFakeRunner().
		On("dd", execute.Result{ExitStatus: 1, Stderr: "dd: error writing '/dev/sdx': No space left on device"}, nil)
	p := NewBlockDevicePlatform(PlatformOptions{Runner: runner, PassPayloadMB: 1})

	_, err := p.OverwritePass(context.Background(), system.DeviceDescriptor{Path: "/dev/sdx"}, 0, AlgorithmRandom)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrOverwriteFailed)
	assert.Contains(t, failure.Diagnostic(err), "No space left")
}

func TestBlockDevicePrivilegeDeniedDoesNotHang(t *testing.T) {
	p := NewBlockDevicePlatform(PlatformOptions{Runner: execute.NewExecRunner(nil, execute.ElevationNone), PassPayloadMB: 1})

	_, err := p.OverwritePass(context.Background(), system.DeviceDescriptor{Path: "/dev/sdx"}, 0, AlgorithmRandom)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, failure.ErrPrivilegeDenied))
}

func TestVolumeFormatCommand(t *testing.T) {
	runner := executetest.NewFakeRunner()
	p := NewVolumePlatform(PlatformOptions{Runner: runner})

	require.NoError(t, p.Format(context.Background(), system.DeviceDescriptor{Path: `E:\`, DisplayLetter: "E:"}))
	assert.Equal(t, []string{"format E: /fs:NTFS /q /x /y"}, runner.Calls())
}

func TestVolumeOverwritePassWritesAndRemovesFile(t *testing.T) {
	root := t.TempDir()
	p := NewVolumePlatform(PlatformOptions{PassPayloadMB: 1, Write: WriteOptions{ChunkSize: 64 * 1024}})

	artifact, err := p.OverwritePass(context.Background(), system.DeviceDescriptor{Path: root}, 2, AlgorithmZero)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "usbzero_wipe_pass_2.bin"), artifact)

	_, statErr := os.Stat(artifact)
	assert.True(t, os.IsNotExist(statErr))
}

func TestVolumeOverwritePassFailure(t *testing.T) {
	p := NewVolumePlatform(PlatformOptions{PassPayloadMB: 1})

	_, err := p.OverwritePass(context.Background(), system.DeviceDescriptor{Path: filepath.Join(t.TempDir(), "missing")}, 0, AlgorithmZero)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, failure.ErrOverwriteFailed))
}
