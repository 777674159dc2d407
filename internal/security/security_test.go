package security

import (
	"context"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usbzero/internal/config"
	"usbzero/internal/execute"
	"usbzero/internal/execute/executetest"
	"usbzero/internal/failure"
	"usbzero/internal/system"
)

func TestDetectElevationViaSudo(t *testing.T) {
	if processElevation() != execute.ElevationNone || !sudoSupported() {
		t.Skip("process is already elevated or sudo is not applicable")
	}
	ctx := context.Background()

	ok := executetest.NewFakeRunner().Installed("sudo")
	assert.Equal(t, execute.ElevationSudo, DetectElevation(ctx, ok))
	assert.Equal(t, []string{"sudo -n true"}, ok.Calls())

	denied := executetest.NewFakeRunner().Installed("sudo").
		On("sudo -n true", execute.Result{ExitStatus: 1, Stderr: "sudo: a password is required"}, nil)
	assert.Equal(t, execute.ElevationNone, DetectElevation(ctx, denied))

	missing := executetest.NewFakeRunner()
	assert.Equal(t, execute.ElevationNone, DetectElevation(ctx, missing))
	assert.Empty(t, missing.Calls())
}

func TestRequirePrivilege(t *testing.T) {
	ctx := context.Background()

	e, err := RequirePrivilege(ctx, StaticChecker(execute.ElevationSudo))
	require.NoError(t, err)
	assert.Equal(t, execute.ElevationSudo, e)

	_, err = RequirePrivilege(ctx, StaticChecker(execute.ElevationNone))
	require.Error(t, err)
	assert.True(t, cerr.Is(err, failure.ErrPrivilegeDenied))
	assert.NotEmpty(t, failure.Hints(err))
}

func TestToolAvailable(t *testing.T) {
	r := executetest.NewFakeRunner().Installed("hdparm")
	assert.True(t, ToolAvailable(r, "hdparm"))
	assert.False(t, ToolAvailable(r, "parted"))
	assert.False(t, ToolAvailable(nil, "hdparm"))
}

func TestShouldSkipDevice(t *testing.T) {
	cfg := config.Default()
	cfg.Security.ExcludedDevices = []string{"/dev/sdc", "F:"}

	tests := []struct {
		name string
		dev  system.DeviceDescriptor
		skip bool
	}{
		{"removable", system.DeviceDescriptor{Path: "/dev/sdb", Removable: true}, false},
		{"fixed", system.DeviceDescriptor{Path: "/dev/sda", Removable: false}, true},
		{"sentinel", system.DeviceDescriptor{Path: system.NoDeviceSentinel, Removable: true}, true},
		{"excluded path", system.DeviceDescriptor{Path: "/dev/sdc", Removable: true}, true},
		{"excluded letter", system.DeviceDescriptor{Path: `F:\`, DisplayLetter: "F:", Removable: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.skip, ShouldSkipDevice(cfg, tt.dev))
		})
	}
}
