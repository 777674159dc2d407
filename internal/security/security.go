package security

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/config"
	"usbzero/internal/execute"
	"usbzero/internal/failure"
	"usbzero/internal/system"
)

// PrivilegeChecker проверяет возможность выполнять привилегированные команды.
// Проверка не изменяет систему.
type PrivilegeChecker interface {
	Elevation(ctx context.Context) execute.Elevation
}

// DetectingChecker определяет уровень привилегий через DetectElevation.
type DetectingChecker struct {
	Runner execute.Runner
}

func (p DetectingChecker) Elevation(ctx context.Context) execute.Elevation {
	return DetectElevation(ctx, p.Runner)
}

// StaticChecker всегда сообщает заданный уровень (тесты, --assume-root)
type StaticChecker execute.Elevation

func (s StaticChecker) Elevation(context.Context) execute.Elevation {
	return execute.Elevation(s)
}

// DetectElevation определяет уровень привилегий текущего процесса.
// root/admin проверяется напрямую, иначе пробуется "sudo -n true".
func DetectElevation(ctx context.Context, runner execute.Runner) execute.Elevation {
	if e := processElevation(); e != execute.ElevationNone {
		return e
	}
	if runner == nil || !sudoSupported() {
		return execute.ElevationNone
	}
	if _, err := runner.LookPath("sudo"); err != nil {
		return execute.ElevationNone
	}
	res, err := runner.Run(ctx, execute.Command{Name: "sudo", Args: []string{"-n", "true"}})
	if err != nil || !res.Success() {
		return execute.ElevationNone
	}
	return execute.ElevationSudo
}

// RequirePrivilege возвращает ErrPrivilegeDenied если повышения прав нет
func RequirePrivilege(ctx context.Context, checker PrivilegeChecker) (execute.Elevation, error) {
	e := checker.Elevation(ctx)
	if !e.Elevated() {
		return e, cerr.WithHint(
			cerr.Wrap(failure.ErrPrivilegeDenied, "требуются права администратора"),
			"run as root, via sudo, or from an elevated prompt",
		)
	}
	return e, nil
}

// ToolAvailable проверяет наличие утилиты в PATH
func ToolAvailable(runner execute.Runner, tool string) bool {
	if runner == nil || tool == "" {
		return false
	}
	_, err := runner.LookPath(tool)
	return err == nil
}

// ShouldSkipDevice проверяет, запрещено ли устройство к выбору
func ShouldSkipDevice(cfg *config.Config, dev system.DeviceDescriptor) bool {
	if !dev.Removable {
		return true
	}
	if dev.Path == "" || dev.Path == system.NoDeviceSentinel {
		return true
	}
	if cfg != nil {
		for _, excluded := range cfg.Security.ExcludedDevices {
			excluded = strings.TrimSpace(excluded)
			if strings.EqualFold(dev.Path, excluded) || (dev.DisplayLetter != "" && strings.EqualFold(dev.DisplayLetter, excluded)) {
				return true
			}
		}
	}
	return false
}
