// Package hpa removes Host Protected Area and Device Configuration Overlay
// restrictions with hdparm.
package hpa

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/execute"
	"usbzero/internal/failure"
	"usbzero/internal/logging"
	"usbzero/internal/security"
	"usbzero/internal/system"
)

// State of the removal sequence.
type State string

const (
	StateNotRequested       State = "NotRequested"
	StateProbing            State = "Probing"
	StateRestoringDCO       State = "RestoringDCO"
	StateQueryingMaxSectors State = "QueryingMaxSectors"
	StateSettingHPA         State = "SettingHPA"
	StateDone               State = "Done"
	StateFailed             State = "Failed"
)

// hdparm refuses destructive DCO/HPA changes without this flag.
const confirmFlag = "--yes-i-know-what-i-am-doing"

// "max sectors   = 1953525168/1953525168, HPA is disabled"
var maxSectorsRe = regexp.MustCompile(`max sectors\s*=\s*(\d+)(?:\s*/\s*(\d+))?`)

type Manager struct {
	runner      execute.Runner
	checker     security.PrivilegeChecker
	logger      *logging.EnterpriseLogger
	tool        string
	installHint string

	mu    sync.Mutex
	trail []State
}

func NewManager(runner execute.Runner, checker security.PrivilegeChecker, logger *logging.EnterpriseLogger, tool, installHint string) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tool == "" {
		tool = "hdparm"
	}
	return &Manager{
		runner:      runner,
		checker:     checker,
		logger:      logger,
		tool:        tool,
		installHint: installHint,
		trail:       []State{StateNotRequested},
	}
}

// CheckAvailable checks that the tool is installed and privileged commands can run.
// It changes nothing on the device.
func (m *Manager) CheckAvailable(ctx context.Context) error {
	m.reset()
	m.enter(StateProbing)

	if !security.ToolAvailable(m.runner, m.tool) {
		m.enter(StateFailed)
		err := cerr.Wrapf(failure.ErrHpaDcoUnavailable, "%s is not installed", m.tool)
		if m.installHint != "" {
			err = cerr.WithHint(err, m.installHint)
		}
		return err
	}
	if _, err := security.RequirePrivilege(ctx, m.checker); err != nil {
		m.enter(StateFailed)
		return err
	}
	return nil
}

// Remove restores the DCO, reads the native max sector count and sets the
// HPA to it. Steps run strictly in that order and stop on the first failure.
func (m *Manager) Remove(ctx context.Context, dev system.DeviceDescriptor) (bool, error) {
	if err := m.CheckAvailable(ctx); err != nil {
		return false, err
	}

	m.enter(StateRestoringDCO)
	if _, err := m.run(ctx, confirmFlag, "--dco-restore", dev.Path); err != nil {
		return false, m.fail(err, "dco restore")
	}

	m.enter(StateQueryingMaxSectors)
	res, err := m.run(ctx, "-N", dev.Path)
	if err != nil {
		return false, m.fail(err, "query max sectors")
	}
	native, ok := ParseMaxSectors(res.Stdout)
	if !ok {
		m.enter(StateFailed)
		return false, cerr.Mark(
			cerr.WithDetailf(cerr.Wrapf(failure.ErrMaxSectorsUnavailable, "%s -N %s", m.tool, dev.Path), "output: %s", res.Stdout),
			failure.ErrHpaDcoFailed,
		)
	}

	m.enter(StateSettingHPA)
	if _, err := m.run(ctx, confirmFlag, "-N", "p"+strconv.FormatUint(native, 10), dev.Path); err != nil {
		return false, m.fail(err, "set max sectors")
	}

	m.enter(StateDone)
	m.logger.Log("INFO", "HPA/DCO removed", "device", dev.Path, "max_sectors", native)
	return true, nil
}

// Trail returns the states entered since the last CheckAvailable.
func (m *Manager) Trail() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.trail...)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trail[len(m.trail)-1]
}

func (m *Manager) run(ctx context.Context, args ...string) (execute.Result, error) {
	return execute.Check(ctx, m.runner, failure.ErrHpaDcoFailed, execute.Command{
		Name:              m.tool,
		Args:              args,
		RequiresPrivilege: true,
	})
}

func (m *Manager) fail(err error, step string) error {
	m.enter(StateFailed)
	m.logger.Log("ERROR", "HPA/DCO step failed", "step", step, "error", err, "diagnostic", failure.Diagnostic(err))
	return cerr.Wrap(err, step)
}

func (m *Manager) enter(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trail = append(m.trail, s)
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trail = []State{StateNotRequested}
}

// ParseMaxSectors extracts the native max sector count from "hdparm -N".
// With "current/native" output the native value is returned.
func ParseMaxSectors(out string) (uint64, bool) {
	m := maxSectorsRe.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	v := m[1]
	if m[2] != "" {
		v = m[2]
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
