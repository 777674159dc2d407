// Package execute runs external commands with captured output and structured logging.
package execute

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/failure"
	"usbzero/internal/logging"
)

// Elevation how privileged commands are run.
type Elevation string

const (
	ElevationNone  Elevation = "none"
	ElevationRoot  Elevation = "root"
	ElevationSudo  Elevation = "sudo"
	ElevationAdmin Elevation = "admin"
)

// Elevated reports whether privileged commands can run.
func (e Elevation) Elevated() bool {
	return e == ElevationRoot || e == ElevationSudo || e == ElevationAdmin
}

// Command is a single external invocation.
type Command struct {
	Name              string
	Args              []string
	RequiresPrivilege bool
	Stdin             io.Reader
}

func (c Command) String() string {
	return buildCommandString(c.Name, c.Args...)
}

// Result of a finished command. A non-zero exit is not an error.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (r Result) Success() bool { return r.ExitStatus == 0 }

// Runner executes commands. Implementations must not retry.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	logger    *logging.EnterpriseLogger
	elevation Elevation
}

func NewExecRunner(logger *logging.EnterpriseLogger, elevation Elevation) *ExecRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExecRunner{logger: logger, elevation: elevation}
}

// WithElevation returns a copy of the runner bound to another elevation.
func (r *ExecRunner) WithElevation(e Elevation) *ExecRunner {
	return &ExecRunner{logger: r.logger, elevation: e}
}

func (r *ExecRunner) Elevation() Elevation { return r.elevation }

func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes cmd and waits for it. Errors are returned only when the
// command could not be started or was refused for lack of privilege.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	name, args, err := r.resolve(cmd)
	if err != nil {
		r.logger.Log("ERROR", "Command refused", "command", cmd.String(), "error", err)
		return Result{ExitStatus: -1}, err
	}
	cmdStr := buildCommandString(name, args...)

	c := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != nil {
		c.Stdin = cmd.Stdin
	}

	r.logger.Log("DEBUG", "Starting execution", "command", cmdStr)
	runErr := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runErr != nil {
		var exitErr *exec.ExitError
		if cerr.As(runErr, &exitErr) {
			res.ExitStatus = exitErr.ExitCode()
		} else {
			res.ExitStatus = -1
			r.logger.Log("ERROR", "Execution could not start", "command", cmdStr, "error", runErr)
			return res, cerr.Wrapf(runErr, "start %s", cmdStr)
		}
	}

	if res.Success() {
		r.logger.Log("INFO", "Execution succeeded", "command", cmdStr)
	} else {
		r.logger.Log("WARN", "Execution failed",
			"command", cmdStr,
			"exit_status", res.ExitStatus,
			"summary", ExtractSummary(res.Stderr, 2),
		)
	}
	return res, nil
}

func (r *ExecRunner) resolve(cmd Command) (string, []string, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return "", nil, failure.Invalid("empty command")
	}
	if !cmd.RequiresPrivilege {
		return cmd.Name, cmd.Args, nil
	}
	switch r.elevation {
	case ElevationRoot, ElevationAdmin:
		return cmd.Name, cmd.Args, nil
	case ElevationSudo:
		return "sudo", append([]string{"-n", cmd.Name}, cmd.Args...), nil
	default:
		return "", nil, cerr.WithHint(
			cerr.Wrapf(failure.ErrPrivilegeDenied, "%s requires elevated privileges", cmd.Name),
			"run as root or configure passwordless sudo",
		)
	}
}

// Check runs cmd and turns a non-zero exit into a CommandError of the given kind.
func Check(ctx context.Context, r Runner, kind error, cmd Command) (Result, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return res, cerr.Mark(err, kind)
	}
	if !res.Success() {
		return res, &failure.CommandError{
			Kind:       kind,
			Command:    cmd.String(),
			ExitStatus: res.ExitStatus,
			Stdout:     res.Stdout,
			Stderr:     res.Stderr,
		}
	}
	return res, nil
}

// ExtractSummary returns the last n non-empty lines of output.
func ExtractSummary(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append([]string{l}, out...)
		}
	}
	return strings.Join(out, " | ")
}

func buildCommandString(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
