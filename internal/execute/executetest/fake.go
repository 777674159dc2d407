// Package executetest provides a scripted Runner for tests.
package executetest

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"usbzero/internal/execute"
)

// Response scripted for commands whose string form starts with Prefix.
type Response struct {
	Prefix string
	Result execute.Result
	Err    error
}

// FakeRunner records every command and answers from a script.
// Stdin is drained before answering. Unmatched commands succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	responses []Response
	calls     []execute.Command
	stdinLen  []int64
	paths     map[string]bool
}

func NewFakeRunner(responses ...Response) *FakeRunner {
	return &FakeRunner{responses: responses, paths: map[string]bool{}}
}

// On adds a response. Later responses win over earlier ones.
func (f *FakeRunner) On(prefix string, res execute.Result, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, Response{Prefix: prefix, Result: res, Err: err})
	return f
}

// Installed marks tools as present for LookPath.
func (f *FakeRunner) Installed(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.paths[n] = true
	}
	return f
}

func (f *FakeRunner) Run(ctx context.Context, cmd execute.Command) (execute.Result, error) {
	var n int64
	if cmd.Stdin != nil {
		n, _ = io.Copy(io.Discard, cmd.Stdin)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	f.stdinLen = append(f.stdinLen, n)

	s := cmd.String()
	for i := len(f.responses) - 1; i >= 0; i-- {
		if strings.HasPrefix(s, f.responses[i].Prefix) {
			return f.responses[i].Result, f.responses[i].Err
		}
	}
	return execute.Result{}, nil
}

func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paths[name] {
		return "/usr/sbin/" + name, nil
	}
	return "", exec.ErrNotFound
}

// Calls returns the string form of every command run so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Commands returns the recorded commands.
func (f *FakeRunner) Commands() []execute.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execute.Command(nil), f.calls...)
}

// StdinBytes returns how many stdin bytes each call received.
func (f *FakeRunner) StdinBytes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.stdinLen...)
}
