package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usbzero/internal/config"
	"usbzero/internal/erasure"
	"usbzero/internal/failure"
	"usbzero/internal/reporting"
	"usbzero/internal/system"
	"usbzero/internal/wipe"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, EXIT_SUCCESS, exitCode(nil))
	assert.Equal(t, EXIT_WARNING, exitCode(errCompletedWithWarnings))
	assert.Equal(t, EXIT_ERROR, exitCode(failure.Invalid("bad")))
	assert.Equal(t, EXIT_ERROR, exitCode(cerr.Wrap(failure.ErrPrivilegeDenied, "x")))
}

func TestPrintErrorShowsHintsAndDiagnostic(t *testing.T) {
	err := cerr.WithHint(&failure.CommandError{Kind: failure.ErrFormatFailed, Command: "parted", ExitStatus: 1, Stderr: "device busy"}, "unmount it first")
	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), "device busy")
	assert.Contains(t, buf.String(), "unmount it first")

	buf.Reset()
	printError(&buf, errCompletedWithWarnings)
	assert.Empty(t, buf.String())
}

func confirmation() erasure.Confirmation {
	return erasure.Confirmation{
		Device:    system.DeviceDescriptor{Path: "/dev/sdx"},
		Model:     "Cruzer Blade",
		Algorithm: wipe.AlgorithmRandom,
		PassCount: 3,
	}
}

func TestPromptConfirmer(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "да\n": true, "n\n": false, "\n": false, "": false, "yep\n": false}
	for input, want := range cases {
		var out bytes.Buffer
		p := &promptConfirmer{in: newLineSource(strings.NewReader(input)), out: &out, isTerminal: func() bool { return true }}
		ok, err := p.Confirm(context.Background(), confirmation())
		require.NoError(t, err)
		assert.Equal(t, want, ok, "input %q", input)
		assert.Contains(t, out.String(), "/dev/sdx")
	}
}

func TestPromptConfirmerRefusesNonTerminal(t *testing.T) {
	var out bytes.Buffer
	p := &promptConfirmer{in: newLineSource(strings.NewReader("y\n")), out: &out, isTerminal: func() bool { return false }}
	ok, err := p.Confirm(context.Background(), confirmation())
	assert.False(t, ok)
	assert.Error(t, err)

	p.assumeYes = true
	ok, err = p.Confirm(context.Background(), confirmation())
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestPromptConfirmerCancelLeavesInputToNextReader(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	lines := newLineSource(r)

	var out bytes.Buffer
	p := &promptConfirmer{in: lines, out: &out, isTerminal: func() bool { return true }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := p.Confirm(ctx, confirmation())
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)

	// строка после отмены не теряется во втором читателе
	go func() { _, _ = io.WriteString(w, "5\n") }()
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	line, err := lines.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5\n", line)
}

func TestLineSourceEOF(t *testing.T) {
	lines := newLineSource(strings.NewReader("a\nb"))
	ctx := context.Background()

	line, err := lines.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a\n", line)
	line, err = lines.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", line)
	_, err = lines.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = lines.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChooseIndex(t *testing.T) {
	i, ok := chooseIndex(" 2 ", 3)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	for _, in := range []string{"", "0", "4", "x"} {
		_, ok := chooseIndex(in, 3)
		assert.False(t, ok, in)
	}
}

func TestSummarize(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, summarize(&buf, erasure.Report{Declined: true}))

	rep := erasure.Report{Job: erasure.Job{Status: erasure.StateCompleted}, Warnings: []error{cerr.Mark(cerr.New("disk full"), failure.ErrLogWriteFailed)}}
	err := summarize(&buf, rep)
	assert.Equal(t, EXIT_WARNING, exitCode(err))

	failed := erasure.Report{Job: erasure.Job{Status: erasure.StateFailed}, Err: &failure.OverwriteError{PassIndex: 1, Cause: cerr.New("io")}}
	err = summarize(&buf, failed)
	assert.Equal(t, EXIT_ERROR, exitCode(err))
}

func TestLogsVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	w := reporting.NewAuditWriter(config.AuditConfig{Dir: dir, Prefix: "usbzero_log"}, nil)
	rec := reporting.NewAuditRecord(uuid.New(), "/dev/sdx", time.Now(), "0x00", 1, []string{"Pass 1 complete"}, false, "Cruzer Blade")
	path, err := w.Write(rec)
	require.NoError(t, err)

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, runLogsVerify(cmd, []string{path}))
	assert.Contains(t, out.String(), "OK")

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	err = runLogsVerify(cmd, []string{path, filepath.Join(dir, "absent.json")})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, errIntegrity))
}
