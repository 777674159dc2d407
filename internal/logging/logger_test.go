package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"usbzero/internal/config"
)

func TestLogMapsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Log("WARN", "pass failed", "pass", 2, "error", errors.New("boom"), "dangling")
	l.Log("DEBUG", "detail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 2, ctx["pass"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "(MISSING)", ctx["dangling"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
}

func TestFileCoreWritesJSON(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "run", "usbzero.log")

	l, err := NewEnterpriseLogger(cfg, false)
	require.NoError(t, err)
	l.Log("INFO", "device selected", "device", "/dev/sdb")
	l.Log("DEBUG", "filtered out")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "device selected", rec["msg"])
	assert.Equal(t, "/dev/sdb", rec["device"])
}

func TestNilAndNopAreSafe(t *testing.T) {
	var l *EnterpriseLogger
	l.Log("INFO", "ignored")
	assert.NoError(t, l.Close())
	assert.NotNil(t, l.Zap())

	NewNop().Log("ERROR", "ignored")
}
