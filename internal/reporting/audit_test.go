package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usbzero/internal/config"
	"usbzero/internal/failure"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func testRecord() AuditRecord {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	return NewAuditRecord(id, "/dev/sdx", fixedTime, "DoD 5220.22-M", 3,
		[]string{"Pass 1 complete", "Pass 2 complete", "Pass 3 complete"}, false, "Cruzer Blade")
}

func newTestWriter(t *testing.T) *AuditWriter {
	t.Helper()
	return NewAuditWriter(config.AuditConfig{Dir: filepath.Join(t.TempDir(), "logs"), Prefix: "usbzero_log"}, nil)
}

func TestCanonicalLayout(t *testing.T) {
	data, err := testRecord().Canonical()
	require.NoError(t, err)

	want := `{
    "uuid": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
    "drive": "/dev/sdx",
    "timestamp": "2026-03-14T09:26:53Z",
    "algorithm": "DoD 5220.22-M",
    "passes": 3,
    "deleted_files": [
        "Pass 1 complete",
        "Pass 2 complete",
        "Pass 3 complete"
    ],
    "hpa_dco_cleaned": false,
    "device_model": "Cruzer Blade"
}`
	assert.Equal(t, want, string(data))
}

func TestCanonicalEmptyArtifacts(t *testing.T) {
	rec := testRecord()
	rec.DeletedFiles = nil
	data, err := rec.Canonical()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"deleted_files": []`)
}

func TestWriteAndVerifyRoundTrip(t *testing.T) {
	w := newTestWriter(t)
	rec := testRecord()

	path, err := w.Write(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir(), "usbzero_log_20260314_092653.json"), path)

	sig, err := os.ReadFile(strings.TrimSuffix(path, ".json") + ".sig")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256: "+Digest(data)+"\n", string(sig))

	loaded, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
	assert.Equal(t, data, raw)

	res, err := Verify(path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, res.Expected, res.Actual)
}

func TestVerifyDetectsTampering(t *testing.T) {
	w := newTestWriter(t)
	path, err := w.Write(testRecord())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"passes": 3`, `"passes": 35`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	res, err := Verify(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestVerifyMalformedOrMissingSignature(t *testing.T) {
	w := newTestWriter(t)
	path, err := w.Write(testRecord())
	require.NoError(t, err)
	sigPath := strings.TrimSuffix(path, ".json") + ".sig"

	require.NoError(t, os.WriteFile(sigPath, []byte("md5: abc\n"), 0644))
	_, err = Verify(path)
	assert.Error(t, err)

	require.NoError(t, os.Remove(sigPath))
	_, err = Verify(path)
	assert.Error(t, err)
}

func TestWriteAvoidsCollisions(t *testing.T) {
	w := newTestWriter(t)

	first, err := w.Write(testRecord())
	require.NoError(t, err)
	second, err := w.Write(testRecord())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(w.Dir(), "usbzero_log_20260314_092653_1.json"), second)
}

func TestWriteNamesFileByRecordTimeInUTC(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+3", 3*3600)
	t.Cleanup(func() { time.Local = local })

	w := newTestWriter(t)
	rec := NewAuditRecord(uuid.New(), "/dev/sdx", time.Date(2026, 10, 13, 22, 30, 0, 0, time.UTC), "0x00", 1, []string{"Pass 1 complete"}, false, "")
	path, err := w.Write(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir(), "usbzero_log_20261013_223000.json"), path)
}

func TestWriteRejectsBadTimestamp(t *testing.T) {
	w := newTestWriter(t)
	rec := testRecord()
	rec.Timestamp = "yesterday"
	_, err := w.Write(rec)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, failure.ErrLogWriteFailed))
}

func TestCommitFileKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usbzero_log_20260314_092653.json")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0644))

	err := commitFile(path, []byte("second"), 0644)
	require.Error(t, err)
	assert.True(t, os.IsExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp.*"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func TestWriteToleratesDirSyncFailure(t *testing.T) {
	orig := syncDir
	syncDir = func(string) error { return cerr.New("fsync: input/output error") }
	t.Cleanup(func() { syncDir = orig })

	w := newTestWriter(t)
	path, err := w.Write(testRecord())
	require.NoError(t, err)

	res, err := Verify(path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestWriteFailureIsLogWriteFailed(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "logs")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0644))

	w := NewAuditWriter(config.AuditConfig{Dir: blocker, Prefix: "usbzero_log"}, nil)
	_, err := w.Write(testRecord())
	require.Error(t, err)
	assert.True(t, cerr.Is(err, failure.ErrLogWriteFailed))
}

func TestListNewestFirst(t *testing.T) {
	w := newTestWriter(t)
	older, err := w.Write(testRecord())
	require.NoError(t, err)

	later := testRecord()
	later.Timestamp = fixedTime.Add(time.Hour).Format(time.RFC3339)
	newer, err := w.Write(later)
	require.NoError(t, err)

	require.NoError(t, os.Chtimes(older, fixedTime, fixedTime))
	require.NoError(t, os.Chtimes(newer, fixedTime.Add(time.Hour), fixedTime.Add(time.Hour)))
	require.NoError(t, os.WriteFile(filepath.Join(w.Dir(), "notes.txt"), []byte("x"), 0644))

	logs, err := List(w.Dir(), "usbzero_log")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, newer, logs[0].Path)
	assert.Equal(t, older, logs[1].Path)
	assert.Equal(t, strings.TrimSuffix(newer, ".json")+".sig", logs[0].Signature)

	empty, err := List(filepath.Join(t.TempDir(), "absent"), "usbzero_log")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
