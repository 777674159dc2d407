package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/config"
	"usbzero/internal/failure"
	"usbzero/internal/logging"
)

const (
	recordExt    = ".json"
	signatureExt = ".sig"
	sigPrefix    = "sha256: "
)

// AuditWriter пишет запись и отдельную подпись с ее SHA-256
type AuditWriter struct {
	dir    string
	prefix string
	logger *logging.EnterpriseLogger
}

func NewAuditWriter(cfg config.AuditConfig, logger *logging.EnterpriseLogger) *AuditWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir, prefix := cfg.Dir, cfg.Prefix
	if dir == "" {
		dir = "logs"
	}
	if prefix == "" {
		prefix = "usbzero_log"
	}
	return &AuditWriter{dir: dir, prefix: prefix, logger: logger}
}

func (w *AuditWriter) Dir() string { return w.dir }

// Сколько раз пробовать следующее имя, если его заняли между проверкой и записью
const commitAttempts = 16

// Write сохраняет запись в <dir>/<prefix>_<YYYYmmdd_HHMMSS>.json и подпись рядом.
// Время в имени берется из записи, в UTC.
// Подпись фиксируется первой, запись второй, обе через временный файл и link,
// который не перезаписывает существующий файл. Записи без подписи на диске не бывает.
func (w *AuditWriter) Write(rec AuditRecord) (string, error) {
	data, err := rec.Canonical()
	if err != nil {
		return "", cerr.Mark(err, failure.ErrLogWriteFailed)
	}
	digest := Digest(data)

	ts, err := rec.ParsedTime()
	if err != nil {
		return "", w.fail(err, "время записи")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", w.fail(err, "создание директории журнала")
	}

	for attempt := 0; attempt < commitAttempts; attempt++ {
		base, err := w.freeBase(ts.UTC())
		if err != nil {
			return "", w.fail(err, "выбор имени журнала")
		}
		recordPath := base + recordExt
		sigPath := base + signatureExt

		if err := commitFile(sigPath, []byte(sigPrefix+digest+"\n"), 0644); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", w.fail(err, "запись подписи")
		}
		if err := commitFile(recordPath, data, 0644); err != nil {
			_ = os.Remove(sigPath)
			if os.IsExist(err) {
				continue
			}
			return "", w.fail(err, "запись журнала")
		}

		// Пара уже на диске, ошибка fsync каталога только предупреждение
		if err := syncDir(w.dir); err != nil {
			w.logger.Log("WARN", "fsync каталога журнала не удался", "dir", w.dir, "error", err)
		}
		w.logger.Log("INFO", "Журнал аудита сохранён", "file", recordPath, "sha256", digest, "uuid", rec.UUID)
		return recordPath, nil
	}
	return "", w.fail(cerr.Newf("audit log names kept colliding after %d attempts", commitAttempts), "выбор имени журнала")
}

func (w *AuditWriter) fail(err error, step string) error {
	w.logger.Log("ERROR", "Ошибка журнала аудита", "step", step, "error", err)
	return cerr.Mark(cerr.Wrap(err, step), failure.ErrLogWriteFailed)
}

// freeBase подбирает имя без расширения, не занятое ни записью, ни подписью
func (w *AuditWriter) freeBase(ts time.Time) (string, error) {
	stem := filepath.Join(w.dir, fmt.Sprintf("%s_%s", w.prefix, ts.Format("20060102_150405")))
	for i := 0; i < 1000; i++ {
		base := stem
		if i > 0 {
			base = fmt.Sprintf("%s_%d", stem, i)
		}
		if !exists(base+recordExt) && !exists(base+signatureExt) {
			return base, nil
		}
	}
	return "", cerr.Newf("too many audit logs for %s", stem)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// LogEntry найденный журнал
type LogEntry struct {
	Path      string
	Signature string
	ModTime   time.Time
}

func (e LogEntry) Name() string { return filepath.Base(e.Path) }

// List возвращает журналы каталога, новые первыми
func List(dir, prefix string) ([]LogEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, cerr.Wrapf(err, "read %s", dir)
	}

	logs := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		logs = append(logs, LogEntry{
			Path:      path,
			Signature: strings.TrimSuffix(path, recordExt) + signatureExt,
			ModTime:   info.ModTime(),
		})
	}

	// По mtime, при равенстве по имени (в имени время и номер)
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].ModTime.Equal(logs[j].ModTime) {
			return logs[i].ModTime.After(logs[j].ModTime)
		}
		return logs[i].Name() > logs[j].Name()
	})
	return logs, nil
}

// Load читает запись и ее точные байты
func Load(path string) (AuditRecord, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AuditRecord{}, nil, cerr.Wrapf(err, "read %s", path)
	}
	var rec AuditRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return AuditRecord{}, data, cerr.Wrapf(err, "parse %s", path)
	}
	return rec, data, nil
}

// VerifyResult результат проверки целостности
type VerifyResult struct {
	Path     string
	Expected string
	Actual   string
	Valid    bool
}

// Verify пересчитывает SHA-256 записи и сравнивает с подписью
func Verify(path string) (VerifyResult, error) {
	res := VerifyResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, cerr.Wrapf(err, "read %s", path)
	}
	res.Actual = Digest(data)

	sigPath := strings.TrimSuffix(path, recordExt) + signatureExt
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return res, cerr.Wrapf(err, "read signature %s", sigPath)
	}
	expected, ok := parseSignature(sig)
	if !ok {
		return res, cerr.Newf("malformed signature file %s", sigPath)
	}
	res.Expected = expected
	res.Valid = expected == res.Actual
	return res, nil
}

func parseSignature(sig []byte) (string, bool) {
	line := strings.TrimSpace(string(bytes.SplitN(sig, []byte("\n"), 2)[0]))
	v, ok := strings.CutPrefix(line, sigPrefix)
	if !ok || len(v) != 64 {
		return "", false
	}
	return strings.ToLower(v), true
}

// commitFile: временный файл в том же каталоге, fsync, затем link на path.
// Если path уже существует, возвращает ошибку os.IsExist и ничего не меняет.
func commitFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmpName, path)
}

// syncDir подменяется в тестах
var syncDir = fsyncDir

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	// Windows не поддерживает fsync каталога
	if runtime.GOOS == "windows" {
		return nil
	}
	return f.Sync()
}
