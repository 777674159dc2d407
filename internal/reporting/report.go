package reporting

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// AuditRecord запись журнала аудита об одном стирании.
// Порядок полей определяет канонический вид записи.
type AuditRecord struct {
	UUID          string   `json:"uuid"`
	Drive         string   `json:"drive"`
	Timestamp     string   `json:"timestamp"`
	Algorithm     string   `json:"algorithm"`
	Passes        int      `json:"passes"`
	DeletedFiles  []string `json:"deleted_files"`
	HpaDcoCleaned bool     `json:"hpa_dco_cleaned"`
	DeviceModel   string   `json:"device_model"`
}

// NewAuditRecord собирает запись. Время хранится в UTC, RFC3339.
func NewAuditRecord(id uuid.UUID, drive string, ts time.Time, algorithm string, passes int, artifacts []string, hpaDcoCleaned bool, model string) AuditRecord {
	files := make([]string, len(artifacts))
	copy(files, artifacts)
	return AuditRecord{
		UUID:          id.String(),
		Drive:         drive,
		Timestamp:     ts.UTC().Format(time.RFC3339),
		Algorithm:     algorithm,
		Passes:        passes,
		DeletedFiles:  files,
		HpaDcoCleaned: hpaDcoCleaned,
		DeviceModel:   model,
	}
}

// Canonical сериализует запись: JSON с отступом 4 пробела, UTF-8, без
// экранирования HTML и без финального перевода строки.
func (r AuditRecord) Canonical() ([]byte, error) {
	if r.DeletedFiles == nil {
		r.DeletedFiles = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return nil, cerr.Wrap(err, "ошибка сериализации записи аудита")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Digest SHA-256 канонических байт в hex
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParsedTime время записи
func (r AuditRecord) ParsedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}
