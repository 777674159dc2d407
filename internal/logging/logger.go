package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"usbzero/internal/config"
)

// EnterpriseLogger журнал работы: JSON в файл и консоль в stderr
type EnterpriseLogger struct {
	zl   *zap.Logger
	file *os.File
}

// NewEnterpriseLogger создает логгер по конфигурации.
// Без verbose в консоль попадают только ошибки.
func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	level := parseLevel(cfg.Logging.Level)

	consoleLevel := zapcore.ErrorLevel
	if verbose {
		consoleLevel = level
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stderr), consoleLevel),
	}

	l := &EnterpriseLogger{}

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Не удалось создать директорию логов %s: %v\n", logDir, err)
		} else if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Не удалось открыть файл логов %s: %v\n", cfg.Logging.File, err)
		} else {
			l.file = f
			fileEnc := zap.NewProductionEncoderConfig()
			fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(f), level))
		}
	}

	l.zl = zap.New(zapcore.NewTee(cores...))
	return l, nil
}

// NewNop логгер, ничего не пишущий
func NewNop() *EnterpriseLogger {
	return &EnterpriseLogger{zl: zap.NewNop()}
}

// FromZap оборачивает готовый zap логгер (тесты, встраивание)
func FromZap(zl *zap.Logger) *EnterpriseLogger {
	return &EnterpriseLogger{zl: zl}
}

// Log пишет запись с парами ключ-значение
func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	if l == nil || l.zl == nil {
		return
	}

	zf := toFields(fields)
	switch strings.ToUpper(level) {
	case "DEBUG":
		l.zl.Debug(message, zf...)
	case "WARN":
		l.zl.Warn(message, zf...)
	case "ERROR", "FATAL":
		l.zl.Error(message, zf...)
	default:
		l.zl.Info(message, zf...)
	}
}

// Zap возвращает нижележащий логгер
func (l *EnterpriseLogger) Zap() *zap.Logger {
	if l == nil || l.zl == nil {
		return zap.NewNop()
	}
	return l.zl
}

func (l *EnterpriseLogger) Close() error {
	if l == nil {
		return nil
	}
	if l.zl != nil {
		_ = l.zl.Sync()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func toFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("field%d", i/2)
		}
		if i+1 >= len(kv) {
			fields = append(fields, zap.String(key, "(MISSING)"))
			break
		}
		if err, ok := kv[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
