package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Максимальное число проходов перезаписи.
const MaxPasses = 35

// SecurityConfig правила безопасности выбора устройства
type SecurityConfig struct {
	RequirePrivilege    bool     `yaml:"require_privilege"`
	RequireConfirmation bool     `yaml:"require_confirmation"`
	ExcludedDevices     []string `yaml:"excluded_devices"`
}

// WipeConfig параметры форматирования и перезаписи
type WipeConfig struct {
	DefaultAlgorithm string  `yaml:"default_algorithm"`
	DefaultPasses    int     `yaml:"default_passes"`
	PassPayloadMB    int     `yaml:"pass_payload_mb"`
	ChunkSize        int     `yaml:"chunk_size"`
	MaxSpeedMBps     float64 `yaml:"max_speed_mbps"`
	Filesystem       string  `yaml:"filesystem"`
	SettleDelay      string  `yaml:"settle_delay"`
}

// HPAConfig параметры снятия HPA/DCO
type HPAConfig struct {
	Tool        string `yaml:"tool"`
	InstallHint string `yaml:"install_hint"`
}

// LoggingConfig параметры журнала работы
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AuditConfig параметры журнала аудита
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Prefix  string `yaml:"prefix"`
}

// Config конфигурация USBZero
type Config struct {
	Security SecurityConfig `yaml:"security"`
	Wipe     WipeConfig     `yaml:"wipe"`
	HPA      HPAConfig      `yaml:"hpa"`
	Logging  LoggingConfig  `yaml:"logging"`
	Audit    AuditConfig    `yaml:"audit"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			RequirePrivilege:    true,
			RequireConfirmation: true,
			ExcludedDevices:     []string{},
		},
		Wipe: WipeConfig{
			DefaultAlgorithm: "random",
			DefaultPasses:    0, // по умолчанию алгоритма
			PassPayloadMB:    100,
			ChunkSize:        1024 * 1024, // 1MB
			MaxSpeedMBps:     0,           // без ограничения
			Filesystem:       "ext4",
			SettleDelay:      "2s",
		},
		HPA: HPAConfig{
			Tool:        "hdparm",
			InstallHint: "sudo apt-get install hdparm",
		},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "",
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     "logs",
			Prefix:  "usbzero_log",
		},
	}
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, cerr.Wrapf(err, "failed to read config file %s", path)
	}

	// Поля, отсутствующие в файле, остаются по умолчанию
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, cerr.Wrapf(err, "failed to parse config file %s", path)
	}

	if err := Validate(config); err != nil {
		return nil, cerr.Wrap(err, "invalid configuration")
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	if config == nil {
		return cerr.New("config is nil")
	}

	if config.Wipe.DefaultPasses < 0 || config.Wipe.DefaultPasses > MaxPasses {
		return cerr.Newf("default passes must be between 0 and %d, got %d", MaxPasses, config.Wipe.DefaultPasses)
	}

	if config.Wipe.PassPayloadMB <= 0 || config.Wipe.PassPayloadMB > 1024*1024 {
		return cerr.Newf("pass payload must be between 1MB and 1TB, got %d", config.Wipe.PassPayloadMB)
	}

	if config.Wipe.ChunkSize <= 0 {
		return cerr.Newf("chunk size must be positive, got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.ChunkSize > 64*1024*1024 { // 64MB max
		return cerr.Newf("chunk size too large (max 64MB), got %d", config.Wipe.ChunkSize)
	}

	if config.Wipe.MaxSpeedMBps < 0 {
		return cerr.Newf("max speed cannot be negative, got %f", config.Wipe.MaxSpeedMBps)
	}

	if strings.TrimSpace(config.Wipe.Filesystem) == "" {
		return cerr.New("filesystem must not be empty")
	}

	if config.Wipe.SettleDelay != "" {
		d, err := time.ParseDuration(config.Wipe.SettleDelay)
		if err != nil {
			return cerr.Newf("invalid settle delay format: %s", config.Wipe.SettleDelay)
		}
		if d < 0 {
			return cerr.Newf("settle delay cannot be negative: %s", config.Wipe.SettleDelay)
		}
	}

	if strings.TrimSpace(config.HPA.Tool) == "" {
		return cerr.New("hpa tool must not be empty")
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return cerr.Newf("invalid log level: %s", config.Logging.Level)
	}

	if config.Audit.Enabled {
		if strings.TrimSpace(config.Audit.Dir) == "" {
			return cerr.New("audit dir must not be empty")
		}
		if strings.TrimSpace(config.Audit.Prefix) == "" || strings.ContainsAny(config.Audit.Prefix, `/\`) {
			return cerr.Newf("invalid audit prefix: %q", config.Audit.Prefix)
		}
	}

	for _, dev := range config.Security.ExcludedDevices {
		if strings.TrimSpace(dev) == "" {
			return cerr.New("empty excluded device")
		}
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return cerr.Wrap(err, "cannot save invalid config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cerr.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return cerr.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return cerr.Wrap(err, "failed to write config file")
	}

	return nil
}

// GetSettleDelay возвращает паузу после создания раздела
func (config *Config) GetSettleDelay() time.Duration {
	if config.Wipe.SettleDelay == "" {
		return 0
	}

	d, err := time.ParseDuration(config.Wipe.SettleDelay)
	if err != nil {
		return 2 * time.Second // Fallback
	}

	return d
}

// IsExcluded проверяет, исключено ли устройство конфигурацией
func (config *Config) IsExcluded(path string) bool {
	for _, dev := range config.Security.ExcludedDevices {
		if strings.EqualFold(strings.TrimSpace(dev), strings.TrimSpace(path)) {
			return true
		}
	}
	return false
}
