package config

import (
	cerr "github.com/cockroachdb/errors"
)

// Profiles перечисляет доступные профили
var Profiles = []string{"quick", "standard", "dod", "paranoid"}

// ApplyProfile применяет профиль стирания к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "quick":
		cfg.Wipe.DefaultAlgorithm = "zero"
		cfg.Wipe.DefaultPasses = 1
		cfg.Wipe.ChunkSize = 4 * 1024 * 1024 // 4MB
		cfg.Wipe.MaxSpeedMBps = 0
	case "standard":
		cfg.Wipe.DefaultAlgorithm = "random"
		cfg.Wipe.DefaultPasses = 3
		cfg.Wipe.ChunkSize = 1024 * 1024 // 1MB
	case "dod":
		cfg.Wipe.DefaultAlgorithm = "dod5220"
		cfg.Wipe.DefaultPasses = 3
		cfg.Wipe.ChunkSize = 1024 * 1024
	case "paranoid":
		cfg.Wipe.DefaultAlgorithm = "gutmann"
		cfg.Wipe.DefaultPasses = 35
		cfg.Wipe.ChunkSize = 1024 * 1024
	default:
		return cerr.Newf("неизвестный профиль: %s", profile)
	}
	return nil
}
