package wipe

import (
	"context"

	cerr "github.com/cockroachdb/errors"

	"usbzero/internal/failure"
	"usbzero/internal/logging"
	"usbzero/internal/system"
)

// PassHooks вызываются до и после каждого прохода. Любой хук может быть nil.
// Ошибка Started отменяет проход до записи на устройство.
type PassHooks struct {
	Started  func(passIndex int) error
	Finished func(passIndex int, artifact string)
}

// WipeEngine выполняет проходы перезаписи последовательно, без повторов
type WipeEngine struct {
	platform Platform
	logger   *logging.EnterpriseLogger
}

func NewWipeEngine(platform Platform, logger *logging.EnterpriseLogger) *WipeEngine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WipeEngine{platform: platform, logger: logger}
}

// Format делегирует форматирование платформе
func (we *WipeEngine) Format(ctx context.Context, dev system.DeviceDescriptor) error {
	if err := we.platform.Format(ctx, dev); err != nil {
		we.logger.Log("ERROR", "Форматирование не удалось", "device", dev.Path, "error", err, "diagnostic", failure.Diagnostic(err))
		if !cerr.Is(err, failure.ErrFormatFailed) {
			err = cerr.Mark(err, failure.ErrFormatFailed)
		}
		return err
	}
	return nil
}

// Overwrite выполняет params.PassCount проходов. При ошибке прохода k
// возвращает артефакты проходов до k и OverwriteError с PassIndex k.
func (we *WipeEngine) Overwrite(ctx context.Context, dev system.DeviceDescriptor, params WipeParameters, hooks PassHooks) ([]string, error) {
	artifacts := make([]string, 0, params.PassCount)

	we.logger.Log("INFO", "Начало перезаписи", "device", dev.Path, "algorithm", params.Algorithm, "passes", params.PassCount)

	for pass := 0; pass < params.PassCount; pass++ {
		if hooks.Started != nil {
			if err := hooks.Started(pass); err != nil {
				we.logger.Log("ERROR", "Проход отменен до записи", "device", dev.Path, "pass", pass+1, "error", err)
				return artifacts, cerr.Wrapf(err, "pass %d not started", pass+1)
			}
		}
		we.logger.Log("INFO", "Проход перезаписи", "device", dev.Path, "pass", pass+1, "total", params.PassCount)

		artifact, err := we.platform.OverwritePass(ctx, dev, pass, params.Algorithm)
		if err != nil {
			we.logger.Log("ERROR", "Проход не удался", "device", dev.Path, "pass", pass+1, "error", err, "diagnostic", failure.Diagnostic(err))
			return artifacts, cerr.WithStack(&failure.OverwriteError{PassIndex: pass, Cause: err})
		}

		artifacts = append(artifacts, artifact)
		if hooks.Finished != nil {
			hooks.Finished(pass, artifact)
		}
	}

	we.logger.Log("INFO", "Перезапись завершена", "device", dev.Path, "passes", len(artifacts))
	return artifacts, nil
}

// Progress доля выполненных проходов
func Progress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 1
	}
	return float64(completed) / float64(total)
}
