package wipe

import (
	"context"
	"time"

	"usbzero/internal/execute"
	"usbzero/internal/logging"
	"usbzero/internal/system"
)

// Platform платформенная часть стирания: форматирование и один проход записи
type Platform interface {
	Name() string
	// Format уничтожает таблицу разделов и создает пустую ФС
	Format(ctx context.Context, dev system.DeviceDescriptor) error
	// OverwritePass выполняет проход passIndex (с нуля) и возвращает артефакт
	OverwritePass(ctx context.Context, dev system.DeviceDescriptor, passIndex int, alg Algorithm) (string, error)
	// SupportsHpaDco сообщает, доступно ли снятие HPA/DCO
	SupportsHpaDco() bool
}

// PlatformOptions общие настройки платформ
type PlatformOptions struct {
	Runner        execute.Runner
	Logger        *logging.EnterpriseLogger
	PassPayloadMB int
	Write         WriteOptions
	Filesystem    string
	SettleDelay   time.Duration
}

func (o PlatformOptions) payloadBytes() int64 {
	mb := o.PassPayloadMB
	if mb <= 0 {
		mb = 100
	}
	return int64(mb) * 1024 * 1024
}

func (o PlatformOptions) logger() *logging.EnterpriseLogger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

// NewPlatform выбирает реализацию по GOOS. Для неподдерживаемых ОС возвращает nil.
func NewPlatform(goos string, opts PlatformOptions) Platform {
	switch goos {
	case "linux":
		return NewBlockDevicePlatform(opts)
	case "windows":
		return NewVolumePlatform(opts)
	default:
		return nil
	}
}

// sleepContext ждет d или отмены ctx
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
