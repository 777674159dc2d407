// Package failure описывает таксономию ошибок стирания.
package failure

import (
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// Базовые виды ошибок. Проверяются через errors.Is.
var (
	ErrInvalidInput          = cerr.New("invalid input")
	ErrPrivilegeDenied       = cerr.New("privilege denied")
	ErrFormatFailed          = cerr.New("format failed")
	ErrOverwriteFailed       = cerr.New("overwrite failed")
	ErrHpaDcoUnavailable     = cerr.New("hpa/dco removal unavailable")
	ErrHpaDcoFailed          = cerr.New("hpa/dco removal failed")
	ErrMaxSectorsUnavailable = cerr.New("max sectors unavailable")
	ErrLogWriteFailed        = cerr.New("audit log write failed")
	ErrJobInFlight           = cerr.New("erasure job already in flight")
)

// CommandError несет диагностику внешней команды, завершившейся неудачно.
type CommandError struct {
	Kind       error
	Command    string
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with status %d", e.Kind, e.Command, e.ExitStatus)
	if d := e.Diagnostic(); d != "" {
		msg += ": " + d
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Kind }

// Diagnostic возвращает stderr, либо stdout если stderr пустой.
func (e *CommandError) Diagnostic() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(e.Stdout)
}

// OverwriteError фиксирует номер прохода (с нуля), на котором остановилась перезапись.
type OverwriteError struct {
	PassIndex int
	Cause     error
}

func (e *OverwriteError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v at pass %d", ErrOverwriteFailed, e.PassIndex+1)
	}
	return fmt.Sprintf("%v at pass %d: %v", ErrOverwriteFailed, e.PassIndex+1, e.Cause)
}

// Is позволяет сравнивать с ErrOverwriteFailed, не теряя цепочку Cause.
func (e *OverwriteError) Is(target error) bool { return target == ErrOverwriteFailed }

func (e *OverwriteError) Unwrap() error { return e.Cause }

// Invalid строит ошибку ErrInvalidInput с сообщением.
func Invalid(format string, args ...interface{}) error {
	return cerr.WrapWithDepthf(1, ErrInvalidInput, format, args...)
}

// Diagnostic извлекает текст диагностики из цепочки ошибки.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var ce *CommandError
	if cerr.As(err, &ce) {
		return ce.Diagnostic()
	}
	return ""
}

// Hints собирает подсказки пользователю, прикрепленные через WithHint.
func Hints(err error) []string {
	if err == nil {
		return nil
	}
	return cerr.GetAllHints(err)
}

// Kind возвращает базовый вид ошибки или nil, если он не распознан.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidInput,
		ErrPrivilegeDenied,
		ErrFormatFailed,
		ErrOverwriteFailed,
		ErrMaxSectorsUnavailable,
		ErrHpaDcoUnavailable,
		ErrHpaDcoFailed,
		ErrLogWriteFailed,
		ErrJobInFlight,
	} {
		if cerr.Is(err, k) {
			return k
		}
	}
	return nil
}
