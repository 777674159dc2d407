package wipe

import (
	"strconv"
	"strings"

	"usbzero/internal/failure"
)

// MaxPasses верхняя граница числа проходов
const MaxPasses = 35

// WipeParameters параметры одного стирания. Неизменяемы на время задания.
type WipeParameters struct {
	Algorithm    Algorithm
	PassCount    int
	RemoveHpaDco bool
	WriteLog     bool
}

// NewWipeParameters проверяет и нормализует параметры.
// passCount 0 означает "по умолчанию для алгоритма".
// Для Гутмана допустимы только 0 и 35.
func NewWipeParameters(alg Algorithm, passCount int, removeHpaDco, writeLog bool) (WipeParameters, error) {
	if _, ok := displayNames[alg]; !ok {
		return WipeParameters{}, failure.Invalid("неподдерживаемый алгоритм: %q", alg)
	}

	if fixed, ok := alg.FixedPasses(); ok {
		if passCount != 0 && passCount != fixed {
			return WipeParameters{}, failure.Invalid("%s requires exactly %d passes, got %d", alg.DisplayName(), fixed, passCount)
		}
		passCount = fixed
	}
	if passCount == 0 {
		passCount = alg.DefaultPasses()
	}
	if passCount < 1 || passCount > MaxPasses {
		return WipeParameters{}, failure.Invalid("pass count must be between 1 and %d, got %d", MaxPasses, passCount)
	}

	return WipeParameters{
		Algorithm:    alg,
		PassCount:    passCount,
		RemoveHpaDco: removeHpaDco,
		WriteLog:     writeLog,
	}, nil
}

// Validate повторно проверяет инварианты уже собранных параметров
func (p WipeParameters) Validate() error {
	if p.PassCount == 0 {
		return failure.Invalid("pass count is not set")
	}
	_, err := NewWipeParameters(p.Algorithm, p.PassCount, p.RemoveHpaDco, p.WriteLog)
	return err
}

// ParsePassCount разбирает число проходов из пользовательского ввода.
// Пустая строка означает 0 (по умолчанию).
func ParsePassCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, failure.Invalid("pass count must be a number, got %q", s)
	}
	if n < 1 || n > MaxPasses {
		return 0, failure.Invalid("pass count must be between 1 and %d, got %d", MaxPasses, n)
	}
	return n, nil
}
