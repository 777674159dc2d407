package wipe

import (
	"fmt"
	"strings"

	"usbzero/internal/failure"
)

// Algorithm определяет алгоритм перезаписи
type Algorithm string

const (
	AlgorithmRandom  Algorithm = "random"
	AlgorithmZero    Algorithm = "zero"
	AlgorithmOnes    Algorithm = "ones"
	AlgorithmDoD5220 Algorithm = "dod5220"
	AlgorithmGutmann Algorithm = "gutmann"
)

// GutmannPasses фиксированное число проходов Гутмана
const GutmannPasses = 35

// Algorithms в порядке показа пользователю
var Algorithms = []Algorithm{AlgorithmRandom, AlgorithmZero, AlgorithmOnes, AlgorithmDoD5220, AlgorithmGutmann}

// Названия алгоритмов в журнале аудита
var displayNames = map[Algorithm]string{
	AlgorithmRandom:  "Random (Recommended)",
	AlgorithmZero:    "0x00",
	AlgorithmOnes:    "0xFF",
	AlgorithmDoD5220: "DoD 5220.22-M",
	AlgorithmGutmann: "Gutmann (35-pass)",
}

// ParseAlgorithm принимает короткое имя или название из журнала
func ParseAlgorithm(s string) (Algorithm, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "random", "random (recommended)", "urandom":
		return AlgorithmRandom, nil
	case "zero", "zeros", "0x00":
		return AlgorithmZero, nil
	case "ones", "0xff":
		return AlgorithmOnes, nil
	case "dod", "dod5220", "dod 5220.22-m", "dod5220.22-m":
		return AlgorithmDoD5220, nil
	case "gutmann", "gutmann (35-pass)":
		return AlgorithmGutmann, nil
	}
	return "", failure.Invalid("неподдерживаемый алгоритм: %q", s)
}

// DisplayName название алгоритма для журнала и интерфейса
func (a Algorithm) DisplayName() string {
	if n, ok := displayNames[a]; ok {
		return n
	}
	return string(a)
}

// DefaultPasses число проходов, если пользователь его не задал
func (a Algorithm) DefaultPasses() int {
	switch a {
	case AlgorithmRandom, AlgorithmDoD5220:
		return 3
	case AlgorithmGutmann:
		return GutmannPasses
	default:
		return 1
	}
}

// FixedPasses возвращает число проходов, если алгоритм его фиксирует
func (a Algorithm) FixedPasses() (int, bool) {
	if a == AlgorithmGutmann {
		return GutmannPasses, true
	}
	return 0, false
}

// Pattern данные одного прохода: случайные или повторяющиеся байты
type Pattern struct {
	Random bool
	Bytes  []byte
}

func (p Pattern) String() string {
	if p.Random {
		return "random"
	}
	parts := make([]string, len(p.Bytes))
	for i, b := range p.Bytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return "0x" + strings.Join(parts, "")
}

// Фиксированные проходы 5-31 метода Гутмана
var gutmannPatterns = [][]byte{
	{0x55}, {0xAA},
	{0x92, 0x49, 0x24}, {0x49, 0x24, 0x92}, {0x24, 0x92, 0x49},
	{0x00}, {0x11}, {0x22}, {0x33}, {0x44}, {0x55}, {0x66}, {0x77},
	{0x88}, {0x99}, {0xAA}, {0xBB}, {0xCC}, {0xDD}, {0xEE}, {0xFF},
	{0x92, 0x49, 0x24}, {0x49, 0x24, 0x92}, {0x24, 0x92, 0x49},
	{0x6D, 0xB6, 0xDB}, {0xB6, 0xDB, 0x6D}, {0xDB, 0x6D, 0xB6},
}

// PassPattern возвращает паттерн прохода pass (с нуля)
func PassPattern(alg Algorithm, pass int) Pattern {
	switch alg {
	case AlgorithmZero:
		return Pattern{Bytes: []byte{0x00}}
	case AlgorithmOnes:
		return Pattern{Bytes: []byte{0xFF}}
	case AlgorithmDoD5220:
		// DoD 5220.22-M: нули, единицы, случайные
		switch pass % 3 {
		case 0:
			return Pattern{Bytes: []byte{0x00}}
		case 1:
			return Pattern{Bytes: []byte{0xFF}}
		default:
			return Pattern{Random: true}
		}
	case AlgorithmGutmann:
		// 4 случайных, 27 фиксированных, 4 случайных
		i := pass % GutmannPasses
		if i >= 4 && i < 4+len(gutmannPatterns) {
			return Pattern{Bytes: gutmannPatterns[i-4]}
		}
		return Pattern{Random: true}
	default:
		return Pattern{Random: true}
	}
}
