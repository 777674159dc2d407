package system

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"

	"usbzero/internal/execute"
	"usbzero/internal/logging"
)

// Enumerator перечисляет съемные устройства.
// Каждый вызов заново опрашивает систему. Ошибки опроса дают пустой список.
type Enumerator interface {
	ListRemovableDevices(ctx context.Context) []DeviceDescriptor
	ResolveModel(ctx context.Context, dev DeviceDescriptor) string
}

// NewEnumerator возвращает перечислитель для текущей ОС
func NewEnumerator(runner execute.Runner, logger *logging.EnterpriseLogger) Enumerator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return newPlatformEnumerator(runner, logger)
}

// FindDevice ищет устройство по пути или короткому имени
func FindDevice(devices []DeviceDescriptor, id string) (DeviceDescriptor, bool) {
	id = strings.TrimSpace(id)
	for _, d := range devices {
		if strings.EqualFold(d.Path, id) || (d.DisplayLetter != "" && strings.EqualFold(d.DisplayLetter, id)) {
			return d, true
		}
	}
	return DeviceDescriptor{}, false
}

// skipKernelDevice отсекает виртуальные и оптические устройства
func skipKernelDevice(name string) bool {
	for _, p := range []string{"loop", "ram", "zram", "sr", "fd", "dm-", "md"} {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// parseLsblk разбирает вывод "lsblk -dpno NAME,RM,TYPE"
func parseLsblk(out string) []DeviceDescriptor {
	var devices []DeviceDescriptor
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		name, rm, typ := fields[0], fields[1], fields[2]
		if rm != "1" || typ != "disk" {
			continue
		}
		short := filepath.Base(name)
		if skipKernelDevice(short) {
			continue
		}
		devices = append(devices, DeviceDescriptor{
			Path:          name,
			DisplayLetter: short,
			Model:         UnknownModel,
			Removable:     true,
		})
	}
	return devices
}

// parseUdevModel извлекает ID_MODEL из "udevadm info --query=property"
func parseUdevModel(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "ID_MODEL="); ok {
			v = strings.TrimSpace(strings.ReplaceAll(v, "_", " "))
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// parseWmicDiskIndex находит индекс диска для буквы в выводе
// "wmic path Win32_LogicalDiskToPartition get *"
func parseWmicDiskIndex(out, letter string) string {
	letter = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(letter)), `\`)
	if !strings.HasSuffix(letter, ":") {
		letter += ":"
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToUpper(line), `"`+letter+`"`) {
			continue
		}
		_, rest, ok := strings.Cut(line, "#")
		if !ok {
			continue
		}
		idx, _, _ := strings.Cut(rest, ",")
		if idx = strings.TrimSpace(idx); idx != "" {
			return idx
		}
	}
	return ""
}

// parseWmicModel находит модель по индексу в "wmic diskdrive get index,model"
func parseWmicModel(out, index string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == index {
			return strings.Join(fields[1:], " ")
		}
	}
	return ""
}

func normalizeModel(m string) string {
	m = strings.TrimSpace(strings.ReplaceAll(m, "_", " "))
	if m == "" || strings.EqualFold(m, "unknown") {
		return ""
	}
	return m
}
