package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"usbzero/internal/erasure"
	"usbzero/internal/security"
	"usbzero/internal/system"
	"usbzero/internal/wipe"
)

var errMenuExit = cerr.New("menu exit")

// menu интерактивное CLI меню
type menu struct {
	cmd *cobra.Command
	in  *lineSource
	out io.Writer
}

func newMenu(cmd *cobra.Command) *menu {
	return &menu{
		cmd: cmd,
		in:  newLineSource(cmd.InOrStdin()),
		out: cmd.OutOrStdout(),
	}
}

// runInteractive запускается без подкоманды
func runInteractive(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return cmd.Help()
	}
	return newMenu(cmd).run()
}

func (m *menu) run() error {
	for {
		err := m.showMainMenu()
		if cerr.Is(err, errMenuExit) {
			fmt.Fprintln(m.out, "\nПрограмма завершена пользователем")
			return nil
		}
		if err != nil {
			printError(m.out, err)
			m.pause()
		}
	}
}

func (m *menu) showMainMenu() error {
	m.clearScreen()
	fmt.Fprintln(m.out, "==========================================")
	fmt.Fprintf(m.out, "    %s v%s\n", AppName, Version)
	fmt.Fprintln(m.out, "==========================================")
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "1. Стереть устройство")
	fmt.Fprintln(m.out, "2. Список устройств")
	fmt.Fprintln(m.out, "3. Журналы аудита")
	fmt.Fprintln(m.out, "4. Проверка окружения")
	fmt.Fprintln(m.out, "5. Выход")
	fmt.Fprintln(m.out)

	var err error
	switch m.prompt("Выберите опцию (1-5): ") {
	case "1":
		err = m.wipeFlow(erasure.Request{WriteLog: true}, false)
	case "2":
		err = runDevices(m.cmd, nil)
	case "3":
		err = runLogsList(m.cmd, nil)
	case "4":
		err = runCheck(m.cmd, nil)
	case "5", "q":
		return errMenuExit
	default:
		fmt.Fprintln(m.out, "Неверный выбор. Попробуйте снова.")
	}
	if cerr.Is(err, errCompletedWithWarnings) {
		err = nil
	}
	if err == nil {
		m.pause()
	}
	return err
}

// wipeFlow дозапрашивает недостающие параметры и запускает стирание
func (m *menu) wipeFlow(req erasure.Request, assumeYes bool) error {
	devices, err := m.selectableDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(m.out, system.NoDeviceSentinel)
		return nil
	}

	fmt.Fprintln(m.out, "Доступные устройства:")
	for i, dev := range devices {
		fmt.Fprintf(m.out, "%d. %-12s %-28s %s\n", i+1, dev.Path, dev.Model, formatSize(dev.SizeBytes))
	}
	idx, ok := chooseIndex(m.prompt("Выберите устройство (номер): "), len(devices))
	if !ok {
		fmt.Fprintln(m.out, "Неверный выбор")
		return nil
	}
	req.Device = devices[idx].Path

	if req.Algorithm == "" {
		fmt.Fprintln(m.out, "\nАлгоритмы:")
		for i, alg := range wipe.Algorithms {
			fmt.Fprintf(m.out, "%d. %s\n", i+1, alg.DisplayName())
		}
		idx, ok := chooseIndex(m.prompt("Выберите алгоритм (Enter - по умолчанию): "), len(wipe.Algorithms))
		if ok {
			req.Algorithm = string(wipe.Algorithms[idx])
		}
	}

	if req.Passes == "" {
		fixed := false
		if alg, err := wipe.ParseAlgorithm(req.Algorithm); err == nil {
			_, fixed = alg.FixedPasses()
		}
		if !fixed {
			req.Passes = m.prompt(fmt.Sprintf("Количество проходов 1-%d (Enter - по умолчанию): ", wipe.MaxPasses))
		}
	}

	if runtime.GOOS == "linux" && !req.RemoveHpaDco {
		req.RemoveHpaDco = isAffirmative(m.prompt("Снять HPA/DCO после перезаписи? (y/N): "))
	}

	return executeWipe(m.cmd, req, assumeYes, m.in)
}

func (m *menu) selectableDevices() ([]system.DeviceDescriptor, error) {
	env, err := loadEnvironment(m.cmd.Context())
	if err != nil {
		return nil, err
	}
	defer env.close()

	var out []system.DeviceDescriptor
	for _, dev := range env.enumerator.ListRemovableDevices(m.cmd.Context()) {
		if security.ShouldSkipDevice(env.cfg, dev) {
			continue
		}
		dev.Model = env.enumerator.ResolveModel(m.cmd.Context(), dev)
		out = append(out, dev)
	}
	return out, nil
}

// chooseIndex разбирает номер пункта 1..n
func chooseIndex(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// Вспомогательные функции
func (m *menu) clearScreen() {
	fmt.Fprint(m.out, "\033[H\033[2J")
}

func (m *menu) prompt(message string) string {
	fmt.Fprint(m.out, message)
	input, _ := m.in.ReadLine(context.Background())
	return strings.TrimSpace(input)
}

func (m *menu) pause() {
	fmt.Fprint(m.out, "\nНажмите Enter для продолжения...")
	_, _ = m.in.ReadLine(context.Background())
}
