package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"usbzero/internal/config"
	"usbzero/internal/execute"
	"usbzero/internal/failure"
	"usbzero/internal/hpa"
	"usbzero/internal/logging"
	"usbzero/internal/reporting"
	"usbzero/internal/security"
	"usbzero/internal/system"
	"usbzero/internal/wipe"
)

const (
	Version = "1.0.0"
	AppName = "USBZero"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_ERROR   = 1
	EXIT_WARNING = 2
)

// errCompletedWithWarnings операция завершена, но с предупреждениями
var errCompletedWithWarnings = cerr.New("completed with warnings")

var (
	configPath string
	verbose    bool
	profile    string
)

// CLI команды
var rootCmd = &cobra.Command{
	Use:           "usbzero",
	Short:         "USBZero - безопасное стирание USB-накопителей",
	Long:          "Форматирование, многопроходная перезапись, снятие HPA/DCO и подписанный журнал аудита для съемных устройств",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Показать подключенные съемные устройства",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Проверить права и наличие внешних утилит",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe [device]",
	Short: "Стереть съемное устройство",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWipe,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Журналы аудита",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список журналов, новые первыми",
	Args:  cobra.NoArgs,
	RunE:  runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Показать журнал и результат проверки подписи",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogsShow,
}

var logsVerifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "Проверить SHA-256 подписи журналов",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLogsVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Профиль стирания (quick/standard/dod/paranoid)")

	wipeCmd.Flags().StringP("algorithm", "a", "", "Алгоритм (random/zero/ones/dod5220/gutmann)")
	wipeCmd.Flags().StringP("passes", "p", "", "Количество проходов (1-35, по умолчанию для алгоритма)")
	wipeCmd.Flags().Bool("remove-hpa-dco", false, "Снять HPA/DCO после перезаписи (только Linux)")
	wipeCmd.Flags().Bool("no-log", false, "Не записывать журнал аудита")
	wipeCmd.Flags().BoolP("yes", "y", false, "Пропустить подтверждение")

	logsCmd.PersistentFlags().String("dir", "", "Каталог журналов (по умолчанию из конфигурации)")
	logsCmd.AddCommand(logsListCmd, logsShowCmd, logsVerifyCmd)

	rootCmd.AddCommand(devicesCmd, checkCmd, wipeCmd, logsCmd)
}

// environment собранные зависимости одного запуска
type environment struct {
	cfg        *config.Config
	logger     *logging.EnterpriseLogger
	runner     *execute.ExecRunner
	elevation  execute.Elevation
	enumerator system.Enumerator
}

func loadEnvironment(ctx context.Context) (*environment, error) {
	// СНАЧАЛА загружаем конфигурацию
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cerr.Wrap(err, "ошибка загрузки конфигурации")
	}

	// Применяем профиль если указан
	if profile != "" {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return nil, cerr.Mark(cerr.Wrapf(err, "ошибка применения профиля %s", profile), failure.ErrInvalidInput)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cerr.Wrap(err, "невалидная конфигурация")
	}

	logger, err := logging.NewEnterpriseLogger(cfg, verbose)
	if err != nil {
		return nil, cerr.Wrap(err, "ошибка инициализации логгера")
	}
	if profile != "" {
		logger.Log("INFO", "Применён профиль", "profile", profile)
	}

	bootstrap := execute.NewExecRunner(logger, execute.ElevationNone)
	elevation := security.DetectElevation(ctx, bootstrap)
	runner := bootstrap.WithElevation(elevation)
	logger.Log("INFO", "Запуск "+AppName, "version", Version, "os", runtime.GOOS, "elevation", elevation)

	return &environment{
		cfg:        cfg,
		logger:     logger,
		runner:     runner,
		elevation:  elevation,
		enumerator: system.NewEnumerator(runner, logger),
	}, nil
}

func (env *environment) platform() wipe.Platform {
	return wipe.NewPlatform(runtime.GOOS, wipe.PlatformOptions{
		Runner:        env.runner,
		Logger:        env.logger,
		PassPayloadMB: env.cfg.Wipe.PassPayloadMB,
		Write: wipe.WriteOptions{
			ChunkSize:    env.cfg.Wipe.ChunkSize,
			MaxSpeedMBps: env.cfg.Wipe.MaxSpeedMBps,
		},
		Filesystem:  env.cfg.Wipe.Filesystem,
		SettleDelay: env.cfg.GetSettleDelay(),
	})
}

func (env *environment) hpaManager() *hpa.Manager {
	return hpa.NewManager(env.runner, security.StaticChecker(env.elevation), env.logger, env.cfg.HPA.Tool, env.cfg.HPA.InstallHint)
}

func (env *environment) auditWriter() *reporting.AuditWriter {
	return reporting.NewAuditWriter(env.cfg.Audit, env.logger)
}

func (env *environment) close() {
	if env != nil && env.logger != nil {
		env.logger.Close()
	}
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext(logger *logging.EnterpriseLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			if logger != nil {
				logger.Log("WARN", "Получен сигнал", "signal", sig.String())
			}
			fmt.Fprintf(os.Stderr, "\n[INFO] Получен сигнал %s\n", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runDevices(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	devices := env.enumerator.ListRemovableDevices(cmd.Context())
	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, system.NoDeviceSentinel)
		return nil
	}

	fmt.Fprintln(out, "Съемные устройства:")
	fmt.Fprintln(out, "==================")
	for _, dev := range devices {
		dev.Model = env.enumerator.ResolveModel(cmd.Context(), dev)
		mark := ""
		if security.ShouldSkipDevice(env.cfg, dev) {
			mark = " [исключено]"
		}
		fmt.Fprintf(out, "%-12s %-28s %s%s\n", dev.Path, dev.Model, formatSize(dev.SizeBytes), mark)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	out := cmd.OutOrStdout()
	ok := true

	fmt.Fprintf(out, "%s %s (%s)\n", AppName, Version, runtime.GOOS)
	if env.elevation.Elevated() {
		fmt.Fprintf(out, "✓ привилегии: %s\n", env.elevation)
	} else {
		fmt.Fprintln(out, "✗ привилегии: нет (запустите от root, через sudo или от администратора)")
		ok = false
	}

	platform := env.platform()
	if platform == nil {
		fmt.Fprintf(out, "✗ платформа %s не поддерживается\n", runtime.GOOS)
		return cerr.Wrapf(failure.ErrInvalidInput, "unsupported platform %s", runtime.GOOS)
	}

	for _, tool := range requiredTools(runtime.GOOS, env.cfg) {
		if security.ToolAvailable(env.runner, tool) {
			fmt.Fprintf(out, "✓ %s\n", tool)
		} else {
			fmt.Fprintf(out, "✗ %s не найден\n", tool)
			ok = false
		}
	}
	if platform.SupportsHpaDco() {
		if err := env.hpaManager().CheckAvailable(cmd.Context()); err != nil {
			fmt.Fprintf(out, "⚠ HPA/DCO недоступно: %v\n", err)
			for _, h := range failure.Hints(err) {
				fmt.Fprintf(out, "  подсказка: %s\n", h)
			}
			ok = false
		} else {
			fmt.Fprintf(out, "✓ HPA/DCO (%s)\n", env.cfg.HPA.Tool)
		}
	}

	if !ok {
		return errCompletedWithWarnings
	}
	return nil
}

func requiredTools(goos string, cfg *config.Config) []string {
	switch goos {
	case "linux":
		return []string{"parted", "udevadm", "mkfs." + cfg.Wipe.Filesystem, "dd"}
	case "windows":
		return []string{"format", "wmic"}
	default:
		return nil
	}
}

func formatSize(b uint64) string {
	if b == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
}

// exitCode сопоставляет ошибку коду завершения
func exitCode(err error) int {
	switch {
	case err == nil:
		return EXIT_SUCCESS
	case cerr.Is(err, errCompletedWithWarnings):
		return EXIT_WARNING
	default:
		return EXIT_ERROR
	}
}

func printError(w io.Writer, err error) {
	if err == nil || cerr.Is(err, errCompletedWithWarnings) {
		return
	}
	fmt.Fprintf(w, "Ошибка: %v\n", err)
	if d := failure.Diagnostic(err); d != "" {
		fmt.Fprintf(w, "  %s\n", execute.ExtractSummary(d, 5))
	}
	for _, h := range failure.Hints(err) {
		fmt.Fprintf(w, "  подсказка: %s\n", h)
	}
}

func main() {
	err := rootCmd.Execute()
	printError(os.Stderr, err)
	os.Exit(exitCode(err))
}
