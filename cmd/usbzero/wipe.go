package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"usbzero/internal/erasure"
	"usbzero/internal/failure"
	"usbzero/internal/security"
)

// promptConfirmer спрашивает y/N в терминале
type promptConfirmer struct {
	in         *lineSource
	out        io.Writer
	isTerminal func() bool
	assumeYes  bool
}

func newPromptConfirmer(in *lineSource, assumeYes bool) *promptConfirmer {
	if in == nil {
		in = newLineSource(os.Stdin)
	}
	return &promptConfirmer{
		in:         in,
		out:        os.Stdout,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		assumeYes:  assumeYes,
	}
}

func (p *promptConfirmer) Confirm(ctx context.Context, c erasure.Confirmation) (bool, error) {
	fmt.Fprintf(p.out, "ВНИМАНИЕ: все данные на устройстве будут уничтожены:\n")
	fmt.Fprintf(p.out, "  устройство: %s\n", c.Device.Path)
	fmt.Fprintf(p.out, "  модель:     %s\n", c.Model)
	fmt.Fprintf(p.out, "  алгоритм:   %s, проходов: %d\n", c.Algorithm.DisplayName(), c.PassCount)
	if c.RemoveHpaDco {
		fmt.Fprintf(p.out, "  HPA/DCO:    будет снято\n")
	}
	if p.assumeYes {
		fmt.Fprintln(p.out, "Подтверждение не требуется")
		return true, nil
	}
	if p.isTerminal != nil && !p.isTerminal() {
		return false, cerr.WithHint(cerr.New("stdin is not a terminal"), "pass --yes to confirm non-interactively")
	}

	fmt.Fprint(p.out, "Продолжить? (y/N): ")
	line, err := p.in.ReadLine(ctx)
	switch {
	case err == nil:
		return isAffirmative(line), nil
	case cerr.Is(err, io.EOF):
		// пустой ввод значит отказ
		return false, nil
	case ctx.Err() != nil:
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	}
	return false, cerr.Wrap(err, "чтение подтверждения")
}

func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "д", "да":
		return true
	}
	return false
}

// progressPrinter выводит события задания
func progressPrinter(w io.Writer) func(erasure.Event) {
	return func(ev erasure.Event) {
		switch {
		case ev.Err != nil && ev.Warning:
			fmt.Fprintf(w, "⚠ %s\n", ev.Message)
		case ev.Err != nil:
			fmt.Fprintf(w, "✗ %s\n", ev.Message)
		case ev.Progress > 0:
			fmt.Fprintf(w, "[%3.0f%%] %s\n", ev.Progress*100, ev.Message)
		default:
			fmt.Fprintf(w, "       %s\n", ev.Message)
		}
	}
}

func runWipe(cmd *cobra.Command, args []string) error {
	algorithm, _ := cmd.Flags().GetString("algorithm")
	passes, _ := cmd.Flags().GetString("passes")
	removeHpaDco, _ := cmd.Flags().GetBool("remove-hpa-dco")
	noLog, _ := cmd.Flags().GetBool("no-log")
	yes, _ := cmd.Flags().GetBool("yes")

	var device string
	if len(args) > 0 {
		device = args[0]
	}

	req := erasure.Request{
		Device:       device,
		Algorithm:    algorithm,
		Passes:       passes,
		RemoveHpaDco: removeHpaDco,
		WriteLog:     !noLog,
	}
	if device == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		return newMenu(cmd).wipeFlow(req, yes)
	}
	return executeWipe(cmd, req, yes, nil)
}

func executeWipe(cmd *cobra.Command, req erasure.Request, assumeYes bool, in *lineSource) error {
	env, err := loadEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	ctx, cancel := signalContext(env.logger)
	defer cancel()

	if !env.cfg.Security.RequireConfirmation {
		assumeYes = true
	}
	req.WriteLog = req.WriteLog && env.cfg.Audit.Enabled

	deps := erasure.Deps{
		Config:     env.cfg,
		Enumerator: env.enumerator,
		Platform:   env.platform(),
		Privilege:  security.StaticChecker(env.elevation),
		HpaDco:     env.hpaManager(),
		Audit:      env.auditWriter(),
		Confirmer:  newPromptConfirmer(in, assumeYes),
		Logger:     env.logger,
	}

	out := cmd.OutOrStdout()
	report, err := erasure.New(deps).Run(ctx, req, progressPrinter(out))
	if err != nil {
		return err
	}
	return summarize(out, report)
}

// summarize печатает итог и возвращает ошибку для кода завершения
func summarize(w io.Writer, report erasure.Report) error {
	fmt.Fprintln(w, "\nРезультат:")
	fmt.Fprintln(w, "==================")

	switch {
	case report.Declined:
		fmt.Fprintln(w, "Операция отменена, устройство не изменено")
		return nil
	case report.Err != nil:
		fmt.Fprintf(w, "✗ %s - FAILED\n", report.Job.Device.Path)
		var oe *failure.OverwriteError
		if cerr.As(report.Err, &oe) {
			fmt.Fprintf(w, "  завершено проходов: %d\n", len(report.Job.Artifacts))
		}
		return report.Err
	}

	status := "✓"
	if len(report.Warnings) > 0 {
		status = "⚠"
	}
	fmt.Fprintf(w, "%s %s (%s) - %s, проходов: %d\n", status, report.Job.Device.Path, report.Job.Model,
		report.Job.Params.Algorithm.DisplayName(), len(report.Job.Artifacts))
	if report.HpaDcoCleaned {
		fmt.Fprintln(w, "  HPA/DCO снято")
	}
	if report.LogPath != "" {
		fmt.Fprintf(w, "  журнал аудита: %s\n", report.LogPath)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  Предупреждение: %v\n", warn)
		for _, h := range failure.Hints(warn) {
			fmt.Fprintf(w, "    подсказка: %s\n", h)
		}
	}
	if len(report.Warnings) > 0 {
		return errCompletedWithWarnings
	}
	return nil
}
