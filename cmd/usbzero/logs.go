package main

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"usbzero/internal/config"
	"usbzero/internal/reporting"
)

var errIntegrity = cerr.New("audit log integrity check failed")

// logsLocation каталог и префикс журналов; флаг --dir важнее конфигурации
func logsLocation(cmd *cobra.Command) (string, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", "", cerr.Wrap(err, "ошибка загрузки конфигурации")
	}
	dir := cfg.Audit.Dir
	if f := cmd.Flags().Lookup("dir"); f != nil && f.Value.String() != "" {
		dir = f.Value.String()
	}
	return dir, cfg.Audit.Prefix, nil
}

func runLogsList(cmd *cobra.Command, args []string) error {
	dir, prefix, err := logsLocation(cmd)
	if err != nil {
		return err
	}
	logs, err := reporting.List(dir, prefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(logs) == 0 {
		fmt.Fprintf(out, "Журналы в %s не найдены\n", dir)
		return nil
	}
	fmt.Fprintf(out, "Журналы аудита (%s):\n", dir)
	fmt.Fprintln(out, "==================")
	for _, entry := range logs {
		status := "✓"
		if res, err := reporting.Verify(entry.Path); err != nil || !res.Valid {
			status = "✗"
		}
		fmt.Fprintf(out, "%s %s  %s\n", status, entry.ModTime.Format("2006-01-02 15:04:05"), entry.Name())
	}
	return nil
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	rec, raw, err := reporting.Load(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, string(raw))
	fmt.Fprintln(out)

	res, err := reporting.Verify(args[0])
	switch {
	case err != nil:
		fmt.Fprintf(out, "✗ подпись: %v\n", err)
		return cerr.Mark(err, errIntegrity)
	case !res.Valid:
		fmt.Fprintf(out, "✗ подпись не совпадает (ожидалось %s, получено %s)\n", res.Expected, res.Actual)
		return cerr.Wrapf(errIntegrity, "%s", args[0])
	}
	fmt.Fprintf(out, "✓ подпись верна, стирание %s (%s), %s, проходов: %d\n", rec.Drive, rec.DeviceModel, rec.Algorithm, rec.Passes)
	return nil
}

func runLogsVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		res, err := reporting.Verify(path)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
		case !res.Valid:
			failed++
			fmt.Fprintf(out, "✗ %s: INVALID\n", path)
		default:
			fmt.Fprintf(out, "✓ %s: OK (sha256 %s)\n", path, res.Actual)
		}
	}
	if failed > 0 {
		return cerr.Wrapf(errIntegrity, "%d of %d logs", failed, len(args))
	}
	return nil
}
