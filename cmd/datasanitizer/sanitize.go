package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"datasanitizer/internal/app"
	"datasanitizer/internal/config"
	"datasanitizer/internal/observability"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/reporting"
	"datasanitizer/internal/wipe"
)

type sanitizeFlags struct {
	yes         bool
	bound       string
	passes      int
	profile     string
	patterns    []string
	asJSON      bool
	metricsAddr string
}

func newSanitizeCmd() *cobra.Command {
	var f sanitizeFlags
	cmd := &cobra.Command{
		Use:   "sanitize <volume>",
		Short: "Перезаписать начальный диапазон тома и проверить результат",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSanitize(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Подтвердить без запроса")
	cmd.Flags().StringVar(&f.bound, "bound", "", "Размер перезаписываемого диапазона (например 100MiB)")
	cmd.Flags().IntVarP(&f.passes, "passes", "p", 0, "Количество проходов")
	cmd.Flags().StringVar(&f.profile, "profile", "", "Профиль проходов (quick/standard/dod5220/random/paranoid)")
	cmd.Flags().StringSliceVar(&f.patterns, "pattern", nil, "Паттерн прохода (zero/ones/random/byte:N), можно повторять")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Вывод в JSON")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Адрес для /metrics на время задания")
	return cmd
}

func runSanitize(parent context.Context, identifier string, f sanitizeFlags) error {
	if err := setup(); err != nil {
		return err
	}

	req := app.SanitizeRequest{
		Identifier: identifier,
		PassCount:  f.passes,
		Profile:    f.profile,
		Patterns:   f.patterns,
	}
	if f.bound != "" {
		b, err := humanize.ParseBytes(f.bound)
		if err != nil {
			return reason.Wrap(err, reason.InvalidRequest, "неверный формат --bound")
		}
		req.BoundBytes = b
	}

	ctx, stop := app.SignalContext(parent)
	defer stop()

	var metrics *observability.Metrics
	addr := f.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Listen
	}
	var recorder app.Metrics
	if addr != "" {
		metrics = observability.NewMetrics()
		recorder = metrics
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Log("WARN", "metrics endpoint failed", "addr", addr, "error", err)
			}
		}()
	}
	a := newApp(recorder)

	var source string
	req.Confirm, source = autoConfirmed(f.yes, cfg)
	if source == confirmedByConfig {
		logger.Log("WARN", "Запуск подтверждён конфигурацией без запроса оператора",
			"volume", identifier, "setting", "security.require_confirmation=false")
	}
	if !req.Confirm {
		plan, err := a.PassPlan(req)
		if err != nil {
			return err
		}
		bound := req.BoundBytes
		if bound == 0 {
			bound = cfg.Sanitize.BoundBytes
		}
		req.Confirm = app.NewConfirmer(os.Stdin, os.Stderr).Confirm(identifier, humanize.IBytes(bound), plan)
		if !req.Confirm {
			logger.Log("INFO", "Операция отменена пользователем", "volume", identifier)
		}
	}

	started := time.Now()
	h, err := a.StartSanitization(ctx, req)
	if err != nil {
		return finish(identifier, reporting.FromError(identifier, err, time.Now()), err, f.asJSON)
	}

	showProgress(h.Progress(), isatty.IsTerminal(os.Stderr.Fd()) && !f.asJSON)
	res, err := h.Wait()
	if err != nil {
		return finish(identifier, reporting.FromError(identifier, err, time.Now()), err, f.asJSON)
	}
	logger.Log("INFO", "Санитизация завершена", "volume", identifier, "duration", time.Since(started).String())
	return finish(identifier, reporting.FromResult(res), nil, f.asJSON)
}

const (
	confirmedByFlag   = "flag"
	confirmedByConfig = "config"
)

// autoConfirmed - подтверждён ли запуск без запроса и откуда взято подтверждение
func autoConfirmed(yes bool, c *config.Config) (bool, string) {
	switch {
	case yes:
		return true, confirmedByFlag
	case !c.Security.RequireConfirmation:
		return true, confirmedByConfig
	}
	return false, ""
}

// finish печатает итог и сохраняет отчёт; ошибка операции возвращается как есть
func finish(identifier string, payload reporting.Payload, opErr error, asJSON bool) error {
	if asJSON {
		if err := printJSON(payload); err != nil {
			logger.Log("WARN", "Ошибка вывода", "error", err)
		}
	} else {
		fmt.Print(reporting.Text(payload))
	}

	exit := exitCode(opErr)
	report := reporting.NewReport([]reporting.Payload{payload}, cfg, exit, time.Now())
	path, err := reporting.SaveReport(report, cfg)
	if err != nil {
		logger.Log("WARN", "Ошибка сохранения отчёта", "error", err.Error())
	} else if path != "" {
		logger.Log("INFO", "Отчёт сохранён", "run_id", report.RunID, "file", path, "volume", identifier)
	}

	if opErr != nil {
		// итог уже напечатан
		return &exitStatus{code: exit, err: opErr}
	}
	return nil
}

// showProgress рисует прогресс в терминале; без терминала только вычитывает канал
func showProgress(progress <-chan wipe.ProgressInfo, tty bool) {
	for p := range progress {
		if !tty {
			continue
		}
		switch p.State {
		case wipe.StateVerifying:
			fmt.Fprintf(os.Stderr, "\r\033[K🔍 verifying %s...", humanize.IBytes(p.BoundBytes))
		default:
			fmt.Fprintf(os.Stderr, "\r\033[K⏳ pass %d/%d %-8s %5.1f%%  %s/%s  %.1f MB/s",
				p.Pass, p.PassCount, p.Pattern, p.Percentage,
				humanize.IBytes(p.BytesWritten), humanize.IBytes(p.BoundBytes), p.SpeedMBps)
		}
	}
	if tty {
		fmt.Fprintln(os.Stderr)
	}
}
