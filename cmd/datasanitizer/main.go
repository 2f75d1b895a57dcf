package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"datasanitizer/internal/app"
	"datasanitizer/internal/config"
	"datasanitizer/internal/logging"
	"datasanitizer/internal/reason"
	"datasanitizer/internal/security"
)

const (
	Version = "1.0.0"
	AppName = "datasanitizer"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_ERROR   = 1
	EXIT_WARNING = 2
)

var (
	cfg        *config.Config
	logger     *logging.EnterpriseLogger
	verbose    bool
	configPath string
)

// exitStatus - завершение с кодом без сообщения об ошибке (небезопасный вердикт, отказ оператора)
type exitStatus struct {
	code int
	err  error
}

func (e *exitStatus) Error() string { return e.err.Error() }
func (e *exitStatus) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:           "datasanitizer",
	Short:         "datasanitizer - ограниченная перезапись съёмных томов",
	Long:          "Утилита перезаписывает начальный диапазон выбранного тома заданными паттернами и проверяет результат",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации (YAML или TOML)")

	rootCmd.AddCommand(newVolumesCmd(), newClassifyCmd(), newSanitizeCmd(), newProfilesCmd(), newReportsCmd())
}

// setup загружает конфигурацию, создаёт логгер и выполняет проверки окружения
func setup() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return reason.Wrap(err, reason.InvalidRequest, "ошибка загрузки конфигурации")
	}
	if err := config.Validate(cfg); err != nil {
		return reason.Wrap(err, reason.InvalidRequest, "невалидная конфигурация")
	}

	logger, err = logging.NewEnterpriseLogger(cfg, verbose)
	if err != nil {
		return reason.Wrap(err, reason.Internal, "ошибка инициализации логгера")
	}

	return security.SecurityChecks(cfg)
}

func newApp(metrics app.Metrics) *app.App {
	return app.NewApp(cfg, logger, metrics)
}

func exitCode(err error) int {
	if err == nil {
		return EXIT_SUCCESS
	}
	var status *exitStatus
	if errors.As(err, &status) {
		return status.code
	}
	switch reason.Of(err) {
	case reason.ConfirmationRequired, reason.Cancelled:
		return EXIT_WARNING
	default:
		return EXIT_ERROR
	}
}

func printError(err error) {
	var status *exitStatus
	if errors.As(err, &status) {
		return
	}
	fmt.Fprintf(os.Stderr, "❌ [%s] %v\n", reason.Of(err), err)
	for _, hint := range reason.Hints(err) {
		fmt.Fprintf(os.Stderr, "   hint: %s\n", hint)
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	os.Exit(exitCode(err))
}
