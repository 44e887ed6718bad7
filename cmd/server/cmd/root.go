// cmd/server/cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"healthsync/internal/app/server/config"
	"healthsync/internal/utils/logger"
)

var (
	cfg   *config.Config
	log   *slog.Logger
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "healthsync-server",
	Short: "HealthSync server - прием вебхуков с данными здоровья",
	Long: `Сервер принимает пакеты данных здоровья на POST /webhook/apple,
проверяет ключ x-api-key и сохраняет отсчеты в PostgreSQL.

Настройка через переменные окружения или .env:
  DATABASE_URI, RUN_ADDRESS, MIGRATIONS_PATH, MAX_BODY_BYTES, LOG_LEVEL, APP_ENV`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if debug {
		cfg.Logger.LogLevel = "debug"
	}

	log = logger.NewWithLevel(cfg.Env, cfg.Logger.LogLevel)
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(migrateCmd)
}
