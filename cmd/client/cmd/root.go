// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"healthsync/cmd/client/cmd/cmdutil"
	"healthsync/internal/app/client"
	"healthsync/internal/app/client/config"
	"healthsync/internal/utils/logger"
)

var (
	cfg         *config.Config
	log         *slog.Logger
	app         *client.App
	debug       bool
	jsonOutput  bool
	apiURL      string
	sandbox     bool
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:   "healthsync",
	Short: "HealthSync - синхронизация данных здоровья с Metriport",
	Long: `HealthSync читает данные платформенного хранилища здоровья
(шаги, пульс, сон, тренировки и другие типы), агрегирует их по дням и часам
и доставляет на вебхук Metriport.

Первый проход загружает историю за BACKFILL_DAYS дней одним пакетом,
последующие проходы отправляют только новые данные.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: teardownApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Загружаем конфигурацию
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if sandbox {
		cfg.Sandbox = true
	}
	if fixturePath != "" {
		cfg.FixturePath = fixturePath
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	// Настраиваем логгер
	log = logger.NewWithLevel(cfg.Env, cfg.LogLevel)

	// Создаем приложение
	app, err = client.New(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(cmdutil.WithApp(ctx, app))

	return nil
}

func teardownApp(_ *cobra.Command, _ []string) error {
	if app != nil {
		app.Shutdown()
	}
	return nil
}

func init() {
	// Глобальные флаги
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "адрес API Metriport")
	rootCmd.PersistentFlags().BoolVar(&sandbox, "sandbox", false, "использовать sandbox API")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "JSON-файл с данными здоровья")

	// Команды будут добавлены в init() соответствующих файлов
}
