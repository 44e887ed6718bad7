package sync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"healthsync/cmd/client/cmd/cmdutil"
	"healthsync/internal/app/client"
)

var (
	syncStatus bool
	resetStats bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Выполнить проход синхронизации",
	Long: `Выполняет один проход синхронизации для подключенного пользователя.

Типы без курсора загружают историю и отправляются одним пакетом,
остальные отправляют только новые данные.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		if syncStatus {
			return showSyncStatus(cmd, app)
		}

		if resetStats {
			app.SyncService().ResetStats(cmd.Context())
			cmdutil.OK("Статистика синхронизации сброшена")
			return nil
		}

		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	fmt.Println("=== Синхронизация данных ===")

	result, err := app.CheckBackgroundUpdates(cmd.Context())
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}

	if asJSON(cmd) {
		return cmdutil.PrintJSON(result)
	}

	PrintResult(result)

	stats := app.SyncService().GetStats()
	fmt.Printf("Всего проходов: %d\n", stats.TotalSweeps)
	if !stats.LastSuccessful.IsZero() {
		fmt.Printf("Последний успешный: %s\n", stats.LastSuccessful.Format("2006-01-02 15:04:05"))
	}

	return nil
}

// PrintResult выводит итог прохода
func PrintResult(result *client.SyncResult) {
	if result == nil {
		return
	}

	fmt.Println()
	if result.Success {
		cmdutil.OK("Синхронизация завершена")
	} else {
		cmdutil.Warn("Синхронизация завершена с ошибками")
	}
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Загружена история: %d типов\n", len(result.Backfilled))
	fmt.Printf("В пакете истории: %d типов\n", len(result.BatchTypes))
	fmt.Printf("Инкрементальных отправок: %d\n", result.Incremental)
	if result.Dropped > 0 {
		fmt.Printf("Отброшено записей сна с неизвестной стадией: %d\n", result.Dropped)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("Ошибок при синхронизации: %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i < 3 { // Показываем только первые 3 ошибки
				fmt.Printf("  • %s [%s]: %s\n", e.Operation, e.DataType, e.Error)
			}
		}
		if len(result.Errors) > 3 {
			fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
		}
	}
}

func showSyncStatus(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()
	stats := app.SyncService().GetStats()

	userID, err := app.UserID(ctx)
	if err != nil {
		return err
	}
	pending, err := app.Queue().Pending(ctx)
	if err != nil {
		return fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	if asJSON(cmd) {
		return cmdutil.PrintJSON(map[string]any{
			"user_id":    userID,
			"authorized": app.IsAuthorized(ctx),
			"api_url":    app.Settings().APIURL,
			"pending":    len(pending),
			"stats":      stats,
		})
	}

	fmt.Println("=== Статус синхронизации ===")

	fmt.Println("📊 Статистика:")
	fmt.Printf("  Всего проходов: %d\n", stats.TotalSweeps)
	fmt.Printf("  Загружено историй: %d\n", stats.TotalBackfilled)
	fmt.Printf("  Инкрементальных отправок: %d\n", stats.TotalIncremental)
	fmt.Printf("  Ошибок: %d\n", stats.TotalErrors)
	fmt.Printf("  Среднее время: %.2f сек\n", stats.AvgSweepDuration)

	if !stats.LastSuccessful.IsZero() || !stats.LastFailed.IsZero() {
		fmt.Printf("\n⏰ Временные метки:\n")
		fmt.Printf("  Последний успешный: %s\n", formatTime(stats.LastSuccessful))
		fmt.Printf("  Последний неудачный: %s\n", formatTime(stats.LastFailed))
	}

	fmt.Printf("\n⚙️  Конфигурация:\n")
	fmt.Printf("  Пользователь: %s\n", orDash(userID))
	fmt.Printf("  Доступ к данным: %v\n", app.IsAuthorized(ctx))
	fmt.Printf("  API: %s\n", app.Settings().APIURL)
	fmt.Printf("  Отслеживается типов: %d\n", len(app.Catalog().ReadTypes()))
	fmt.Printf("  В очереди: %d\n", len(pending))

	// Проверяем соединение с сервером
	fmt.Printf("\n🌐 Соединение с сервером: ")
	if err := app.CheckConnection(ctx); err != nil {
		cmdutil.Fail("%v", err)
	} else {
		cmdutil.OK("OK")
	}

	return nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&resetStats, "reset-stats", false, "сбросить статистику синхронизации")
}
