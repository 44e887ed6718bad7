// cmd/client/cmd/onboarding.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"healthsync/cmd/client/cmd/cmdutil"
	"healthsync/cmd/client/cmd/sync"
)

var connectUserID string

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Запросить доступ к данным здоровья",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := app.Authorize(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка запроса доступа: %w", err)
		}
		if !ok {
			cmdutil.Fail("Доступ к данным здоровья не выдан")
			return nil
		}

		cmdutil.OK("Доступ выдан для %d типов данных", len(app.Catalog().ReadTypes()))
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Подключить пользователя Metriport и выполнить первую синхронизацию",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.IsConfigured() {
			return fmt.Errorf("клиент не настроен. Выполните: healthsync init")
		}
		if !app.IsAuthorized(cmd.Context()) {
			return fmt.Errorf("нет доступа к данным здоровья. Выполните: healthsync authorize")
		}

		result, err := app.CompleteOnboarding(cmd.Context(), connectUserID)
		if err != nil {
			return fmt.Errorf("ошибка подключения: %w", err)
		}

		cmdutil.OK("Пользователь %s подключен", connectUserID)
		if jsonOutput {
			return cmdutil.PrintJSON(result)
		}
		sync.PrintResult(result)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Периодическая синхронизация до сигнала завершения",
	Long: `Выполняет холодный старт и затем проход синхронизации каждые
SYNC_INTERVAL_SECONDS секунд. Завершается по SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return app.Run(ctx)
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectUserID, "user-id", "", "идентификатор пользователя Metriport")
	_ = connectCmd.MarkFlagRequired("user-id")
}
