// cmd/client/cmd/init.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"healthsync/cmd/client/cmd/cmdutil"
	"healthsync/cmd/client/cmd/cursor"
	"healthsync/cmd/client/cmd/queue"
	"healthsync/cmd/client/cmd/sync"
)

var initAPIKey string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Инициализировать клиент HealthSync",
	Long: `Команда init выполняет первоначальную настройку клиента:
	1. Сохраняет ключ клиента Metriport (x-api-key)
	2. Сохраняет адрес API (--api-url или --sandbox)
	3. Проверяет соединение с сервером

Параметры сохраняются в локальном хранилище и используются при следующих
запусках, если не заданы через окружение.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("=== Инициализация HealthSync ===")
		fmt.Println()

		key := strings.TrimSpace(initAPIKey)
		if key == "" {
			// Запрашиваем ключ без эха
			fmt.Print("Введите ключ клиента: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("ошибка чтения ключа: %w", err)
			}
			fmt.Println()
			key = strings.TrimSpace(string(raw))
		}

		if err := app.Init(cmd.Context(), key, cfg.APIURL, cfg.Sandbox); err != nil {
			return err
		}
		cmdutil.OK("Параметры клиента сохранены (%s)", app.Settings().APIURL)

		// Проверяем соединение с сервером
		fmt.Println("Проверка соединения с сервером...")
		if err := app.CheckConnection(cmd.Context()); err != nil {
			cmdutil.Warn("Не удалось подключиться к серверу: %v", err)
			fmt.Println("Данные будут накапливаться в очереди до восстановления связи.")
		} else {
			cmdutil.OK("Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Выдайте доступ к данным здоровья: healthsync authorize")
		fmt.Println("2. Подключите пользователя: healthsync connect --user-id <id>")
		fmt.Println("3. Запустите фоновую синхронизацию: healthsync watch")

		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "ключ клиента (без интерактивного ввода)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(sync.SyncCmd)

	// Добавляем команды работы с очередью
	rootCmd.AddCommand(queue.QueueCmd)
	queue.QueueCmd.AddCommand(queue.ListCmd)
	queue.QueueCmd.AddCommand(queue.FlushCmd)
	queue.QueueCmd.AddCommand(queue.ClearCmd)

	// Добавляем команды работы с курсорами
	rootCmd.AddCommand(cursor.CursorCmd)
	cursor.CursorCmd.AddCommand(cursor.ListCmd)
	cursor.CursorCmd.AddCommand(cursor.ResetCmd)
}
