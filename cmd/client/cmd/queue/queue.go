package queue

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"healthsync/cmd/client/cmd/cmdutil"
)

// QueueCmd - родительская команда для работы с очередью неотправленных данных
var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Очередь неотправленных данных",
	Long: `Неудачные доставки сохраняются в очереди и повторяются после
следующей успешной отправки в порядке постановки.`,
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать очередь",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		pending, err := app.Queue().Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}

		if v, _ := cmd.Flags().GetBool("json"); v {
			return cmdutil.PrintJSON(pending)
		}

		if len(pending) == 0 {
			fmt.Println("Очередь пуста")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tПОСТАВЛЕН\tРАЗМЕР")
		for _, p := range pending {
			fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.QueuedAt.Format("2006-01-02 15:04:05"), len(p.Body))
		}
		return w.Flush()
	},
}

var FlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Повторить отправку очереди",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		delivered := app.Queue().Drain(cmd.Context())

		pending, err := app.Queue().Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}

		cmdutil.OK("Доставлено: %d", delivered)
		if len(pending) > 0 {
			cmdutil.Warn("Осталось в очереди: %d", len(pending))
		}
		return nil
	},
}

var ClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Очистить очередь без отправки",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		if err := app.Queue().Clear(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка очистки очереди: %w", err)
		}
		cmdutil.OK("Очередь очищена")
		return nil
	},
}
