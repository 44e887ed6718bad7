package cursor

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"healthsync/cmd/client/cmd/cmdutil"
	"healthsync/internal/domain/health"
)

var resetAll bool

// CursorCmd - родительская команда для работы с курсорами синхронизации
var CursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Курсоры синхронизации по типам данных",
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать курсоры",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		cursors, err := app.Cursors().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения курсоров: %w", err)
		}

		types := app.Catalog().ReadTypes()

		if v, _ := cmd.Flags().GetBool("json"); v {
			out := make(map[health.DataType]string, len(types))
			for _, t := range types {
				out[t] = cursors[t].State(t).String()
			}
			return cmdutil.PrintJSON(out)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ТИП\tСОСТОЯНИЕ\tКУРСОР")
		for _, t := range types {
			c := cursors[t]
			value := "-"
			switch {
			case c.LastSyncedAt != nil:
				value = c.LastSyncedAt.Format(time.RFC3339)
			case len(c.ChangeAnchor) > 0:
				value = string(c.ChangeAnchor)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t, c.State(t), value)
		}
		return w.Flush()
	},
}

var ResetCmd = &cobra.Command{
	Use:   "reset [type]",
	Short: "Сбросить курсор, чтобы тип снова загрузил историю",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		var types []health.DataType
		switch {
		case len(args) == 1:
			t := health.DataType(args[0])
			if err := t.Validate(); err != nil {
				return err
			}
			types = []health.DataType{t}
		case resetAll:
			types = app.Catalog().ReadTypes()
		default:
			return fmt.Errorf("укажите тип данных или --all")
		}

		for _, t := range types {
			if err := app.Cursors().Reset(cmd.Context(), t); err != nil {
				return fmt.Errorf("ошибка сброса курсора %s: %w", t, err)
			}
		}
		cmdutil.OK("Сброшено курсоров: %d", len(types))
		return nil
	},
}

func init() {
	ResetCmd.Flags().BoolVar(&resetAll, "all", false, "сбросить все курсоры")
}
