package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"healthsync/internal/app/server"
)

var clientName string

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Управление ключами x-api-key",
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Создать клиента и выпустить ключ",
	Long:  "Ключ показывается один раз. На сервере хранится только хэш секрета.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer srv.Close()

		c, key, err := srv.Clients().Create(cmd.Context(), clientName)
		if err != nil {
			return err
		}

		color.Green("✓ Клиент создан")
		fmt.Printf("ID:   %s\n", c.ID)
		fmt.Printf("Имя:  %s\n", c.Name)
		fmt.Printf("Ключ: %s\n", color.YellowString(key))
		return nil
	},
}

func init() {
	clientAddCmd.Flags().StringVar(&clientName, "name", "", "название клиента")
	_ = clientAddCmd.MarkFlagRequired("name")
	clientCmd.AddCommand(clientAddCmd)
}
