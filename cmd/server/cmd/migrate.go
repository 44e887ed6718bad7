package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"healthsync/internal/infrastructure/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Управление схемой базы",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Применить все миграции",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := migration.NewMigration(cfg, migration.DefaultEngine).Up(); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Откатить последнюю миграцию",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := migration.NewMigration(cfg, migration.DefaultEngine).Down(); err != nil {
			return err
		}
		log.Info("last migration rolled back")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Показать версию схемы",
	RunE: func(_ *cobra.Command, _ []string) error {
		v, dirty, err := migration.NewMigration(cfg, migration.DefaultEngine).Version()
		if err != nil {
			return err
		}
		fmt.Printf("version: %d dirty: %t\n", v, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}
