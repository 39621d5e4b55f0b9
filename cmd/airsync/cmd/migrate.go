package cmd

import (
	"fmt"

	"airsync/internal/config"
	"airsync/internal/infrastructure/migration"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Миграции схемы хранилища",
	Annotations: map[string]string{skipApp: "true"},
}

var migrateUpCmd = &cobra.Command{
	Use:         "up",
	Short:       "Применить все миграции",
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newMigration()
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Migrations applied"))
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:         "down",
	Short:       "Откатить все миграции",
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newMigration()
		if err != nil {
			return err
		}
		if err := m.Down(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("Migrations rolled back"))
		return nil
	},
}

func newMigration() (*migration.Migration, error) {
	src := migration.Source{Dir: cfg.Storage.Migrations}
	var url string
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		src.Driver = migration.DriverSQLite
		url = migration.SQLiteURL(cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		src.Driver = migration.DriverPostgres
		url = cfg.Storage.DatabaseURI
	default:
		return nil, fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
	}
	return migration.NewMigration(src, url, nil), nil
}
