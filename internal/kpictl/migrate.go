package kpictl

import (
	"fmt"

	"github.com/spf13/cobra"

	"kpiboard/internal/storage"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (sqlite and postgres backends).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var dsn string
			switch storage.Dialect(a.cfg.DataBackend) {
			case storage.SQLite:
				dsn = a.cfg.SQLiteDBPath
			case storage.Postgres:
				dsn = a.cfg.PostgresDSN
			default:
				return fmt.Errorf("migrate needs a sqlite or postgres backend, got %q", a.cfg.DataBackend)
			}
			if err := storage.RunMigrations(storage.Dialect(a.cfg.DataBackend), dsn); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s database\n", a.cfg.DataBackend)
			return err
		},
	}
}
