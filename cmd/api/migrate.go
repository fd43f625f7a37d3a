package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/eris-support/triage-service/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of every migration",
	RunE:  runMigrateStatus,
}

var errNoDatabase = errors.New("POSTGRES_DSN is not set")

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if !rt.pg.Enabled() {
		return errNoDatabase
	}
	return persistence.RunMigrations(cmd.Context(), rt.pg.PoolHandle(), rt.cfg.Postgres.MigrationsDir, rt.logger)
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if !rt.pg.Enabled() {
		return errNoDatabase
	}
	return persistence.MigrationStatus(cmd.Context(), rt.pg.PoolHandle(), rt.cfg.Postgres.MigrationsDir, rt.logger)
}
