package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goOnboard/internal/config"
	"github.com/MrEthical07/goOnboard/profilestore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres profile schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending profile migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := postgresDSN(cmd)
		if err != nil {
			return err
		}
		if err := profilestore.Migrate(dsn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "profile schema is up to date")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recent profile migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := postgresDSN(cmd)
		if err != nil {
			return err
		}
		if err := profilestore.Rollback(dsn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "rolled back one profile migration")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// postgresDSN returns the profile DSN. The SQLite store creates its schema on
// open and the identity driver has no local schema.
func postgresDSN(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Profiles.Driver != config.DriverPostgres {
		return "", fmt.Errorf("migrate requires profiles.driver %q, got %q", config.DriverPostgres, cfg.Profiles.Driver)
	}
	return cfg.Profiles.DSN, nil
}
