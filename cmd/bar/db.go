package main

import (
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/catalog/migrations"
	"github.com/torvald-bar/bargo/internal/config"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Low-level catalog database maintenance",
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run SQLite's integrity_check against the catalog database",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dbengine.Open(config.GetString("catalog-path"), dbengine.ModeRead, dbengine.OpenFlags{}, dbengine.Forever)
		if err != nil {
			return err
		}
		defer h.Close()
		var result string
		err = h.Execute("PRAGMA integrity_check", nil, func(row *sql.Rows) error {
			return row.Scan(&result)
		}, 30*time.Second)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	},
}

var dbVacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the catalog database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dbengine.Open(config.GetString("catalog-path"), dbengine.ModeReadWrite, dbengine.OpenFlags{}, dbengine.Forever)
		if err != nil {
			return err
		}
		defer h.Close()
		return h.Execute("VACUUM", nil, nil, 5*time.Minute)
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate <old-path> <new-path>",
	Short: "Migrate a catalog database from an older schema version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return migrations.Run(args[0], args[1], func(stage string, fraction float64) {
			fmt.Printf("%-20s %3.0f%%\n", stage, fraction*100)
		}, nil, func() bool {
			return ctx.Err() != nil
		})
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the catalog database's schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dbengine.Open(config.GetString("catalog-path"), dbengine.ModeRead, dbengine.OpenFlags{}, dbengine.Forever)
		if err != nil {
			return err
		}
		defer h.Close()
		v, err := catalog.SchemaVersion(h)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbCheckCmd, dbVacuumCmd, dbMigrateCmd, dbVersionCmd)
}
