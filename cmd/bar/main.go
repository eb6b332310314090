// Package main is the bar command-line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/barlog"
	"github.com/torvald-bar/bargo/internal/config"
)

var (
	jsonOutput bool
	jobsDirFlag string
	catalogPathFlag string
)

var rootCmd = &cobra.Command{
	Use:   "bar",
	Short: "Backup Archiver job engine and catalog",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		barlog.Configure(
			config.GetString("log.level"),
			config.GetString("log.file"),
			config.GetInt("log.max-size-mb"),
			config.GetInt("log.max-backups"),
			config.GetInt("log.max-age-days"),
		)
		if jobsDirFlag != "" {
			config.Set("jobs-dir", jobsDirFlag)
		}
		if catalogPathFlag != "" {
			config.Set("catalog-path", catalogPathFlag)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "accepted but not used: every subcommand prints plain text")
	rootCmd.PersistentFlags().StringVar(&jobsDirFlag, "jobs-dir", "", "override the configured job directory")
	rootCmd.PersistentFlags().StringVar(&catalogPathFlag, "catalog", "", "override the configured catalog database path")

	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
