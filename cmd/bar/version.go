package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the current bar release (overridden by ldflags at build time).
	Version = "0.1.0"
	// Build identifies the build channel (overridden by ldflags).
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("bar version %s (%s)\n", Version, Build)
		return nil
	},
}
