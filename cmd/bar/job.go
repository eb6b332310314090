package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/config"
	"github.com/torvald-bar/bargo/internal/jobengine"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and control jobs in the configured job directory",
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs discovered in the job directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadJobEngine()
		if err != nil {
			return err
		}
		for _, node := range eng.Jobs() {
			fmt.Printf("%-36s %-20s %s\n", node.Config.UUID, node.Config.Name, node.State())
		}
		return nil
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-uuid>",
	Short: "Show a job's current state and running info",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadJobEngine()
		if err != nil {
			return err
		}
		node := eng.JobByUUID(args[0])
		if node == nil {
			return fmt.Errorf("no job with uuid %s", args[0])
		}
		fmt.Printf("name:        %s\n", node.Config.Name)
		fmt.Printf("destination: %s\n", node.Config.Destination)
		fmt.Printf("state:       %s\n", node.State())
		if rest := node.Running.EstimatedRestTime(); rest > 0 {
			fmt.Printf("est. rest:   %s\n", rest)
		}
		return nil
	},
}

var (
	jobTriggerArchiveType string
	jobTriggerNoStorage   bool
	jobTriggerDryRun      bool
)

var jobTriggerCmd = &cobra.Command{
	Use:   "trigger <job-uuid>",
	Short: "Manually trigger a job outside its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadJobEngine()
		if err != nil {
			return err
		}
		node := eng.JobByUUID(args[0])
		if node == nil {
			return fmt.Errorf("no job with uuid %s", args[0])
		}
		at, ok := catalog.ParseArchiveType(jobTriggerArchiveType)
		if !ok {
			return fmt.Errorf("unknown archive type %q", jobTriggerArchiveType)
		}
		return node.Trigger("", "", at, jobTriggerNoStorage, jobTriggerDryRun, "cli", time.Now())
	},
}

var jobAbortCmd = &cobra.Command{
	Use:   "abort <job-uuid>",
	Short: "Abort a job's in-flight run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadJobEngine()
		if err != nil {
			return err
		}
		node := eng.JobByUUID(args[0])
		if node == nil {
			return fmt.Errorf("no job with uuid %s", args[0])
		}
		return node.Abort()
	},
}

func init() {
	jobTriggerCmd.Flags().StringVar(&jobTriggerArchiveType, "type", "normal", "archive type: normal|full|incremental|differential|continuous")
	jobTriggerCmd.Flags().BoolVar(&jobTriggerNoStorage, "no-storage", false, "run without writing to storage")
	jobTriggerCmd.Flags().BoolVar(&jobTriggerDryRun, "dry-run", false, "simulate the run without executing it")

	jobCmd.AddCommand(jobListCmd, jobShowCmd, jobTriggerCmd, jobAbortCmd)
}

// loadJobEngine synchronously scans the configured job directory into a
// fresh Engine, without starting its background threads. It is used by the
// one-shot job subcommands; the daemon command uses Engine.Start instead.
func loadJobEngine() (*jobengine.Engine, error) {
	dir := config.GetString("jobs-dir")
	eng := jobengine.NewEngine(nil)
	w := jobengine.NewWatcher(dir, eng)
	w.Start(cmdContext())
	_ = w.Close()
	return eng, nil
}
