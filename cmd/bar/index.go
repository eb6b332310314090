package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and repair the catalog index",
}

var indexShowCmd = &cobra.Command{
	Use:   "show <job-uuid>",
	Short: "Show the catalog entity for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := rtCtx.openCatalog(config.GetString("catalog-path"))
		if err != nil {
			return err
		}
		entity, err := idx.FindEntity(args[0])
		if err != nil {
			return err
		}
		if entity == nil {
			return fmt.Errorf("no entity found for job %s", args[0])
		}
		fmt.Printf("id:       %d\n", entity.ID)
		fmt.Printf("job:      %s\n", entity.JobUUID)
		fmt.Printf("host:     %s\n", entity.HostName)
		fmt.Printf("locked:   %v\n", entity.Locked)
		return nil
	},
}

var indexUnlockCmd = &cobra.Command{
	Use:   "unlock <entity-id>",
	Short: "Clear the in-progress lock on an entity left over from a crashed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := rtCtx.openCatalog(config.GetString("catalog-path"))
		if err != nil {
			return err
		}
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid entity id %q", args[0])
		}
		return idx.UnlockEntity(id)
	},
}

var indexRepairCmd = &cobra.Command{
	Use:   "repair <table>",
	Short: "Renumber corrupted IDs in a catalog table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := rtCtx.openCatalog(config.GetString("catalog-path"))
		if err != nil {
			return err
		}
		return idx.FixBrokenIDs(args[0])
	},
}

func init() {
	indexCmd.AddCommand(indexShowCmd, indexUnlockCmd, indexRepairCmd)
}
