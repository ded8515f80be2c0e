package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvekit/skillevo/pkg/presenter"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [proposal-id]",
	Short: "Restore a skill document from an applied proposal's backup",
	Long: `Rollback restores the document snapshot taken before the proposal was
applied and marks the proposal rolled_back.

Example:
  skillevo rollback pine-lead-20260115093000-deadbeef`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := newWorkspace()
		if err != nil {
			presenter.Error(err, "Failed to initialize workspace")
			os.Exit(1)
		}

		if err := ws.engine.Rollback(cmd.Context(), args[0]); err != nil {
			presenter.Error(err, "Rollback failed")
			os.Exit(1)
		}
		presenter.Success("Rolled back " + args[0])
	},
}
