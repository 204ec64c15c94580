package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:     "reset",
	GroupID: "advanced",
	Short:   "Wipe the local vault",
	Long: `Drop all local notes, folders, and queued changes, and recreate an
empty vault. Remote data is untouched; a following 'sn pull' repopulates
the vault from the remote store.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fatal(fmt.Errorf("refusing to wipe the vault without --force"))
		}

		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		if err := a.store.Reset(context.Background()); err != nil {
			fatal(fmt.Errorf("failed to reset vault: %w", err))
		}
		fmt.Println("Vault reset. Run 'sn pull' to repopulate from the remote store.")
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, "confirm the wipe")
	rootCmd.AddCommand(resetCmd)
}
