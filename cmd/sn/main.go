// Command sn is the Shynote vault CLI: offline-first note storage with
// background synchronization against a remote Shynote server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	ownerFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "sn",
	Short: "Offline-first notes with background sync",
	Long: `sn manages a local note vault that syncs with a remote Shynote server.

All edits land in the local vault first and are queued in a change log;
a sync cycle drains the queue whenever the remote is reachable. Multiple
windows and processes can share one vault: a cross-context lock ensures
only one of them syncs at a time.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.shynote/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner id override")

	rootCmd.AddGroup(
		&cobra.Group{ID: "notes", Title: "Note Commands:"},
		&cobra.Group{ID: "folders", Title: "Folder Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
