package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	vaultsync "github.com/shynote/shynote/internal/vault/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push queued local changes to the remote store",
	Long: `Run one sync cycle: acquire the cross-context lock, push queued
folder changes sequentially, then push queued note changes in parallel
batches. If another process is already syncing, the cycle is skipped.

Version conflicts freeze the affected note; inspect them with
'sn conflicts' and settle them with 'sn resolve'.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()
		start := time.Now()
		if err := a.coord.Sync(ctx); err != nil {
			fatal(fmt.Errorf("sync failed: %w", err))
		}

		status := a.coord.Snapshot()
		fmt.Printf("Sync cycle finished in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Queued entries: %d\n", status.QueueLength)
		if status.ConflictCount > 0 {
			fmt.Printf("   Conflicts: %d (run 'sn conflicts')\n", status.ConflictCount)
		}
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Fetch the remote snapshot and merge it into the vault",
	Long: `Fetch all remote notes and folders and merge them into the local
vault. Clean local copies are updated or pruned to match the remote;
locally edited copies are left untouched (or flagged as conflicts when
the remote moved too).`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		if err := a.coord.PullAll(context.Background()); err != nil {
			fatal(fmt.Errorf("pull failed: %w", err))
		}

		status := a.coord.Snapshot()
		fmt.Println("Pull complete")
		if status.ConflictCount > 0 {
			fmt.Printf("   Conflicts: %d (run 'sn conflicts')\n", status.ConflictCount)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show vault and queue status",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()
		notes, err := a.store.CountNotes(ctx)
		if err != nil {
			fatal(err)
		}
		folders, err := a.store.CountFolders(ctx)
		if err != nil {
			fatal(err)
		}
		pending, err := a.store.PendingCount(ctx)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Vault: %s\n", a.cfg.VaultPath())
		fmt.Printf("   Notes: %d\n", notes)
		fmt.Printf("   Folders: %d\n", folders)
		fmt.Printf("   Queued changes: %d\n", pending)
	},
}

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	GroupID: "sync",
	Short:   "List unresolved version conflicts",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		// Conflicts are discovered during a cycle; run a pull so this
		// command reflects the current remote state.
		if err := a.coord.PullAll(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: pull failed, showing cached state: %v\n", err)
		}

		conflicts := a.coord.Conflicts()
		if len(conflicts) == 0 {
			fmt.Println("No unresolved conflicts")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NOTE\tLOCAL TITLE\tREMOTE TITLE\tDETECTED")
		for _, c := range conflicts {
			remoteTitle := "(not fetched)"
			if c.Remote != nil {
				remoteTitle = c.Remote.Title
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				c.Local.ID, c.Local.Title, remoteTitle,
				c.DetectedAt.Format(time.RFC3339))
		}
		w.Flush()
		fmt.Println("\nResolve with: sn resolve <note-id> --local | --remote")
	},
}

var resolveCmd = &cobra.Command{
	Use:     "resolve <note-id>",
	GroupID: "sync",
	Short:   "Resolve a version conflict",
	Long: `Resolve a frozen version conflict on a note.

--local keeps the local copy: it is requeued at the remote's version and
the next sync overwrites the remote edits. --remote accepts the remote
copy and discards the queued local edits.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		useLocal, _ := cmd.Flags().GetBool("local")
		useRemote, _ := cmd.Flags().GetBool("remote")
		if useLocal == useRemote {
			fatal(fmt.Errorf("exactly one of --local or --remote is required"))
		}

		a, err := openApp(true)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()

		// Rediscover the conflict in this process: conflict state lives
		// with the coordinator, not in the vault.
		if err := a.coord.PullAll(ctx); err != nil {
			fatal(fmt.Errorf("failed to fetch remote state: %w", err))
		}

		choice := vaultsync.ChoiceKeepLocal
		if useRemote {
			choice = vaultsync.ChoiceAcceptRemote
		}
		if err := a.coord.Resolve(ctx, args[0], choice); err != nil {
			fatal(err)
		}

		fmt.Printf("Resolved conflict on %s (%s)\n", args[0], choice)
		if useLocal {
			if err := a.coord.Sync(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: follow-up sync failed: %v\n", err)
			}
		}
	},
}

func init() {
	resolveCmd.Flags().Bool("local", false, "keep the local copy")
	resolveCmd.Flags().Bool("remote", false, "accept the remote copy")

	rootCmd.AddCommand(syncCmd, pullCmd, statusCmd, conflictsCmd, resolveCmd)
}
