package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shynote/shynote/internal/vault/schema"
)

var folderCmd = &cobra.Command{
	Use:     "folder",
	GroupID: "folders",
	Short:   "Create, rename, list, and delete folders",
}

var folderNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		folder := &schema.Folder{
			ID:      schema.NewID(),
			Name:    args[0],
			OwnerID: a.cfg.OwnerID,
		}
		if err := folder.Validate(); err != nil {
			fatal(err)
		}
		if err := a.store.PutFolder(context.Background(), folder, schema.ActionCreate); err != nil {
			fatal(fmt.Errorf("failed to create folder: %w", err))
		}

		fmt.Printf("Created folder %s\n", folder.ID)
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()
		folder, err := a.store.GetFolder(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		if folder == nil {
			fatal(fmt.Errorf("folder %s not found", args[0]))
		}
		if schema.IsTrashFolder(folder.ID, a.cfg.OwnerID) {
			fatal(fmt.Errorf("the Trash folder cannot be renamed"))
		}

		folder.Name = args[1]

		if err := a.store.PutFolder(ctx, folder, schema.ActionUpdate); err != nil {
			fatal(fmt.Errorf("failed to rename folder: %w", err))
		}
		fmt.Printf("Renamed folder %s\n", folder.ID)
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		if schema.IsTrashFolder(args[0], a.cfg.OwnerID) {
			fatal(fmt.Errorf("the Trash folder cannot be deleted"))
		}
		if err := a.store.DeleteFolder(context.Background(), args[0]); err != nil {
			fatal(fmt.Errorf("failed to delete folder: %w", err))
		}
		fmt.Printf("Deleted folder %s\n", args[0])
	},
}

var folderLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List folders in the vault",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		folders, err := a.store.ListFolders(context.Background(), a.cfg.OwnerID)
		if err != nil {
			fatal(err)
		}
		if len(folders) == 0 {
			fmt.Println("No folders")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS")
		for _, f := range folders {
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Name, f.SyncStatus)
		}
		w.Flush()
	},
}

func init() {
	folderCmd.AddCommand(folderNewCmd, folderRenameCmd, folderRmCmd, folderLsCmd)
	rootCmd.AddCommand(folderCmd)
}
