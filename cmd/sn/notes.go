package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shynote/shynote/internal/vault/schema"
)

var noteCmd = &cobra.Command{
	Use:     "note",
	GroupID: "notes",
	Short:   "Create, edit, list, and delete notes",
}

var noteNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a note",
	Long: `Create a note in the local vault.

The note is written locally and queued for sync; run 'sn sync' or the
daemon to push it to the remote store.

Example:
  sn note new "Shopping list" --content "milk, eggs" --folder <folder-id>`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		content, _ := cmd.Flags().GetString("content")
		folderID, _ := cmd.Flags().GetString("folder")
		pinned, _ := cmd.Flags().GetBool("pinned")

		now := time.Now().UTC()
		note := &schema.Note{
			ID:        schema.NewID(),
			Title:     args[0],
			Content:   content,
			FolderID:  folderID,
			OwnerID:   a.cfg.OwnerID,
			Pinned:    pinned,
			Version:   schema.BaselineVersion,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := note.Validate(); err != nil {
			fatal(err)
		}
		if err := a.store.PutNote(context.Background(), note, schema.ActionCreate); err != nil {
			fatal(fmt.Errorf("failed to create note: %w", err))
		}

		fmt.Printf("Created note %s\n", note.ID)
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note's title or content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()
		note, err := a.store.GetNote(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		if note == nil {
			fatal(fmt.Errorf("note %s not found", args[0]))
		}

		if cmd.Flags().Changed("title") {
			note.Title, _ = cmd.Flags().GetString("title")
		}
		if cmd.Flags().Changed("content") {
			note.Content, _ = cmd.Flags().GetString("content")
		}
		if cmd.Flags().Changed("pinned") {
			note.Pinned, _ = cmd.Flags().GetBool("pinned")
		}
		note.UpdatedAt = time.Now().UTC()

		if err := note.Validate(); err != nil {
			fatal(err)
		}
		if err := a.store.PutNote(ctx, note, schema.ActionUpdate); err != nil {
			fatal(fmt.Errorf("failed to update note: %w", err))
		}

		fmt.Printf("Updated note %s\n", note.ID)
	},
}

var noteMvCmd = &cobra.Command{
	Use:   "mv <id> [folder-id]",
	Short: "Move a note to a folder, to the trash, or out of any folder",
	Long: `Move a note between folders.

With a folder id, the note moves into that folder. With --trash, the
note moves to the owner's Trash folder. With neither, the note is
removed from its folder.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ctx := context.Background()
		note, err := a.store.GetNote(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		if note == nil {
			fatal(fmt.Errorf("note %s not found", args[0]))
		}

		trash, _ := cmd.Flags().GetBool("trash")
		switch {
		case trash:
			note.FolderID = schema.TrashFolderID(a.cfg.OwnerID)
		case len(args) == 2:
			note.FolderID = args[1]
		default:
			note.FolderID = ""
		}
		note.UpdatedAt = time.Now().UTC()

		if err := a.store.PutNote(ctx, note, schema.ActionUpdate); err != nil {
			fatal(fmt.Errorf("failed to move note: %w", err))
		}

		fmt.Printf("Moved note %s\n", note.ID)
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		if err := a.store.DeleteNote(context.Background(), args[0]); err != nil {
			fatal(fmt.Errorf("failed to delete note: %w", err))
		}
		fmt.Printf("Deleted note %s\n", args[0])
	},
}

var noteLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List notes in the vault",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		notes, err := a.store.ListNotes(context.Background(), a.cfg.OwnerID)
		if err != nil {
			fatal(err)
		}
		if len(notes) == 0 {
			fmt.Println("No notes")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tFOLDER\tVER\tSTATUS")
		for _, n := range notes {
			folder := n.FolderID
			if folder == "" {
				folder = "-"
			} else if schema.IsTrashFolder(folder, a.cfg.OwnerID) {
				folder = "Trash"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", n.ID, n.Title, folder, n.Version, n.SyncStatus)
		}
		w.Flush()
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(false)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		note, err := a.store.GetNote(context.Background(), args[0])
		if err != nil {
			fatal(err)
		}
		if note == nil {
			fatal(fmt.Errorf("note %s not found", args[0]))
		}

		fmt.Printf("# %s\n\n%s\n", note.Title, note.Content)
	},
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	noteNewCmd.Flags().String("content", "", "note content")
	noteNewCmd.Flags().String("folder", "", "folder id")
	noteNewCmd.Flags().Bool("pinned", false, "pin the note")

	noteEditCmd.Flags().String("title", "", "new title")
	noteEditCmd.Flags().String("content", "", "new content")
	noteEditCmd.Flags().Bool("pinned", false, "pin or unpin the note")

	noteMvCmd.Flags().Bool("trash", false, "move the note to the Trash folder")

	noteCmd.AddCommand(noteNewCmd, noteEditCmd, noteMvCmd, noteRmCmd, noteLsCmd, noteShowCmd)
	rootCmd.AddCommand(noteCmd)
}
