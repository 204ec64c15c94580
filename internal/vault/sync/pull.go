package sync

import (
	"context"
	"fmt"

	"github.com/shynote/shynote/internal/vault/schema"
)

// pull fetches the complete remote snapshot and reconciles the vault
// against it. Clean local copies are overwritten or pruned to match the
// remote; dirty local copies are never clobbered. A dirty note whose
// remote version moved past the locally observed one becomes a conflict.
func (c *Coordinator) pull(ctx context.Context) error {
	remoteNotes, err := c.remote.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote notes: %w", err)
	}
	remoteFolders, err := c.remote.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote folders: %w", err)
	}

	if err := c.mergeFolders(ctx, remoteFolders); err != nil {
		return err
	}
	if err := c.mergeNotes(ctx, remoteNotes); err != nil {
		return err
	}

	c.refreshQueueLength(ctx)
	return nil
}

func (c *Coordinator) mergeNotes(ctx context.Context, remoteNotes []*schema.Note) error {
	local, err := c.store.ListNotes(ctx, c.config.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to list local notes: %w", err)
	}
	localByID := make(map[string]*schema.Note, len(local))
	for _, n := range local {
		localByID[n.ID] = n
	}

	mergeable := make([]*schema.Note, 0, len(remoteNotes))
	remoteIDs := make(map[string]struct{}, len(remoteNotes))
	for _, rn := range remoteNotes {
		remoteIDs[rn.ID] = struct{}{}
		rn.OwnerID = c.config.OwnerID

		ln, exists := localByID[rn.ID]
		if exists && ln.SyncStatus == schema.StatusDirty {
			if rn.Version > ln.Version {
				// Both sides moved independently since the last sync.
				c.registerConflict(ln, rn)
			}
			// Dirty and not behind: local edits win, push resolves it.
			continue
		}
		mergeable = append(mergeable, rn)
	}

	merged, err := c.store.BulkMergeNotes(ctx, mergeable)
	if err != nil {
		return fmt.Errorf("failed to merge remote notes: %w", err)
	}
	if merged > 0 {
		c.config.Logger.Printf("Merged %d remote note(s)", merged)
	}

	// Synced locals missing from the remote were deleted elsewhere.
	for _, ln := range local {
		if _, ok := remoteIDs[ln.ID]; ok {
			continue
		}
		if ln.SyncStatus != schema.StatusSynced {
			continue
		}
		if err := c.store.PruneNote(ctx, ln.ID); err != nil {
			return fmt.Errorf("failed to prune note %s: %w", ln.ID, err)
		}
	}
	return nil
}

func (c *Coordinator) mergeFolders(ctx context.Context, remoteFolders []*schema.Folder) error {
	local, err := c.store.ListFolders(ctx, c.config.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to list local folders: %w", err)
	}

	remoteIDs := make(map[string]struct{}, len(remoteFolders))
	for _, rf := range remoteFolders {
		remoteIDs[rf.ID] = struct{}{}
		rf.OwnerID = c.config.OwnerID
	}

	if _, err := c.store.BulkMergeFolders(ctx, remoteFolders); err != nil {
		return fmt.Errorf("failed to merge remote folders: %w", err)
	}

	for _, lf := range local {
		if _, ok := remoteIDs[lf.ID]; ok {
			continue
		}
		if lf.SyncStatus != schema.StatusSynced {
			continue
		}
		// The Trash folder is a local construct and never lives remotely.
		if schema.IsTrashFolder(lf.ID, c.config.OwnerID) {
			continue
		}
		if err := c.store.PruneFolder(ctx, lf.ID); err != nil {
			return fmt.Errorf("failed to prune folder %s: %w", lf.ID, err)
		}
	}
	return nil
}
