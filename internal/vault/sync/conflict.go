package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shynote/shynote/internal/vault/schema"
)

// Choice selects which side of a version conflict survives.
type Choice string

const (
	// ChoiceKeepLocal re-dirties the local copy at the remote's version so
	// the next cycle overwrites the remote edits.
	ChoiceKeepLocal Choice = "local"

	// ChoiceAcceptRemote overwrites the local copy with the remote
	// snapshot and discards the queued local edits.
	ChoiceAcceptRemote Choice = "remote"
)

// Conflict is a note whose local and remote copies diverged: both sides
// were edited since the last successful sync. The note is frozen out of
// sync cycles until Resolve is called.
type Conflict struct {
	// Local is the local copy at detection time, including unpushed edits.
	Local *schema.Note `json:"local"`

	// Remote is the winning remote copy. It may lag behind detection
	// briefly: a 409 registers the conflict immediately and the follow-up
	// pull fills the remote side in.
	Remote *schema.Note `json:"remote,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Conflicts returns a snapshot of unresolved conflicts, ordered by
// detection time.
func (c *Coordinator) Conflicts() []*Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Conflict, 0, len(c.conflicts))
	for _, cf := range c.conflicts {
		out = append(out, &Conflict{
			Local:      cf.Local.Clone(),
			Remote:     cf.Remote.Clone(),
			DetectedAt: cf.DetectedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

// Resolve settles the conflict on the given note and unfreezes it.
//
// ChoiceKeepLocal adopts the remote's version number onto the local copy
// and rewrites it as a dirty update, so the next cycle pushes the local
// content over the remote edits. ChoiceAcceptRemote installs the remote
// snapshot as synced and drops every queued entry for the note.
func (c *Coordinator) Resolve(ctx context.Context, noteID string, choice Choice) error {
	c.mu.Lock()
	conflict, ok := c.conflicts[noteID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no unresolved conflict for note %s", noteID)
	}

	switch choice {
	case ChoiceKeepLocal:
		if conflict.Remote == nil {
			return fmt.Errorf("remote copy for note %s not yet fetched, pull first", noteID)
		}
		// Adopting the remote's version is what lets the requeued push
		// pass the server's optimistic lock; without it the push would
		// 409 and re-freeze the note.
		local := conflict.Local.Clone()
		local.Version = conflict.Remote.Version
		// PutNote re-dirties the note and appends a fresh log entry in one
		// transaction; the stale frozen entries collapse into it.
		if err := c.store.PutNote(ctx, local, schema.ActionUpdate); err != nil {
			return fmt.Errorf("failed to requeue local copy: %w", err)
		}

	case ChoiceAcceptRemote:
		if conflict.Remote == nil {
			return fmt.Errorf("remote copy for note %s not yet fetched, pull first", noteID)
		}
		rem := conflict.Remote.Clone()
		rem.SyncStatus = schema.StatusSynced
		rem.RefreshFingerprint()
		if err := c.store.ReplaceNote(ctx, rem); err != nil {
			return fmt.Errorf("failed to install remote copy: %w", err)
		}
		if err := c.store.RemoveEntriesForEntity(ctx, noteID); err != nil {
			return fmt.Errorf("failed to clear queued edits: %w", err)
		}

	default:
		return fmt.Errorf("unknown resolution choice %q", choice)
	}

	c.mu.Lock()
	delete(c.conflicts, noteID)
	c.status.ConflictCount = len(c.conflicts)
	c.notifyLocked()
	c.mu.Unlock()

	c.config.Logger.Printf("Resolved conflict on note %s (%s)", noteID, choice)
	c.NotifyChange()
	return nil
}

// registerConflict freezes a note. The remote side may be nil when the
// conflict surfaced as a 409; the follow-up pull completes it.
func (c *Coordinator) registerConflict(local, rem *schema.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.conflicts[local.ID]; ok {
		if rem != nil {
			existing.Remote = rem.Clone()
		}
		c.notifyLocked()
		return
	}
	c.conflicts[local.ID] = &Conflict{
		Local:      local.Clone(),
		Remote:     rem.Clone(),
		DetectedAt: time.Now(),
	}
	c.status.ConflictCount = len(c.conflicts)
	c.notifyLocked()
	c.config.Logger.Printf("Version conflict detected on note %s", local.ID)
}

// isConflicted reports whether the entity is frozen.
func (c *Coordinator) isConflicted(entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.conflicts[entityID]
	return ok
}
