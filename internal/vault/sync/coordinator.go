// Package sync provides the coordinator that drives the pending change
// log to completion against the remote store.
//
// One coordinator runs per execution context. Within a context, a
// reentrancy guard ensures only one cycle is logically in flight;
// across contexts (other windows or app instances sharing the vault),
// a non-blocking leader lock ensures at most one context drains the log
// at a time. Contexts that fail to acquire the lock skip the cycle and
// observe the leader's work through the shared vault.
//
// A cycle walks the state machine
//
//	IDLE → ACQUIRING → (SKIPPED | LEADING) → DRAINING_FOLDERS →
//	DRAINING_NOTES → IDLE
//
// Folders drain strictly sequentially; notes drain in parallel batches.
// Version conflicts freeze the entity and hand off to the resolver.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shynote/shynote/internal/vault/db"
	"github.com/shynote/shynote/internal/vault/leader"
	"github.com/shynote/shynote/internal/vault/remote"
	"github.com/shynote/shynote/internal/vault/schema"
)

// legacyTrashRef is the folder reference older clients wrote for trashed
// notes before trash ids were derived per owner. It is remapped to the
// owner's canonical Trash id before any push.
const legacyTrashRef = "trash"

// Remote is the slice of the remote store surface the coordinator
// consumes. *remote.Client satisfies it; tests substitute a fake.
type Remote interface {
	ListNotes(ctx context.Context) ([]*schema.Note, error)
	ListFolders(ctx context.Context) ([]*schema.Folder, error)
	CreateNote(ctx context.Context, req remote.NoteRequest) (*schema.Note, error)
	UpdateNote(ctx context.Context, id string, req remote.NoteRequest) (*schema.Note, error)
	DeleteNote(ctx context.Context, id string) error
	CreateFolder(ctx context.Context, req remote.FolderRequest) (*schema.Folder, error)
	UpdateFolder(ctx context.Context, id string, req remote.FolderRequest) (*schema.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

// Config holds coordinator configuration.
type Config struct {
	// OwnerID scopes vault reads and Trash derivation.
	OwnerID string

	// BatchSize is the number of note pushes fired concurrently within
	// one batch (default: 10). Batches run sequentially.
	BatchSize int

	// DebounceDelay is how long after a local mutation a sync cycle is
	// scheduled (default: 1s). Further mutations reset the timer.
	DebounceDelay time.Duration

	// LockName names the cross-context leader lock (default: "sync").
	LockName string

	// Logger for cycle activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(ownerID string) *Config {
	return &Config{
		OwnerID:       ownerID,
		BatchSize:     10,
		DebounceDelay: time.Second,
		LockName:      "sync",
		Logger:        log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Coordinator drains the change log against the remote store.
type Coordinator struct {
	store  *db.DB
	remote Remote
	locker leader.Locker
	config *Config

	// syncing is the per-context reentrancy guard: concurrent Sync calls
	// while a cycle runs are no-ops.
	syncing atomic.Bool

	mu          sync.Mutex
	status      Status
	conflicts   map[string]*Conflict
	subscribers map[chan Status]struct{}
	debounce    *time.Timer
}

// New creates a coordinator. All collaborators are required except the
// config, which falls back to defaults for the given owner.
func New(store *db.DB, rem Remote, locker leader.Locker, config *Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rem == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker cannot be nil")
	}
	if config == nil || config.OwnerID == "" {
		return nil, fmt.Errorf("config with owner id is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = time.Second
	}
	if config.LockName == "" {
		config.LockName = "sync"
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Coordinator{
		store:       store,
		remote:      rem,
		locker:      locker,
		config:      config,
		status:      Status{State: StateIdle},
		conflicts:   make(map[string]*Conflict),
		subscribers: make(map[chan Status]struct{}),
	}, nil
}

// NotifyChange schedules a debounced sync cycle. Callers invoke it after
// every local mutation; rapid edits collapse into one cycle.
func (c *Coordinator) NotifyChange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debounce != nil {
		c.debounce.Reset(c.config.DebounceDelay)
		return
	}
	c.debounce = time.AfterFunc(c.config.DebounceDelay, func() {
		c.mu.Lock()
		c.debounce = nil
		c.mu.Unlock()

		if err := c.Sync(context.Background()); err != nil {
			c.config.Logger.Printf("Debounced sync failed: %v", err)
		}
	})
}

// Sync runs one full cycle: acquire leadership, drain folders then notes,
// and trigger a follow-up pull when a version conflict surfaced. A call
// while a cycle is already running is a no-op. Failing to acquire the
// lock is not an error; the cycle is simply skipped.
func (c *Coordinator) Sync(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.syncing.Store(false)
	defer c.setState(StateIdle)

	c.setState(StateAcquiring)

	lease, err := c.locker.TryAcquire(c.config.LockName)
	if errors.Is(err, leader.ErrNotAcquired) {
		c.config.Logger.Printf("Sync already running in another context, skipping cycle")
		c.setState(StateSkipped)
		return nil
	}
	if err != nil {
		c.recordError(fmt.Errorf("failed to acquire sync lock: %w", err))
		return err
	}

	pullNeeded, drainErr := c.drain(ctx)

	if err := lease.Release(); err != nil {
		c.config.Logger.Printf("Warning: failed to release sync lock: %v", err)
	}

	// The follow-up pull runs outside the lock: it only merges clean
	// entities and registers conflicts, both safe under concurrency.
	if pullNeeded {
		if err := c.pull(ctx); err != nil {
			c.config.Logger.Printf("Post-conflict pull failed: %v", err)
		}
	}

	if drainErr != nil {
		c.recordError(drainErr)
		return drainErr
	}
	return nil
}

// PullAll fetches the full remote snapshot and merges it into the vault,
// detecting version conflicts against dirty local notes. Explicit pull
// requests and the periodic refresh both land here, so locked (409
// follow-up) and unlocked paths share one routine.
func (c *Coordinator) PullAll(ctx context.Context) error {
	return c.pull(ctx)
}

// drain reads the pending log and pushes it. Returns whether a version
// conflict was newly detected, requiring a follow-up pull.
func (c *Coordinator) drain(ctx context.Context) (pullNeeded bool, err error) {
	c.setState(StateLeading)

	entries, err := c.store.PendingEntries(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read pending log: %w", err)
	}

	// Conflicted entities are frozen until resolved.
	live := entries[:0]
	for _, e := range entries {
		if c.isConflicted(e.EntityID) {
			continue
		}
		live = append(live, e)
	}

	folders, notes := partition(collapse(live))
	if len(folders) == 0 && len(notes) == 0 {
		c.refreshQueueLength(ctx)
		return false, nil
	}

	c.config.Logger.Printf("Draining %d folder and %d note entries", len(folders), len(notes))

	c.setState(StateDrainingFolders)
	pushed := 0
	for _, entry := range folders {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := c.processFolderEntry(ctx, entry); err != nil {
			c.config.Logger.Printf("Folder %s left queued: %v", entry.EntityID, err)
			continue
		}
		pushed++
	}

	c.setState(StateDrainingNotes)
	conflicts := 0
	for start := 0; start < len(notes); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(notes) {
			end = len(notes)
		}
		batch := notes[start:end]

		// All requests in a batch fire concurrently; the next batch
		// does not begin until every outcome in this one has settled.
		var wg sync.WaitGroup
		results := make([]noteResult, len(batch))
		for i, entry := range batch {
			wg.Add(1)
			go func(i int, entry *collapsedEntry) {
				defer wg.Done()
				results[i] = c.processNoteEntry(ctx, entry)
			}(i, entry)
		}
		wg.Wait()

		for i, res := range results {
			switch {
			case res.conflict:
				conflicts++
			case res.err != nil:
				c.config.Logger.Printf("Note %s left queued: %v", batch[i].EntityID, res.err)
			default:
				pushed++
			}
		}
	}

	if pushed > 0 {
		c.updateStatus(func(s *Status) {
			s.LastSyncAt = time.Now()
			s.LastError = ""
		})
	}
	c.refreshQueueLength(ctx)

	if conflicts > 0 {
		c.config.Logger.Printf("Detected %d version conflict(s), scheduling full pull", conflicts)
	}
	return conflicts > 0, nil
}

// processFolderEntry pushes one collapsed folder entry. Entries touching
// the reserved Trash folder never go remote: their log entries are
// discarded and the folder is marked synced unconditionally.
func (c *Coordinator) processFolderEntry(ctx context.Context, entry *collapsedEntry) error {
	if schema.IsTrashFolder(entry.EntityID, c.config.OwnerID) {
		if err := c.store.RemoveEntries(ctx, entry.sourceIDs); err != nil {
			return err
		}
		return c.store.MarkFolderSynced(ctx, entry.EntityID)
	}

	name := ""
	if entry.Payload.Name != nil {
		name = *entry.Payload.Name
	}

	var err error
	switch entry.Action {
	case schema.ActionCreate:
		_, err = c.remote.CreateFolder(ctx, remote.FolderRequest{ID: entry.EntityID, Name: name})

	case schema.ActionUpdate:
		_, err = c.remote.UpdateFolder(ctx, entry.EntityID, remote.FolderRequest{Name: name})
		if errors.Is(err, remote.ErrNotFound) {
			// The local copy believes the remote folder exists; recreate it.
			_, err = c.remote.CreateFolder(ctx, remote.FolderRequest{ID: entry.EntityID, Name: name})
		}

	case schema.ActionDelete:
		err = c.remote.DeleteFolder(ctx, entry.EntityID)
		if errors.Is(err, remote.ErrNotFound) {
			err = nil
		}

	default:
		return fmt.Errorf("unknown action %q", entry.Action)
	}
	if err != nil {
		return err
	}

	if err := c.store.RemoveEntries(ctx, entry.sourceIDs); err != nil {
		return err
	}
	if entry.Action != schema.ActionDelete {
		return c.store.MarkFolderSynced(ctx, entry.EntityID)
	}
	return nil
}

// noteResult is the per-entry outcome inside a parallel batch. Errors are
// isolated here so one failing note never blocks its batch mates.
type noteResult struct {
	conflict bool
	err      error
}

// processNoteEntry pushes one collapsed note entry.
func (c *Coordinator) processNoteEntry(ctx context.Context, entry *collapsedEntry) noteResult {
	switch entry.Action {
	case schema.ActionDelete:
		err := c.remote.DeleteNote(ctx, entry.EntityID)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return noteResult{err: err}
		}
		// 404 on delete means the remote copy is already gone.
		return noteResult{err: c.store.RemoveEntries(ctx, entry.sourceIDs)}

	case schema.ActionCreate, schema.ActionUpdate:
		local, err := c.store.GetNote(ctx, entry.EntityID)
		if err != nil {
			return noteResult{err: err}
		}
		if local == nil {
			// Deleted locally since the entry was written; a DELETE entry
			// follows in the log. Drop this stale work.
			return noteResult{err: c.store.RemoveEntries(ctx, entry.sourceIDs)}
		}

		req := c.buildNoteRequest(entry, local)

		var pushed *schema.Note
		if entry.Action == schema.ActionCreate {
			pushed, err = c.remote.CreateNote(ctx, req)
		} else {
			pushed, err = c.remote.UpdateNote(ctx, entry.EntityID, req)
			if errors.Is(err, remote.ErrNotFound) {
				// The remote copy vanished; recreate it under the same id.
				create := req
				create.ID = entry.EntityID
				create.Version = 0
				pushed, err = c.remote.CreateNote(ctx, create)
			}
		}

		if errors.Is(err, remote.ErrConflict) {
			// Freeze the note and keep its log entries; resolution decides
			// whether the local edits survive.
			c.registerConflict(local, nil)
			return noteResult{conflict: true}
		}
		if err != nil {
			return noteResult{err: err}
		}

		// Persist the echoed version regardless of dirty/synced state.
		if err := c.store.UpdateNoteVersion(ctx, entry.EntityID, pushed.Version); err != nil {
			return noteResult{err: err}
		}
		if err := c.store.RemoveEntries(ctx, entry.sourceIDs); err != nil {
			return noteResult{err: err}
		}
		return noteResult{err: c.store.MarkNoteSynced(ctx, entry.EntityID)}

	default:
		return noteResult{err: fmt.Errorf("unknown action %q", entry.Action)}
	}
}

// buildNoteRequest assembles the wire payload for a note push, filling
// fields the collapsed payload omits from the local copy and normalizing
// the folder reference.
func (c *Coordinator) buildNoteRequest(entry *collapsedEntry, local *schema.Note) remote.NoteRequest {
	req := remote.NoteRequest{
		Title:   local.Title,
		Content: local.Content,
		Pinned:  local.Pinned,
	}
	if entry.Payload.Title != nil {
		req.Title = *entry.Payload.Title
	}
	if entry.Payload.Content != nil {
		req.Content = *entry.Payload.Content
	}
	if entry.Payload.Pinned != nil {
		req.Pinned = *entry.Payload.Pinned
	}

	folderRef := local.FolderID
	if entry.Payload.FolderID != nil {
		folderRef = *entry.Payload.FolderID
	}
	req.FolderID = c.normalizeFolderRef(folderRef)

	if entry.Action == schema.ActionCreate {
		req.ID = entry.EntityID
	} else {
		// Echo the last-observed version so the server's optimistic lock
		// can detect staleness.
		req.Version = local.Version
	}
	return req
}

// normalizeFolderRef maps the legacy trash marker to the owner's
// canonical Trash id and collapses ""/"null" to an explicit no-folder.
func (c *Coordinator) normalizeFolderRef(ref string) *string {
	switch ref {
	case "", "null":
		return nil
	case legacyTrashRef:
		id := schema.TrashFolderID(c.config.OwnerID)
		return &id
	default:
		return &ref
	}
}

// refreshQueueLength republishes the pending-entry count.
func (c *Coordinator) refreshQueueLength(ctx context.Context) {
	count, err := c.store.PendingCount(ctx)
	if err != nil {
		c.config.Logger.Printf("Failed to count pending entries: %v", err)
		return
	}
	c.updateStatus(func(s *Status) { s.QueueLength = count })
}

// recordError publishes a cycle failure on the status surface. Routine
// sync failures are expected under intermittent connectivity; they stall
// the queue, they do not crash anything.
func (c *Coordinator) recordError(err error) {
	c.config.Logger.Printf("Sync cycle error: %v", err)
	c.updateStatus(func(s *Status) { s.LastError = err.Error() })
}
