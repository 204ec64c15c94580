package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shynote/shynote/internal/vault/db"
	"github.com/shynote/shynote/internal/vault/leader"
	"github.com/shynote/shynote/internal/vault/remote"
	"github.com/shynote/shynote/internal/vault/schema"
)

const testOwner = "owner-1"

// fakeRemote is an in-memory remote store. Counters and error hooks let
// tests script server behavior per operation.
type fakeRemote struct {
	mu      sync.Mutex
	notes   map[string]*schema.Note
	folders map[string]*schema.Folder
	calls   map[string]int

	updateNoteErr error
	createNoteErr error

	// createDelay stretches each CreateNote so concurrent pushes overlap
	// and peakInFlight records how many ran at once.
	createDelay  time.Duration
	inFlight     int32
	peakInFlight int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		notes:   make(map[string]*schema.Note),
		folders: make(map[string]*schema.Folder),
		calls:   make(map[string]int),
	}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) ListNotes(ctx context.Context) ([]*schema.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListNotes"]++
	out := make([]*schema.Note, 0, len(f.notes))
	for _, n := range f.notes {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (f *fakeRemote) ListFolders(ctx context.Context) ([]*schema.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListFolders"]++
	out := make([]*schema.Folder, 0, len(f.folders))
	for _, fl := range f.folders {
		c := *fl
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeRemote) CreateNote(ctx context.Context, req remote.NoteRequest) (*schema.Note, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peakInFlight)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peakInFlight, peak, cur) {
			break
		}
	}
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateNote"]++
	if f.createNoteErr != nil {
		return nil, f.createNoteErr
	}
	n := &schema.Note{
		ID:      req.ID,
		Title:   req.Title,
		Content: req.Content,
		Pinned:  req.Pinned,
		Version: 1,
	}
	if req.FolderID != nil {
		n.FolderID = *req.FolderID
	}
	f.notes[n.ID] = n
	return n.Clone(), nil
}

func (f *fakeRemote) UpdateNote(ctx context.Context, id string, req remote.NoteRequest) (*schema.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateNote"]++
	if f.updateNoteErr != nil {
		return nil, f.updateNoteErr
	}
	n, ok := f.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, remote.ErrNotFound)
	}
	if req.Version != n.Version {
		return nil, fmt.Errorf("note %s: %w", id, remote.ErrConflict)
	}
	n.Title = req.Title
	n.Content = req.Content
	n.Pinned = req.Pinned
	n.FolderID = ""
	if req.FolderID != nil {
		n.FolderID = *req.FolderID
	}
	n.Version++
	return n.Clone(), nil
}

func (f *fakeRemote) DeleteNote(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteNote"]++
	if _, ok := f.notes[id]; !ok {
		return fmt.Errorf("note %s: %w", id, remote.ErrNotFound)
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeRemote) CreateFolder(ctx context.Context, req remote.FolderRequest) (*schema.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateFolder"]++
	fl := &schema.Folder{ID: req.ID, Name: req.Name}
	f.folders[fl.ID] = fl
	return fl, nil
}

func (f *fakeRemote) UpdateFolder(ctx context.Context, id string, req remote.FolderRequest) (*schema.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateFolder"]++
	fl, ok := f.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, remote.ErrNotFound)
	}
	fl.Name = req.Name
	return fl, nil
}

func (f *fakeRemote) DeleteFolder(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteFolder"]++
	if _, ok := f.folders[id]; !ok {
		return fmt.Errorf("folder %s: %w", id, remote.ErrNotFound)
	}
	delete(f.folders, id)
	return nil
}

func setupCoordinator(t *testing.T) (*Coordinator, *db.DB, *fakeRemote) {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("Failed to open vault: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rem := newFakeRemote()
	cfg := DefaultConfig(testOwner)
	cfg.Logger = log.New(io.Discard, "", 0)

	c, err := New(store, rem, leader.NewInProcessLocker(), cfg)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	return c, store, rem
}

func putNote(t *testing.T, store *db.DB, id, title, content string) *schema.Note {
	t.Helper()
	n := &schema.Note{
		ID:        id,
		Title:     title,
		Content:   content,
		OwnerID:   testOwner,
		Version:   schema.BaselineVersion,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.PutNote(context.Background(), n, schema.ActionCreate); err != nil {
		t.Fatalf("Failed to put note: %v", err)
	}
	return n
}

func TestSyncPushesCreatedNote(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if rem.count("CreateNote") != 1 {
		t.Errorf("Expected 1 CreateNote call, got %d", rem.count("CreateNote"))
	}
	n, err := store.GetNote(ctx, "n1")
	if err != nil || n == nil {
		t.Fatalf("Failed to read note back: %v", err)
	}
	if n.SyncStatus != schema.StatusSynced {
		t.Errorf("Expected note synced after push, got %s", n.SyncStatus)
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected empty queue after push, got %d entries", count)
	}
}

func TestSyncCollapsesCreateAndUpdates(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	n := putNote(t, store, "n1", "Draft", "v1")
	n.Content = "v2"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	n.Content = "v3"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if rem.count("CreateNote") != 1 || rem.count("UpdateNote") != 0 {
		t.Errorf("Expected single create and no updates, got create=%d update=%d",
			rem.count("CreateNote"), rem.count("UpdateNote"))
	}
	rem.mu.Lock()
	got := rem.notes["n1"].Content
	rem.mu.Unlock()
	if got != "v3" {
		t.Errorf("Expected final content pushed, got %q", got)
	}
}

func TestSyncStoresEchoedVersion(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	n, _ := store.GetNote(ctx, "n1")
	n.Content = "edited"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	if rem.count("UpdateNote") != 1 {
		t.Fatalf("Expected 1 UpdateNote call, got %d", rem.count("UpdateNote"))
	}
	n, _ = store.GetNote(ctx, "n1")
	if n.Version != 2 {
		t.Errorf("Expected echoed version 2 stored locally, got %d", n.Version)
	}
}

func TestSyncRecreatesOn404(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Simulate the note being deleted server-side between cycles.
	rem.mu.Lock()
	delete(rem.notes, "n1")
	rem.mu.Unlock()

	n, _ := store.GetNote(ctx, "n1")
	n.Content = "edited offline"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	rem.mu.Lock()
	recreated := rem.notes["n1"]
	rem.mu.Unlock()
	if recreated == nil || recreated.Content != "edited offline" {
		t.Fatalf("Expected note recreated with local content, got %+v", recreated)
	}
	local, _ := store.GetNote(ctx, "n1")
	if local.SyncStatus != schema.StatusSynced {
		t.Errorf("Expected note synced after recreate, got %s", local.SyncStatus)
	}
}

func TestSyncDeleteTolerates404(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := store.DeleteNote(ctx, "n1"); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}

	// The remote never saw the note, so DeleteNote will 404.
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected queue drained despite 404, got %d entries", count)
	}
}

func TestSyncSkipsWhenLockHeld(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")

	lease, err := c.locker.TryAcquire(c.config.LockName)
	if err != nil {
		t.Fatalf("Failed to pre-acquire lock: %v", err)
	}
	defer lease.Release()

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync should skip, not fail: %v", err)
	}
	if rem.count("CreateNote") != 0 {
		t.Errorf("Expected no pushes while lock held elsewhere, got %d", rem.count("CreateNote"))
	}
	count, _ := store.PendingCount(ctx)
	if count == 0 {
		t.Error("Expected entries to remain queued on skipped cycle")
	}
}

func TestConflictFreezesNote(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Remote edit bumps the server version past the locally observed one.
	rem.mu.Lock()
	rem.notes["n1"].Content = "remote edit"
	rem.notes["n1"].Version = 2
	rem.mu.Unlock()

	n, _ := store.GetNote(ctx, "n1")
	n.Content = "local edit"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	conflicts := c.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(conflicts))
	}
	cf := conflicts[0]
	if cf.Local.Content != "local edit" {
		t.Errorf("Expected local snapshot preserved, got %q", cf.Local.Content)
	}
	if cf.Remote == nil || cf.Remote.Content != "remote edit" {
		t.Errorf("Expected remote snapshot filled by follow-up pull, got %+v", cf.Remote)
	}

	// Frozen: the entry stays queued and further cycles skip it.
	count, _ := store.PendingCount(ctx)
	if count == 0 {
		t.Error("Expected conflicted entries to stay queued")
	}
	updates := rem.count("UpdateNote")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if rem.count("UpdateNote") != updates {
		t.Error("Expected no push attempts for frozen note")
	}
}

func TestResolveKeepLocal(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	rem.mu.Lock()
	rem.notes["n1"].Content = "remote edit"
	rem.notes["n1"].Version = 2
	rem.mu.Unlock()
	n, _ := store.GetNote(ctx, "n1")
	n.Content = "local edit"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if err := c.Resolve(ctx, "n1", ChoiceKeepLocal); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(c.Conflicts()) != 0 {
		t.Error("Expected conflict cleared after resolve")
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Post-resolve sync failed: %v", err)
	}

	rem.mu.Lock()
	got := rem.notes["n1"]
	rem.mu.Unlock()
	if got.Content != "local edit" {
		t.Errorf("Expected local content pushed over remote edit, got %q", got.Content)
	}
	local, _ := store.GetNote(ctx, "n1")
	if local.SyncStatus != schema.StatusSynced {
		t.Errorf("Expected note synced, got %s", local.SyncStatus)
	}
}

func TestResolveAcceptRemote(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	rem.mu.Lock()
	rem.notes["n1"].Content = "remote edit"
	rem.notes["n1"].Version = 2
	rem.mu.Unlock()
	n, _ := store.GetNote(ctx, "n1")
	n.Content = "local edit"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if err := c.Resolve(ctx, "n1", ChoiceAcceptRemote); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	local, _ := store.GetNote(ctx, "n1")
	if local.Content != "remote edit" {
		t.Errorf("Expected remote content installed, got %q", local.Content)
	}
	if local.Version != 2 {
		t.Errorf("Expected remote version 2 adopted, got %d", local.Version)
	}
	if local.SyncStatus != schema.StatusSynced {
		t.Errorf("Expected note synced after accepting remote, got %s", local.SyncStatus)
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected queued edits discarded, got %d entries", count)
	}
}

func TestResolveRequiresRemoteSnapshot(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	local := putNote(t, store, "n1", "First", "local edit")

	// A 409 registers the conflict before the follow-up pull fills in the
	// remote side. Resolving either way must wait for that snapshot:
	// keep-local needs the remote version to requeue past the optimistic
	// lock, accept-remote needs the remote content.
	c.registerConflict(local, nil)

	if err := c.Resolve(ctx, "n1", ChoiceKeepLocal); err == nil {
		t.Error("Expected keep-local resolve to fail without remote snapshot")
	}
	if err := c.Resolve(ctx, "n1", ChoiceAcceptRemote); err == nil {
		t.Error("Expected accept-remote resolve to fail without remote snapshot")
	}
	if len(c.Conflicts()) != 1 {
		t.Error("Expected conflict to remain registered after failed resolves")
	}
}

func TestTrashFolderNeverPushed(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	trash := schema.TrashFolder(testOwner)
	if err := store.PutFolder(ctx, trash, schema.ActionCreate); err != nil {
		t.Fatalf("Failed to put trash folder: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if rem.count("CreateFolder") != 0 {
		t.Errorf("Expected trash folder to stay local, got %d create calls", rem.count("CreateFolder"))
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected trash entry discarded from queue, got %d", count)
	}
}

func TestTrashedNoteFolderRefNormalized(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	n := putNote(t, store, "n1", "Old", "body")
	n.FolderID = "trash"
	if err := store.PutNote(ctx, n, schema.ActionUpdate); err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	rem.mu.Lock()
	got := rem.notes["n1"].FolderID
	rem.mu.Unlock()
	if got != schema.TrashFolderID(testOwner) {
		t.Errorf("Expected legacy trash ref mapped to canonical id, got %q", got)
	}
}

func TestPullNeverClobbersDirty(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "Local", "dirty edit")
	rem.mu.Lock()
	rem.notes["n1"] = &schema.Note{ID: "n1", Title: "Remote", Content: "remote body", Version: 1}
	rem.mu.Unlock()

	if err := c.PullAll(ctx); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	n, _ := store.GetNote(ctx, "n1")
	if n.Content != "dirty edit" {
		t.Errorf("Expected dirty local copy untouched, got %q", n.Content)
	}
}

func TestPullPrunesRemotelyDeleted(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	rem.mu.Lock()
	delete(rem.notes, "n1")
	rem.mu.Unlock()

	if err := c.PullAll(ctx); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	n, err := store.GetNote(ctx, "n1")
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if n != nil {
		t.Error("Expected synced note pruned when gone remotely")
	}
}

func TestPullMergesRemoteSnapshot(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	rem.mu.Lock()
	rem.notes["n1"] = &schema.Note{ID: "n1", Title: "Remote", Content: "body", Version: 3}
	rem.folders["f1"] = &schema.Folder{ID: "f1", Name: "Work"}
	rem.mu.Unlock()

	if err := c.PullAll(ctx); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	n, _ := store.GetNote(ctx, "n1")
	if n == nil || n.Title != "Remote" || n.Version != 3 {
		t.Fatalf("Expected remote note merged, got %+v", n)
	}
	if n.SyncStatus != schema.StatusSynced {
		t.Errorf("Expected merged note synced, got %s", n.SyncStatus)
	}
	f, _ := store.GetFolder(ctx, "f1")
	if f == nil || f.Name != "Work" {
		t.Fatalf("Expected remote folder merged, got %+v", f)
	}
}

func TestBatchedDrainPushesAllNotes(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	const total = 23
	for i := 0; i < total; i++ {
		putNote(t, store, fmt.Sprintf("n%d", i), fmt.Sprintf("Note %d", i), "body")
	}

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if rem.count("CreateNote") != total {
		t.Errorf("Expected %d creates, got %d", total, rem.count("CreateNote"))
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected queue fully drained, got %d entries", count)
	}
}

func TestNoteBatchesRunSequentially(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	// Stretch each push so batch mates overlap; if batch k+1 started
	// before batch k settled, more than BatchSize would be in flight.
	rem.createDelay = 5 * time.Millisecond

	const total = 25
	for i := 0; i < total; i++ {
		putNote(t, store, fmt.Sprintf("n%d", i), fmt.Sprintf("Note %d", i), "body")
	}

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	peak := atomic.LoadInt32(&rem.peakInFlight)
	if peak > int32(c.config.BatchSize) {
		t.Errorf("Peak concurrent pushes %d exceeded batch size %d", peak, c.config.BatchSize)
	}
	if peak < 2 {
		t.Errorf("Expected pushes within a batch to overlap, peak was %d", peak)
	}
	if rem.count("CreateNote") != total {
		t.Errorf("Expected %d creates, got %d", total, rem.count("CreateNote"))
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected queue fully drained, got %d entries", count)
	}
}

func TestDeletedLocalNoteDropsStaleEntries(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	ctx := context.Background()

	// Create, then prune the row directly, leaving the CREATE entry with
	// no backing note. The cycle must drop it rather than wedge.
	putNote(t, store, "n1", "Ghost", "body")
	if err := store.PruneNote(ctx, "n1"); err != nil {
		t.Fatalf("Failed to prune note: %v", err)
	}

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if rem.count("CreateNote") != 0 {
		t.Errorf("Expected no push for vanished note, got %d", rem.count("CreateNote"))
	}
	count, _ := store.PendingCount(ctx)
	if count != 0 {
		t.Errorf("Expected stale entries dropped, got %d", count)
	}
}

func TestNotifyChangeDebounces(t *testing.T) {
	c, store, rem := setupCoordinator(t)
	c.config.DebounceDelay = 20 * time.Millisecond

	putNote(t, store, "n1", "First", "hello")

	// Rapid notifications collapse into one cycle.
	c.NotifyChange()
	c.NotifyChange()
	c.NotifyChange()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rem.count("CreateNote") > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := rem.count("CreateNote"); got != 1 {
		t.Errorf("Expected exactly 1 push from debounced notifications, got %d", got)
	}
}

func TestSubscribeObservesStates(t *testing.T) {
	c, store, _ := setupCoordinator(t)
	ctx := context.Background()

	putNote(t, store, "n1", "First", "hello")

	ch, cancel := c.Subscribe()
	defer cancel()

	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	seen := make(map[State]bool)
	for {
		select {
		case s := <-ch:
			seen[s.State] = true
			if s.State == StateIdle {
				if !seen[StateLeading] {
					t.Error("Expected to observe leading state before idle")
				}
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for idle state")
		}
	}
}
