package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shynote/shynote/internal/vault/schema"
)

const noteColumns = `id, title, content, folder_id, owner_id, pinned, is_shared,
	share_id, version, created_at, updated_at, local_updated_at, fingerprint, sync_status`

// GetNote retrieves a single note by id. Returns (nil, nil) when absent.
func (db *DB) GetNote(ctx context.Context, id string) (*schema.Note, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE id = ?", id)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", id, err)
	}
	return note, nil
}

// ListNotes returns every note owned by ownerID. No ordering is guaranteed
// beyond insertion; callers sort as needed (ids are time-ordered).
func (db *DB) ListNotes(ctx context.Context, ownerID string) ([]*schema.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE owner_id = ?", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListNotesByStatus returns the owner's notes with the given sync status.
// The pull path uses this to find dirty notes for conflict detection.
func (db *DB) ListNotesByStatus(ctx context.Context, ownerID string, status schema.SyncStatus) ([]*schema.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE owner_id = ? AND sync_status = ?",
		ownerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s notes: %w", status, err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// PutNote atomically upserts the note as dirty and appends a change-log
// entry for the given action. Both writes commit together or not at all.
func (db *DB) PutNote(ctx context.Context, note *schema.Note, action schema.Action) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	note.SyncStatus = schema.StatusDirty
	note.LocalUpdatedAt = time.Now()
	note.RefreshFingerprint()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertNote(ctx, tx, note); err != nil {
		return err
	}

	entry := &schema.ChangeEntry{
		Action:    action,
		Entity:    schema.EntityNote,
		EntityID:  note.ID,
		Payload:   schema.NotePayload(note),
		CreatedAt: note.LocalUpdatedAt,
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit note %s: %w", note.ID, err)
	}
	return nil
}

// DeleteNote atomically removes the note and appends a DELETE entry.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}

	entry := &schema.ChangeEntry{
		Action:    schema.ActionDelete,
		Entity:    schema.EntityNote,
		EntityID:  id,
		CreatedAt: time.Now(),
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of note %s: %w", id, err)
	}
	return nil
}

// BulkMergeNotes folds a remote snapshot into the vault. A remote note is
// skipped when the local copy is dirty (in-flight edits are never
// clobbered) or when local and incoming fingerprints match (no-op fast
// path). Everything else is upserted as synced. Returns the number of
// notes written.
func (db *DB) BulkMergeNotes(ctx context.Context, remote []*schema.Note) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	merged := 0
	for _, note := range remote {
		var status, fingerprint string
		err := tx.QueryRowContext(ctx,
			"SELECT sync_status, fingerprint FROM notes WHERE id = ?", note.ID).
			Scan(&status, &fingerprint)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// New to this device.
		case err != nil:
			return 0, fmt.Errorf("failed to inspect local note %s: %w", note.ID, err)
		case status == string(schema.StatusDirty):
			continue
		case fingerprint == note.ComputeFingerprint():
			continue
		}

		incoming := note.Clone()
		incoming.SyncStatus = schema.StatusSynced
		incoming.LocalUpdatedAt = time.Now()
		incoming.RefreshFingerprint()
		if err := upsertNote(ctx, tx, incoming); err != nil {
			return 0, err
		}
		merged++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk merge: %w", err)
	}
	return merged, nil
}

// MarkNoteSynced flips the note's status to synced without touching
// content. Used after the remote store confirms a push.
func (db *DB) MarkNoteSynced(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE notes SET sync_status = ? WHERE id = ?", string(schema.StatusSynced), id)
	if err != nil {
		return fmt.Errorf("failed to mark note %s synced: %w", id, err)
	}
	return nil
}

// UpdateNoteVersion records the version echoed by the remote store without
// altering sync status: a dirty note stays dirty, a synced note stays
// synced. The stored version never decreases.
func (db *DB) UpdateNoteVersion(ctx context.Context, id string, version int64) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE notes SET version = ? WHERE id = ? AND version <= ?", version, id, version)
	if err != nil {
		return fmt.Errorf("failed to update version of note %s: %w", id, err)
	}
	return nil
}

// ReplaceNote overwrites the note unconditionally, including its sync
// status. The conflict resolver uses this to adopt a chosen snapshot.
func (db *DB) ReplaceNote(ctx context.Context, note *schema.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	note.LocalUpdatedAt = time.Now()
	note.RefreshFingerprint()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertNote(ctx, tx, note); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit note %s: %w", note.ID, err)
	}
	return nil
}

// PruneNote removes a note without logging a deletion. Used when the sync
// coordinator observes the note no longer exists remotely and the local
// copy is not dirty.
func (db *DB) PruneNote(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to prune note %s: %w", id, err)
	}
	return nil
}

// CountNotes returns the total number of notes in the vault.
func (db *DB) CountNotes(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// upsertNote writes the full note row inside an open transaction.
func upsertNote(ctx context.Context, tx *sql.Tx, note *schema.Note) error {
	query := `
	INSERT INTO notes (
		id, title, content, folder_id, owner_id, pinned, is_shared,
		share_id, version, created_at, updated_at, local_updated_at,
		fingerprint, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		folder_id = excluded.folder_id,
		pinned = excluded.pinned,
		is_shared = excluded.is_shared,
		share_id = excluded.share_id,
		version = excluded.version,
		updated_at = excluded.updated_at,
		local_updated_at = excluded.local_updated_at,
		fingerprint = excluded.fingerprint,
		sync_status = excluded.sync_status
	`

	_, err := tx.ExecContext(ctx, query,
		note.ID,
		note.Title,
		note.Content,
		stringToNull(note.FolderID),
		note.OwnerID,
		boolToInt(note.Pinned),
		boolToInt(note.Shared),
		stringToNull(note.ShareID),
		note.Version,
		formatTime(note.CreatedAt),
		formatTime(note.UpdatedAt),
		formatTime(note.LocalUpdatedAt),
		note.Fingerprint,
		string(note.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note %s: %w", note.ID, err)
	}
	return nil
}

// rowScanner lets scanNote work for both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*schema.Note, error) {
	var note schema.Note
	var folderID, shareID sql.NullString
	var pinned, shared int
	var createdAt, updatedAt, localUpdatedAt, status string

	err := row.Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&folderID,
		&note.OwnerID,
		&pinned,
		&shared,
		&shareID,
		&note.Version,
		&createdAt,
		&updatedAt,
		&localUpdatedAt,
		&note.Fingerprint,
		&status,
	)
	if err != nil {
		return nil, err
	}

	note.FolderID = nullToString(folderID)
	note.ShareID = nullToString(shareID)
	note.Pinned = pinned != 0
	note.Shared = shared != 0
	note.CreatedAt = parseTime(createdAt)
	note.UpdatedAt = parseTime(updatedAt)
	note.LocalUpdatedAt = parseTime(localUpdatedAt)
	note.SyncStatus = schema.SyncStatus(status)

	return &note, nil
}

func scanNotes(rows *sql.Rows) ([]*schema.Note, error) {
	var notes []*schema.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
