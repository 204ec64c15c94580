package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shynote/shynote/internal/vault/schema"
)

// GetFolder retrieves a single folder by id. Returns (nil, nil) when absent.
func (db *DB) GetFolder(ctx context.Context, id string) (*schema.Folder, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, owner_id, sync_status FROM folders WHERE id = ?", id)

	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder %s: %w", id, err)
	}
	return folder, nil
}

// ListFolders returns the owner's folders, excluding the reserved Trash
// folder. Trash is a client-only staging area, not a listable folder.
func (db *DB) ListFolders(ctx context.Context, ownerID string) ([]*schema.Folder, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, name, owner_id, sync_status FROM folders WHERE owner_id = ? AND id != ?",
		ownerID, schema.TrashFolderID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	return scanFolders(rows)
}

// PutFolder atomically upserts the folder as dirty and appends a
// change-log entry.
func (db *DB) PutFolder(ctx context.Context, folder *schema.Folder, action schema.Action) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	folder.SyncStatus = schema.StatusDirty

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertFolder(ctx, tx, folder); err != nil {
		return err
	}

	entry := &schema.ChangeEntry{
		Action:    action,
		Entity:    schema.EntityFolder,
		EntityID:  folder.ID,
		Payload:   schema.FolderPayload(folder),
		CreatedAt: time.Now(),
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit folder %s: %w", folder.ID, err)
	}
	return nil
}

// DeleteFolder atomically removes the folder and appends a DELETE entry.
func (db *DB) DeleteFolder(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", id, err)
	}

	entry := &schema.ChangeEntry{
		Action:    schema.ActionDelete,
		Entity:    schema.EntityFolder,
		EntityID:  id,
		CreatedAt: time.Now(),
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of folder %s: %w", id, err)
	}
	return nil
}

// BulkMergeFolders folds a remote folder snapshot into the vault, skipping
// folders whose local copy is dirty. Returns the number written.
func (db *DB) BulkMergeFolders(ctx context.Context, remote []*schema.Folder) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	merged := 0
	for _, folder := range remote {
		var status string
		err := tx.QueryRowContext(ctx,
			"SELECT sync_status FROM folders WHERE id = ?", folder.ID).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return 0, fmt.Errorf("failed to inspect local folder %s: %w", folder.ID, err)
		case status == string(schema.StatusDirty):
			continue
		}

		incoming := *folder
		incoming.SyncStatus = schema.StatusSynced
		if err := upsertFolder(ctx, tx, &incoming); err != nil {
			return 0, err
		}
		merged++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit folder merge: %w", err)
	}
	return merged, nil
}

// MarkFolderSynced flips the folder's status to synced.
func (db *DB) MarkFolderSynced(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE folders SET sync_status = ? WHERE id = ?", string(schema.StatusSynced), id)
	if err != nil {
		return fmt.Errorf("failed to mark folder %s synced: %w", id, err)
	}
	return nil
}

// PruneFolder removes a folder without logging a deletion.
func (db *DB) PruneFolder(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to prune folder %s: %w", id, err)
	}
	return nil
}

// CountFolders returns the total number of folders in the vault, including
// Trash if present.
func (db *DB) CountFolders(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return count, nil
}

func upsertFolder(ctx context.Context, tx *sql.Tx, folder *schema.Folder) error {
	query := `
	INSERT INTO folders (id, name, owner_id, sync_status)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		sync_status = excluded.sync_status
	`
	_, err := tx.ExecContext(ctx, query,
		folder.ID, folder.Name, folder.OwnerID, string(folder.SyncStatus))
	if err != nil {
		return fmt.Errorf("failed to upsert folder %s: %w", folder.ID, err)
	}
	return nil
}

func scanFolder(row rowScanner) (*schema.Folder, error) {
	var folder schema.Folder
	var status string
	if err := row.Scan(&folder.ID, &folder.Name, &folder.OwnerID, &status); err != nil {
		return nil, err
	}
	folder.SyncStatus = schema.SyncStatus(status)
	return &folder, nil
}

func scanFolders(rows *sql.Rows) ([]*schema.Folder, error) {
	var folders []*schema.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}
	return folders, nil
}
