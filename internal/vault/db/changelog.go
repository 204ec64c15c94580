package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shynote/shynote/internal/vault/schema"
)

// appendEntry writes a change-log entry inside an already-open transaction.
// All entity mutations route through here so the entry and the mutation
// commit as one unit.
func appendEntry(ctx context.Context, tx *sql.Tx, entry *schema.ChangeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid change entry: %w", err)
	}

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal change payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO pending_logs (action, entity, entity_id, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		string(entry.Action), string(entry.Entity), entry.EntityID,
		string(payload), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append change entry for %s: %w", entry.EntityID, err)
	}
	return nil
}

// PendingEntries returns every outstanding change entry in creation order.
func (db *DB) PendingEntries(ctx context.Context) ([]*schema.ChangeEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, action, entity, entity_id, payload, created_at FROM pending_logs ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []*schema.ChangeEntry
	for rows.Next() {
		var entry schema.ChangeEntry
		var action, entity, payload, createdAt string

		if err := rows.Scan(&entry.ID, &action, &entity, &entry.EntityID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}

		entry.Action = schema.Action(action)
		entry.Entity = schema.EntityKind(entity)
		entry.CreatedAt = parseTime(createdAt)

		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload of entry %d: %w", entry.ID, err)
			}
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending entries: %w", err)
	}
	return entries, nil
}

// PendingCount returns the number of outstanding change entries.
func (db *DB) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return count, nil
}

// RemoveEntries deletes a set of change entries in one transaction. Used
// after the remote store confirms the corresponding mutations.
func (db *DB) RemoveEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM pending_logs WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to remove change entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry removal: %w", err)
	}
	return nil
}

// RemoveEntriesForEntity deletes every change entry referencing the entity.
// Used after a successful push, and by the conflict resolver when local
// edits are abandoned in favor of the remote snapshot.
func (db *DB) RemoveEntriesForEntity(ctx context.Context, entityID string) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM pending_logs WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("failed to remove entries for %s: %w", entityID, err)
	}
	return nil
}

// ClearEntries wipes the entire change log. Used for cache resets.
func (db *DB) ClearEntries(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM pending_logs"); err != nil {
		return fmt.Errorf("failed to clear change log: %w", err)
	}
	return nil
}
