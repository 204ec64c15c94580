// Package schema provides the entity shapes shared by the local vault and
// the remote store client.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SyncStatus records whether a local entity matches the last confirmed
// remote state.
type SyncStatus string

const (
	// StatusSynced means local content is confirmed identical to the
	// remote store at the recorded version.
	StatusSynced SyncStatus = "synced"

	// StatusDirty means local content has diverged and must be pushed.
	StatusDirty SyncStatus = "dirty"
)

// BaselineVersion is the version the remote store assigns to a freshly
// created note. The client never invents versions beyond echoing what it
// last observed.
const BaselineVersion int64 = 1

// Note is a single markdown note.
//
// Version is owned by the remote store: it only ever increases, and the
// client only echoes the last value it saw so the server's optimistic lock
// can detect staleness.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`

	// FolderID is empty when the note lives at the vault root.
	FolderID string `json:"folder_id,omitempty"`
	OwnerID  string `json:"owner_id"`

	Pinned  bool   `json:"pinned,omitempty"`
	Shared  bool   `json:"is_shared,omitempty"`
	ShareID string `json:"share_id,omitempty"`

	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// LocalUpdatedAt is the wall-clock time of the last local write.
	// It never leaves the device.
	LocalUpdatedAt time.Time `json:"-"`

	Fingerprint string     `json:"-"`
	SyncStatus  SyncStatus `json:"-"`
}

// Validate checks that the note has the fields every code path relies on.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if n.Version < 0 {
		return fmt.Errorf("version must not be negative (got %d)", n.Version)
	}
	return nil
}

// ComputeFingerprint returns the content fingerprint for the note:
// SHA-256 over id:title:content:folderRef. A note with no folder hashes
// the sentinel "null" so moving a note out of a folder changes the hash.
//
// The fingerprint is a cheap equality check for bulk merges, not a
// security boundary.
func (n *Note) ComputeFingerprint() string {
	folderRef := n.FolderID
	if folderRef == "" {
		folderRef = "null"
	}
	sum := sha256.Sum256([]byte(n.ID + ":" + n.Title + ":" + n.Content + ":" + folderRef))
	return hex.EncodeToString(sum[:])
}

// RefreshFingerprint recomputes and stores the fingerprint in place.
func (n *Note) RefreshFingerprint() {
	n.Fingerprint = n.ComputeFingerprint()
}

// Clone returns a deep copy of the note. Conflict snapshots hand copies to
// callers so the resolver's state cannot be mutated from outside.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
