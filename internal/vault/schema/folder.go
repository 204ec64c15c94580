package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// trashNamespace is the fixed UUID namespace used to derive per-owner Trash
// folder ids. Changing it would orphan every existing Trash folder.
var trashNamespace = uuid.MustParse("8a9e1a40-6f0d-4c4b-9a57-3f6e1d2b7c01")

// Folder groups notes. Folders carry no version: the remote store treats
// folder updates as last-write-wins.
type Folder struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`

	SyncStatus SyncStatus `json:"-"`
}

// Validate checks required folder fields.
func (f *Folder) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	return nil
}

// TrashFolderID derives the reserved Trash folder id for an owner.
// The derivation is deterministic so every context on every device agrees
// on the id without coordination. The Trash folder is a client-only
// concept: it is never created by users, never pushed to the remote store,
// and excluded from normal folder listings.
func TrashFolderID(ownerID string) string {
	return uuid.NewSHA1(trashNamespace, []byte(ownerID)).String()
}

// IsTrashFolder reports whether id is the owner's canonical Trash folder.
func IsTrashFolder(id, ownerID string) bool {
	return id != "" && id == TrashFolderID(ownerID)
}

// TrashFolder returns the synthetic Trash folder entity for an owner.
func TrashFolder(ownerID string) *Folder {
	return &Folder{
		ID:         TrashFolderID(ownerID),
		Name:       "Trash",
		OwnerID:    ownerID,
		SyncStatus: StatusSynced,
	}
}
