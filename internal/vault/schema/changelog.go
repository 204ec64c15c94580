package schema

import (
	"fmt"
	"time"
)

// Action is the kind of mutation a change entry records.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// EntityKind distinguishes note and folder change entries.
type EntityKind string

const (
	EntityNote   EntityKind = "note"
	EntityFolder EntityKind = "folder"
)

// ChangePayload carries the fields relevant to a change entry. Fields are
// pointers so a CREATE followed by an UPDATE can be collapsed into a single
// CREATE whose payload is the union of both, with later fields winning.
type ChangePayload struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	FolderID *string `json:"folder_id,omitempty"`
	Pinned   *bool   `json:"pinned,omitempty"`

	// Name is only set for folder entries.
	Name *string `json:"name,omitempty"`
}

// Merge returns a copy of p overlaid with every non-nil field of later.
func (p ChangePayload) Merge(later ChangePayload) ChangePayload {
	out := p
	if later.Title != nil {
		out.Title = later.Title
	}
	if later.Content != nil {
		out.Content = later.Content
	}
	if later.FolderID != nil {
		out.FolderID = later.FolderID
	}
	if later.Pinned != nil {
		out.Pinned = later.Pinned
	}
	if later.Name != nil {
		out.Name = later.Name
	}
	return out
}

// ChangeEntry is one pending mutation awaiting push to the remote store.
// Entries are appended in the same transaction as the entity mutation they
// document and removed only after the mutation is durably applied remotely.
type ChangeEntry struct {
	ID        int64         `json:"id"`
	Action    Action        `json:"action"`
	Entity    EntityKind    `json:"entity"`
	EntityID  string        `json:"entity_id"`
	Payload   ChangePayload `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
}

// Validate checks the fields the sync coordinator relies on.
func (e *ChangeEntry) Validate() error {
	switch e.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("unknown action %q", e.Action)
	}
	switch e.Entity {
	case EntityNote, EntityFolder:
	default:
		return fmt.Errorf("unknown entity kind %q", e.Entity)
	}
	if e.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	return nil
}

// NotePayload builds the change payload for a note mutation.
func NotePayload(n *Note) ChangePayload {
	title, content, folder, pinned := n.Title, n.Content, n.FolderID, n.Pinned
	return ChangePayload{
		Title:    &title,
		Content:  &content,
		FolderID: &folder,
		Pinned:   &pinned,
	}
}

// FolderPayload builds the change payload for a folder mutation.
func FolderPayload(f *Folder) ChangePayload {
	name := f.Name
	return ChangePayload{Name: &name}
}
