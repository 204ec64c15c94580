package sync

import "github.com/shynote/shynote/internal/vault/schema"

// collapsedEntry is one unit of outbound work after dedup: the effective
// action and payload for an entity, plus the ids of every raw log entry it
// absorbed. The source ids are removed together once the remote store
// confirms the mutation.
type collapsedEntry struct {
	Action   schema.Action
	Entity   schema.EntityKind
	EntityID string
	Payload  schema.ChangePayload

	sourceIDs []int64
}

// collapse folds the raw change log down to at most one entry per entity.
//
// Entries for an entity are applied in creation order. The latest entry
// wins, with one exception: a CREATE followed by UPDATEs collapses into a
// single CREATE whose payload is the union of all of them, later fields
// winning. Sending an UPDATE for an entity the server has never seen
// would 404, so the create character of the chain must be preserved.
//
// Output preserves the first-appearance order of entities in the log, so
// drain order is deterministic.
func collapse(entries []*schema.ChangeEntry) []*collapsedEntry {
	byEntity := make(map[string]*collapsedEntry)
	var order []*collapsedEntry

	for _, e := range entries {
		cur, seen := byEntity[e.EntityID]
		if !seen {
			ce := &collapsedEntry{
				Action:    e.Action,
				Entity:    e.Entity,
				EntityID:  e.EntityID,
				Payload:   e.Payload,
				sourceIDs: []int64{e.ID},
			}
			byEntity[e.EntityID] = ce
			order = append(order, ce)
			continue
		}

		cur.sourceIDs = append(cur.sourceIDs, e.ID)
		if cur.Action == schema.ActionCreate && e.Action == schema.ActionUpdate {
			cur.Payload = cur.Payload.Merge(e.Payload)
			continue
		}
		cur.Action = e.Action
		cur.Payload = e.Payload
	}

	return order
}

// partition splits collapsed entries into folder and note work. Folders
// drain first: they are few, and notes referencing a folder must not race
// its creation.
func partition(entries []*collapsedEntry) (folders, notes []*collapsedEntry) {
	for _, e := range entries {
		if e.Entity == schema.EntityFolder {
			folders = append(folders, e)
		} else {
			notes = append(notes, e)
		}
	}
	return folders, notes
}
