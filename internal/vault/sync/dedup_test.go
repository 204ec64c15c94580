package sync

import (
	"testing"

	"github.com/shynote/shynote/internal/vault/schema"
)

func strPtr(s string) *string { return &s }

func entry(id int64, action schema.Action, entityID string, payload schema.ChangePayload) *schema.ChangeEntry {
	return &schema.ChangeEntry{
		ID:       id,
		Action:   action,
		Entity:   schema.EntityNote,
		EntityID: entityID,
		Payload:  payload,
	}
}

func TestCollapseCreateAbsorbsUpdates(t *testing.T) {
	out := collapse([]*schema.ChangeEntry{
		entry(1, schema.ActionCreate, "n1", schema.ChangePayload{Title: strPtr("a"), Content: strPtr("v1")}),
		entry(2, schema.ActionUpdate, "n1", schema.ChangePayload{Content: strPtr("v2")}),
		entry(3, schema.ActionUpdate, "n1", schema.ChangePayload{Content: strPtr("v3")}),
	})

	if len(out) != 1 {
		t.Fatalf("Expected single collapsed entry, got %d", len(out))
	}
	ce := out[0]
	if ce.Action != schema.ActionCreate {
		t.Errorf("Expected create preserved, got %s", ce.Action)
	}
	if ce.Payload.Title == nil || *ce.Payload.Title != "a" {
		t.Error("Expected title from create retained")
	}
	if ce.Payload.Content == nil || *ce.Payload.Content != "v3" {
		t.Error("Expected latest content to win")
	}
	if len(ce.sourceIDs) != 3 {
		t.Errorf("Expected all 3 source ids absorbed, got %v", ce.sourceIDs)
	}
}

func TestCollapseDeleteSupersedes(t *testing.T) {
	out := collapse([]*schema.ChangeEntry{
		entry(1, schema.ActionCreate, "n1", schema.ChangePayload{Title: strPtr("a")}),
		entry(2, schema.ActionUpdate, "n1", schema.ChangePayload{Content: strPtr("v2")}),
		entry(3, schema.ActionDelete, "n1", schema.ChangePayload{}),
	})

	if len(out) != 1 {
		t.Fatalf("Expected single collapsed entry, got %d", len(out))
	}
	if out[0].Action != schema.ActionDelete {
		t.Errorf("Expected delete to supersede, got %s", out[0].Action)
	}
	if len(out[0].sourceIDs) != 3 {
		t.Errorf("Expected all source ids carried, got %v", out[0].sourceIDs)
	}
}

func TestCollapsePreservesEntityOrder(t *testing.T) {
	out := collapse([]*schema.ChangeEntry{
		entry(1, schema.ActionCreate, "n1", schema.ChangePayload{}),
		entry(2, schema.ActionCreate, "n2", schema.ChangePayload{}),
		entry(3, schema.ActionUpdate, "n1", schema.ChangePayload{}),
	})

	if len(out) != 2 {
		t.Fatalf("Expected 2 collapsed entries, got %d", len(out))
	}
	if out[0].EntityID != "n1" || out[1].EntityID != "n2" {
		t.Errorf("Expected first-appearance order, got %s, %s", out[0].EntityID, out[1].EntityID)
	}
}
