package core

import (
	"testing"
	"time"

	"tripgroups/pkg/domain"
)

func snapshotOf(names ...string) []domain.Group {
	out := make([]domain.Group, len(names))
	for i, n := range names {
		out[i] = domain.Group{ID: domain.GroupID(n), Name: n, MaxSize: 2, Participants: participants("p-" + n)}
	}
	return out
}

func TestHistoryPushUndoRedo(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHistory(5, nil, now)
	if h.Len() != 1 || h.CanUndo() || h.CanRedo() || h.Current().Action != "initial" {
		t.Fatalf("unexpected seeded history: len=%d current=%+v", h.Len(), h.Current())
	}

	h.Push(snapshotOf("a"), "create_group", now.Add(time.Second))
	h.Push(snapshotOf("a", "b"), "create_group", now.Add(2*time.Second))
	if h.Index() != 2 || !h.CanUndo() || h.CanRedo() {
		t.Fatalf("unexpected position after pushes: index=%d", h.Index())
	}

	groups, ok := h.Undo()
	if !ok || len(groups) != 1 {
		t.Fatalf("undo returned %d groups ok=%v", len(groups), ok)
	}
	groups[0].Participants[0].ID = "mutated"
	if h.Current().Groups[0].Participants[0].ID != "p-a" {
		t.Fatalf("undo result must be an independent copy")
	}

	h.Push(snapshotOf("c"), "load_configuration", now.Add(3*time.Second))
	if h.CanRedo() || h.Len() != 3 {
		t.Fatalf("push must discard the redo branch, len=%d", h.Len())
	}
	if cur := h.Current(); cur.Action != "load_configuration" || cur.Groups[0].ID != "c" {
		t.Fatalf("unexpected current entry: %+v", cur)
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo should be unavailable")
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	now := time.Now()
	h := NewHistory(3, nil, now)
	for i := 0; i < 5; i++ {
		h.Push(snapshotOf(string(rune('a'+i))), "create_group", now)
	}
	if h.Len() != 3 || h.Index() != 2 {
		t.Fatalf("expected 3 entries at index 2, got len=%d index=%d", h.Len(), h.Index())
	}
	h.Undo()
	groups, _ := h.Undo()
	if groups[0].ID != "c" {
		t.Fatalf("oldest retained entry should be c, got %s", groups[0].ID)
	}
	if _, ok := h.Undo(); ok {
		t.Fatalf("undo past the oldest retained entry")
	}
}

func TestHistoryPushCopiesInput(t *testing.T) {
	h := NewHistory(0, nil, time.Now())
	groups := snapshotOf("a")
	h.Push(groups, "create_group", time.Now())
	groups[0].Name = "changed"
	if h.Current().Groups[0].Name != "a" {
		t.Fatalf("history must own its snapshots")
	}

	h.Reset(snapshotOf("x", "y"), time.Now())
	if h.Len() != 1 || h.Index() != 0 || len(h.Current().Groups) != 2 {
		t.Fatalf("reset should seed a single entry")
	}
}
