package core

import (
	"time"

	"tripgroups/pkg/domain"
)

// Snapshot is an independently owned copy of the group collection taken
// after a committed mutation.
type Snapshot struct {
	Groups    []domain.Group
	Action    string
	Timestamp time.Time
}

// History is a bounded linear undo/redo log. The entry at index holds the
// state currently presented by the engine. It is not safe for concurrent
// use; the engine serialises access under its mutex.
type History struct {
	entries []Snapshot
	index   int
	limit   int
}

// NewHistory creates a history seeded with initial as its only entry.
func NewHistory(limit int, initial []domain.Group, now time.Time) *History {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	h := &History{limit: limit}
	h.Reset(initial, now)
	return h
}

// Reset discards every entry and seeds groups as the only one.
func (h *History) Reset(groups []domain.Group, now time.Time) {
	h.entries = []Snapshot{{Groups: domain.CloneGroups(groups), Action: "initial", Timestamp: now}}
	h.index = 0
}

// Push discards any redo branch, appends a snapshot of groups and evicts the
// oldest entries beyond the limit.
func (h *History) Push(groups []domain.Group, action string, now time.Time) {
	h.entries = append(h.entries[:h.index+1:h.index+1], Snapshot{
		Groups:    domain.CloneGroups(groups),
		Action:    action,
		Timestamp: now,
	})
	if overflow := len(h.entries) - h.limit; overflow > 0 {
		h.entries = append([]Snapshot(nil), h.entries[overflow:]...)
	}
	h.index = len(h.entries) - 1
}

// Undo steps back one entry and returns a deep copy of its groups.
func (h *History) Undo() ([]domain.Group, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.index--
	return domain.CloneGroups(h.entries[h.index].Groups), true
}

// Redo steps forward one entry and returns a deep copy of its groups.
func (h *History) Redo() ([]domain.Group, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.index++
	return domain.CloneGroups(h.entries[h.index].Groups), true
}

// CanUndo reports whether an earlier entry exists.
func (h *History) CanUndo() bool { return h.index > 0 }

// CanRedo reports whether a later entry exists.
func (h *History) CanRedo() bool { return h.index < len(h.entries)-1 }

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// Index returns the position of the current entry.
func (h *History) Index() int { return h.index }

// Current returns a deep copy of the entry at the current position.
func (h *History) Current() Snapshot {
	e := h.entries[h.index]
	e.Groups = domain.CloneGroups(e.Groups)
	return e
}

// groupVersions visits every (group, version) pair referenced by any entry.
func (h *History) groupVersions(visit func(domain.GroupID, uint64)) {
	for _, e := range h.entries {
		for _, g := range e.Groups {
			visit(g.ID, g.Version)
		}
	}
}
