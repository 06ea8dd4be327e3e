package notetree

import (
	"fmt"
	"sort"

	"bindery/internal/errors"
	"bindery/internal/page"
)

// Index is a snapshot of notes keyed by id. All traversal takes an explicit
// snapshot rather than following live mutable pointers, which keeps cycle
// detection and concurrent reads straightforward.
type Index map[string]*page.Note

// BuildIndex creates an Index from a note list.
func BuildIndex(notes []*page.Note) Index {
	idx := make(Index, len(notes))
	for _, n := range notes {
		idx[n.ID] = n
	}
	return idx
}

// AddChild attaches child under parent: sets the child's parent reference and
// appends the child to the parent's child-order list. If the child already
// had a parent, it is detached from that parent's order first.
//
// Validation runs before any mutation:
//   - parent and child must share the same anchor version, else
//     CROSS_ANCHOR_PARENTING
//   - child must not be parent itself or an ancestor of parent, else
//     CIRCULAR_REFERENCE
//   - tombstoned notes cannot gain or become children
func AddChild(parent, child *page.Note, idx Index) error {
	if parent == nil || child == nil {
		return errors.NewInvalidRequest("parent and child notes are required")
	}
	if !parent.Active() || !child.Active() {
		return errors.NewInvalidRequest("cannot parent deleted notes")
	}
	if parent.VersionID != child.VersionID {
		return errors.NewCrossAnchorParent(parent.VersionID, child.VersionID)
	}
	if child.ID == parent.ID {
		return errors.NewCircularReference(child.ID)
	}
	if isAncestor(child, parent, idx) {
		return errors.NewCircularReference(child.ID)
	}

	if child.ParentID != nil {
		if old, ok := idx[*child.ParentID]; ok {
			old.ChildOrder = removeID(old.ChildOrder, child.ID)
		}
	}

	parentID := parent.ID
	child.ParentID = &parentID
	parent.ChildOrder = append(parent.ChildOrder, child.ID)
	return nil
}

// Detach makes a note a root: clears its parent reference and removes it from
// the old parent's order. No-op for notes that are already roots.
func Detach(child *page.Note, idx Index) {
	if child.ParentID == nil {
		return
	}
	if old, ok := idx[*child.ParentID]; ok {
		old.ChildOrder = removeID(old.ChildOrder, child.ID)
	}
	child.ParentID = nil
}

// ReorderChildren replaces parent's stored child order with newOrder.
// newOrder must be exactly a permutation of the parent's current active
// children: partial lists, duplicates, and foreign ids are all rejected with
// INVALID_CHILD_ORDER before anything is mutated.
func ReorderChildren(parent *page.Note, newOrder []string, idx Index) error {
	current := activeChildIDs(parent, idx)

	if len(newOrder) != len(current) {
		return errors.NewInvalidChildOrder(fmt.Sprintf(
			"order lists %d ids, parent has %d children", len(newOrder), len(current)))
	}

	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	seen := make(map[string]bool, len(newOrder))
	for _, id := range newOrder {
		if seen[id] {
			return errors.NewInvalidChildOrder(fmt.Sprintf("duplicate id %s in order", id))
		}
		seen[id] = true
		if !currentSet[id] {
			return errors.NewInvalidChildOrder(fmt.Sprintf("id %s is not a child of %s", id, parent.ID))
		}
	}

	parent.ChildOrder = append([]string(nil), newOrder...)
	return nil
}

// OrderedChildren returns parent's active children in stored order. Deleted
// children and stale ids are skipped; stored order, not creation time, is
// authoritative.
func OrderedChildren(parent *page.Note, idx Index) []*page.Note {
	out := make([]*page.Note, 0, len(parent.ChildOrder))
	for _, id := range parent.ChildOrder {
		n, ok := idx[id]
		if !ok || !n.Active() {
			continue
		}
		if n.ParentID == nil || *n.ParentID != parent.ID {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Roots returns the active parent-less notes anchored to versionID, ordered
// by creation time with id as tie-break.
func Roots(versionID string, idx Index) []*page.Note {
	var out []*page.Note
	for _, n := range idx {
		if n.Active() && n.ParentID == nil && n.VersionID == versionID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NestingLevel returns the note's depth above its root (root = 0), following
// parent references. Terminates because cycles are rejected at insertion.
func NestingLevel(n *page.Note, idx Index) int {
	level := 0
	cur := n
	for cur.ParentID != nil {
		parent, ok := idx[*cur.ParentID]
		if !ok {
			break
		}
		level++
		cur = parent
	}
	return level
}

// MoveChild removes the active child at position from and reinserts it at
// position to within the same parent's order. Indices outside
// [0, activeChildCount) are rejected.
func MoveChild(parent *page.Note, from, to int, idx Index) error {
	active := activeChildIDs(parent, idx)

	if from < 0 || from >= len(active) {
		return errors.NewInvalidRequest(fmt.Sprintf("from index %d out of range [0,%d)", from, len(active)))
	}
	if to < 0 || to >= len(active) {
		return errors.NewInvalidRequest(fmt.Sprintf("to index %d out of range [0,%d)", to, len(active)))
	}
	if from == to {
		return nil
	}

	moved := active[from]
	active = append(active[:from], active[from+1:]...)
	active = append(active[:to], append([]string{moved}, active[to:]...)...)
	parent.ChildOrder = active
	return nil
}

// DescendantIDs returns the ids of every descendant of n (active or not),
// depth-first. Used for cascade deletes so no active note survives under a
// deleted ancestor.
func DescendantIDs(n *page.Note, idx Index) []string {
	var out []string
	// Walk by parent reference, not child order: tombstoned children may have
	// dropped out of the order list but still belong to the subtree.
	children := childrenByRef(n.ID, idx)
	for _, c := range children {
		out = append(out, c.ID)
		out = append(out, DescendantIDs(c, idx)...)
	}
	return out
}

// isAncestor reports whether candidate is an ancestor of n (exclusive).
func isAncestor(candidate, n *page.Note, idx Index) bool {
	cur := n
	for cur.ParentID != nil {
		parent, ok := idx[*cur.ParentID]
		if !ok {
			return false
		}
		if parent.ID == candidate.ID {
			return true
		}
		cur = parent
	}
	return false
}

// activeChildIDs returns the parent's active children in stored order.
func activeChildIDs(parent *page.Note, idx Index) []string {
	children := OrderedChildren(parent, idx)
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids
}

// childrenByRef returns all notes (active or tombstoned) whose parent
// reference points at parentID, in a deterministic order.
func childrenByRef(parentID string, idx Index) []*page.Note {
	var out []*page.Note
	for _, n := range idx {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// removeID returns ids with the first occurrence of id removed.
func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
