package notetree

import (
	"sort"

	"bindery/internal/errors"
	"bindery/internal/page"
)

// CloneSubtree clones every active note in src onto a new anchor version,
// preserving tree shape, per-parent order, tags, and variable values.
//
// Clones are created in a stable order (original creation time, tie-broken by
// original id) so id remapping is deterministic. Parent references and child
// order lists are remapped through the source-id -> clone-id table; the
// result never references a source-anchor id.
//
// The returned slice is in creation order; the map is the id table.
func CloneSubtree(src []*page.Note, pageID, targetVersionID string, now int64, newID func() (string, error)) ([]*page.Note, map[string]string, error) {
	active := make([]*page.Note, 0, len(src))
	for _, n := range src {
		if n.Active() {
			active = append(active, n)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt != active[j].CreatedAt {
			return active[i].CreatedAt < active[j].CreatedAt
		}
		return active[i].ID < active[j].ID
	})

	idTable := make(map[string]string, len(active))
	clones := make([]*page.Note, 0, len(active))

	for _, n := range active {
		id, err := newID()
		if err != nil {
			return nil, nil, errors.NewInternal(err)
		}
		idTable[n.ID] = id

		source := n.ID
		clones = append(clones, &page.Note{
			ID:         id,
			VersionID:  targetVersionID,
			PageID:     pageID,
			Body:       n.Body,
			Rect:       n.Rect,
			Tags:       append([]string(nil), n.Tags...),
			Vars:       append([]page.VarValue(nil), n.Vars...),
			ClonedFrom: &source,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	// Second pass: remap structure now that every clone id exists. A parent
	// outside the table (tombstoned mid-lineage) demotes the clone to a root.
	for i, n := range active {
		clone := clones[i]
		if n.ParentID != nil {
			if mapped, ok := idTable[*n.ParentID]; ok {
				parentID := mapped
				clone.ParentID = &parentID
			}
		}
		for _, childID := range n.ChildOrder {
			if mapped, ok := idTable[childID]; ok {
				clone.ChildOrder = append(clone.ChildOrder, mapped)
			}
		}
	}

	return clones, idTable, nil
}
