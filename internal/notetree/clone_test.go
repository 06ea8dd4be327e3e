package notetree

import (
	"fmt"
	"strings"
	"testing"

	"bindery/internal/page"
)

// seqIDs returns a deterministic id generator for clone tests.
func seqIDs(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s%02d", prefix, n), nil
	}
}

// buildSourceTree creates root -> (mid -> leaf, sibling) under anchor v1.
func buildSourceTree(t *testing.T) (Index, []*page.Note) {
	t.Helper()
	root := makeNote("s1", "v1", 1)
	mid := makeNote("s2", "v1", 2)
	leaf := makeNote("s3", "v1", 3)
	sibling := makeNote("s4", "v1", 4)
	notes := []*page.Note{root, mid, leaf, sibling}
	idx := BuildIndex(notes)
	if err := AddChild(root, mid, idx); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if err := AddChild(mid, leaf, idx); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if err := AddChild(root, sibling, idx); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	return idx, notes
}

func TestCloneSubtree_PreservesShapeAndOrder(t *testing.T) {
	_, notes := buildSourceTree(t)

	clones, table, err := CloneSubtree(notes, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}

	if len(clones) != 4 {
		t.Fatalf("len(clones) = %d, want 4", len(clones))
	}
	if len(table) != 4 {
		t.Fatalf("len(table) = %d, want 4", len(table))
	}

	cloneIdx := BuildIndex(clones)
	newRoot := cloneIdx[table["s1"]]
	if newRoot == nil {
		t.Fatal("cloned root missing")
	}
	if newRoot.ParentID != nil {
		t.Error("cloned root should have no parent")
	}

	kids := OrderedChildren(newRoot, cloneIdx)
	if len(kids) != 2 {
		t.Fatalf("root clone has %d children, want 2", len(kids))
	}
	if kids[0].ID != table["s2"] || kids[1].ID != table["s4"] {
		t.Errorf("child order = [%s %s], want [%s %s]", kids[0].ID, kids[1].ID, table["s2"], table["s4"])
	}

	grand := OrderedChildren(kids[0], cloneIdx)
	if len(grand) != 1 || grand[0].ID != table["s3"] {
		t.Errorf("grandchildren = %v, want [%s]", grand, table["s3"])
	}
}

func TestCloneSubtree_NoBackReferences(t *testing.T) {
	_, notes := buildSourceTree(t)

	clones, _, err := CloneSubtree(notes, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}

	for _, c := range clones {
		if c.VersionID != "v2" {
			t.Errorf("clone %s anchored to %s, want v2", c.ID, c.VersionID)
		}
		if c.ParentID != nil && strings.HasPrefix(*c.ParentID, "s") {
			t.Errorf("clone %s parent %s references the source anchor", c.ID, *c.ParentID)
		}
		for _, childID := range c.ChildOrder {
			if strings.HasPrefix(childID, "s") {
				t.Errorf("clone %s child order references source id %s", c.ID, childID)
			}
		}
	}
}

func TestCloneSubtree_ProvenanceAndMetadata(t *testing.T) {
	n := makeNote("s1", "v1", 1)
	n.Tags = []string{"tag-a"}
	score := int64(7)
	n.Vars = []page.VarValue{{VarID: "var-score", Kind: page.VarInt, Int: &score}}

	clones, table, err := CloneSubtree([]*page.Note{n}, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}

	c := clones[0]
	if c.ID != table["s1"] {
		t.Errorf("clone id = %s, want %s", c.ID, table["s1"])
	}
	if c.ClonedFrom == nil || *c.ClonedFrom != "s1" {
		t.Errorf("ClonedFrom = %v, want s1", c.ClonedFrom)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "tag-a" {
		t.Errorf("Tags = %v, want [tag-a]", c.Tags)
	}
	if len(c.Vars) != 1 || c.Vars[0].Int == nil || *c.Vars[0].Int != 7 {
		t.Errorf("Vars = %v, want var-score=7", c.Vars)
	}

	// Copies, not aliases
	c.Tags[0] = "mutated"
	if n.Tags[0] != "tag-a" {
		t.Error("clone tags alias the source slice")
	}
}

func TestCloneSubtree_SkipsTombstones(t *testing.T) {
	idx, notes := buildSourceTree(t)
	now := int64(50)
	// Tombstone mid and its subtree the way a cascade delete would
	mid := idx["s2"]
	mid.DeletedAt = &now
	idx["s3"].DeletedAt = &now

	clones, table, err := CloneSubtree(notes, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}

	if len(clones) != 2 {
		t.Fatalf("len(clones) = %d, want 2 (root + sibling)", len(clones))
	}
	if _, ok := table["s2"]; ok {
		t.Error("tombstoned note must not be cloned")
	}

	cloneIdx := BuildIndex(clones)
	newRoot := cloneIdx[table["s1"]]
	kids := OrderedChildren(newRoot, cloneIdx)
	if len(kids) != 1 || kids[0].ID != table["s4"] {
		t.Errorf("root clone children = %v, want only the live sibling", kids)
	}
}

func TestCloneSubtree_DeterministicOrder(t *testing.T) {
	_, notes := buildSourceTree(t)

	first, firstTable, err := CloneSubtree(notes, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}
	second, secondTable, err := CloneSubtree(notes, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}

	for src, id := range firstTable {
		if secondTable[src] != id {
			t.Errorf("id mapping for %s differs across runs: %s vs %s", src, id, secondTable[src])
		}
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Body != second[i].Body {
			t.Errorf("clone %d differs across runs", i)
		}
	}
}

func TestCloneSubtree_Empty(t *testing.T) {
	clones, table, err := CloneSubtree(nil, "page-1", "v2", 100, seqIDs("c"))
	if err != nil {
		t.Fatalf("CloneSubtree failed: %v", err)
	}
	if len(clones) != 0 || len(table) != 0 {
		t.Errorf("clones = %v, table = %v, want empty", clones, table)
	}
}
