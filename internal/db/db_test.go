package db

import (
	"context"
	"database/sql"
	"testing"

	"bindery/internal/page"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestInitSetsSchemaVersion(t *testing.T) {
	d := testDB(t)
	v, err := GetUserVersion(d)
	if err != nil {
		t.Fatalf("GetUserVersion: %v", err)
	}
	if v != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", v, CurrentSchemaVersion)
	}
}

func TestInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	d1, err := Init(dir)
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}
	d1.Close()

	d2, err := Init(dir)
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	d2.Close()
}

func TestPageRoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	p := &page.Page{
		ID:         "p1",
		BinderRaw:  "Algebra I",
		BinderNorm: "algebra i",
		NameRaw:    strPtr("Chapter 3"),
		NameNorm:   strPtr("chapter 3"),
		Title:      strPtr("Quadratics"),
		BundleID:   "b1",
		Offset:     3,
		Ordinal:    1,
		Tags:       []string{"review"},
		Vars:       []page.VarValue{{VarID: "difficulty", Kind: page.VarInt, Int: intPtr(2)}},
		Rev:        1,
		CreatedAt:  100,
		UpdatedAt:  100,
	}
	if err := InsertPage(ctx, d, p); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}

	got, err := GetPageByID(ctx, d, "p1", false)
	if err != nil {
		t.Fatalf("GetPageByID: %v", err)
	}
	if got.BinderRaw != "Algebra I" || got.NameRaw == nil || *got.NameRaw != "Chapter 3" {
		t.Errorf("got binder=%q name=%v", got.BinderRaw, got.NameRaw)
	}
	if got.Offset != 3 || got.Rev != 1 {
		t.Errorf("got offset=%d rev=%d", got.Offset, got.Rev)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "review" {
		t.Errorf("Tags = %v, want [review]", got.Tags)
	}
	if len(got.Vars) != 1 || got.Vars[0].VarID != "difficulty" {
		t.Errorf("Vars = %v", got.Vars)
	}

	byName, err := GetPageByName(ctx, d, "algebra i", "chapter 3", false)
	if err != nil {
		t.Fatalf("GetPageByName: %v", err)
	}
	if byName.ID != "p1" {
		t.Errorf("GetPageByName ID = %q, want p1", byName.ID)
	}
}

func TestPageNameUnique(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := InsertPage(ctx, d, minimalPage("p2", "math", "notes"))
	if err == nil || !isUniqueConstraintError(err) {
		t.Errorf("duplicate insert err = %v, want unique constraint", err)
	}
}

func TestSoftDeleteFreesName(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	if err := SoftDeletePage(ctx, d, "p1"); err != nil {
		t.Fatalf("SoftDeletePage: %v", err)
	}

	if _, err := GetPageByName(ctx, d, "math", "notes", false); err == nil {
		t.Error("GetPageByName should not find soft-deleted page")
	}

	// Name is free for reuse.
	if err := InsertPage(ctx, d, minimalPage("p2", "math", "notes")); err != nil {
		t.Errorf("reusing name after soft delete: %v", err)
	}

	exists, err := PageNameExists(ctx, d, "math", "notes")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("PageNameExists = false after reuse")
	}
}

func TestRepointPageBumpsRev(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	if err := RepointPage(ctx, d, "p1", "b2", 5, "v2"); err != nil {
		t.Fatalf("RepointPage: %v", err)
	}

	got, err := GetPageByID(ctx, d, "p1", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.BundleID != "b2" || got.Offset != 5 || got.CurrentVersionID != "v2" {
		t.Errorf("binding = (%q, %d, %q)", got.BundleID, got.Offset, got.CurrentVersionID)
	}
	if got.Rev != 2 {
		t.Errorf("Rev = %d, want 2", got.Rev)
	}
	rev, err := GetPageRev(ctx, d, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if rev != 2 {
		t.Errorf("GetPageRev = %d, want 2", rev)
	}
}

func TestUpdatePageMetaLeavesBinding(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	if err := UpdatePageMeta(ctx, d, "p1", []string{"urgent"}, nil); err != nil {
		t.Fatalf("UpdatePageMeta: %v", err)
	}
	got, err := GetPageByID(ctx, d, "p1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "urgent" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.BundleID != "b1" || got.Offset != 1 {
		t.Errorf("binding changed: (%q, %d)", got.BundleID, got.Offset)
	}
	if got.Rev != 2 {
		t.Errorf("Rev = %d, want 2", got.Rev)
	}
}

func TestListPagesOrdering(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	pages := []*page.Page{
		minimalPage("p3", "zoo", "a"),
		minimalPage("p1", "math", "b"),
		minimalPage("p2", "math", "a"),
	}
	pages[1].Ordinal = 2
	pages[2].Ordinal = 1
	for _, p := range pages {
		if err := InsertPage(ctx, d, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ListPages(ctx, d, "", 10, 0, false)
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	wantIDs := []string{"p2", "p1", "p3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d pages, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("pages[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}

	onlyMath, err := ListPages(ctx, d, "math", 10, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyMath) != 2 {
		t.Errorf("binder filter returned %d pages, want 2", len(onlyMath))
	}

	n, err := CountPages(ctx, d, "math", false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountPages = %d, want 2", n)
	}
}

func TestVersionRoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	blob, err := page.EncodeSnapshot(page.Snapshot{Tags: []string{"t1"}})
	if err != nil {
		t.Fatal(err)
	}
	v := &page.Version{
		ID:        "v1",
		PageID:    "p1",
		BundleID:  "b1",
		Offset:    3,
		Snapshot:  blob,
		Inherited: page.InheritMetadata,
		CreatedAt: 100,
	}
	if err := InsertVersion(ctx, d, v); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}

	got, err := GetVersionByID(ctx, d, "v1")
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if got.PageID != "p1" || got.BundleID != "b1" || got.Offset != 3 {
		t.Errorf("got page=%q bundle=%q offset=%d", got.PageID, got.BundleID, got.Offset)
	}
	if !got.Inherited.Tags || !got.Inherited.Variables || got.Inherited.Notes {
		t.Errorf("Inherited = %+v, want metadata preset", got.Inherited)
	}
	snap, err := page.DecodeSnapshot(got.Snapshot)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(snap.Tags) != 1 || snap.Tags[0] != "t1" {
		t.Errorf("snapshot tags = %v", snap.Tags)
	}

	n, err := CountVersionsByPage(ctx, d, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountVersionsByPage = %d, want 1", n)
	}
}

func TestBundleReferenced(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	referenced, err := BundleReferenced(ctx, d, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if referenced {
		t.Error("BundleReferenced = true before any version")
	}

	v := &page.Version{ID: "v1", PageID: "p1", BundleID: "b1", Offset: 1, CreatedAt: 100}
	if err := InsertVersion(ctx, d, v); err != nil {
		t.Fatal(err)
	}
	referenced, err = BundleReferenced(ctx, d, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if !referenced {
		t.Error("BundleReferenced = false after version insert")
	}
}

func TestBundleVariantsAndText(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	b := &page.Bundle{ID: "b1", LabelRaw: "Workbook", LabelNorm: "workbook", CreatedAt: 100, UpdatedAt: 100}
	if err := InsertBundle(ctx, d, b); err != nil {
		t.Fatalf("InsertBundle: %v", err)
	}
	if err := SetBundleVariant(ctx, d, "b1", page.SourcePrimary, "/paths/a.pdf"); err != nil {
		t.Fatalf("SetBundleVariant: %v", err)
	}

	got, err := GetBundleByLabel(ctx, d, "workbook")
	if err != nil {
		t.Fatalf("GetBundleByLabel: %v", err)
	}
	if got.PrimaryPath == nil || *got.PrimaryPath != "/paths/a.pdf" {
		t.Errorf("PrimaryPath = %v", got.PrimaryPath)
	}
	if !got.HasVariant(page.SourcePrimary) || got.HasVariant(page.SourceOriginal) {
		t.Error("HasVariant mismatch")
	}

	if err := UpsertBundleText(ctx, d, "b1", 3, "first pass"); err != nil {
		t.Fatalf("UpsertBundleText: %v", err)
	}
	if err := UpsertBundleText(ctx, d, "b1", 3, "second pass"); err != nil {
		t.Fatalf("UpsertBundleText overwrite: %v", err)
	}
	text, err := GetBundleText(ctx, d, "b1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if text != "second pass" {
		t.Errorf("text = %q, want %q", text, "second pass")
	}
	missing, err := GetBundleText(ctx, d, "b1", 99)
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Errorf("missing offset text = %q, want empty", missing)
	}
}

func TestNoteRoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := InsertPage(ctx, d, minimalPage("p1", "math", "notes")); err != nil {
		t.Fatal(err)
	}
	v := &page.Version{ID: "v1", PageID: "p1", BundleID: "b1", Offset: 1, CreatedAt: 100}
	if err := InsertVersion(ctx, d, v); err != nil {
		t.Fatal(err)
	}

	n := &page.Note{
		ID:        "n1",
		VersionID: "v1",
		PageID:    "p1",
		Body:      "factor first",
		Rect:      page.Rect{X: 0.1, Y: 0.2, W: 0.3, H: 0.1},
		Tags:      []string{"hint"},
		CreatedAt: 100,
		UpdatedAt: 100,
	}
	if err := InsertNote(ctx, d, n); err != nil {
		t.Fatalf("InsertNote: %v", err)
	}

	child := &page.Note{
		ID:        "n2",
		VersionID: "v1",
		PageID:    "p1",
		ParentID:  strPtr("n1"),
		Body:      "detail",
		CreatedAt: 110,
		UpdatedAt: 110,
	}
	if err := InsertNote(ctx, d, child); err != nil {
		t.Fatal(err)
	}
	n.ChildOrder = []string{"n2"}
	if err := UpdateNoteStructure(ctx, d, n); err != nil {
		t.Fatalf("UpdateNoteStructure: %v", err)
	}

	got, err := GetNoteByID(ctx, d, "n1", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "factor first" || got.Rect.W != 0.3 {
		t.Errorf("got body=%q rect=%+v", got.Body, got.Rect)
	}
	if len(got.ChildOrder) != 1 || got.ChildOrder[0] != "n2" {
		t.Errorf("ChildOrder = %v, want [n2]", got.ChildOrder)
	}

	all, err := ListNotesByVersion(ctx, d, "v1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("ListNotesByVersion = %d notes, want 2", len(all))
	}
	if all[1].ParentID == nil || *all[1].ParentID != "n1" {
		t.Errorf("child ParentID = %v", all[1].ParentID)
	}

	got.Body = "factor, then check the discriminant"
	if err := UpdateNoteContent(ctx, d, got); err != nil {
		t.Fatalf("UpdateNoteContent: %v", err)
	}
	again, err := GetNoteByID(ctx, d, "n1", false)
	if err != nil {
		t.Fatal(err)
	}
	if again.Body != "factor, then check the discriminant" {
		t.Errorf("Body = %q after update", again.Body)
	}

	if err := SoftDeleteNotes(ctx, d, []string{"n2"}); err != nil {
		t.Fatalf("SoftDeleteNotes: %v", err)
	}
	active, err := ListNotesByVersion(ctx, d, "v1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("active notes = %d, want 1", len(active))
	}
	withDeleted, err := ListNotesByVersion(ctx, d, "v1", true)
	if err != nil {
		t.Fatal(err)
	}
	var deleted *page.Note
	for _, nn := range withDeleted {
		if nn.ID == "n2" {
			deleted = nn
		}
	}
	if deleted == nil || deleted.DeletedAt == nil {
		t.Error("tombstoned note should list with DeletedAt set when includeDeleted")
	}
}

func minimalPage(id, binder, name string) *page.Page {
	return &page.Page{
		ID:         id,
		BinderRaw:  binder,
		BinderNorm: binder,
		NameRaw:    strPtr(name),
		NameNorm:   strPtr(name),
		BundleID:   "b1",
		Offset:     1,
		Rev:        1,
		CreatedAt:  100,
		UpdatedAt:  100,
	}
}

func intPtr(n int64) *int64 { return &n }

func strPtr(s string) *string { return &s }
