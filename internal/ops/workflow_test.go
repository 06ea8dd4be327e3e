package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"bindery/internal/errors"
	"bindery/internal/page"
)

// TestFullWorkflow exercises the complete page lifecycle:
// bundle-add → bind → note-add → rebind (notes cloned) → versions →
// meta update → list → delete → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	d := testDB(t)
	cfg := testConfig()
	ctx := context.Background()

	// 1. Register a bundle with extracted text
	primary := "/library/mitosis.pdf"
	bundleOut, err := AddBundle(ctx, d, AddBundleInput{
		Label:       "mitosis-deck",
		PrimaryPath: &primary,
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundleOut.ID)

	_, err = SetText(ctx, d, SetTextInput{
		BundleID: bundleOut.ID,
		Offset:   3,
		Text:     "Prophase: chromosomes condense.",
	})
	require.NoError(t, err)

	// 2. Bind a page at offset 3
	name := "prophase"
	bindOut, err := Bind(ctx, d, cfg, BindInput{
		Binder:   "workflow",
		Name:     &name,
		BundleID: bundleOut.ID,
		Offset:   3,
		Tags:     []string{"bio"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, bindOut.ID)
	id := bindOut.ID

	// 3. Annotate the initial version
	noteOut, err := NoteAdd(ctx, d, cfg, NoteAddInput{
		PageID: id,
		Body:   "Spindle fibers start forming.",
		Rect:   page.Rect{X: 0.1, Y: 0.2, W: 0.4, H: 0.1},
	})
	require.NoError(t, err)
	require.Equal(t, bindOut.VersionID, noteOut.VersionID)

	childOut, err := NoteAdd(ctx, d, cfg, NoteAddInput{
		PageID:   id,
		ParentID: noteOut.ID,
		Body:     "Centrosomes migrate to the poles.",
	})
	require.NoError(t, err)
	require.Equal(t, 1, childOut.Level)

	// 4. Rebind with full inheritance; the note subtree is cloned
	rebindOut, err := Rebind(ctx, d, cfg, RebindInput{
		ID:      id,
		Offset:  4,
		Inherit: "all",
	})
	require.NoError(t, err)
	require.True(t, rebindOut.Created)
	require.Equal(t, int64(2), rebindOut.Rev)
	require.Equal(t, 2, rebindOut.ClonedNotes)

	// 5. Version history, oldest first
	versionsOut, err := Versions(ctx, d, VersionsInput{ID: id})
	require.NoError(t, err)
	require.Len(t, versionsOut.Versions, 2)
	require.False(t, versionsOut.Versions[0].IsCurrent)
	require.True(t, versionsOut.Versions[1].IsCurrent)

	// Cloned notes hang off the new current version
	treeOut, err := NoteTree(ctx, d, NoteTreeInput{PageID: id})
	require.NoError(t, err)
	require.Equal(t, 2, treeOut.Count)
	require.Len(t, treeOut.Roots, 1)
	require.NotNil(t, treeOut.Roots[0].ClonedFrom)

	// 6. Update live metadata; snapshots stay frozen
	newTitle := "Prophase overview"
	metaOut, err := UpdateMeta(ctx, d, UpdateMetaInput{ID: id, Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, id, metaOut.ID)

	fetchOut, err := Fetch(ctx, d, FetchInput{ID: id})
	require.NoError(t, err)
	require.NotNil(t, fetchOut.Title)
	require.Equal(t, newTitle, *fetchOut.Title)
	require.Equal(t, 4, fetchOut.Offset)

	// 7. List shows the page in its binder
	listOut, err := List(ctx, d, ListInput{Binder: "workflow"})
	require.NoError(t, err)
	require.Len(t, listOut.Pages, 1)
	require.Equal(t, id, listOut.Pages[0].ID)

	// 8. Soft delete excludes the page from default listings
	deleteOut, err := Delete(ctx, d, DeleteInput{ID: id})
	require.NoError(t, err)
	require.True(t, deleteOut.Deleted)

	listOut, err = List(ctx, d, ListInput{Binder: "workflow"})
	require.NoError(t, err)
	require.Len(t, listOut.Pages, 0)

	listOut, err = List(ctx, d, ListInput{Binder: "workflow", IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, listOut.Pages, 1)

	// 9. Fetch without include_deleted reports not found
	_, err = Fetch(ctx, d, FetchInput{ID: id})
	require.Error(t, err)
	berr, ok := err.(*errors.BinderyError)
	require.True(t, ok)
	require.Equal(t, errors.ErrNotFound, berr.Code)
}
