package ops

import (
	"context"
	"database/sql"
	"strings"

	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/notetree"
	"bindery/internal/page"
)

// NoteDeleteInput contains parameters for the NoteDelete operation.
type NoteDeleteInput struct {
	NoteID string
}

// NoteDeleteOutput contains the result of the NoteDelete operation.
type NoteDeleteOutput struct {
	ID      string `json:"id"`
	Deleted int    `json:"deleted"` // note plus cascaded descendants
}

// NoteDelete tombstones a note and its entire subtree in one transaction,
// and drops the note from its parent's order.
func NoteDelete(ctx context.Context, database *sql.DB, input NoteDeleteInput) (*NoteDeleteOutput, error) {
	if strings.TrimSpace(input.NoteID) == "" {
		return nil, errors.NewInvalidRequest("note_id is required")
	}

	n, err := db.GetNoteByID(ctx, database, input.NoteID, false)
	if err != nil {
		return nil, err
	}
	idx, _, err := loadTree(ctx, database, n.VersionID)
	if err != nil {
		return nil, err
	}
	n = idx[n.ID]

	ids := append([]string{n.ID}, notetree.DescendantIDs(n, idx)...)

	var parent *page.Note
	if n.ParentID != nil {
		if parent = idx[*n.ParentID]; parent != nil {
			notetree.Detach(n, idx)
		}
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := db.SoftDeleteNotes(ctx, tx, ids); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := db.UpdateNoteStructure(ctx, tx, parent); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &NoteDeleteOutput{ID: n.ID, Deleted: len(ids)}, nil
}
