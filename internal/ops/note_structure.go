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

// NoteReparentInput contains parameters for the NoteReparent operation.
type NoteReparentInput struct {
	NoteID      string
	NewParentID string // empty makes the note a root
}

// NoteReparentOutput contains the result of the NoteReparent operation.
type NoteReparentOutput struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Level    int     `json:"level"`
}

// NoteReparent moves a note (with its subtree) under a new parent on the
// same anchor, or to the root. Cross-anchor and circular moves are rejected
// before anything is written.
func NoteReparent(ctx context.Context, database *sql.DB, input NoteReparentInput) (*NoteReparentOutput, error) {
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

	var oldParent *page.Note
	if n.ParentID != nil {
		oldParent = idx[*n.ParentID]
	}

	var newParent *page.Note
	if input.NewParentID != "" {
		newParent = idx[input.NewParentID]
		if newParent == nil {
			// The target may exist on another anchor; loading it gives the
			// engine the real anchor pair to reject.
			other, err := db.GetNoteByID(ctx, database, input.NewParentID, false)
			if err != nil {
				return nil, err
			}
			newParent = other
		}
		if err := notetree.AddChild(newParent, n, idx); err != nil {
			return nil, err
		}
	} else {
		notetree.Detach(n, idx)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := db.UpdateNoteStructure(ctx, tx, n); err != nil {
		return nil, err
	}
	if oldParent != nil {
		if err := db.UpdateNoteStructure(ctx, tx, oldParent); err != nil {
			return nil, err
		}
	}
	if newParent != nil && (oldParent == nil || newParent.ID != oldParent.ID) {
		if err := db.UpdateNoteStructure(ctx, tx, newParent); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &NoteReparentOutput{
		ID:       n.ID,
		ParentID: n.ParentID,
		Level:    notetree.NestingLevel(n, idx),
	}, nil
}

// NoteReorderInput contains parameters for the NoteReorder operation.
type NoteReorderInput struct {
	ParentID string
	Order    []string // must be exactly a permutation of the parent's active children
}

// NoteReorderOutput contains the result of the NoteReorder operation.
type NoteReorderOutput struct {
	ParentID string   `json:"parent_id"`
	Order    []string `json:"order"`
}

// NoteReorder replaces a parent's child order wholesale.
func NoteReorder(ctx context.Context, database *sql.DB, input NoteReorderInput) (*NoteReorderOutput, error) {
	if strings.TrimSpace(input.ParentID) == "" {
		return nil, errors.NewInvalidRequest("parent_id is required")
	}

	parent, err := db.GetNoteByID(ctx, database, input.ParentID, false)
	if err != nil {
		return nil, err
	}
	idx, _, err := loadTree(ctx, database, parent.VersionID)
	if err != nil {
		return nil, err
	}
	parent = idx[parent.ID]

	if err := notetree.ReorderChildren(parent, input.Order, idx); err != nil {
		return nil, err
	}
	if err := db.UpdateNoteStructure(ctx, database, parent); err != nil {
		return nil, err
	}

	return &NoteReorderOutput{ParentID: parent.ID, Order: parent.ChildOrder}, nil
}

// NoteMoveInput contains parameters for the NoteMove operation.
type NoteMoveInput struct {
	ParentID string
	From     int
	To       int
}

// NoteMoveOutput contains the result of the NoteMove operation.
type NoteMoveOutput struct {
	ParentID string   `json:"parent_id"`
	Order    []string `json:"order"`
}

// NoteMove moves one child between positions in its parent's order.
func NoteMove(ctx context.Context, database *sql.DB, input NoteMoveInput) (*NoteMoveOutput, error) {
	if strings.TrimSpace(input.ParentID) == "" {
		return nil, errors.NewInvalidRequest("parent_id is required")
	}

	parent, err := db.GetNoteByID(ctx, database, input.ParentID, false)
	if err != nil {
		return nil, err
	}
	idx, _, err := loadTree(ctx, database, parent.VersionID)
	if err != nil {
		return nil, err
	}
	parent = idx[parent.ID]

	if err := notetree.MoveChild(parent, input.From, input.To, idx); err != nil {
		return nil, err
	}
	if err := db.UpdateNoteStructure(ctx, database, parent); err != nil {
		return nil, err
	}

	return &NoteMoveOutput{ParentID: parent.ID, Order: parent.ChildOrder}, nil
}
