package ops

import (
	"context"
	"database/sql"
	"strings"

	"bindery/internal/config"
	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// NoteUpdateInput contains parameters for the NoteUpdate operation.
// Nil fields are left unchanged.
type NoteUpdateInput struct {
	NoteID string

	Body *string
	Rect *page.Rect
	Tags *[]string
	Vars *[]page.VarValue
}

// NoteUpdateOutput contains the result of the NoteUpdate operation.
type NoteUpdateOutput struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// NoteUpdate edits a note's content. Structure (parent, order) is not
// touched here; see NoteReparent / NoteReorder / NoteMove.
func NoteUpdate(ctx context.Context, database *sql.DB, cfg *config.Config, input NoteUpdateInput) (*NoteUpdateOutput, error) {
	if strings.TrimSpace(input.NoteID) == "" {
		return nil, errors.NewInvalidRequest("note_id is required")
	}
	if input.Body == nil && input.Rect == nil && input.Tags == nil && input.Vars == nil {
		return nil, errors.NewInvalidRequest("nothing to update")
	}

	n, err := db.GetNoteByID(ctx, database, input.NoteID, false)
	if err != nil {
		return nil, err
	}

	if input.Body != nil {
		if strings.TrimSpace(*input.Body) == "" {
			return nil, errors.NewInvalidRequest("body must not be empty")
		}
		if chars := page.CountChars(*input.Body); chars > cfg.NoteMaxChars {
			return nil, errors.NewNoteTooLarge(cfg.NoteMaxChars, chars)
		}
		n.Body = *input.Body
	}
	if input.Rect != nil {
		if err := validateRect(*input.Rect); err != nil {
			return nil, err
		}
		n.Rect = *input.Rect
	}
	if input.Tags != nil {
		n.Tags = *input.Tags
	}
	if input.Vars != nil {
		if err := page.ValidateVarValues(*input.Vars); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		n.Vars = *input.Vars
	}

	if err := db.UpdateNoteContent(ctx, database, n); err != nil {
		return nil, err
	}

	return &NoteUpdateOutput{ID: n.ID, UpdatedAt: n.UpdatedAt}, nil
}
