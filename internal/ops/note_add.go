package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/notetree"
	"bindery/internal/page"
)

// NoteAddInput contains parameters for the NoteAdd operation.
type NoteAddInput struct {
	// Anchor: an explicit version id, or a page address whose current
	// version becomes the anchor.
	VersionID string
	PageID    string
	Binder    string
	Name      string

	ParentID string // optional; empty creates a root note
	Body     string // required
	Rect     page.Rect
	Tags     []string
	Vars     []page.VarValue
}

// NoteAddOutput contains the result of the NoteAdd operation.
type NoteAddOutput struct {
	ID        string `json:"id"`
	VersionID string `json:"version_id"`
	Level     int    `json:"level"`
}

// NoteAdd creates a note anchored to a version, optionally as a child of an
// existing note on the same anchor. Tree validation runs on an in-memory
// snapshot before anything is written.
func NoteAdd(ctx context.Context, database *sql.DB, cfg *config.Config, input NoteAddInput) (*NoteAddOutput, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, errors.NewInvalidRequest("body is required")
	}
	if chars := page.CountChars(input.Body); chars > cfg.NoteMaxChars {
		return nil, errors.NewNoteTooLarge(cfg.NoteMaxChars, chars)
	}
	if err := page.ValidateVarValues(input.Vars); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if err := validateRect(input.Rect); err != nil {
		return nil, err
	}

	v, err := resolveAnchor(ctx, database, input.VersionID, input.PageID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}

	idx, _, err := loadTree(ctx, database, v.ID)
	if err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	n := &page.Note{
		ID:        id,
		VersionID: v.ID,
		PageID:    v.PageID,
		Body:      input.Body,
		Rect:      input.Rect,
		Tags:      input.Tags,
		Vars:      input.Vars,
		CreatedAt: now,
		UpdatedAt: now,
	}
	idx[n.ID] = n

	var parent *page.Note
	if input.ParentID != "" {
		parent = idx[input.ParentID]
		if parent == nil {
			// The parent may live on another anchor; loading it gives the
			// engine the real anchor pair to reject.
			parent, err = db.GetNoteByID(ctx, database, input.ParentID, false)
			if err != nil {
				return nil, err
			}
		}
		if err := notetree.AddChild(parent, n, idx); err != nil {
			return nil, err
		}
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := db.InsertNote(ctx, tx, n); err != nil {
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

	return &NoteAddOutput{
		ID:        id,
		VersionID: v.ID,
		Level:     notetree.NestingLevel(n, idx),
	}, nil
}

// resolveAnchor maps note input addressing to the anchoring version: an
// explicit version id wins; otherwise the addressed page's current version.
func resolveAnchor(ctx context.Context, q db.Queryer, versionID, pageID, binder, name string) (*page.Version, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID != "" {
		if strings.TrimSpace(pageID) != "" || strings.TrimSpace(name) != "" {
			return nil, errors.NewAmbiguousAddressing()
		}
		return db.GetVersionByID(ctx, q, versionID)
	}

	addr, err := ValidateAddress(pageID, binder, name)
	if err != nil {
		return nil, err
	}
	p, err := resolvePage(ctx, q, addr, false)
	if err != nil {
		return nil, err
	}
	return db.GetVersionByID(ctx, q, p.CurrentVersionID)
}

// loadTree loads every note anchored to a version, tombstones included, and
// indexes them for the tree engine.
func loadTree(ctx context.Context, q db.Queryer, versionID string) (notetree.Index, []*page.Note, error) {
	notes, err := db.ListNotesByVersion(ctx, q, versionID, true)
	if err != nil {
		return nil, nil, err
	}
	return notetree.BuildIndex(notes), notes, nil
}

// validateRect checks that the anchor rectangle stays inside the normalized
// page square.
func validateRect(r page.Rect) error {
	if r.X < 0 || r.Y < 0 || r.W < 0 || r.H < 0 {
		return errors.NewInvalidRequest("rect components must be >= 0")
	}
	if r.X+r.W > 1 || r.Y+r.H > 1 {
		return errors.NewInvalidRequest("rect must fit inside the unit square")
	}
	return nil
}
