package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// AddBundleInput contains parameters for the AddBundle operation.
type AddBundleInput struct {
	Label          string // required, unique among active bundles
	PrimaryPath    *string
	OriginalPath   *string
	TextSourcePath *string
}

// AddBundleOutput contains the result of the AddBundle operation.
type AddBundleOutput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AddBundle registers a source bundle with whatever variants are known at
// import time. Missing variants can be added later with SetVariant.
func AddBundle(ctx context.Context, database *sql.DB, input AddBundleInput) (*AddBundleOutput, error) {
	labelNorm := page.Normalize(input.Label)
	if labelNorm == "" {
		return nil, errors.NewInvalidRequest("label must not be empty")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	b := &page.Bundle{
		ID:             id,
		LabelRaw:       strings.TrimSpace(input.Label),
		LabelNorm:      labelNorm,
		PrimaryPath:    cleanOptionalString(input.PrimaryPath),
		OriginalPath:   cleanOptionalString(input.OriginalPath),
		TextSourcePath: cleanOptionalString(input.TextSourcePath),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.InsertBundle(ctx, database, b); err != nil {
		if stderrors.Is(err, db.ErrUniqueConstraint) {
			return nil, errors.NewConflict("bundle label already exists: " + input.Label)
		}
		return nil, err
	}

	return &AddBundleOutput{ID: id, Label: b.LabelRaw}, nil
}

// SetVariantInput contains parameters for the SetVariant operation.
type SetVariantInput struct {
	BundleID string // exactly one of BundleID / Label
	Label    string
	Kind     string // primary | original | textsource
	Path     string // required
}

// SetVariantOutput contains the result of the SetVariant operation.
type SetVariantOutput struct {
	ID   string          `json:"id"`
	Kind page.SourceKind `json:"kind"`
	Path string          `json:"path"`
}

// SetVariant fills in a bundle's content variant. A variant may go from
// unset to a value at any time. Once any version references the bundle its
// set variants are frozen: replacing or clearing one is a conflict, because
// existing versions would silently change meaning.
func SetVariant(ctx context.Context, database *sql.DB, input SetVariantInput) (*SetVariantOutput, error) {
	kind := page.SourceKind(strings.TrimSpace(input.Kind))
	switch kind {
	case page.SourcePrimary, page.SourceOriginal, page.SourceTextSource:
	default:
		return nil, errors.NewInvalidRequest("kind must be one of: primary, original, textsource")
	}
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, errors.NewInvalidRequest("path must not be empty")
	}

	b, err := resolveBundle(ctx, database, input.BundleID, input.Label)
	if err != nil {
		return nil, err
	}

	if b.HasVariant(kind) {
		referenced, err := db.BundleReferenced(ctx, database, b.ID)
		if err != nil {
			return nil, err
		}
		if referenced {
			return nil, errors.NewConflict("variant " + string(kind) + " is frozen: bundle is referenced by a version")
		}
	}

	if err := db.SetBundleVariant(ctx, database, b.ID, kind, path); err != nil {
		return nil, err
	}

	return &SetVariantOutput{ID: b.ID, Kind: kind, Path: path}, nil
}

// SetTextInput contains parameters for the SetText operation.
type SetTextInput struct {
	BundleID string
	Label    string
	Offset   int    // required, >= 1
	Text     string // extracted text for the offset; empty clears nothing, it stores empty
}

// SetTextOutput contains the result of the SetText operation.
type SetTextOutput struct {
	ID     string `json:"id"`
	Offset int    `json:"offset"`
	Chars  int    `json:"chars"`
}

// SetText stores extracted text for one offset of a bundle. Offsets are
// opaque references; nothing checks them against the underlying files, and
// re-running extraction overwrites the previous text.
func SetText(ctx context.Context, database *sql.DB, input SetTextInput) (*SetTextOutput, error) {
	if input.Offset < 1 {
		return nil, errors.NewInvalidRequest("offset must be >= 1")
	}
	b, err := resolveBundle(ctx, database, input.BundleID, input.Label)
	if err != nil {
		return nil, err
	}

	if err := db.UpsertBundleText(ctx, database, b.ID, input.Offset, input.Text); err != nil {
		return nil, err
	}

	return &SetTextOutput{ID: b.ID, Offset: input.Offset, Chars: page.CountChars(input.Text)}, nil
}

// GetBundleInput contains parameters for the GetBundle operation.
type GetBundleInput struct {
	BundleID string
	Label    string
	Offset   int // optional; when >= 1 the extracted text for that offset is included
}

// GetBundleOutput contains the result of the GetBundle operation.
type GetBundleOutput struct {
	page.Bundle

	DefaultSource page.SourceKind `json:"default_source"`
	Text          string          `json:"text,omitempty"`
}

// GetBundle retrieves a bundle and, optionally, one offset's extracted text.
func GetBundle(ctx context.Context, database *sql.DB, input GetBundleInput) (*GetBundleOutput, error) {
	b, err := resolveBundle(ctx, database, input.BundleID, input.Label)
	if err != nil {
		return nil, err
	}

	out := &GetBundleOutput{Bundle: *b, DefaultSource: b.DefaultSource()}
	if input.Offset >= 1 {
		text, err := db.GetBundleText(ctx, database, b.ID, input.Offset)
		if err != nil {
			return nil, err
		}
		out.Text = text
	}
	return out, nil
}
