package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// BindInput contains parameters for the Bind operation.
type BindInput struct {
	Binder      string  // default: "default"
	Name        *string // optional, unique per binder among active pages
	Title       *string // default: same as name, or nil
	BundleID    string  // exactly one of BundleID / BundleLabel
	BundleLabel string
	Offset      int // required, >= 1
	Ordinal     int // order within the binder; 0 appends after existing pages
	Tags        []string
	Vars        []page.VarValue
}

// BindOutput contains the result of the Bind operation.
type BindOutput struct {
	ID        string `json:"id"`
	VersionID string `json:"version_id"`
	Binder    string `json:"binder"`
	Name      string `json:"name,omitempty"`
}

// Bind creates a page with an initial binding. The page and its first
// version are written in one transaction; the page starts pointed at that
// version with rev 1.
func Bind(ctx context.Context, database *sql.DB, cfg *config.Config, input BindInput) (*BindOutput, error) {
	if input.Offset < 1 {
		return nil, errors.NewInvalidRequest("offset must be >= 1")
	}
	if err := page.ValidateVarValues(input.Vars); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	if strings.TrimSpace(input.Binder) == "" {
		input.Binder = "default"
	}
	binderNorm := page.Normalize(input.Binder)
	if binderNorm == "" {
		return nil, errors.NewInvalidRequest("binder must not be empty")
	}

	var nameRaw, nameNorm *string
	if input.Name != nil {
		normalized := page.Normalize(*input.Name)
		if normalized == "" {
			return nil, errors.NewInvalidRequest("name must not be empty (omit it for unnamed pages)")
		}
		nameRaw = input.Name
		nameNorm = &normalized
	}

	title := cleanOptionalString(input.Title)
	if title == nil && nameRaw != nil {
		title = nameRaw
	}

	bundle, err := resolveBundle(ctx, database, input.BundleID, input.BundleLabel)
	if err != nil {
		return nil, err
	}

	if nameNorm != nil {
		exists, err := db.PageNameExists(ctx, database, binderNorm, *nameNorm)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.NewNameAlreadyExists(input.Binder, *nameRaw)
		}
	}

	ordinal := input.Ordinal
	if ordinal == 0 {
		count, err := db.CountPages(ctx, database, binderNorm, false)
		if err != nil {
			return nil, err
		}
		ordinal = count + 1
	}

	pageID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	versionID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	snapshot, err := page.EncodeSnapshot(page.Snapshot{Tags: input.Tags, Vars: input.Vars})
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	p := &page.Page{
		ID:               pageID,
		BinderRaw:        input.Binder,
		BinderNorm:       binderNorm,
		NameRaw:          nameRaw,
		NameNorm:         nameNorm,
		Title:            title,
		BundleID:         bundle.ID,
		Offset:           input.Offset,
		CurrentVersionID: versionID,
		Ordinal:          ordinal,
		Tags:             input.Tags,
		Vars:             input.Vars,
		Rev:              1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	v := &page.Version{
		ID:        versionID,
		PageID:    pageID,
		BundleID:  bundle.ID,
		Offset:    input.Offset,
		Snapshot:  snapshot,
		CreatedAt: now,
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := db.InsertPage(ctx, tx, p); err != nil {
		if stderrors.Is(err, db.ErrUniqueConstraint) {
			name := ""
			if nameRaw != nil {
				name = *nameRaw
			}
			return nil, errors.NewNameAlreadyExists(input.Binder, name)
		}
		return nil, err
	}
	if err := db.InsertVersion(ctx, tx, v); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	out := &BindOutput{
		ID:        pageID,
		VersionID: versionID,
		Binder:    input.Binder,
	}
	if nameRaw != nil {
		out.Name = *nameRaw
	}
	return out, nil
}
