package ops

import (
	"context"
	"database/sql"

	"bindery/internal/db"
	"bindery/internal/page"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID             string
	Binder         string
	Name           string
	IncludeDeleted bool
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	page.Page // embedded (copy, not pointer)

	BundleLabel   string          `json:"bundle_label"`
	DefaultSource page.SourceKind `json:"default_source"`
	VersionCount  int             `json:"version_count"`
}

// Fetch retrieves a page by ID or (binder, name), along with its current
// bundle's label and default viewing source.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}

	p, err := resolvePage(ctx, database, addr, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{Page: *p}

	bundle, err := db.GetBundleByID(ctx, database, p.BundleID, true)
	if err == nil {
		output.BundleLabel = bundle.LabelRaw
		output.DefaultSource = bundle.DefaultSource()
	}

	count, err := db.CountVersionsByPage(ctx, database, p.ID)
	if err != nil {
		return nil, err
	}
	output.VersionCount = count

	return output, nil
}
