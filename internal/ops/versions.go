package ops

import (
	"context"
	"database/sql"

	"bindery/internal/db"
	"bindery/internal/page"
)

// VersionsInput contains parameters for the Versions operation.
type VersionsInput struct {
	ID     string
	Binder string
	Name   string
}

// VersionEntry is one version in a page's history.
type VersionEntry struct {
	VersionID string           `json:"version_id"`
	Ordinal   int              `json:"ordinal"` // 1-based, oldest first
	BundleID  string           `json:"bundle_id"`
	Offset    int              `json:"offset"`
	Inherited page.Inheritance `json:"inherited"`
	IsCurrent bool             `json:"is_current"`
	CreatedAt int64            `json:"created_at"`
}

// VersionsOutput contains the result of the Versions operation.
type VersionsOutput struct {
	PageID   string         `json:"page_id"`
	Versions []VersionEntry `json:"versions"`
}

// Versions lists a page's version history, oldest first.
func Versions(ctx context.Context, database *sql.DB, input VersionsInput) (*VersionsOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}
	p, err := resolvePage(ctx, database, addr, false)
	if err != nil {
		return nil, err
	}

	versions, err := db.ListVersionsByPage(ctx, database, p.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]VersionEntry, 0, len(versions))
	for i, v := range versions {
		entries = append(entries, VersionEntry{
			VersionID: v.ID,
			Ordinal:   i + 1,
			BundleID:  v.BundleID,
			Offset:    v.Offset,
			Inherited: v.Inherited,
			IsCurrent: v.ID == p.CurrentVersionID,
			CreatedAt: v.CreatedAt,
		})
	}

	return &VersionsOutput{PageID: p.ID, Versions: entries}, nil
}
