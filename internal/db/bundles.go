package db

import (
	"context"
	"database/sql"
	"time"

	"bindery/internal/errors"
	"bindery/internal/page"
)

const bundleColumns = `id, label_raw, label_norm, primary_path, original_path,
	textsource_path, created_at, updated_at, deleted_at`

// InsertBundle stores a new bundle row.
func InsertBundle(ctx context.Context, q Queryer, b *page.Bundle) error {
	query := `
		INSERT INTO bundles (
			id, label_raw, label_norm, primary_path, original_path,
			textsource_path, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := q.ExecContext(ctx, query,
		b.ID, b.LabelRaw, b.LabelNorm, toNullString(b.PrimaryPath), toNullString(b.OriginalPath),
		toNullString(b.TextSourcePath), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetBundleByID retrieves a bundle by its ULID.
func GetBundleByID(ctx context.Context, q Queryer, id string, includeDeleted bool) (*page.Bundle, error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	b, err := scanBundle(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// GetBundleByLabel retrieves an active bundle by normalized label.
func GetBundleByLabel(ctx context.Context, q Queryer, labelNorm string) (*page.Bundle, error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE label_norm = ? AND deleted_at IS NULL`
	b, err := scanBundle(q.QueryRowContext(ctx, query, labelNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(labelNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// SetBundleVariant fills in a variant path column. Overwriting is the
// caller's decision to validate; this only writes.
func SetBundleVariant(ctx context.Context, q Queryer, bundleID string, kind page.SourceKind, path string) error {
	var column string
	switch kind {
	case page.SourcePrimary:
		column = "primary_path"
	case page.SourceOriginal:
		column = "original_path"
	case page.SourceTextSource:
		column = "textsource_path"
	default:
		return errors.NewInvalidRequest("unknown source variant: " + string(kind))
	}

	now := time.Now().Unix()
	query := `UPDATE bundles SET ` + column + ` = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := q.ExecContext(ctx, query, path, now, bundleID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, bundleID)
}

// UpsertBundleText stores extracted text for one offset of a bundle.
func UpsertBundleText(ctx context.Context, q Queryer, bundleID string, offset int, text string) error {
	query := `
		INSERT INTO bundle_texts (bundle_id, page_offset, text)
		VALUES (?, ?, ?)
		ON CONFLICT (bundle_id, page_offset) DO UPDATE SET text = excluded.text
	`
	if _, err := q.ExecContext(ctx, query, bundleID, offset, text); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetBundleText returns the extracted text for one offset of a bundle.
// Missing text is an empty string, not an error: extraction is optional.
func GetBundleText(ctx context.Context, q Queryer, bundleID string, offset int) (string, error) {
	var text string
	err := q.QueryRowContext(ctx,
		`SELECT text FROM bundle_texts WHERE bundle_id = ? AND page_offset = ?`,
		bundleID, offset,
	).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return text, nil
}

// scanBundle scans a single row into a Bundle struct.
func scanBundle(row rowScanner) (*page.Bundle, error) {
	var (
		b              page.Bundle
		primaryPath    sql.NullString
		originalPath   sql.NullString
		textSourcePath sql.NullString
		deletedAt      sql.NullInt64
	)

	err := row.Scan(
		&b.ID, &b.LabelRaw, &b.LabelNorm, &primaryPath, &originalPath,
		&textSourcePath, &b.CreatedAt, &b.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PrimaryPath = fromNullString(primaryPath)
	b.OriginalPath = fromNullString(originalPath)
	b.TextSourcePath = fromNullString(textSourcePath)
	if deletedAt.Valid {
		b.DeletedAt = &deletedAt.Int64
	}
	return &b, nil
}
