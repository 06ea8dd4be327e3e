package db

import (
	"context"
	"database/sql"

	"bindery/internal/errors"
	"bindery/internal/page"
)

const versionColumns = `id, page_id, bundle_id, page_offset, snapshot,
	inherit_tags, inherit_variables, inherit_notes, created_at`

// InsertVersion stores a new immutable version row. There is deliberately no
// update query for this table.
func InsertVersion(ctx context.Context, q Queryer, v *page.Version) error {
	query := `
		INSERT INTO versions (
			id, page_id, bundle_id, page_offset, snapshot,
			inherit_tags, inherit_variables, inherit_notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		v.ID, v.PageID, v.BundleID, v.Offset, v.Snapshot,
		boolToInt(v.Inherited.Tags), boolToInt(v.Inherited.Variables), boolToInt(v.Inherited.Notes),
		v.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetVersionByID retrieves a version.
func GetVersionByID(ctx context.Context, q Queryer, id string) (*page.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE id = ?`
	v, err := scanVersion(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return v, nil
}

// ListVersionsByPage returns a page's versions oldest-first. The version list
// is append-only, so this order is also creation order.
func ListVersionsByPage(ctx context.Context, q Queryer, pageID string) ([]*page.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE page_id = ? ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*page.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountVersionsByPage returns the number of versions a page has.
func CountVersionsByPage(ctx context.Context, q Queryer, pageID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions WHERE page_id = ?`, pageID).Scan(&count)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// BundleReferenced reports whether any version references the bundle. Once
// referenced, a bundle's existing variants are frozen.
func BundleReferenced(ctx context.Context, q Queryer, bundleID string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM versions WHERE bundle_id = ? LIMIT 1`, bundleID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// scanVersion scans a single row into a Version struct.
func scanVersion(row rowScanner) (*page.Version, error) {
	var (
		v                page.Version
		snapshot         []byte
		inheritTags      int
		inheritVariables int
		inheritNotes     int
	)

	err := row.Scan(
		&v.ID, &v.PageID, &v.BundleID, &v.Offset, &snapshot,
		&inheritTags, &inheritVariables, &inheritNotes, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Snapshot = snapshot
	v.Inherited = page.Inheritance{
		Tags:      inheritTags != 0,
		Variables: inheritVariables != 0,
		Notes:     inheritNotes != 0,
	}
	return &v, nil
}

// boolToInt converts a bool to its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
