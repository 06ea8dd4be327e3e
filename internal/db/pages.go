package db

import (
	"context"
	"database/sql"
	"time"

	"bindery/internal/errors"
	"bindery/internal/page"
)

const pageColumns = `id, binder_raw, binder_norm, name_raw, name_norm, title,
	bundle_id, page_offset, current_version_id, ordinal,
	tags_json, vars_json, rev, created_at, updated_at, deleted_at`

// InsertPage stores a new page row.
func InsertPage(ctx context.Context, q Queryer, p *page.Page) error {
	tagsJSON, err := marshalStrings(p.Tags)
	if err != nil {
		return err
	}
	varsJSON, err := marshalVars(p.Vars)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pages (
			id, binder_raw, binder_norm, name_raw, name_norm, title,
			bundle_id, page_offset, current_version_id, ordinal,
			tags_json, vars_json, rev, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = q.ExecContext(ctx, query,
		p.ID, p.BinderRaw, p.BinderNorm, toNullString(p.NameRaw), toNullString(p.NameNorm), toNullString(p.Title),
		p.BundleID, p.Offset, p.CurrentVersionID, p.Ordinal,
		tagsJSON, varsJSON, p.Rev, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetPageByID retrieves a page by its ULID.
// If includeDeleted is false, soft-deleted pages are excluded.
func GetPageByID(ctx context.Context, q Queryer, id string, includeDeleted bool) (*page.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	p, err := scanPage(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// GetPageByName retrieves a page by normalized binder and name.
func GetPageByName(ctx context.Context, q Queryer, binderNorm, nameNorm string, includeDeleted bool) (*page.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE binder_norm = ? AND name_norm = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	} else {
		// Prefer the active page; fall back to the most recently updated tombstone.
		query += " ORDER BY (deleted_at IS NULL) DESC, updated_at DESC LIMIT 1"
	}

	p, err := scanPage(q.QueryRowContext(ctx, query, binderNorm, nameNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// PageNameExists checks if an active page with the given name exists in the binder.
func PageNameExists(ctx context.Context, q Queryer, binderNorm, nameNorm string) (bool, error) {
	query := `
		SELECT 1 FROM pages
		WHERE binder_norm = ? AND name_norm = ? AND deleted_at IS NULL
		LIMIT 1
	`
	var exists int
	err := q.QueryRowContext(ctx, query, binderNorm, nameNorm).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListPages returns active pages of a binder in domain order
// (ordinal, then creation time, then id). An empty binderNorm lists all binders.
func ListPages(ctx context.Context, q Queryer, binderNorm string, limit, offset int, includeDeleted bool) ([]*page.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE 1=1`
	args := []any{}
	if binderNorm != "" {
		query += " AND binder_norm = ?"
		args = append(args, binderNorm)
	}
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY binder_norm, ordinal, created_at, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*page.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountPages returns the number of pages matching the ListPages filter.
func CountPages(ctx context.Context, q Queryer, binderNorm string, includeDeleted bool) (int, error) {
	query := `SELECT COUNT(*) FROM pages WHERE 1=1`
	args := []any{}
	if binderNorm != "" {
		query += " AND binder_norm = ?"
		args = append(args, binderNorm)
	}
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// RepointPage atomically updates the page's current binding and version
// pointer, bumping rev and updated_at. The only caller is the rebind
// orchestrator inside its transaction.
func RepointPage(ctx context.Context, q Queryer, pageID, bundleID string, offset int, versionID string) error {
	now := time.Now().Unix()
	query := `
		UPDATE pages
		SET bundle_id = ?, page_offset = ?, current_version_id = ?,
			rev = rev + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, bundleID, offset, versionID, now, pageID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, pageID)
}

// UpdatePageMeta replaces the page's live tags/vars. Existing version
// snapshots are untouched; only the live row changes.
func UpdatePageMeta(ctx context.Context, q Queryer, pageID string, tags []string, vars []page.VarValue) error {
	tagsJSON, err := marshalStrings(tags)
	if err != nil {
		return err
	}
	varsJSON, err := marshalVars(vars)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := `
		UPDATE pages
		SET tags_json = ?, vars_json = ?, rev = rev + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, tagsJSON, varsJSON, now, pageID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, pageID)
}

// UpdatePageTitle updates the page title.
func UpdatePageTitle(ctx context.Context, q Queryer, pageID string, title *string) error {
	now := time.Now().Unix()
	query := `
		UPDATE pages
		SET title = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, toNullString(title), now, pageID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, pageID)
}

// SoftDeletePage marks a page as deleted by setting deleted_at.
func SoftDeletePage(ctx context.Context, q Queryer, id string) error {
	now := time.Now().Unix()
	query := `
		UPDATE pages
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, id)
}

// GetPageRev returns the page's current change counter.
func GetPageRev(ctx context.Context, q Queryer, id string) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `SELECT rev FROM pages WHERE id = ? AND deleted_at IS NULL`, id).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, errors.NewNotFound(id)
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return rev, nil
}

// requireRow converts a zero-rows-affected result to NOT_FOUND.
func requireRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPage scans a single row into a Page struct.
func scanPage(row rowScanner) (*page.Page, error) {
	var (
		p         page.Page
		nameRaw   sql.NullString
		nameNorm  sql.NullString
		title     sql.NullString
		tagsJSON  sql.NullString
		varsJSON  sql.NullString
		deletedAt sql.NullInt64
	)

	err := row.Scan(
		&p.ID, &p.BinderRaw, &p.BinderNorm, &nameRaw, &nameNorm, &title,
		&p.BundleID, &p.Offset, &p.CurrentVersionID, &p.Ordinal,
		&tagsJSON, &varsJSON, &p.Rev, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.NameRaw = fromNullString(nameRaw)
	p.NameNorm = fromNullString(nameNorm)
	p.Title = fromNullString(title)
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Int64
	}

	if p.Tags, err = unmarshalStrings(tagsJSON); err != nil {
		return nil, err
	}
	if p.Vars, err = unmarshalVars(varsJSON); err != nil {
		return nil, err
	}

	return &p, nil
}
