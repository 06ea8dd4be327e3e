package db

import (
	"context"
	"database/sql"
	"time"

	"bindery/internal/errors"
	"bindery/internal/page"
)

const noteColumns = `id, version_id, page_id, parent_id, child_order_json, body,
	rect_x, rect_y, rect_w, rect_h, tags_json, vars_json, cloned_from,
	created_at, updated_at, deleted_at`

// InsertNote stores a new note row.
func InsertNote(ctx context.Context, q Queryer, n *page.Note) error {
	orderJSON, err := marshalStrings(n.ChildOrder)
	if err != nil {
		return err
	}
	tagsJSON, err := marshalStrings(n.Tags)
	if err != nil {
		return err
	}
	varsJSON, err := marshalVars(n.Vars)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notes (
			id, version_id, page_id, parent_id, child_order_json, body,
			rect_x, rect_y, rect_w, rect_h, tags_json, vars_json, cloned_from,
			created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = q.ExecContext(ctx, query,
		n.ID, n.VersionID, n.PageID, toNullString(n.ParentID), orderJSON, n.Body,
		n.Rect.X, n.Rect.Y, n.Rect.W, n.Rect.H, tagsJSON, varsJSON, toNullString(n.ClonedFrom),
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetNoteByID retrieves a note by its ULID.
func GetNoteByID(ctx context.Context, q Queryer, id string, includeDeleted bool) (*page.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	n, err := scanNote(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return n, nil
}

// ListNotesByVersion returns every note anchored to a version, tombstones
// included when asked. Creation order with id tie-break keeps snapshots
// deterministic.
func ListNotesByVersion(ctx context.Context, q Queryer, versionID string, includeDeleted bool) ([]*page.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE version_id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := q.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*page.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// UpdateNoteContent updates a note's body, rect, tags and vars.
func UpdateNoteContent(ctx context.Context, q Queryer, n *page.Note) error {
	tagsJSON, err := marshalStrings(n.Tags)
	if err != nil {
		return err
	}
	varsJSON, err := marshalVars(n.Vars)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := `
		UPDATE notes
		SET body = ?, rect_x = ?, rect_y = ?, rect_w = ?, rect_h = ?,
			tags_json = ?, vars_json = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query,
		n.Body, n.Rect.X, n.Rect.Y, n.Rect.W, n.Rect.H,
		tagsJSON, varsJSON, now, n.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := requireRow(result, n.ID); err != nil {
		return err
	}
	n.UpdatedAt = now
	return nil
}

// UpdateNoteStructure persists a note's parent reference and child order.
// Used after the tree engine has validated and applied a structural change.
func UpdateNoteStructure(ctx context.Context, q Queryer, n *page.Note) error {
	orderJSON, err := marshalStrings(n.ChildOrder)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := `
		UPDATE notes
		SET parent_id = ?, child_order_json = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := q.ExecContext(ctx, query, toNullString(n.ParentID), orderJSON, now, n.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := requireRow(result, n.ID); err != nil {
		return err
	}
	n.UpdatedAt = now
	return nil
}

// SoftDeleteNotes tombstones a set of notes in one statement.
func SoftDeleteNotes(ctx context.Context, q Queryer, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().Unix()
	query := `UPDATE notes SET deleted_at = ? WHERE deleted_at IS NULL AND id IN (`
	args := []any{now}
	for i, id := range ids {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// scanNote scans a single row into a Note struct.
func scanNote(row rowScanner) (*page.Note, error) {
	var (
		n          page.Note
		parentID   sql.NullString
		orderJSON  sql.NullString
		tagsJSON   sql.NullString
		varsJSON   sql.NullString
		clonedFrom sql.NullString
		deletedAt  sql.NullInt64
	)

	err := row.Scan(
		&n.ID, &n.VersionID, &n.PageID, &parentID, &orderJSON, &n.Body,
		&n.Rect.X, &n.Rect.Y, &n.Rect.W, &n.Rect.H, &tagsJSON, &varsJSON, &clonedFrom,
		&n.CreatedAt, &n.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	n.ParentID = fromNullString(parentID)
	n.ClonedFrom = fromNullString(clonedFrom)
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Int64
	}

	if n.ChildOrder, err = unmarshalStrings(orderJSON); err != nil {
		return nil, err
	}
	if n.Tags, err = unmarshalStrings(tagsJSON); err != nil {
		return nil, err
	}
	if n.Vars, err = unmarshalVars(varsJSON); err != nil {
		return nil, err
	}

	return &n, nil
}
