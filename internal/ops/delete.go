package ops

import (
	"context"
	"database/sql"

	"bindery/internal/db"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID     string
	Binder string
	Name   string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Delete soft-deletes a page. Version history and notes stay on disk; the
// page's name becomes free for reuse within its binder.
func Delete(ctx context.Context, database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}
	p, err := resolvePage(ctx, database, addr, false)
	if err != nil {
		return nil, err
	}

	if err := db.SoftDeletePage(ctx, database, p.ID); err != nil {
		return nil, err
	}

	return &DeleteOutput{ID: p.ID, Deleted: true}, nil
}
