package ops

import (
	"context"
	"database/sql"

	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// UpdateMetaInput contains parameters for the UpdateMeta operation.
// Nil fields are left unchanged.
type UpdateMetaInput struct {
	ID     string
	Binder string
	Name   string

	Tags  *[]string
	Vars  *[]page.VarValue
	Title *string
}

// UpdateMetaOutput contains the result of the UpdateMeta operation.
type UpdateMetaOutput struct {
	ID  string `json:"id"`
	Rev int64  `json:"rev"`
}

// UpdateMeta mutates a page's live tags, variables and title. Version
// snapshots are never touched: metadata edits are not retroactive.
func UpdateMeta(ctx context.Context, database *sql.DB, input UpdateMetaInput) (*UpdateMetaOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}
	if input.Tags == nil && input.Vars == nil && input.Title == nil {
		return nil, errors.NewInvalidRequest("nothing to update")
	}
	if input.Vars != nil {
		if err := page.ValidateVarValues(*input.Vars); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	p, err := resolvePage(ctx, database, addr, false)
	if err != nil {
		return nil, err
	}

	tags := p.Tags
	if input.Tags != nil {
		tags = *input.Tags
	}
	vars := p.Vars
	if input.Vars != nil {
		vars = *input.Vars
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if input.Tags != nil || input.Vars != nil {
		if err := db.UpdatePageMeta(ctx, tx, p.ID, tags, vars); err != nil {
			return nil, err
		}
	}
	if input.Title != nil {
		if err := db.UpdatePageTitle(ctx, tx, p.ID, cleanOptionalString(input.Title)); err != nil {
			return nil, err
		}
	}

	rev, err := db.GetPageRev(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &UpdateMetaOutput{ID: p.ID, Rev: rev}, nil
}
