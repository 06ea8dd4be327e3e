package ops

import (
	"context"
	"database/sql"

	"bindery/internal/db"
	"bindery/internal/page"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Binder         string // empty lists all binders
	Limit          int    // default DefaultListLimit, capped at MaxListLimit
	Offset         int
	IncludeDeleted bool
}

// ListItem is one page in a listing. Live metadata is included; the heavy
// parts (version history, notes) are not.
type ListItem struct {
	ID        string          `json:"id"`
	Binder    string          `json:"binder"`
	Name      *string         `json:"name,omitempty"`
	Title     *string         `json:"title,omitempty"`
	BundleID  string          `json:"bundle_id"`
	Offset    int             `json:"offset"`
	Ordinal   int             `json:"ordinal"`
	Tags      []string        `json:"tags,omitempty"`
	Vars      []page.VarValue `json:"vars,omitempty"`
	Rev       int64           `json:"rev"`
	UpdatedAt int64           `json:"updated_at"`
	DeletedAt *int64          `json:"deleted_at,omitempty"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Pages      []ListItem `json:"pages"`
	Pagination Pagination `json:"pagination"`
}

// List returns pages in domain order (binder, ordinal, creation time).
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	binderNorm := ""
	if input.Binder != "" {
		binderNorm = page.Normalize(input.Binder)
	}

	pages, err := db.ListPages(ctx, database, binderNorm, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	total, err := db.CountPages(ctx, database, binderNorm, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]ListItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, ListItem{
			ID:        p.ID,
			Binder:    p.BinderRaw,
			Name:      p.NameRaw,
			Title:     p.Title,
			BundleID:  p.BundleID,
			Offset:    p.Offset,
			Ordinal:   p.Ordinal,
			Tags:      p.Tags,
			Vars:      p.Vars,
			Rev:       p.Rev,
			UpdatedAt: p.UpdatedAt,
			DeletedAt: p.DeletedAt,
		})
	}

	return &ListOutput{
		Pages: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
