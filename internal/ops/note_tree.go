package ops

import (
	"context"
	"database/sql"

	"bindery/internal/notetree"
	"bindery/internal/page"
)

// NoteTreeInput contains parameters for the NoteTree operation.
type NoteTreeInput struct {
	// Anchor: an explicit version id, or a page address whose current
	// version is listed.
	VersionID string
	PageID    string
	Binder    string
	Name      string
}

// TreeNode is one note in a nested tree listing.
type TreeNode struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Rect       page.Rect       `json:"rect"`
	Tags       []string        `json:"tags,omitempty"`
	Vars       []page.VarValue `json:"vars,omitempty"`
	ClonedFrom *string         `json:"cloned_from,omitempty"`
	Level      int             `json:"level"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
	Children   []TreeNode      `json:"children,omitempty"`
}

// NoteTreeOutput contains the result of the NoteTree operation.
type NoteTreeOutput struct {
	VersionID string     `json:"version_id"`
	Count     int        `json:"count"`
	Roots     []TreeNode `json:"roots"`
}

// NoteTree lists a version's active notes as a nested tree: roots by
// creation time, children in their stored order.
func NoteTree(ctx context.Context, database *sql.DB, input NoteTreeInput) (*NoteTreeOutput, error) {
	v, err := resolveAnchor(ctx, database, input.VersionID, input.PageID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}

	idx, _, err := loadTree(ctx, database, v.ID)
	if err != nil {
		return nil, err
	}

	count := 0
	var build func(notes []*page.Note, level int) []TreeNode
	build = func(notes []*page.Note, level int) []TreeNode {
		out := make([]TreeNode, 0, len(notes))
		for _, n := range notes {
			count++
			out = append(out, TreeNode{
				ID:         n.ID,
				Body:       n.Body,
				Rect:       n.Rect,
				Tags:       n.Tags,
				Vars:       n.Vars,
				ClonedFrom: n.ClonedFrom,
				Level:      level,
				CreatedAt:  n.CreatedAt,
				UpdatedAt:  n.UpdatedAt,
				Children:   build(notetree.OrderedChildren(n, idx), level+1),
			})
		}
		return out
	}

	roots := build(notetree.Roots(v.ID, idx), 0)

	return &NoteTreeOutput{VersionID: v.ID, Count: count, Roots: roots}, nil
}
