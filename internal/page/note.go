package page

// Rect is a rectangle on a version's content, with coordinates normalized to
// [0,1] of the rendered page.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Note is an annotation anchored to exactly one Version (never to the page
// directly). Notes form a tree per anchor: a single parent reference plus an
// explicit ordered child id list on the parent. The order list is
// authoritative; creation time only breaks ties during cloning.
type Note struct {
	// ID is a ULID that uniquely identifies this note
	ID string

	// VersionID is the anchor: the version under which this note's root
	// ancestor was first created. All notes in one tree share it.
	VersionID string

	// PageID is the owning page (denormalized from the anchor version)
	PageID string

	// ParentID is the parent note (nullable; nil = root)
	ParentID *string

	// ChildOrder is the ordered list of this note's child ids
	ChildOrder []string

	// Body is the note text (markdown)
	Body string

	// Rect is the anchored region on the version's content
	Rect Rect

	// Tags is a list of tag ids
	Tags []string

	// Vars is a list of variable values
	Vars []VarValue

	// ClonedFrom records the source note id when this note was created by a
	// version-inheritance clone (nullable)
	ClonedFrom *string

	// CreatedAt is the Unix timestamp when the note was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the note was last updated
	UpdatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable). A deleted
	// note is a tombstone: retained, but excluded from tree traversal.
	DeletedAt *int64
}

// Active reports whether the note is live (not a tombstone).
func (n *Note) Active() bool {
	return n.DeletedAt == nil
}
