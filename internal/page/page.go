package page

// Page represents a logical page slot in a binder. The page itself is stable;
// what it resolves to is the current binding (BundleID, Offset), which moves
// only when a new Version is created. Live tags/vars belong to the page and
// are independent of any version's stored snapshot.
type Page struct {
	// ID is a ULID that uniquely identifies this page
	ID string

	// BinderRaw is the original binder string as provided by the user
	BinderRaw string

	// BinderNorm is the normalized binder (lowercased, trimmed, collapsed spaces)
	BinderNorm string

	// NameRaw is the original name as provided by the user (nullable)
	NameRaw *string

	// NameNorm is the normalized name (nullable)
	NameNorm *string

	// Title is an optional human-readable title
	Title *string

	// BundleID and Offset form the current binding
	BundleID string
	Offset   int

	// CurrentVersionID points at the version matching the current binding.
	// Repointed only by the rebind orchestrator.
	CurrentVersionID string

	// Ordinal orders pages within their binder
	Ordinal int

	// Tags is the page's live tag id list
	Tags []string

	// Vars is the page's live variable values
	Vars []VarValue

	// Rev is a monotonic counter bumped on every binding or metadata change.
	// Readers compare it against a remembered value to detect staleness.
	Rev int64

	// CreatedAt is the Unix timestamp when the page was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the page was last updated
	UpdatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// Version is an immutable record of one binding of a page. No field is ever
// mutated after creation; the snapshot blob is written once at create time.
type Version struct {
	// ID is a ULID that uniquely identifies this version
	ID string

	// PageID is the owning page
	PageID string

	// BundleID and Offset are the binding this version captured
	BundleID string
	Offset   int

	// Snapshot is the encoded metadata snapshot (nullable)
	Snapshot []byte

	// Inherited records which inheritance flags were applied when this
	// version was created. Audit only; independent of the snapshot content.
	Inherited Inheritance

	// CreatedAt is the Unix timestamp when the version was created
	CreatedAt int64
}

// Inheritance controls what carries over from the base version when a new
// version is created.
type Inheritance struct {
	Tags      bool `json:"tags"`
	Variables bool `json:"variables"`
	Notes     bool `json:"notes"`
}

// Named inheritance presets.
var (
	InheritNone     = Inheritance{}
	InheritMetadata = Inheritance{Tags: true, Variables: true}
	InheritAll      = Inheritance{Tags: true, Variables: true, Notes: true}
)

// ParseInheritance maps a preset name to its flags.
// Known presets: "none", "metadata", "all". Empty defaults to "metadata".
func ParseInheritance(preset string) (Inheritance, bool) {
	switch preset {
	case "", "metadata":
		return InheritMetadata, true
	case "none":
		return InheritNone, true
	case "all":
		return InheritAll, true
	}
	return Inheritance{}, false
}

// SourceKind identifies which content variant of a bundle a viewer shows.
type SourceKind string

const (
	SourcePrimary    SourceKind = "primary"
	SourceOriginal   SourceKind = "original"
	SourceTextSource SourceKind = "textsource"
)

// Bundle holds up to three aligned content variants plus extracted text keyed
// by offset (stored separately). Variants may be added but never removed or
// replaced once a version references the bundle.
type Bundle struct {
	// ID is a ULID that uniquely identifies this bundle
	ID string

	// LabelRaw is the original label as provided by the user
	LabelRaw string

	// LabelNorm is the normalized label
	LabelNorm string

	// Variant paths (each nullable until the variant is imported)
	PrimaryPath    *string
	OriginalPath   *string
	TextSourcePath *string

	// CreatedAt is the Unix timestamp when the bundle was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the bundle was last updated
	UpdatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// HasVariant reports whether the bundle carries the given variant.
func (b *Bundle) HasVariant(kind SourceKind) bool {
	switch kind {
	case SourcePrimary:
		return b.PrimaryPath != nil
	case SourceOriginal:
		return b.OriginalPath != nil
	case SourceTextSource:
		return b.TextSourcePath != nil
	}
	return false
}

// DefaultSource returns the variant a viewer should open by default:
// primary if present, else the unannotated original.
func (b *Bundle) DefaultSource() SourceKind {
	if b.PrimaryPath != nil {
		return SourcePrimary
	}
	return SourceOriginal
}
