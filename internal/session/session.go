package session

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// ViewMode is a presentation hint carried on the scope. It has no domain
// effect; viewers interpret it.
type ViewMode string

const (
	ViewPaged      ViewMode = "paged"
	ViewContinuous ViewMode = "continuous"
	ViewTextOnly   ViewMode = "textonly"
)

// Scope selects which pages a session projects and how. ReadOnly disables
// annotation; PinVersions locks every slot to its default version;
// PinSource locks every slot to its default source choice.
type Scope struct {
	Binder      string   `json:"binder"`
	ViewMode    ViewMode `json:"view_mode,omitempty"`
	ReadOnly    bool     `json:"read_only,omitempty"`
	PinVersions bool     `json:"pin_versions,omitempty"`
	PinSource   bool     `json:"pin_source,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// VersionOption is one selectable version in a slot.
type VersionOption struct {
	VersionID   string `json:"version_id"`
	Ordinal     int    `json:"ordinal"`
	BundleID    string `json:"bundle_id"`
	BundleLabel string `json:"bundle_label,omitempty"`
	Offset      int    `json:"offset"`
	IsCurrent   bool   `json:"is_current"`
	CreatedAt   int64  `json:"created_at"`
}

// Slot is one page's projection inside a session. The persisted fields are
// read once at build time; Preview, Source and the session cursor are
// transient viewer state that never touches the store.
type Slot struct {
	PageID  string  `json:"page_id"`
	Binder  string  `json:"binder"`
	Name    *string `json:"name,omitempty"`
	Title   *string `json:"title,omitempty"`
	Ordinal int     `json:"ordinal"`

	Options          []VersionOption `json:"options"`
	DefaultVersionID string          `json:"default_version_id"`
	DefaultSource    page.SourceKind `json:"default_source"`

	// Transient state, initialized to the defaults on build.
	Preview string          `json:"preview"`
	Source  page.SourceKind `json:"source"`

	// Capability flags, derived from the scope at build time.
	CanPreview      bool `json:"can_preview"`
	CanSwitchSource bool `json:"can_switch_source"`
	CanAnnotate     bool `json:"can_annotate"`

	Rev int64 `json:"rev"`
}

// Session is an ephemeral read-oriented projection over a scope's pages.
// Nothing in it is persisted; rebuilding always re-derives defaults from the
// pages' current pointers.
type Session struct {
	ID      string  `json:"id"`
	Scope   Scope   `json:"scope"`
	BuiltAt int64   `json:"built_at"`
	Slots   []*Slot `json:"slots"`

	mu     sync.Mutex
	cursor int
	hub    *Hub
	group  string
}

// Build projects the scope's pages into a fresh session. Slots come out in
// domain order (ordinal, then creation time). All reads share one
// transaction when the executor can open one, so a build sees a single
// coherent state of each page rather than a mix across a committing rebind.
func Build(ctx context.Context, q db.Queryer, scope Scope) (*Session, error) {
	if b, ok := q.(db.Beginner); ok {
		tx, err := b.BeginTx(ctx, nil)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		defer tx.Rollback()
		q = tx
	}

	limit := scope.Limit
	if limit <= 0 {
		limit = 100
	}

	binderNorm := ""
	if scope.Binder != "" {
		binderNorm = page.Normalize(scope.Binder)
	}

	pages, err := db.ListPages(ctx, q, binderNorm, limit, 0, false)
	if err != nil {
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	s := &Session{
		ID:      id,
		Scope:   scope,
		BuiltAt: time.Now().Unix(),
		Slots:   make([]*Slot, 0, len(pages)),
	}

	// Bundle rows repeat across slots; fetch each once.
	bundles := map[string]*page.Bundle{}
	bundle := func(bundleID string) *page.Bundle {
		if b, ok := bundles[bundleID]; ok {
			return b
		}
		b, err := db.GetBundleByID(ctx, q, bundleID, true)
		if err != nil {
			b = nil
		}
		bundles[bundleID] = b
		return b
	}

	for _, p := range pages {
		versions, err := db.ListVersionsByPage(ctx, q, p.ID)
		if err != nil {
			return nil, err
		}

		slot := &Slot{
			PageID:           p.ID,
			Binder:           p.BinderRaw,
			Name:             p.NameRaw,
			Title:            p.Title,
			Ordinal:          p.Ordinal,
			Options:          make([]VersionOption, 0, len(versions)),
			DefaultVersionID: p.CurrentVersionID,
			CanPreview:       !scope.PinVersions,
			CanSwitchSource:  !scope.PinSource,
			CanAnnotate:      !scope.ReadOnly,
			Rev:              p.Rev,
		}
		for i, v := range versions {
			opt := VersionOption{
				VersionID: v.ID,
				Ordinal:   i + 1,
				BundleID:  v.BundleID,
				Offset:    v.Offset,
				IsCurrent: v.ID == p.CurrentVersionID,
				CreatedAt: v.CreatedAt,
			}
			if b := bundle(v.BundleID); b != nil {
				opt.BundleLabel = b.LabelRaw
			}
			slot.Options = append(slot.Options, opt)
		}

		slot.DefaultSource = page.SourcePrimary
		if b := bundle(p.BundleID); b != nil {
			slot.DefaultSource = b.DefaultSource()
		}

		slot.Preview = slot.DefaultVersionID
		slot.Source = slot.DefaultSource

		s.Slots = append(s.Slots, slot)
	}

	return s, nil
}

// Slot returns the slot projecting pageID, or nil.
func (s *Session) Slot(pageID string) *Slot {
	for _, slot := range s.Slots {
		if slot.PageID == pageID {
			return slot
		}
	}
	return nil
}

// Cursor returns the transient navigation position.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Stale returns the ids of pages whose rev moved since the session was
// built. The session itself is not repaired; callers rebuild.
func (s *Session) Stale(ctx context.Context, q db.Queryer) ([]string, error) {
	var stale []string
	for _, slot := range s.Slots {
		rev, err := db.GetPageRev(ctx, q, slot.PageID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// Deleted since the build counts as stale.
				stale = append(stale, slot.PageID)
				continue
			}
			return nil, err
		}
		if rev != slot.Rev {
			stale = append(stale, slot.PageID)
		}
	}
	return stale, nil
}

func newSessionID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
