package ops

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"bindery/internal/config"
	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/notetree"
	"bindery/internal/page"
)

// RebindInput contains parameters for the Rebind operation.
type RebindInput struct {
	ID     string
	Binder string
	Name   string

	// Target binding. If neither BundleID nor BundleLabel is given, the page
	// stays on its current bundle and only the offset moves.
	BundleID    string
	BundleLabel string
	Offset      int

	// Inherit is an inheritance preset: "none", "metadata", "all".
	// Empty defaults to "metadata".
	Inherit string

	// BaseVersionID selects which version's snapshot seeds the new one.
	// Empty means the page's current version.
	BaseVersionID string
}

// RebindOutput contains the result of the Rebind operation.
type RebindOutput struct {
	PageID      string `json:"page_id"`
	VersionID   string `json:"version_id"`
	Created     bool   `json:"created"`
	Rev         int64  `json:"rev"`
	ClonedNotes int    `json:"cloned_notes,omitempty"`
}

// Rebind repoints a page at a new (bundle, offset) binding. Unless the
// binding is unchanged, it appends an immutable version carrying a metadata
// snapshot filtered by the inheritance preset, repoints the page, and bumps
// rev, all in one transaction.
//
// The executor is a db.Queryer so callers can run a rebind inside their own
// transaction. Note inheritance needs a transaction of its own: when q
// cannot begin one and inherit-notes was requested, the whole rebind fails
// with NOTE_INHERITANCE_UNAVAILABLE rather than silently downgrading to a
// metadata-only rebind.
func Rebind(ctx context.Context, q db.Queryer, cfg *config.Config, input RebindInput) (*RebindOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Binder, input.Name)
	if err != nil {
		return nil, err
	}
	if input.Offset < 1 {
		return nil, errors.NewInvalidRequest("offset must be >= 1")
	}
	inherit, ok := page.ParseInheritance(input.Inherit)
	if !ok {
		return nil, errors.NewInvalidRequest("inherit must be one of: none, metadata, all")
	}

	beginner, canTx := q.(db.Beginner)
	if inherit.Notes && !canTx {
		return nil, errors.NewNoteInheritanceUnavailable()
	}

	p, err := resolvePage(ctx, q, addr, false)
	if err != nil {
		return nil, err
	}

	release, err := pageLocks.acquire(p.ID, time.Duration(cfg.PageLockMillis)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; another writer may have repointed the page
	// while we were waiting.
	p, err = db.GetPageByID(ctx, q, p.ID, false)
	if err != nil {
		return nil, err
	}

	targetBundleID := p.BundleID
	if input.BundleID != "" || input.BundleLabel != "" {
		bundle, err := resolveBundle(ctx, q, input.BundleID, input.BundleLabel)
		if err != nil {
			return nil, err
		}
		targetBundleID = bundle.ID
	}

	// Unchanged binding is a no-op: no version row, rev untouched.
	if targetBundleID == p.BundleID && input.Offset == p.Offset {
		return &RebindOutput{
			PageID:    p.ID,
			VersionID: p.CurrentVersionID,
			Created:   false,
			Rev:       p.Rev,
		}, nil
	}

	baseID := input.BaseVersionID
	if baseID == "" {
		baseID = p.CurrentVersionID
	}
	var base *page.Version
	if baseID != "" {
		base, err = db.GetVersionByID(ctx, q, baseID)
		if err != nil {
			return nil, err
		}
		if base.PageID != p.ID {
			return nil, errors.NewInvalidRequest("base version belongs to a different page")
		}
	}

	// Seed metadata from the base snapshot; an absent or corrupt snapshot
	// falls back to the page's live metadata instead of failing the rebind.
	seed := page.Snapshot{Tags: p.Tags, Vars: p.Vars}
	if base != nil {
		decoded, err := page.DecodeSnapshot(base.Snapshot)
		if err == nil {
			seed = decoded
		} else if !errors.Is(err, errors.ErrCorruptSnapshot) {
			return nil, err
		} else {
			log.Debug().Str("page", p.ID).Str("version", base.ID).
				Msg("base snapshot unreadable, seeding from live metadata")
		}
	}
	filtered := seed.Filter(inherit)

	snapshot, err := page.EncodeSnapshot(filtered)
	if err != nil {
		return nil, err
	}
	versionID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	v := &page.Version{
		ID:        versionID,
		PageID:    p.ID,
		BundleID:  targetBundleID,
		Offset:    input.Offset,
		Snapshot:  snapshot,
		Inherited: inherit,
		CreatedAt: now,
	}

	exec := q
	var commit func() error
	if canTx {
		tx, err := beginner.BeginTx(ctx, nil)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		defer tx.Rollback()
		exec = tx
		commit = tx.Commit
	}

	if err := db.InsertVersion(ctx, exec, v); err != nil {
		return nil, err
	}
	if err := db.RepointPage(ctx, exec, p.ID, targetBundleID, input.Offset, versionID); err != nil {
		return nil, err
	}

	cloned := 0
	if inherit.Notes && base != nil {
		src, err := db.ListNotesByVersion(ctx, exec, base.ID, false)
		if err != nil {
			return nil, err
		}
		clones, _, err := notetree.CloneSubtree(src, p.ID, versionID, now, generateULID)
		if err != nil {
			return nil, err
		}
		for _, n := range clones {
			if err := db.InsertNote(ctx, exec, n); err != nil {
				return nil, err
			}
		}
		cloned = len(clones)
	}

	if commit != nil {
		if err := commit(); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	log.Debug().Str("page", p.ID).Str("version", versionID).
		Str("bundle", targetBundleID).Int("offset", input.Offset).
		Int("cloned_notes", cloned).Msg("page rebound")

	return &RebindOutput{
		PageID:      p.ID,
		VersionID:   versionID,
		Created:     true,
		Rev:         p.Rev + 1,
		ClonedNotes: cloned,
	}, nil
}
