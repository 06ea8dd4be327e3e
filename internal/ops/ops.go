package ops

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"bindery/internal/db"
	"bindery/internal/errors"
	"bindery/internal/page"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Address represents a validated page address.
type Address struct {
	ByID   bool
	ID     string
	Binder string // normalized, defaulted to "default" for name-mode
	Name   string // normalized
}

// ValidateAddress validates addressing parameters and returns a normalized Address.
// Rules:
// - Must specify exactly one addressing mode: id OR (binder + name)
// - If id provided with name or binder → ErrAmbiguousAddressing
// - If neither id nor name provided → ErrInvalidRequest
func ValidateAddress(id, binder, name string) (*Address, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	binder = strings.TrimSpace(binder)

	hasID := id != ""
	hasName := name != ""
	hasBinder := binder != ""

	// Strict: id must be alone, no other addressing fields
	if hasID && (hasName || hasBinder) {
		return nil, errors.NewAmbiguousAddressing()
	}

	if !hasID && !hasName {
		return nil, errors.NewInvalidRequest("must specify either id or name")
	}

	if hasID {
		return &Address{
			ByID: true,
			ID:   id,
		}, nil
	}

	binderNorm := page.Normalize(binder)
	if binderNorm == "" {
		binderNorm = "default"
	}
	nameNorm := page.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	return &Address{
		ByID:   false,
		Binder: binderNorm,
		Name:   nameNorm,
	}, nil
}

// resolvePage loads the page behind an address.
func resolvePage(ctx context.Context, q db.Queryer, addr *Address, includeDeleted bool) (*page.Page, error) {
	if addr.ByID {
		return db.GetPageByID(ctx, q, addr.ID, includeDeleted)
	}
	return db.GetPageByName(ctx, q, addr.Binder, addr.Name, includeDeleted)
}

// resolveBundle loads a bundle by id or label. Exactly one must be given.
func resolveBundle(ctx context.Context, q db.Queryer, bundleID, label string) (*page.Bundle, error) {
	bundleID = strings.TrimSpace(bundleID)
	label = strings.TrimSpace(label)

	if bundleID != "" && label != "" {
		return nil, errors.NewAmbiguousAddressing()
	}
	if bundleID != "" {
		return db.GetBundleByID(ctx, q, bundleID, false)
	}
	labelNorm := page.Normalize(label)
	if labelNorm == "" {
		return nil, errors.NewInvalidRequest("must specify either bundle_id or bundle label")
	}
	return db.GetBundleByLabel(ctx, q, labelNorm)
}

// cleanOptionalString trims an optional string, converting whitespace-only to nil.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// generateULID creates a new ULID with monotonic entropy.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
