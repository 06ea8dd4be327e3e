package page

import (
	"fmt"
	"time"
)

// VarKind is the declared type of a variable.
type VarKind string

const (
	VarInt    VarKind = "int"
	VarChoice VarKind = "choice"
	VarText   VarKind = "text"
	VarDate   VarKind = "date"
)

// KnownVarKinds lists all valid variable kinds.
var KnownVarKinds = []VarKind{VarInt, VarChoice, VarText, VarDate}

// VarValue is a closed tagged union: exactly one of the value fields is set,
// matching Kind. Var ids are opaque; a dangling reference to a deleted
// catalog entry is tolerated and renders as "unknown".
type VarValue struct {
	VarID  string  `json:"var_id"`
	Kind   VarKind `json:"kind"`
	Int    *int64  `json:"int,omitempty"`
	Choice *string `json:"choice,omitempty"`
	Text   *string `json:"text,omitempty"`
	Date   *string `json:"date,omitempty"` // ISO 8601 date (2006-01-02)
}

// Validate checks that exactly one value field is set and that it matches the
// declared kind. Pure; storage never calls it implicitly.
func (v VarValue) Validate() error {
	if v.VarID == "" {
		return fmt.Errorf("var value missing var_id")
	}

	set := 0
	if v.Int != nil {
		set++
	}
	if v.Choice != nil {
		set++
	}
	if v.Text != nil {
		set++
	}
	if v.Date != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("var %s: exactly one value must be set, got %d", v.VarID, set)
	}

	switch v.Kind {
	case VarInt:
		if v.Int == nil {
			return fmt.Errorf("var %s: kind int requires an int value", v.VarID)
		}
	case VarChoice:
		if v.Choice == nil {
			return fmt.Errorf("var %s: kind choice requires a choice value", v.VarID)
		}
	case VarText:
		if v.Text == nil {
			return fmt.Errorf("var %s: kind text requires a text value", v.VarID)
		}
	case VarDate:
		if v.Date == nil {
			return fmt.Errorf("var %s: kind date requires a date value", v.VarID)
		}
		if _, err := time.Parse("2006-01-02", *v.Date); err != nil {
			return fmt.Errorf("var %s: date %q is not YYYY-MM-DD", v.VarID, *v.Date)
		}
	default:
		return fmt.Errorf("var %s: unknown kind %q", v.VarID, v.Kind)
	}

	return nil
}

// ValidateVarValues validates a full value list.
func ValidateVarValues(vars []VarValue) error {
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
