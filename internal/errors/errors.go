package errors

import "fmt"

// ErrorCode represents a bindery error code.
type ErrorCode string

const (
	ErrAmbiguousAddressing ErrorCode = "AMBIGUOUS_ADDRESSING" // 400
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrNameAlreadyExists   ErrorCode = "NAME_ALREADY_EXISTS"  // 409
	ErrConflict            ErrorCode = "CONFLICT"             // 409
	ErrPageBusy            ErrorCode = "PAGE_BUSY"            // 409, retryable
	ErrNoteTooLarge        ErrorCode = "NOTE_TOO_LARGE"       // 413
	ErrCorruptSnapshot     ErrorCode = "SNAPSHOT_CORRUPT"     // 422, recoverable
	ErrCrossAnchorParent   ErrorCode = "CROSS_ANCHOR_PARENTING"
	ErrCircularReference   ErrorCode = "CIRCULAR_REFERENCE"
	ErrInvalidChildOrder   ErrorCode = "INVALID_CHILD_ORDER"
	ErrNoteInheritance     ErrorCode = "NOTE_INHERITANCE_UNAVAILABLE" // 422, fails the whole rebind
	ErrInternal            ErrorCode = "INTERNAL"                     // 500
)

// BinderyError represents a structured error with code, status, and details.
type BinderyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BinderyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAmbiguousAddressing creates a 400 error for when both ID and name are provided.
func NewAmbiguousAddressing() *BinderyError {
	return &BinderyError{
		Code:    ErrAmbiguousAddressing,
		Status:  400,
		Message: "cannot specify both id and name; use one addressing mode",
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BinderyError {
	return &BinderyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing page, bundle, version, or note.
func NewNotFound(identifier string) *BinderyError {
	return &BinderyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions within a binder.
func NewNameAlreadyExists(binder, name string) *BinderyError {
	return &BinderyError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("page with name %q already exists in binder %q", name, binder),
		Details: map[string]any{"binder": binder, "name": name},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *BinderyError {
	return &BinderyError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewPageBusy creates a retryable 409 error for per-page write contention.
// The page is not in a bad state; callers should back off and retry.
func NewPageBusy(pageID string) *BinderyError {
	return &BinderyError{
		Code:    ErrPageBusy,
		Status:  409,
		Message: fmt.Sprintf("page %s has a write in flight; retry", pageID),
		Details: map[string]any{"page_id": pageID, "retryable": true},
	}
}

// NewNoteTooLarge creates a 413 error when a note body exceeds the size limit.
func NewNoteTooLarge(max, actual int) *BinderyError {
	return &BinderyError{
		Code:    ErrNoteTooLarge,
		Status:  413,
		Message: fmt.Sprintf("note body exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewCorruptSnapshot creates a 422 error for an undecodable metadata snapshot.
// Recoverable: callers fall back to an empty snapshot rather than aborting.
func NewCorruptSnapshot(cause error) *BinderyError {
	msg := "metadata snapshot is corrupt"
	if cause != nil {
		msg = fmt.Sprintf("metadata snapshot is corrupt: %v", cause)
	}
	return &BinderyError{
		Code:    ErrCorruptSnapshot,
		Status:  422,
		Message: msg,
	}
}

// NewCrossAnchorParent creates an error for parenting notes across anchor versions.
func NewCrossAnchorParent(parentAnchor, childAnchor string) *BinderyError {
	return &BinderyError{
		Code:    ErrCrossAnchorParent,
		Status:  422,
		Message: "parent and child notes belong to different anchor versions",
		Details: map[string]any{"parent_anchor": parentAnchor, "child_anchor": childAnchor},
	}
}

// NewCircularReference creates an error for a note becoming its own ancestor.
func NewCircularReference(noteID string) *BinderyError {
	return &BinderyError{
		Code:    ErrCircularReference,
		Status:  422,
		Message: fmt.Sprintf("note %s cannot become its own ancestor", noteID),
		Details: map[string]any{"note_id": noteID},
	}
}

// NewInvalidChildOrder creates an error for a reorder list that is not an
// exact permutation of the parent's current children.
func NewInvalidChildOrder(msg string) *BinderyError {
	return &BinderyError{
		Code:    ErrInvalidChildOrder,
		Status:  422,
		Message: msg,
	}
}

// NewNoteInheritanceUnavailable creates an error for when note cloning was
// requested but the execution context cannot carry the extra writes.
func NewNoteInheritanceUnavailable() *BinderyError {
	return &BinderyError{
		Code:    ErrNoteInheritance,
		Status:  422,
		Message: "note inheritance requires a transactional context; rebind aborted",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BinderyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BinderyError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a BinderyError with the given code.
func Is(err error, code ErrorCode) bool {
	if bErr, ok := err.(*BinderyError); ok {
		return bErr.Code == code
	}
	return false
}
