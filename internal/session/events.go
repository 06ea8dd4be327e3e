package session

import (
	"context"
	"database/sql"

	"bindery/internal/config"
	"bindery/internal/errors"
	"bindery/internal/ops"
	"bindery/internal/page"
)

// EventKind discriminates session events.
type EventKind string

const (
	// Transient events: viewer state only, nothing persisted.
	EventPreviewChanged EventKind = "preview_changed"
	EventSourceChanged  EventKind = "source_changed"
	EventNavigated      EventKind = "navigated"

	// Note events: forwarded to the note operations, anchored to the
	// slot's preview version.
	EventNoteCreated EventKind = "note_created"
	EventNoteUpdated EventKind = "note_updated"
	EventNoteDeleted EventKind = "note_deleted"
)

// Event is one viewer action against a session.
type Event struct {
	Kind   EventKind `json:"kind"`
	PageID string    `json:"page_id,omitempty"`

	// PreviewChanged / SourceChanged
	VersionID string `json:"version_id,omitempty"`
	Source    string `json:"source,omitempty"`

	// Navigated
	Index int `json:"index,omitempty"`

	// Note events
	NoteID   string          `json:"note_id,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Body     string          `json:"body,omitempty"`
	Rect     page.Rect       `json:"rect,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
	Vars     []page.VarValue `json:"vars,omitempty"`
}

// EventResult reports what an event did.
type EventResult struct {
	Kind      EventKind `json:"kind"`
	PageID    string    `json:"page_id,omitempty"`
	Preview   string    `json:"preview,omitempty"`
	Source    string    `json:"source,omitempty"`
	Index     int       `json:"index,omitempty"`
	NoteID    string    `json:"note_id,omitempty"`
	Transient bool      `json:"transient"`
}

// HandleEvent applies one event to the session. Transient events mutate only
// the in-memory slot state and are broadcast to sync-group siblings; note
// events run the real note operations anchored to the slot's preview
// version, which may differ from the page's current version.
func (s *Session) HandleEvent(ctx context.Context, database *sql.DB, cfg *config.Config, ev Event) (*EventResult, error) {
	switch ev.Kind {
	case EventPreviewChanged:
		return s.previewChanged(ev)
	case EventSourceChanged:
		return s.sourceChanged(ev)
	case EventNavigated:
		return s.navigated(ev)
	case EventNoteCreated, EventNoteUpdated, EventNoteDeleted:
		return s.noteEvent(ctx, database, cfg, ev)
	}
	return nil, errors.NewInvalidRequest("unknown event kind: " + string(ev.Kind))
}

func (s *Session) previewChanged(ev Event) (*EventResult, error) {
	slot := s.Slot(ev.PageID)
	if slot == nil {
		return nil, errors.NewNotFound(ev.PageID)
	}
	if !slot.CanPreview {
		return nil, errors.NewInvalidRequest("slot does not allow preview switching")
	}

	found := false
	for _, opt := range slot.Options {
		if opt.VersionID == ev.VersionID {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.NewInvalidRequest("version is not an option of this slot")
	}

	s.mu.Lock()
	slot.Preview = ev.VersionID
	s.mu.Unlock()

	s.broadcast(ev)
	return &EventResult{
		Kind:      ev.Kind,
		PageID:    slot.PageID,
		Preview:   slot.Preview,
		Transient: true,
	}, nil
}

func (s *Session) sourceChanged(ev Event) (*EventResult, error) {
	slot := s.Slot(ev.PageID)
	if slot == nil {
		return nil, errors.NewNotFound(ev.PageID)
	}
	if !slot.CanSwitchSource {
		return nil, errors.NewInvalidRequest("slot does not allow source switching")
	}

	kind := page.SourceKind(ev.Source)
	switch kind {
	case page.SourcePrimary, page.SourceOriginal, page.SourceTextSource:
	default:
		return nil, errors.NewInvalidRequest("source must be one of: primary, original, textsource")
	}

	s.mu.Lock()
	slot.Source = kind
	s.mu.Unlock()

	s.broadcast(ev)
	return &EventResult{
		Kind:      ev.Kind,
		PageID:    slot.PageID,
		Source:    string(kind),
		Transient: true,
	}, nil
}

func (s *Session) navigated(ev Event) (*EventResult, error) {
	if ev.Index < 0 || ev.Index >= len(s.Slots) {
		return nil, errors.NewInvalidRequest("index out of range")
	}

	s.mu.Lock()
	s.cursor = ev.Index
	s.mu.Unlock()

	s.broadcast(ev)
	return &EventResult{Kind: ev.Kind, Index: ev.Index, Transient: true}, nil
}

func (s *Session) noteEvent(ctx context.Context, database *sql.DB, cfg *config.Config, ev Event) (*EventResult, error) {
	if s.Scope.ReadOnly {
		return nil, errors.NewInvalidRequest("session scope is read-only")
	}
	slot := s.Slot(ev.PageID)
	if slot == nil && ev.Kind == EventNoteCreated {
		return nil, errors.NewNotFound(ev.PageID)
	}

	switch ev.Kind {
	case EventNoteCreated:
		out, err := ops.NoteAdd(ctx, database, cfg, ops.NoteAddInput{
			VersionID: slot.Preview,
			ParentID:  ev.ParentID,
			Body:      ev.Body,
			Rect:      ev.Rect,
			Tags:      ev.Tags,
			Vars:      ev.Vars,
		})
		if err != nil {
			return nil, err
		}
		return &EventResult{Kind: ev.Kind, PageID: ev.PageID, NoteID: out.ID}, nil

	case EventNoteUpdated:
		input := ops.NoteUpdateInput{NoteID: ev.NoteID}
		if ev.Body != "" {
			input.Body = &ev.Body
		}
		if ev.Rect != (page.Rect{}) {
			input.Rect = &ev.Rect
		}
		if ev.Tags != nil {
			input.Tags = &ev.Tags
		}
		if ev.Vars != nil {
			input.Vars = &ev.Vars
		}
		out, err := ops.NoteUpdate(ctx, database, cfg, input)
		if err != nil {
			return nil, err
		}
		return &EventResult{Kind: ev.Kind, PageID: ev.PageID, NoteID: out.ID}, nil

	default: // EventNoteDeleted
		out, err := ops.NoteDelete(ctx, database, ops.NoteDeleteInput{NoteID: ev.NoteID})
		if err != nil {
			return nil, err
		}
		return &EventResult{Kind: ev.Kind, PageID: ev.PageID, NoteID: out.ID}, nil
	}
}
