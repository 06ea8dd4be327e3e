package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"bindery/internal/config"
	"bindery/internal/errors"
	"bindery/internal/ops"
	"bindery/internal/page"
	"bindery/internal/session"
)

// Handlers holds dependencies for MCP tool handlers. Sessions built over this
// server live in memory here; they vanish when the process exits, which is
// the intended lifetime.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config

	mu       sync.Mutex
	sessions map[string]*session.Session
	hub      *session.Hub
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{
		db:       db,
		cfg:      cfg,
		sessions: make(map[string]*session.Session),
		hub:      session.NewHub(cfg.SyncBufferSize),
	}
}

// Request types for each tool

// PageBindRequest represents the arguments for page_bind.
type PageBindRequest struct {
	Binder      string          `json:"binder,omitempty"`
	Name        *string         `json:"name,omitempty"`
	Title       *string         `json:"title,omitempty"`
	BundleID    string          `json:"bundle_id,omitempty"`
	BundleLabel string          `json:"bundle_label,omitempty"`
	Offset      int             `json:"offset"`
	Ordinal     int             `json:"ordinal,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Vars        []page.VarValue `json:"vars,omitempty"`
}

// PageRebindRequest represents the arguments for page_rebind.
type PageRebindRequest struct {
	ID            string `json:"id,omitempty"`
	Binder        string `json:"binder,omitempty"`
	Name          string `json:"name,omitempty"`
	BundleID      string `json:"bundle_id,omitempty"`
	BundleLabel   string `json:"bundle_label,omitempty"`
	Offset        int    `json:"offset"`
	Inherit       string `json:"inherit,omitempty"`
	BaseVersionID string `json:"base_version_id,omitempty"`
}

// PageFetchRequest represents the arguments for page_fetch.
type PageFetchRequest struct {
	ID             string `json:"id,omitempty"`
	Binder         string `json:"binder,omitempty"`
	Name           string `json:"name,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// PageListRequest represents the arguments for page_list.
type PageListRequest struct {
	Binder         string `json:"binder,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// PageVersionsRequest represents the arguments for page_versions.
type PageVersionsRequest struct {
	ID     string `json:"id,omitempty"`
	Binder string `json:"binder,omitempty"`
	Name   string `json:"name,omitempty"`
}

// PageMetaRequest represents the arguments for page_meta.
type PageMetaRequest struct {
	ID     string `json:"id,omitempty"`
	Binder string `json:"binder,omitempty"`
	Name   string `json:"name,omitempty"`

	Tags  *[]string        `json:"tags,omitempty"`
	Vars  *[]page.VarValue `json:"vars,omitempty"`
	Title *string          `json:"title,omitempty"`
}

// PageDeleteRequest represents the arguments for page_delete.
type PageDeleteRequest struct {
	ID     string `json:"id,omitempty"`
	Binder string `json:"binder,omitempty"`
	Name   string `json:"name,omitempty"`
}

// BundleAddRequest represents the arguments for bundle_add.
type BundleAddRequest struct {
	Label          string  `json:"label"`
	PrimaryPath    *string `json:"primary_path,omitempty"`
	OriginalPath   *string `json:"original_path,omitempty"`
	TextSourcePath *string `json:"textsource_path,omitempty"`
}

// BundleSetVariantRequest represents the arguments for bundle_set_variant.
type BundleSetVariantRequest struct {
	BundleID string `json:"bundle_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Kind     string `json:"kind"`
	Path     string `json:"path"`
}

// BundleSetTextRequest represents the arguments for bundle_set_text.
type BundleSetTextRequest struct {
	BundleID string `json:"bundle_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Offset   int    `json:"offset"`
	Text     string `json:"text"`
}

// NoteAddRequest represents the arguments for note_add.
type NoteAddRequest struct {
	VersionID string `json:"version_id,omitempty"`
	PageID    string `json:"page_id,omitempty"`
	Binder    string `json:"binder,omitempty"`
	Name      string `json:"name,omitempty"`

	ParentID string          `json:"parent_id,omitempty"`
	Body     string          `json:"body"`
	Rect     page.Rect       `json:"rect,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
	Vars     []page.VarValue `json:"vars,omitempty"`
}

// NoteUpdateRequest represents the arguments for note_update.
type NoteUpdateRequest struct {
	NoteID string `json:"note_id"`

	Body *string          `json:"body,omitempty"`
	Rect *page.Rect       `json:"rect,omitempty"`
	Tags *[]string        `json:"tags,omitempty"`
	Vars *[]page.VarValue `json:"vars,omitempty"`
}

// NoteDeleteRequest represents the arguments for note_delete.
type NoteDeleteRequest struct {
	NoteID string `json:"note_id"`
}

// NoteReparentRequest represents the arguments for note_reparent.
type NoteReparentRequest struct {
	NoteID      string `json:"note_id"`
	NewParentID string `json:"new_parent_id,omitempty"`
}

// NoteReorderRequest represents the arguments for note_reorder.
type NoteReorderRequest struct {
	ParentID string   `json:"parent_id"`
	Order    []string `json:"order"`
}

// NoteMoveRequest represents the arguments for note_move.
type NoteMoveRequest struct {
	ParentID string `json:"parent_id"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

// NoteTreeRequest represents the arguments for note_tree.
type NoteTreeRequest struct {
	VersionID string `json:"version_id,omitempty"`
	PageID    string `json:"page_id,omitempty"`
	Binder    string `json:"binder,omitempty"`
	Name      string `json:"name,omitempty"`
}

// SessionBuildRequest represents the arguments for session_build.
type SessionBuildRequest struct {
	Binder      string `json:"binder,omitempty"`
	ViewMode    string `json:"view_mode,omitempty"`
	ReadOnly    bool   `json:"read_only,omitempty"`
	PinVersions bool   `json:"pin_versions,omitempty"`
	PinSource   bool   `json:"pin_source,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Group       string `json:"group,omitempty"`
}

// SessionEventRequest represents the arguments for session_event.
type SessionEventRequest struct {
	SessionID string `json:"session_id"`

	Kind      string          `json:"kind"`
	PageID    string          `json:"page_id,omitempty"`
	VersionID string          `json:"version_id,omitempty"`
	Source    string          `json:"source,omitempty"`
	Index     int             `json:"index,omitempty"`
	NoteID    string          `json:"note_id,omitempty"`
	ParentID  string          `json:"parent_id,omitempty"`
	Body      string          `json:"body,omitempty"`
	Rect      page.Rect       `json:"rect,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Vars      []page.VarValue `json:"vars,omitempty"`
}

// Tool handlers

// HandlePageBind handles the page_bind tool call.
func (h *Handlers) HandlePageBind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageBindRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Bind(ctx, h.db, h.cfg, ops.BindInput{
		Binder:      input.Binder,
		Name:        input.Name,
		Title:       input.Title,
		BundleID:    input.BundleID,
		BundleLabel: input.BundleLabel,
		Offset:      input.Offset,
		Ordinal:     input.Ordinal,
		Tags:        input.Tags,
		Vars:        input.Vars,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageRebind handles the page_rebind tool call.
func (h *Handlers) HandlePageRebind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRebindRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Rebind(ctx, h.db, h.cfg, ops.RebindInput{
		ID:            input.ID,
		Binder:        input.Binder,
		Name:          input.Name,
		BundleID:      input.BundleID,
		BundleLabel:   input.BundleLabel,
		Offset:        input.Offset,
		Inherit:       input.Inherit,
		BaseVersionID: input.BaseVersionID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageFetch handles the page_fetch tool call.
func (h *Handlers) HandlePageFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		ID:             input.ID,
		Binder:         input.Binder,
		Name:           input.Name,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageList handles the page_list tool call.
func (h *Handlers) HandlePageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Binder:         input.Binder,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageVersions handles the page_versions tool call.
func (h *Handlers) HandlePageVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageVersionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Versions(ctx, h.db, ops.VersionsInput{
		ID:     input.ID,
		Binder: input.Binder,
		Name:   input.Name,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageMeta handles the page_meta tool call.
func (h *Handlers) HandlePageMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageMetaRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.UpdateMeta(ctx, h.db, ops.UpdateMetaInput{
		ID:     input.ID,
		Binder: input.Binder,
		Name:   input.Name,
		Tags:   input.Tags,
		Vars:   input.Vars,
		Title:  input.Title,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePageDelete handles the page_delete tool call.
func (h *Handlers) HandlePageDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{
		ID:     input.ID,
		Binder: input.Binder,
		Name:   input.Name,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBundleAdd handles the bundle_add tool call.
func (h *Handlers) HandleBundleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddBundle(ctx, h.db, ops.AddBundleInput{
		Label:          input.Label,
		PrimaryPath:    input.PrimaryPath,
		OriginalPath:   input.OriginalPath,
		TextSourcePath: input.TextSourcePath,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBundleSetVariant handles the bundle_set_variant tool call.
func (h *Handlers) HandleBundleSetVariant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleSetVariantRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetVariant(ctx, h.db, ops.SetVariantInput{
		BundleID: input.BundleID,
		Label:    input.Label,
		Kind:     input.Kind,
		Path:     input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBundleSetText handles the bundle_set_text tool call.
func (h *Handlers) HandleBundleSetText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BundleSetTextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetText(ctx, h.db, ops.SetTextInput{
		BundleID: input.BundleID,
		Label:    input.Label,
		Offset:   input.Offset,
		Text:     input.Text,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteAdd handles the note_add tool call.
func (h *Handlers) HandleNoteAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteAdd(ctx, h.db, h.cfg, ops.NoteAddInput{
		VersionID: input.VersionID,
		PageID:    input.PageID,
		Binder:    input.Binder,
		Name:      input.Name,
		ParentID:  input.ParentID,
		Body:      input.Body,
		Rect:      input.Rect,
		Tags:      input.Tags,
		Vars:      input.Vars,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteUpdate handles the note_update tool call.
func (h *Handlers) HandleNoteUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteUpdate(ctx, h.db, h.cfg, ops.NoteUpdateInput{
		NoteID: input.NoteID,
		Body:   input.Body,
		Rect:   input.Rect,
		Tags:   input.Tags,
		Vars:   input.Vars,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteDelete handles the note_delete tool call.
func (h *Handlers) HandleNoteDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteDelete(ctx, h.db, ops.NoteDeleteInput{NoteID: input.NoteID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteReparent handles the note_reparent tool call.
func (h *Handlers) HandleNoteReparent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteReparentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteReparent(ctx, h.db, ops.NoteReparentInput{
		NoteID:      input.NoteID,
		NewParentID: input.NewParentID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteReorder handles the note_reorder tool call.
func (h *Handlers) HandleNoteReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteReorderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteReorder(ctx, h.db, ops.NoteReorderInput{
		ParentID: input.ParentID,
		Order:    input.Order,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteMove handles the note_move tool call.
func (h *Handlers) HandleNoteMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteMove(ctx, h.db, ops.NoteMoveInput{
		ParentID: input.ParentID,
		From:     input.From,
		To:       input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteTree handles the note_tree tool call.
func (h *Handlers) HandleNoteTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteTreeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.NoteTree(ctx, h.db, ops.NoteTreeInput{
		VersionID: input.VersionID,
		PageID:    input.PageID,
		Binder:    input.Binder,
		Name:      input.Name,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSessionBuild handles the session_build tool call.
func (h *Handlers) HandleSessionBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionBuildRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := session.Build(ctx, h.db, session.Scope{
		Binder:      input.Binder,
		ViewMode:    session.ViewMode(input.ViewMode),
		ReadOnly:    input.ReadOnly,
		PinVersions: input.PinVersions,
		PinSource:   input.PinSource,
		Limit:       input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	if input.Group != "" {
		s.JoinGroup(h.hub, input.Group)
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	return successResult(s)
}

// HandleSessionEvent handles the session_event tool call.
func (h *Handlers) HandleSessionEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionEventRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	s := h.sessions[input.SessionID]
	h.mu.Unlock()
	if s == nil {
		return errorResult(errors.NewNotFound(input.SessionID)), nil
	}

	result, err := s.HandleEvent(ctx, h.db, h.cfg, session.Event{
		Kind:      session.EventKind(input.Kind),
		PageID:    input.PageID,
		VersionID: input.VersionID,
		Source:    input.Source,
		Index:     input.Index,
		NoteID:    input.NoteID,
		ParentID:  input.ParentID,
		Body:      input.Body,
		Rect:      input.Rect,
		Tags:      input.Tags,
		Vars:      input.Vars,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if berr, ok := err.(*errors.BinderyError); ok {
		errorObj := map[string]any{
			"code":    berr.Code,
			"message": berr.Message,
			"status":  berr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if berr.Code != errors.ErrInternal && berr.Details != nil {
			errorObj["details"] = berr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
