package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Input schemas mirror the request structs in handlers.go;
// fields omitted here are still accepted by decode but hidden from clients.

var varItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"var_id": map[string]any{"type": "string"},
		"kind":   map[string]any{"type": "string", "enum": []string{"int", "choice", "text", "date"}},
		"int":    map[string]any{"type": "integer"},
		"choice": map[string]any{"type": "string"},
		"text":   map[string]any{"type": "string"},
		"date":   map[string]any{"type": "string"},
	},
	"required": []string{"var_id", "kind"},
}

var rectProperties = map[string]any{
	"x": map[string]any{"type": "number"},
	"y": map[string]any{"type": "number"},
	"w": map[string]any{"type": "number"},
	"h": map[string]any{"type": "number"},
}

var pageBindToolDef = mcp.NewTool("page_bind",
	mcp.WithDescription("Create a page bound to one offset of a source bundle. The page's first version is created with it."),
	mcp.WithString("binder", mcp.Description("Binder the page belongs to (default: 'default')")),
	mcp.WithString("name", mcp.Description("Optional name, unique per binder among active pages")),
	mcp.WithString("title", mcp.Description("Display title (defaults to name)")),
	mcp.WithString("bundle_id", mcp.Description("Target bundle id (exactly one of bundle_id / bundle_label)")),
	mcp.WithString("bundle_label", mcp.Description("Target bundle label")),
	mcp.WithNumber("offset", mcp.Required(), mcp.Description("1-based offset within the bundle")),
	mcp.WithNumber("ordinal", mcp.Description("Position within the binder; 0 appends")),
	mcp.WithArray("tags", mcp.Description("Initial tags"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("vars", mcp.Description("Initial variable values"), mcp.Items(varItemSchema)),
)

var pageRebindToolDef = mcp.NewTool("page_rebind",
	mcp.WithDescription("Repoint a page at a new (bundle, offset) binding. Appends an immutable version; metadata is inherited per the chosen preset."),
	mcp.WithString("id", mcp.Description("Page id (or use binder+name)")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name for name addressing")),
	mcp.WithString("bundle_id", mcp.Description("Target bundle id; omit with bundle_label to keep the current bundle")),
	mcp.WithString("bundle_label", mcp.Description("Target bundle label")),
	mcp.WithNumber("offset", mcp.Required(), mcp.Description("1-based target offset")),
	mcp.WithString("inherit", mcp.Description("Inheritance preset: none | metadata | all (default: metadata)")),
	mcp.WithString("base_version_id", mcp.Description("Version whose snapshot seeds the new one (default: current)")),
)

var pageFetchToolDef = mcp.NewTool("page_fetch",
	mcp.WithDescription("Retrieve a page by id or (binder, name), with its bundle label and default viewing source."),
	mcp.WithString("id", mcp.Description("Page id")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
	mcp.WithBoolean("include_deleted", mcp.Description("Allow fetching a soft-deleted page")),
)

var pageListToolDef = mcp.NewTool("page_list",
	mcp.WithDescription("List pages in domain order (binder, ordinal, creation time) with live metadata."),
	mcp.WithString("binder", mcp.Description("Restrict to one binder; empty lists all")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted pages")),
)

var pageVersionsToolDef = mcp.NewTool("page_versions",
	mcp.WithDescription("List a page's version history oldest first, marking the current version."),
	mcp.WithString("id", mcp.Description("Page id")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
)

var pageMetaToolDef = mcp.NewTool("page_meta",
	mcp.WithDescription("Update a page's live tags, variables or title. Version snapshots are never touched."),
	mcp.WithString("id", mcp.Description("Page id")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
	mcp.WithArray("tags", mcp.Description("Replacement tag list"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("vars", mcp.Description("Replacement variable values"), mcp.Items(varItemSchema)),
	mcp.WithString("title", mcp.Description("New title")),
)

var pageDeleteToolDef = mcp.NewTool("page_delete",
	mcp.WithDescription("Soft-delete a page. History and notes remain; the name becomes reusable."),
	mcp.WithString("id", mcp.Description("Page id")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
)

var bundleAddToolDef = mcp.NewTool("bundle_add",
	mcp.WithDescription("Register a source bundle with whatever content variants are known. Missing variants can be added later."),
	mcp.WithString("label", mcp.Required(), mcp.Description("Unique label among active bundles")),
	mcp.WithString("primary_path", mcp.Description("Path of the primary variant")),
	mcp.WithString("original_path", mcp.Description("Path of the original variant")),
	mcp.WithString("textsource_path", mcp.Description("Path of the text-source variant")),
)

var bundleSetVariantToolDef = mcp.NewTool("bundle_set_variant",
	mcp.WithDescription("Fill in a bundle's content variant. Set variants freeze once any version references the bundle."),
	mcp.WithString("bundle_id", mcp.Description("Bundle id (exactly one of bundle_id / label)")),
	mcp.WithString("label", mcp.Description("Bundle label")),
	mcp.WithString("kind", mcp.Required(), mcp.Description("Variant kind: primary | original | textsource")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Variant file path")),
)

var bundleSetTextToolDef = mcp.NewTool("bundle_set_text",
	mcp.WithDescription("Store extracted text for one offset of a bundle, overwriting any previous text."),
	mcp.WithString("bundle_id", mcp.Description("Bundle id (exactly one of bundle_id / label)")),
	mcp.WithString("label", mcp.Description("Bundle label")),
	mcp.WithNumber("offset", mcp.Required(), mcp.Description("1-based offset")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Extracted text")),
)

var noteAddToolDef = mcp.NewTool("note_add",
	mcp.WithDescription("Create a note anchored to a version. Give version_id directly, or a page address to anchor to its current version."),
	mcp.WithString("version_id", mcp.Description("Anchor version id")),
	mcp.WithString("page_id", mcp.Description("Page whose current version anchors the note")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
	mcp.WithString("parent_id", mcp.Description("Parent note on the same anchor; empty creates a root note")),
	mcp.WithString("body", mcp.Required(), mcp.Description("Note body (markdown)")),
	mcp.WithObject("rect", mcp.Description("Anchor rectangle in normalized page coordinates"), mcp.Properties(rectProperties)),
	mcp.WithArray("tags", mcp.Description("Note tags"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("vars", mcp.Description("Note variable values"), mcp.Items(varItemSchema)),
)

var noteUpdateToolDef = mcp.NewTool("note_update",
	mcp.WithDescription("Edit a note's body, rectangle, tags or variables. Omitted fields are unchanged."),
	mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	mcp.WithString("body", mcp.Description("New body")),
	mcp.WithObject("rect", mcp.Description("New anchor rectangle"), mcp.Properties(rectProperties)),
	mcp.WithArray("tags", mcp.Description("New tag list"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("vars", mcp.Description("New variable values"), mcp.Items(varItemSchema)),
)

var noteDeleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete a note and its entire subtree."),
	mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
)

var noteReparentToolDef = mcp.NewTool("note_reparent",
	mcp.WithDescription("Move a note (with its subtree) under a new parent on the same anchor, or to the root."),
	mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	mcp.WithString("new_parent_id", mcp.Description("New parent; empty makes the note a root")),
)

var noteReorderToolDef = mcp.NewTool("note_reorder",
	mcp.WithDescription("Replace a parent's child order. The new order must be exactly a permutation of the active children."),
	mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent note id")),
	mcp.WithArray("order", mcp.Required(), mcp.Description("Child ids in the new order"), mcp.Items(map[string]any{"type": "string"})),
)

var noteMoveToolDef = mcp.NewTool("note_move",
	mcp.WithDescription("Move one child between positions in its parent's order."),
	mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent note id")),
	mcp.WithNumber("from", mcp.Required(), mcp.Description("Current position (0-based)")),
	mcp.WithNumber("to", mcp.Required(), mcp.Description("Target position (0-based)")),
)

var noteTreeToolDef = mcp.NewTool("note_tree",
	mcp.WithDescription("List a version's active notes as a nested tree in authoritative order."),
	mcp.WithString("version_id", mcp.Description("Anchor version id")),
	mcp.WithString("page_id", mcp.Description("Page whose current version is listed")),
	mcp.WithString("binder", mcp.Description("Binder for name addressing")),
	mcp.WithString("name", mcp.Description("Page name")),
)

var sessionBuildToolDef = mcp.NewTool("session_build",
	mcp.WithDescription("Project a binder's pages into an ephemeral reading session. Nothing in a session is persisted."),
	mcp.WithString("binder", mcp.Description("Binder to project (default: 'default')")),
	mcp.WithString("view_mode", mcp.Description("View mode: paged | continuous | textonly")),
	mcp.WithBoolean("read_only", mcp.Description("Disable annotation through this session")),
	mcp.WithBoolean("pin_versions", mcp.Description("Lock slots to their default version; preview switching is rejected")),
	mcp.WithBoolean("pin_source", mcp.Description("Lock slots to their default source; source switching is rejected")),
	mcp.WithNumber("limit", mcp.Description("Max slots (default 100)")),
	mcp.WithString("group", mcp.Description("Sync group to join; sessions in a group see each other's transient events")),
)

var sessionEventToolDef = mcp.NewTool("session_event",
	mcp.WithDescription("Apply a viewer event to a session: preview_changed, source_changed, navigated, note_created, note_updated, note_deleted."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from session_build")),
	mcp.WithString("kind", mcp.Required(), mcp.Description("Event kind")),
	mcp.WithString("page_id", mcp.Description("Slot the event targets")),
	mcp.WithString("version_id", mcp.Description("preview_changed: version to preview")),
	mcp.WithString("source", mcp.Description("source_changed: primary | original | textsource")),
	mcp.WithNumber("index", mcp.Description("navigated: slot index")),
	mcp.WithString("note_id", mcp.Description("note_updated / note_deleted: note id")),
	mcp.WithString("parent_id", mcp.Description("note_created: parent note")),
	mcp.WithString("body", mcp.Description("note_created / note_updated: body")),
	mcp.WithObject("rect", mcp.Description("note_created / note_updated: anchor rectangle"), mcp.Properties(rectProperties)),
	mcp.WithArray("tags", mcp.Description("Note tags"), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithArray("vars", mcp.Description("Note variable values"), mcp.Items(varItemSchema)),
)
