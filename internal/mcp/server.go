package mcp

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bindery/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"page", "bundle", "note", "session"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"page_bind": {
		def:     pageBindToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageBind },
	},
	"page_rebind": {
		def:     pageRebindToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageRebind },
	},
	"page_fetch": {
		def:     pageFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageFetch },
	},
	"page_list": {
		def:     pageListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageList },
	},
	"page_versions": {
		def:     pageVersionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageVersions },
	},
	"page_meta": {
		def:     pageMetaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageMeta },
	},
	"page_delete": {
		def:     pageDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageDelete },
	},
	"bundle_add": {
		def:     bundleAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleAdd },
	},
	"bundle_set_variant": {
		def:     bundleSetVariantToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleSetVariant },
	},
	"bundle_set_text": {
		def:     bundleSetTextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBundleSetText },
	},
	"note_add": {
		def:     noteAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteAdd },
	},
	"note_update": {
		def:     noteUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteUpdate },
	},
	"note_delete": {
		def:     noteDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteDelete },
	},
	"note_reparent": {
		def:     noteReparentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteReparent },
	},
	"note_reorder": {
		def:     noteReorderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteReorder },
	},
	"note_move": {
		def:     noteMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteMove },
	},
	"note_tree": {
		def:     noteTreeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteTree },
	},
	"session_build": {
		def:     sessionBuildToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionBuild },
	},
	"session_event": {
		def:     sessionEventToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionEvent },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "page_bind" → "page").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Bindery tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bindery",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(db, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
