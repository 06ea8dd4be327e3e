package web

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"bindery/internal/config"
	"bindery/internal/errors"
	"bindery/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /pages: list pages, optionally within one binder.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	binder := r.URL.Query().Get("binder")

	input := ops.ListInput{
		Binder:         binder,
		Limit:          parseIntParam(r, "limit", 20),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Pages",
			Version: h.renderer.version,
			Nav:     "pages",
		},
		Items:      result.Pages,
		Pagination: result.Pagination,
		Binder:     binder,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /pages/{id}: a page with its version history,
// annotation tree and (when available) the extracted text it is bound to.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("page ID is required"))
		return
	}

	p, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	history, err := ops.Versions(r.Context(), h.db, ops.VersionsInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Notes for the current version. A pinned historical version can be
	// inspected with ?version_id=.
	versionID := r.URL.Query().Get("version_id")
	treeInput := ops.NoteTreeInput{PageID: id}
	if versionID != "" {
		treeInput = ops.NoteTreeInput{VersionID: versionID}
	}
	tree, err := ops.NoteTree(r.Context(), h.db, treeInput)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Extracted text is best effort; pages bound to offsets without text
	// still render.
	text := ""
	if bundle, berr := ops.GetBundle(r.Context(), h.db, ops.GetBundleInput{
		BundleID: p.BundleID,
		Offset:   p.Offset,
	}); berr == nil {
		text = bundle.Text
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   displayName(p.NameRaw, p.ID),
			Version: h.renderer.version,
			Nav:     "pages",
		},
		Page:        p,
		Versions:    history.Versions,
		Notes:       buildNoteViews(tree.Roots),
		NoteCount:   tree.Count,
		Text:        text,
		DisplayName: displayName(p.NameRaw, p.ID),
	})
}

// HandleDelete handles DELETE /pages/{id}: soft-delete a page.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("page ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/pages")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": result.Deleted,
			"id":      result.ID,
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/pages", http.StatusFound)
}

// HandleBundle handles GET /bundles/{id}: a bundle's variants and,
// optionally, one offset's extracted text.
func (h *Handlers) HandleBundle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("bundle ID is required"))
		return
	}

	offset := parseIntParam(r, "offset", 0)
	result, err := ops.GetBundle(r.Context(), h.db, ops.GetBundleInput{
		BundleID: id,
		Offset:   offset,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "bundle", BundlePageData{
		PageData: PageData{
			Title:   result.LabelRaw,
			Version: h.renderer.version,
			Nav:     "bundles",
		},
		Bundle: result,
		Offset: offset,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// displayName returns the page name if present, or a truncated ID.
func displayName(name *string, id string) string {
	if name != nil && *name != "" {
		return *name
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
