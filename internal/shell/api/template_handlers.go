package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/formdesk/internal/core/catalog"
)

// =============================================================================
// Template Handlers
// =============================================================================

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := catalog.Templates()
	if err != nil {
		h.internalError(w, r, "list_templates", err)
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok, err := catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, "get_template", err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "Template not found", "not_found")
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}
