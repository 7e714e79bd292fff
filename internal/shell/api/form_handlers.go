package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/store"
)

// publicIDAttempts bounds retries when a generated public id collides.
const publicIDAttempts = 3

// formsPageSize is the page size used when listing every form of an owner.
var formsPageSize = 1000

// =============================================================================
// Form Handlers
// =============================================================================

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	ctx := auth.FromContext(r.Context())

	opts, paged := listOptions(r)
	var (
		forms []domain.FormSummary
		err   error
	)
	if paged {
		forms, err = h.store.ListFormsByOwner(r.Context(), ctx.UserID, opts)
	} else {
		forms, err = h.allForms(r, ctx.UserID)
	}
	if err != nil {
		h.internalError(w, r, "list_forms", err)
		return
	}
	if forms == nil {
		forms = []domain.FormSummary{}
	}
	h.writeJSON(w, http.StatusOK, forms)
}

// allForms reads every form of the owner, a page at a time.
func (h *Handler) allForms(r *http.Request, ownerID string) ([]domain.FormSummary, error) {
	opts := store.ListOptions{Limit: formsPageSize}
	var all []domain.FormSummary
	for {
		page, err := h.store.ListFormsByOwner(r.Context(), ownerID, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < opts.Limit {
			return all, nil
		}
		opts.Offset += len(page)
	}
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	ctx := auth.FromContext(r.Context())

	var in domain.FormInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	form, err := domain.NewForm(ctx.UserID, in)
	if err != nil {
		h.writeValidation(w, err)
		return
	}

	for attempt := 1; ; attempt++ {
		err = h.store.CreateForm(r.Context(), &form)
		if !errors.Is(err, store.ErrDuplicatePublicID) || attempt == publicIDAttempts {
			break
		}
		form.PublicID = domain.NewPublicID()
	}
	if err != nil {
		h.internalError(w, r, "create_form", err)
		return
	}

	h.logger.Info("form created", "form_id", form.ID, "owner_id", form.OwnerID, "fields", len(form.Fields))
	h.writeJSON(w, http.StatusCreated, form)
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedForm(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, form)
}

// handleUpdateForm serves both PUT and PATCH: only keys present in the body
// change, and a fields array replaces every field.
func (h *Handler) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedForm(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var patch domain.FormPatch
	if !h.decodeJSON(w, r, &patch) {
		return
	}

	updated, fieldsReplaced, err := form.ApplyPatch(patch)
	if err != nil {
		h.writeValidation(w, err)
		return
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.UpdateForm(r.Context(), &updated); err != nil {
			return err
		}
		if fieldsReplaced {
			return tx.ReplaceFields(r.Context(), updated.ID, updated.Fields)
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
			return
		}
		h.internalError(w, r, "update_form", err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteForm removes the form and then, best effort, its uploads.
func (h *Handler) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedForm(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	paths, err := h.store.ListFilePaths(r.Context(), form.ID)
	if err != nil {
		h.internalError(w, r, "delete_form", err)
		return
	}

	if err := h.store.DeleteForm(r.Context(), form.ID); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
			return
		}
		h.internalError(w, r, "delete_form", err)
		return
	}

	removed := 0
	if h.uploader != nil && len(paths) > 0 {
		removed = h.uploader.Remove(r.Context(), paths)
	}
	h.logger.Info("form deleted", "form_id", form.ID, "files", len(paths), "files_removed", removed)
	h.writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) handleGetPublicForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.store.GetFormByPublicID(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
			return
		}
		h.internalError(w, r, "get_public_form", err)
		return
	}
	if !auth.CanViewPublicForm(*form) {
		h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
		return
	}
	h.writeJSON(w, http.StatusOK, form.PublicView())
}

// ownedForm loads a form the signed-in user owns. Someone else's form is
// reported as missing.
func (h *Handler) ownedForm(w http.ResponseWriter, r *http.Request, id string) (domain.Form, bool) {
	form, err := h.store.GetForm(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
			return domain.Form{}, false
		}
		h.internalError(w, r, "get_form", err)
		return domain.Form{}, false
	}
	if !auth.CanManageForm(auth.FromContext(r.Context()), *form) {
		h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
		return domain.Form{}, false
	}
	return *form, true
}
