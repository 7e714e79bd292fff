package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/formdesk/internal/core/analytics"
	"github.com/artpar/formdesk/internal/core/answers"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/core/export"
	"github.com/artpar/formdesk/internal/shell/store"
	"github.com/artpar/formdesk/internal/shell/uploads"
)

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

// =============================================================================
// Public Submission
// =============================================================================

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, err := h.store.GetFormByPublicID(r.Context(), chi.URLParam(r, "publicId"))
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
			return
		}
		h.internalError(w, r, "submit", err)
		return
	}

	count, err := h.store.CountSubmissions(r.Context(), form.ID)
	if err != nil {
		h.internalError(w, r, "submit", err)
		return
	}
	if err := form.AcceptsSubmissions(h.now(), count); err != nil {
		h.writeAcceptanceError(w, err)
		return
	}

	in, stored, ok := h.readAnswers(w, r, *form)
	if !ok {
		return
	}

	collected, err := answers.Collect(form.Fields, in)
	if err != nil {
		h.discardUploads(r, stored)
		h.writeValidation(w, err)
		return
	}

	sub := domain.NewSubmission(form.ID, collected)
	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		// The form lock orders concurrent submissions, so the recount below
		// sees every submission committed before this one.
		if err := tx.LockForm(r.Context(), form.ID); err != nil {
			return err
		}
		count, err := tx.CountSubmissions(r.Context(), form.ID)
		if err != nil {
			return err
		}
		if err := form.AcceptsSubmissions(h.now(), count); err != nil {
			return err
		}
		if err := tx.CreateSubmission(r.Context(), &sub); err != nil {
			return err
		}
		if h.webhooks && form.WebhookURL != "" {
			return h.queueWebhook(r, tx, *form, sub)
		}
		return nil
	})
	if err != nil {
		h.discardUploads(r, stored)
		if isAcceptanceError(err) {
			h.writeAcceptanceError(w, err)
			return
		}
		h.internalError(w, r, "submit", err)
		return
	}

	h.metrics.SubmissionAccepted()
	h.logger.Info("submission received", "form_id", form.ID, "submission_id", sub.ID, "files", len(sub.FilePaths()))
	h.writeJSON(w, http.StatusCreated, CreatedResponse{ID: sub.ID})
}

// readAnswers parses a JSON, multipart or urlencoded body. Multipart file
// parts are stored as they are read; the returned paths must be discarded if
// the submission is not saved.
func (h *Handler) readAnswers(w http.ResponseWriter, r *http.Request, form domain.Form) (answers.Input, []string, bool) {
	in := answers.Input{Values: map[string]any{}, Files: map[string]string{}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return h.readMultipart(w, r, form, in)

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid form body", "validation_error")
			return in, nil, false
		}
		for key, vals := range r.PostForm {
			in.Values[key] = vals
		}
		return in, nil, true

	default:
		if !h.decodeJSON(w, r, &in.Values) {
			return in, nil, false
		}
		if in.Values == nil {
			in.Values = map[string]any{}
		}
		return in, nil, true
	}
}

func (h *Handler) readMultipart(w http.ResponseWriter, r *http.Request, form domain.Form, in answers.Input) (answers.Input, []string, bool) {
	if h.uploader == nil {
		h.writeError(w, http.StatusBadRequest, "file uploads are not enabled", "uploads_disabled")
		return in, nil, false
	}

	limit := int64(len(form.Fields)+1)*h.uploader.MaxFileSize() + maxJSONBody
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "file_too_large")
			return in, nil, false
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart body", "validation_error")
		return in, nil, false
	}
	defer r.MultipartForm.RemoveAll()

	for key, vals := range r.MultipartForm.Value {
		in.Values[key] = vals
	}

	var stored []string
	for name, headers := range r.MultipartForm.File {
		field, ok := fieldForPart(form, name)
		if !ok || len(headers) == 0 {
			continue
		}
		path, err := h.storePart(r, headers[0], field.Type == domain.FieldImage)
		if err != nil {
			h.discardUploads(r, stored)
			switch {
			case errors.Is(err, uploads.ErrTooLarge):
				h.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
					Error:   "File too large",
					Code:    "file_too_large",
					Details: map[string]string{field.ID: err.Error()},
				})
			case errors.Is(err, uploads.ErrNotImage):
				h.writeValidation(w, domain.ValidationErrors{field.ID: err.Error()})
			default:
				h.internalError(w, r, "store_upload", err)
			}
			return in, nil, false
		}
		stored = append(stored, path)
		in.Files[name] = path
	}
	return in, stored, true
}

func (h *Handler) storePart(r *http.Request, fh *multipart.FileHeader, image bool) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening part %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return h.uploader.Store(r.Context(), fh.Filename, f, image)
}

func (h *Handler) discardUploads(r *http.Request, paths []string) {
	if len(paths) > 0 && h.uploader != nil {
		h.uploader.Remove(r.Context(), paths)
	}
}

// queueWebhook records a pending delivery whose payload carries the
// submission as an export row.
func (h *Handler) queueWebhook(r *http.Request, tx store.Store, form domain.Form, sub domain.Submission) error {
	payload, err := json.Marshal(domain.WebhookPayload{
		Event:      domain.WebhookEventSubmissionCreated,
		FormID:     form.ID,
		Submission: export.FromSubmission(sub),
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}
	delivery := domain.NewWebhookDelivery(form.ID, sub.ID, form.WebhookURL, payload)
	return tx.CreateWebhookDelivery(r.Context(), &delivery)
}

// fieldForPart matches a multipart part name to a field by id, then label.
func fieldForPart(form domain.Form, name string) (domain.Field, bool) {
	if f, ok := form.FieldByID(name); ok {
		return f, true
	}
	for _, f := range form.Fields {
		if f.Label == name {
			return f, true
		}
	}
	return domain.Field{}, false
}

func isAcceptanceError(err error) bool {
	return errors.Is(err, domain.ErrFormNotPublic) ||
		errors.Is(err, domain.ErrFormNotOpen) ||
		errors.Is(err, domain.ErrFormClosed) ||
		errors.Is(err, domain.ErrSubmissionLimit)
}

// writeAcceptanceError maps a form's submission rules to a response. A form
// that is not public is indistinguishable from a missing one.
func (h *Handler) writeAcceptanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrFormNotPublic):
		h.writeError(w, http.StatusNotFound, "Form not found", "not_found")
	case errors.Is(err, domain.ErrFormNotOpen):
		h.writeError(w, http.StatusForbidden, "This form is not open yet", "form_not_open")
	case errors.Is(err, domain.ErrFormClosed):
		h.writeError(w, http.StatusForbidden, "This form is closed", "form_closed")
	case errors.Is(err, domain.ErrSubmissionLimit):
		h.writeError(w, http.StatusForbidden, "This form has reached its submission limit", "submission_limit")
	default:
		h.writeError(w, http.StatusForbidden, err.Error(), "forbidden")
	}
}

// =============================================================================
// Owner Submission Handlers
// =============================================================================

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedForm(w, r, chi.URLParam(r, "formId"))
	if !ok {
		return
	}

	subs, err := h.store.ListSubmissions(r.Context(), form.ID)
	if err != nil {
		h.internalError(w, r, "list_submissions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unsupported export type; use csv or json", "invalid_format")
		return
	}

	form, ok := h.ownedForm(w, r, chi.URLParam(r, "formId"))
	if !ok {
		return
	}

	subs, err := h.store.ListSubmissions(r.Context(), form.ID)
	if err != nil {
		h.internalError(w, r, "export", err)
		return
	}

	body, err := export.Render(format, export.Rows(subs))
	if err != nil {
		h.internalError(w, r, "export", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="form-%s.%s"`, form.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedForm(w, r, chi.URLParam(r, "formId"))
	if !ok {
		return
	}

	subs, err := h.store.ListSubmissions(r.Context(), form.ID)
	if err != nil {
		h.internalError(w, r, "stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, analytics.Summarize(form.ID, form.Fields, subs))
}
