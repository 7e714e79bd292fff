package store

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Form Operations
// =============================================================================

// formRow represents a form row in the database.
type formRow struct {
	ID              string  `db:"id"`
	PublicID        string  `db:"public_id"`
	OwnerID         string  `db:"owner_id"`
	Title           string  `db:"title"`
	Description     string  `db:"description"`
	IsPublic        bool    `db:"is_public"`
	BrandColor      *string `db:"brand_color"`
	StartDate       *string `db:"start_date"`
	EndDate         *string `db:"end_date"`
	MaxSubmissions  *int64  `db:"max_submissions"`
	ThankYouMessage *string `db:"thank_you_message"`
	RedirectURL     *string `db:"redirect_url"`
	Language        *string `db:"language"`
	WebhookURL      *string `db:"webhook_url"`
	EnableCaptcha   bool    `db:"enable_captcha"`
	CreatedAt       string  `db:"created_at"`
	UpdatedAt       string  `db:"updated_at"`
}

// formSummaryRow is a form row with its submission count.
type formSummaryRow struct {
	formRow
	SubmissionCount int `db:"submission_count"`
}

// fieldRow represents a field row in the database.
type fieldRow struct {
	ID        string   `db:"id"`
	FormID    string   `db:"form_id"`
	Label     string   `db:"label"`
	Type      string   `db:"type"`
	Required  bool     `db:"required"`
	Position  int      `db:"position"`
	Options   *string  `db:"options"`
	MinLength *int64   `db:"min_length"`
	MaxLength *int64   `db:"max_length"`
	MinValue  *float64 `db:"min_value"`
	MaxValue  *float64 `db:"max_value"`
	Pattern   *string  `db:"pattern"`
}

func formParams(form *domain.Form) map[string]any {
	return map[string]any{
		"id":                form.ID,
		"public_id":         form.PublicID,
		"owner_id":          form.OwnerID,
		"title":             form.Title,
		"description":       form.Description,
		"is_public":         form.IsPublic,
		"brand_color":       nullString(form.BrandColor),
		"start_date":        formatNullTime(form.StartDate),
		"end_date":          formatNullTime(form.EndDate),
		"max_submissions":   nullInt(form.MaxSubmissions),
		"thank_you_message": nullString(form.ThankYouMessage),
		"redirect_url":      nullString(form.RedirectURL),
		"language":          nullString(form.Language),
		"webhook_url":       nullString(form.WebhookURL),
		"enable_captcha":    form.EnableCaptcha,
		"created_at":        formatTime(form.CreatedAt),
		"updated_at":        formatTime(form.UpdatedAt),
	}
}

func (s *SQLStore) CreateForm(ctx context.Context, form *domain.Form) error {
	query := `
		INSERT INTO forms (
			id, public_id, owner_id, title, description, is_public,
			brand_color, start_date, end_date, max_submissions,
			thank_you_message, redirect_url, language, webhook_url,
			enable_captcha, created_at, updated_at
		) VALUES (
			:id, :public_id, :owner_id, :title, :description, :is_public,
			:brand_color, :start_date, :end_date, :max_submissions,
			:thank_you_message, :redirect_url, :language, :webhook_url,
			:enable_captcha, :created_at, :updated_at
		)`

	return s.atomic(ctx, "CreateForm", func(tx *SQLStore) error {
		if _, err := tx.exec.NamedExecContext(ctx, query, formParams(form)); err != nil {
			if uniqueViolation(err, "forms.public_id") {
				return NewStoreError("CreateForm", "form", form.ID, "form with this public id already exists", ErrDuplicatePublicID)
			}
			if uniqueViolation(err, "forms.id") {
				return NewStoreError("CreateForm", "form", form.ID, "form with this ID already exists", ErrDuplicateID)
			}
			if foreignKeyViolation(err) {
				return NewStoreError("CreateForm", "form", form.ID, "owner does not exist", ErrForeignKey)
			}
			return NewStoreError("CreateForm", "form", form.ID, err.Error(), err)
		}
		return tx.insertFields(ctx, "CreateForm", form.ID, form.Fields)
	})
}

func (s *SQLStore) GetForm(ctx context.Context, id string) (*domain.Form, error) {
	return s.getForm(ctx, "GetForm", `SELECT * FROM forms WHERE id = ?`, id)
}

func (s *SQLStore) GetFormByPublicID(ctx context.Context, publicID string) (*domain.Form, error) {
	return s.getForm(ctx, "GetFormByPublicID", `SELECT * FROM forms WHERE public_id = ?`, publicID)
}

func (s *SQLStore) getForm(ctx context.Context, op, query, key string) (*domain.Form, error) {
	var row formRow
	if err := s.exec.GetContext(ctx, &row, s.exec.Rebind(query), key); err != nil {
		if isNoRows(err) {
			return nil, NewStoreError(op, "form", key, "form not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "form", key, err.Error(), err)
	}

	form := rowToForm(&row)
	fields, err := s.loadFields(ctx, op, []string{form.ID})
	if err != nil {
		return nil, err
	}
	form.Fields = fields[form.ID]
	if form.Fields == nil {
		form.Fields = []domain.Field{}
	}
	return form, nil
}

func (s *SQLStore) UpdateForm(ctx context.Context, form *domain.Form) error {
	query := `
		UPDATE forms SET
			title = :title,
			description = :description,
			is_public = :is_public,
			brand_color = :brand_color,
			start_date = :start_date,
			end_date = :end_date,
			max_submissions = :max_submissions,
			thank_you_message = :thank_you_message,
			redirect_url = :redirect_url,
			language = :language,
			webhook_url = :webhook_url,
			enable_captcha = :enable_captcha,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := s.exec.NamedExecContext(ctx, query, formParams(form))
	if err != nil {
		return NewStoreError("UpdateForm", "form", form.ID, err.Error(), err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateForm", "form", form.ID, "form not found", ErrNotFound)
	}
	return nil
}

// ReplaceFields deletes every field of the form and inserts fields in one
// transaction.
func (s *SQLStore) ReplaceFields(ctx context.Context, formID string, fields []domain.Field) error {
	return s.atomic(ctx, "ReplaceFields", func(tx *SQLStore) error {
		if _, err := tx.exec.ExecContext(ctx, tx.exec.Rebind(`DELETE FROM fields WHERE form_id = ?`), formID); err != nil {
			return NewStoreError("ReplaceFields", "form", formID, err.Error(), err)
		}
		return tx.insertFields(ctx, "ReplaceFields", formID, fields)
	})
}

func (s *SQLStore) DeleteForm(ctx context.Context, id string) error {
	res, err := s.exec.ExecContext(ctx, s.exec.Rebind(`DELETE FROM forms WHERE id = ?`), id)
	if err != nil {
		return NewStoreError("DeleteForm", "form", id, err.Error(), err)
	}
	if affected(res) == 0 {
		return NewStoreError("DeleteForm", "form", id, "form not found", ErrNotFound)
	}
	return nil
}

// LockForm holds a write lock on the form row until the surrounding
// transaction ends. PostgreSQL locks the row; SQLite has no row locks, so a
// no-op update takes the database write lock instead.
func (s *SQLStore) LockForm(ctx context.Context, id string) error {
	if s.dialect == DialectPostgres {
		var locked string
		err := s.exec.GetContext(ctx, &locked, s.exec.Rebind(`SELECT id FROM forms WHERE id = ? FOR UPDATE`), id)
		if err != nil {
			if isNoRows(err) {
				return NewStoreError("LockForm", "form", id, "form not found", ErrNotFound)
			}
			return NewStoreError("LockForm", "form", id, err.Error(), err)
		}
		return nil
	}

	res, err := s.exec.ExecContext(ctx, s.exec.Rebind(`UPDATE forms SET updated_at = updated_at WHERE id = ?`), id)
	if err != nil {
		return NewStoreError("LockForm", "form", id, err.Error(), err)
	}
	if affected(res) == 0 {
		return NewStoreError("LockForm", "form", id, "form not found", ErrNotFound)
	}
	return nil
}

func (s *SQLStore) ListFormsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.FormSummary, error) {
	opts = opts.Normalize()
	query := `
		SELECT f.*, (SELECT COUNT(*) FROM submissions s WHERE s.form_id = f.id) AS submission_count
		FROM forms f
		WHERE f.owner_id = ?
		ORDER BY f.created_at DESC, f.id
		LIMIT ? OFFSET ?`

	var rows []formSummaryRow
	if err := s.exec.SelectContext(ctx, &rows, s.exec.Rebind(query), ownerID, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListFormsByOwner", "form", "", err.Error(), err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	fields, err := s.loadFields(ctx, "ListFormsByOwner", ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FormSummary, 0, len(rows))
	for i := range rows {
		form := rowToForm(&rows[i].formRow)
		form.Fields = fields[form.ID]
		if form.Fields == nil {
			form.Fields = []domain.Field{}
		}
		out = append(out, domain.FormSummary{
			Form:  *form,
			Count: domain.SubmissionCount{Submissions: rows[i].SubmissionCount},
		})
	}
	return out, nil
}

// =============================================================================
// Field Helpers
// =============================================================================

func (s *SQLStore) insertFields(ctx context.Context, op, formID string, fields []domain.Field) error {
	query := `
		INSERT INTO fields (
			id, form_id, label, type, required, position, options,
			min_length, max_length, min_value, max_value, pattern
		) VALUES (
			:id, :form_id, :label, :type, :required, :position, :options,
			:min_length, :max_length, :min_value, :max_value, :pattern
		)`

	for _, f := range fields {
		var options *string
		if f.Options != nil {
			data, err := json.Marshal(f.Options)
			if err != nil {
				return NewStoreError(op, "field", f.ID, "failed to serialize options", ErrInvalidData)
			}
			encoded := string(data)
			options = &encoded
		}

		row := map[string]any{
			"id":         f.ID,
			"form_id":    formID,
			"label":      f.Label,
			"type":       string(f.Type),
			"required":   f.Required,
			"position":   f.Order,
			"options":    options,
			"min_length": nullInt(f.MinLength),
			"max_length": nullInt(f.MaxLength),
			"min_value":  f.MinValue,
			"max_value":  f.MaxValue,
			"pattern":    nullString(f.Pattern),
		}

		if _, err := s.exec.NamedExecContext(ctx, query, row); err != nil {
			if uniqueViolation(err, "fields.id") {
				return NewStoreError(op, "field", f.ID, "field with this ID already exists", ErrDuplicateID)
			}
			if foreignKeyViolation(err) {
				return NewStoreError(op, "field", f.ID, "form does not exist", ErrForeignKey)
			}
			return NewStoreError(op, "field", f.ID, err.Error(), err)
		}
	}
	return nil
}

// loadFields returns the fields of the given forms keyed by form id.
func (s *SQLStore) loadFields(ctx context.Context, op string, formIDs []string) (map[string][]domain.Field, error) {
	out := make(map[string][]domain.Field, len(formIDs))
	if len(formIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM fields WHERE form_id IN (?) ORDER BY form_id, position, id`, formIDs)
	if err != nil {
		return nil, NewStoreError(op, "field", "", err.Error(), err)
	}

	var rows []fieldRow
	if err := s.exec.SelectContext(ctx, &rows, s.exec.Rebind(query), args...); err != nil {
		return nil, NewStoreError(op, "field", "", err.Error(), err)
	}

	for i := range rows {
		f, err := rowToField(&rows[i])
		if err != nil {
			return nil, err
		}
		out[f.FormID] = append(out[f.FormID], *f)
	}
	return out, nil
}

// =============================================================================
// Row Converters
// =============================================================================

// rowToForm converts a database row to a domain.Form without fields.
func rowToForm(row *formRow) *domain.Form {
	return &domain.Form{
		ID:          row.ID,
		PublicID:    row.PublicID,
		OwnerID:     row.OwnerID,
		Title:       row.Title,
		Description: row.Description,
		IsPublic:    row.IsPublic,
		Settings: domain.Settings{
			BrandColor:      derefString(row.BrandColor),
			StartDate:       parseNullTime(row.StartDate),
			EndDate:         parseNullTime(row.EndDate),
			MaxSubmissions:  derefInt(row.MaxSubmissions),
			ThankYouMessage: derefString(row.ThankYouMessage),
			RedirectURL:     derefString(row.RedirectURL),
			Language:        derefString(row.Language),
			WebhookURL:      derefString(row.WebhookURL),
			EnableCaptcha:   row.EnableCaptcha,
		},
		CreatedAt: parseTime(row.CreatedAt),
		UpdatedAt: parseTime(row.UpdatedAt),
	}
}

// rowToField converts a database row to a domain.Field.
func rowToField(row *fieldRow) (*domain.Field, error) {
	var options []string
	if row.Options != nil && *row.Options != "" && *row.Options != "null" {
		if err := json.Unmarshal([]byte(*row.Options), &options); err != nil {
			return nil, NewStoreError("rowToField", "field", row.ID, "failed to parse options", ErrInvalidData)
		}
	}

	return &domain.Field{
		ID:        row.ID,
		FormID:    row.FormID,
		Label:     row.Label,
		Type:      domain.FieldType(row.Type),
		Required:  row.Required,
		Order:     row.Position,
		Options:   options,
		MinLength: derefInt(row.MinLength),
		MaxLength: derefInt(row.MaxLength),
		MinValue:  row.MinValue,
		MaxValue:  row.MaxValue,
		Pattern:   derefString(row.Pattern),
	}, nil
}
