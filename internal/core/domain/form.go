package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// Form
// =============================================================================

// Form is a published or draft questionnaire owned by a user.
type Form struct {
	ID          string `json:"id"`
	PublicID    string `json:"publicId"`
	OwnerID     string `json:"ownerId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
	Settings
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubmissionCount mirrors the `_count` object the dashboard reads.
type SubmissionCount struct {
	Submissions int `json:"submissions"`
}

// FormSummary is a form listed on its owner's dashboard.
type FormSummary struct {
	Form
	Count SubmissionCount `json:"_count"`
}

// FieldByID returns the field with the given id.
func (f Form) FieldByID(id string) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.ID == id {
			return fld, true
		}
	}
	return Field{}, false
}

// PublicView returns the form as shown to anonymous respondents: no owner id
// and no webhook target.
func (f Form) PublicView() Form {
	out := f
	out.OwnerID = ""
	out.WebhookURL = ""
	out.Fields = append([]Field(nil), f.Fields...)
	return out
}

// AcceptsSubmissions checks whether a respondent may submit to the form at
// now, given how many submissions it already holds.
func (f Form) AcceptsSubmissions(now time.Time, count int) error {
	if !f.IsPublic {
		return ErrFormNotPublic
	}
	if f.StartDate != nil && now.Before(*f.StartDate) {
		return ErrFormNotOpen
	}
	if f.EndDate != nil && !now.Before(*f.EndDate) {
		return ErrFormClosed
	}
	if f.MaxSubmissions != nil && count >= *f.MaxSubmissions {
		return ErrSubmissionLimit
	}
	return nil
}

// =============================================================================
// Input
// =============================================================================

// OptionalInt decodes a JSON number, a numeric string, or an empty string.
// An empty string leaves Value nil, which clears the setting.
type OptionalInt struct {
	Value *int
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		o.Value = nil
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ErrMaxSubmissions
	}
	o.Value = &n
	return nil
}

// SettingsInput is how clients send advanced settings: every key is optional
// and an empty value clears the setting.
type SettingsInput struct {
	BrandColor      *string      `json:"brandColor,omitempty"`
	StartDate       *string      `json:"startDate,omitempty"`
	EndDate         *string      `json:"endDate,omitempty"`
	MaxSubmissions  *OptionalInt `json:"maxSubmissions,omitempty"`
	ThankYouMessage *string      `json:"thankYouMessage,omitempty"`
	RedirectURL     *string      `json:"redirectUrl,omitempty"`
	Language        *string      `json:"language,omitempty"`
	WebhookURL      *string      `json:"webhookUrl,omitempty"`
	EnableCaptcha   *bool        `json:"enableCaptcha,omitempty"`
}

// Apply overlays the provided keys on s.
func (in SettingsInput) Apply(s Settings) (Settings, ValidationErrors) {
	errs := ValidationErrors{}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setTime := func(key string, dst **time.Time, src *string) {
		if src == nil {
			return
		}
		if strings.TrimSpace(*src) == "" {
			*dst = nil
			return
		}
		t, err := ParseTimestamp(*src)
		if err != nil {
			errs.Add(key, err)
			return
		}
		*dst = &t
	}

	setString(&s.BrandColor, in.BrandColor)
	setString(&s.ThankYouMessage, in.ThankYouMessage)
	setString(&s.RedirectURL, in.RedirectURL)
	setString(&s.Language, in.Language)
	setString(&s.WebhookURL, in.WebhookURL)
	setTime("startDate", &s.StartDate, in.StartDate)
	setTime("endDate", &s.EndDate, in.EndDate)
	if in.MaxSubmissions != nil {
		s.MaxSubmissions = in.MaxSubmissions.Value
	}
	if in.EnableCaptcha != nil {
		s.EnableCaptcha = *in.EnableCaptcha
	}

	errs.Merge("", ValidateSettings(s))
	return s, errs
}

// FormInput is the body of a create request.
type FormInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
	SettingsInput
	Fields []Field `json:"fields"`
}

// FormPatch is the body of an update request. Nil members are left unchanged;
// a non-nil Fields replaces every field of the form.
type FormPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
	SettingsInput
	Fields *[]Field `json:"fields,omitempty"`
}

// NewForm builds a validated form owned by ownerID.
func NewForm(ownerID string, in FormInput) (Form, error) {
	now := time.Now().UTC()
	form := Form{
		ID:          NewID(),
		PublicID:    NewPublicID(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	settings, errs := in.SettingsInput.Apply(Settings{})
	form.Settings = settings
	form.Fields = PrepareFields(form.ID, in.Fields)

	errs.Merge("", ValidateForm(form))
	if err := errs.Err(); err != nil {
		return Form{}, err
	}
	return form, nil
}

// ApplyPatch returns f with p applied. fieldsReplaced reports whether the
// caller must persist a new field set.
func (f Form) ApplyPatch(p FormPatch) (updated Form, fieldsReplaced bool, err error) {
	updated = f
	if p.Title != nil {
		updated.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		updated.Description = strings.TrimSpace(*p.Description)
	}
	if p.IsPublic != nil {
		updated.IsPublic = *p.IsPublic
	}

	settings, errs := p.SettingsInput.Apply(f.Settings)
	updated.Settings = settings

	if p.Fields != nil {
		updated.Fields = PrepareFields(f.ID, *p.Fields)
		fieldsReplaced = true
	}
	updated.UpdatedAt = time.Now().UTC()

	errs.Merge("", ValidateForm(updated))
	if err := errs.Err(); err != nil {
		return f, false, err
	}
	return updated, fieldsReplaced, nil
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

// ValidateTitle validates a form title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > 200 {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateForm validates a form and returns every problem found.
func ValidateForm(f Form) ValidationErrors {
	errs := ValidationErrors{}
	errs.Add("title", ValidateTitle(f.Title))
	errs.Merge("", ValidateSettings(f.Settings))
	errs.Merge("", ValidateFields(f.Fields))
	return errs
}
