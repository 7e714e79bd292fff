package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// Field Types
// =============================================================================

type FieldType string

const (
	FieldText     FieldType = "TEXT"
	FieldNumber   FieldType = "NUMBER"
	FieldTextarea FieldType = "TEXTAREA"
	FieldCheckbox FieldType = "CHECKBOX"
	FieldRadio    FieldType = "RADIO"
	FieldImage    FieldType = "IMAGE"
)

// FieldTypes lists every supported field type.
var FieldTypes = []FieldType{FieldText, FieldNumber, FieldTextarea, FieldCheckbox, FieldRadio, FieldImage}

// IsValid checks if the field type is valid.
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldText, FieldNumber, FieldTextarea, FieldCheckbox, FieldRadio, FieldImage:
		return true
	default:
		return false
	}
}

// HasOptions reports whether answers are picked from Options.
func (ft FieldType) HasOptions() bool {
	return ft == FieldCheckbox || ft == FieldRadio
}

// IsText reports whether answers are free text.
func (ft FieldType) IsText() bool {
	return ft == FieldText || ft == FieldTextarea
}

// =============================================================================
// Field
// =============================================================================

// Field is one input on a form.
type Field struct {
	ID        string    `json:"id"`
	FormID    string    `json:"formId"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	Order     int       `json:"order"`
	Options   []string  `json:"options"`
	MinLength *int      `json:"minLength"`
	MaxLength *int      `json:"maxLength"`
	MinValue  *float64  `json:"minValue"`
	MaxValue  *float64  `json:"maxValue"`
	Pattern   string    `json:"pattern,omitempty"`
}

// HasOption reports whether opt is one of the field's options.
func (f Field) HasOption(opt string) bool {
	for _, o := range f.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// PrepareFields assigns ids and the owning form to fields and sorts them by
// Order. When no field carries an explicit order, input order is used.
func PrepareFields(formID string, fields []Field) []Field {
	out := make([]Field, len(fields))
	explicit := false
	for _, f := range fields {
		if f.Order != 0 {
			explicit = true
			break
		}
	}

	for i, f := range fields {
		f.ID = NewID()
		f.FormID = formID
		f.Label = strings.TrimSpace(f.Label)
		f.Type = FieldType(strings.ToUpper(string(f.Type)))
		if !explicit {
			f.Order = i
		}
		if !f.Type.HasOptions() {
			f.Options = nil
		} else {
			f.Options = trimOptions(f.Options)
		}
		out[i] = f
	}

	SortFields(out)
	return out
}

// SortFields orders fields by Order, keeping input order for ties.
func SortFields(fields []Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})
}

func trimOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, strings.TrimSpace(o))
	}
	return out
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

// ValidateField validates a single field definition.
func ValidateField(f Field) ValidationErrors {
	errs := ValidationErrors{}

	if strings.TrimSpace(f.Label) == "" {
		errs.Add("label", ErrLabelRequired)
	}
	if !f.Type.IsValid() {
		errs.Add("type", ErrFieldTypeInvalid)
		return errs
	}

	if f.Type.HasOptions() {
		errs.Add("options", validateOptions(f.Options))
	}

	if (f.MinLength != nil && *f.MinLength < 0) || (f.MaxLength != nil && *f.MaxLength < 0) {
		errs.Add("minLength", ErrLengthNegative)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		errs.Add("minLength", ErrLengthRange)
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		errs.Add("minValue", ErrValueRange)
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			errs.Add("pattern", ErrPatternInvalid)
		}
	}

	return errs
}

func validateOptions(options []string) error {
	if len(options) == 0 {
		return ErrOptionsRequired
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return ErrOptionEmpty
		}
		if seen[o] {
			return ErrOptionDuplicate
		}
		seen[o] = true
	}
	return nil
}

// ValidateFields validates every field and the set as a whole. Keys are
// prefixed with the field's position, e.g. "fields[1].label".
func ValidateFields(fields []Field) ValidationErrors {
	errs := ValidationErrors{}
	ids := make(map[string]bool, len(fields))
	labels := make(map[string]bool, len(fields))

	for i, f := range fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		errs.Merge(prefix, ValidateField(f))

		if f.ID != "" {
			if ids[f.ID] {
				errs.Add(prefix+".id", ErrFieldIDDuplicate)
			}
			ids[f.ID] = true
		}

		// Answers can be keyed by label, so labels must not collide.
		label := strings.ToLower(strings.TrimSpace(f.Label))
		if label != "" {
			if labels[label] {
				errs.Add(prefix+".label", ErrLabelDuplicate)
			}
			labels[label] = true
		}
	}

	return errs
}
