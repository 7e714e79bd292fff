// Package answers turns a raw public submission into typed, validated
// answers for a form's fields. This is part of the Functional Core.
package answers

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Input
// =============================================================================

// Input is a submission as received. Values holds form values keyed by field
// id or by label; multipart values arrive as string or []string, JSON values
// keep their decoded type. Files maps an upload's part name to the path it
// was stored at.
type Input struct {
	Values map[string]any
	Files  map[string]string
}

// lookup returns the entry for a field, trying its id before its label.
func lookup[V any](m map[string]V, f domain.Field) (V, bool) {
	if v, ok := m[f.ID]; ok {
		return v, true
	}
	if v, ok := m[f.Label]; ok {
		return v, true
	}
	var zero V
	return zero, false
}

// =============================================================================
// Decode
// =============================================================================

// Collect decodes and validates in against fields. It returns one answer per
// field, in field order, or the validation errors keyed by field id.
func Collect(fields []domain.Field, in Input) ([]domain.Answer, error) {
	out, errs := Decode(fields, in)
	errs.Merge("", Validate(fields, out))
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode coerces raw values to each field's type. Fields with no value get
// an answer with a nil Value.
func Decode(fields []domain.Field, in Input) ([]domain.Answer, domain.ValidationErrors) {
	errs := domain.ValidationErrors{}
	out := make([]domain.Answer, 0, len(fields))

	for _, f := range fields {
		a := domain.Answer{FieldID: f.ID}

		if raw, ok := lookup(in.Values, f); ok {
			v, err := coerce(f.Type, raw)
			if err != nil {
				errs.Add(f.ID, err)
			}
			a.Value = v
		}
		if path, ok := lookup(in.Files, f); ok {
			a.FilePath = path
		}

		out = append(out, a)
	}

	return out, errs
}

func coerce(ft domain.FieldType, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(v) == 1 && ft != domain.FieldCheckbox {
			return coerce(ft, v[0])
		}
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return coerce(ft, items)
	case string:
		return coerceString(ft, v)
	case []any:
		if ft != domain.FieldCheckbox {
			return nil, domain.ErrAnswerNotText
		}
		return stringList(v)
	case float64, json.Number, int, int64, bool:
		return coerceScalar(ft, v)
	default:
		return nil, domain.ErrAnswerNotText
	}
}

func coerceString(ft domain.FieldType, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch ft {
	case domain.FieldNumber:
		return parseNumber(s)
	case domain.FieldCheckbox:
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "[") {
			var items []any
			if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
				return stringList(items)
			}
		}
		return splitList(s), nil
	default:
		return s, nil
	}
}

// parseNumber accepts finite decimal numbers only. ParseFloat also takes
// "NaN" and "Inf", which cannot be stored as JSON.
func parseNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, domain.ErrAnswerNotNumber
	}
	return n, nil
}

func coerceScalar(ft domain.FieldType, v any) (any, error) {
	switch ft {
	case domain.FieldNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return parseNumber(n.String())
		default:
			return nil, domain.ErrAnswerNotNumber
		}
	case domain.FieldCheckbox:
		s, err := scalarText(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	default:
		return scalarText(v)
	}
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", domain.ErrAnswerNotText
	}
}

func stringList(items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := scalarText(item)
		if err != nil {
			return nil, domain.ErrAnswerOption
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// splitList reads the comma-separated form older clients send for checkboxes.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// Validate
// =============================================================================

// IsEmpty reports whether an answer carries neither a value nor a file.
func IsEmpty(a domain.Answer) bool {
	if a.FilePath != "" {
		return false
	}
	switch v := a.Value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// Validate checks decoded answers against their fields' rules. Answers are
// matched to fields by FieldID; a field without an answer counts as empty.
func Validate(fields []domain.Field, answers []domain.Answer) domain.ValidationErrors {
	errs := domain.ValidationErrors{}
	byField := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byField[a.FieldID] = a
	}

	for _, f := range fields {
		a := byField[f.ID]
		if IsEmpty(a) {
			if f.Required {
				if f.Type == domain.FieldImage {
					errs.Add(f.ID, domain.ErrAnswerFile)
				} else {
					errs.Add(f.ID, domain.ErrAnswerRequired)
				}
			}
			continue
		}
		errs.Add(f.ID, validateAnswer(f, a))
	}

	return errs
}

func validateAnswer(f domain.Field, a domain.Answer) error {
	switch f.Type {
	case domain.FieldText, domain.FieldTextarea:
		s, ok := a.Value.(string)
		if !ok {
			return domain.ErrAnswerNotText
		}
		n := utf8.RuneCountInString(s)
		if f.MinLength != nil && n < *f.MinLength {
			return domain.ErrAnswerTooShort
		}
		if f.MaxLength != nil && n > *f.MaxLength {
			return domain.ErrAnswerTooLong
		}
		if f.Pattern != "" && !matchesPattern(f.Pattern, s) {
			return domain.ErrAnswerPattern
		}
	case domain.FieldNumber:
		n, ok := a.Value.(float64)
		if !ok {
			return domain.ErrAnswerNotNumber
		}
		if f.MinValue != nil && n < *f.MinValue {
			return domain.ErrAnswerTooSmall
		}
		if f.MaxValue != nil && n > *f.MaxValue {
			return domain.ErrAnswerTooLarge
		}
	case domain.FieldRadio:
		s, ok := a.Value.(string)
		if !ok || !f.HasOption(s) {
			return domain.ErrAnswerOption
		}
	case domain.FieldCheckbox:
		items, ok := a.Value.([]string)
		if !ok {
			return domain.ErrAnswerOption
		}
		for _, item := range items {
			if !f.HasOption(item) {
				return domain.ErrAnswerOption
			}
		}
	case domain.FieldImage:
		if f.Required && a.FilePath == "" {
			return domain.ErrAnswerFile
		}
	}
	return nil
}

// matchesPattern applies a pattern the way an HTML pattern attribute does:
// it must match the whole value.
func matchesPattern(pattern, s string) bool {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
