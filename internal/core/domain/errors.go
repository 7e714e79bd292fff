// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"sort"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// User validation errors
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email is not a valid address")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrUserNameTooLong  = errors.New("name must be at most 100 characters")

	// Form validation errors
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title must be at most 200 characters")

	// Field validation errors
	ErrLabelRequired    = errors.New("label is required")
	ErrFieldTypeInvalid = errors.New("invalid field type")
	ErrOptionsRequired  = errors.New("options required for choice fields")
	ErrOptionEmpty      = errors.New("options cannot be empty")
	ErrOptionDuplicate  = errors.New("duplicate option")
	ErrLengthRange      = errors.New("minLength cannot exceed maxLength")
	ErrLengthNegative   = errors.New("length limits cannot be negative")
	ErrValueRange       = errors.New("minValue cannot exceed maxValue")
	ErrPatternInvalid   = errors.New("pattern is not a valid regular expression")
	ErrFieldIDDuplicate = errors.New("duplicate field id")
	ErrLabelDuplicate   = errors.New("duplicate field label")

	// Settings validation errors
	ErrScheduleRange     = errors.New("startDate must be before endDate")
	ErrMaxSubmissions    = errors.New("maxSubmissions must be at least 1")
	ErrURLInvalid        = errors.New("must be an absolute http or https URL")
	ErrBrandColorInvalid = errors.New("brandColor must be a hex color like #1a2b3c")
	ErrTimestampInvalid  = errors.New("not a valid date or timestamp")

	// Submission acceptance errors
	ErrFormNotPublic   = errors.New("form is not accepting public submissions")
	ErrFormNotOpen     = errors.New("form is not open for submissions yet")
	ErrFormClosed      = errors.New("form is closed for submissions")
	ErrSubmissionLimit = errors.New("form has reached its submission limit")

	// Answer validation errors
	ErrAnswerRequired  = errors.New("this field is required")
	ErrAnswerTooShort  = errors.New("answer is shorter than the minimum length")
	ErrAnswerTooLong   = errors.New("answer is longer than the maximum length")
	ErrAnswerTooSmall  = errors.New("number is below the minimum value")
	ErrAnswerTooLarge  = errors.New("number is above the maximum value")
	ErrAnswerNotNumber = errors.New("answer must be a number")
	ErrAnswerNotText   = errors.New("answer must be text")
	ErrAnswerOption    = errors.New("answer is not one of the allowed options")
	ErrAnswerPattern   = errors.New("answer does not match the required format")
	ErrAnswerFile      = errors.New("an image upload is required")
)

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationErrors maps an input key (a field id, or a JSON property such as
// "title" or "fields[2].options") to the first problem found with it.
type ValidationErrors map[string]string

// Add records err under key. The first error recorded for a key wins.
func (v ValidationErrors) Add(key string, err error) {
	if err == nil {
		return
	}
	if _, ok := v[key]; ok {
		return
	}
	v[key] = err.Error()
}

// Merge copies every entry of other into v under prefix.
func (v ValidationErrors) Merge(prefix string, other ValidationErrors) {
	for k, msg := range other {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if _, ok := v[key]; !ok {
			v[key] = msg
		}
	}
}

// Err returns v as an error, or nil when there are no entries.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Error renders the entries sorted by key.
func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
