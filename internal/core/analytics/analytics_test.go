package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/formdesk/internal/core/domain"
)

func TestSummarize(t *testing.T) {
	fields := []domain.Field{
		{ID: "sat", Label: "Satisfaction", Type: domain.FieldRadio, Options: []string{"Great", "Okay", "Bad"}},
		{ID: "skills", Label: "Skills", Type: domain.FieldCheckbox, Options: []string{"JS", "TS", "SQL"}},
		{ID: "years", Label: "Years", Type: domain.FieldNumber},
		{ID: "notes", Label: "Notes", Type: domain.FieldTextarea},
	}
	subs := []domain.Submission{
		{ID: "1", Answers: []domain.Answer{
			{FieldID: "sat", Value: "Great"},
			{FieldID: "skills", Value: []any{"JS", "SQL"}},
			{FieldID: "years", Value: 2.0},
			{FieldID: "notes", Value: "good"},
		}},
		{ID: "2", Answers: []domain.Answer{
			{FieldID: "sat", Value: "Great"},
			{FieldID: "skills", Value: "TS, JS"},
			{FieldID: "years", Value: 6.0},
			{FieldID: "notes", Value: nil},
		}},
		{ID: "3", Answers: []domain.Answer{
			{FieldID: "sat", Value: "Meh"},
			{FieldID: "years", Value: "not a number"},
		}},
	}

	report := Summarize("form-1", fields, subs)
	assert.Equal(t, "form-1", report.FormID)
	assert.Equal(t, 3, report.TotalResponses)
	require.Len(t, report.Fields, 4)

	sat := report.Fields[0]
	assert.Equal(t, 3, sat.Responses)
	assert.Equal(t, []OptionCount{
		{Option: "Great", Count: 2},
		{Option: "Okay", Count: 0},
		{Option: "Bad", Count: 0},
		{Option: "Meh", Count: 1},
	}, sat.Options)

	skills := report.Fields[1]
	assert.Equal(t, 2, skills.Responses)
	assert.Equal(t, []OptionCount{
		{Option: "JS", Count: 2},
		{Option: "TS", Count: 1},
		{Option: "SQL", Count: 1},
	}, skills.Options)

	years := report.Fields[2]
	require.NotNil(t, years.Number)
	assert.Equal(t, NumberStats{Count: 2, Avg: 4, Min: 2, Max: 6}, *years.Number)
	assert.Equal(t, 3, years.Responses)

	notes := report.Fields[3]
	assert.Equal(t, 1, notes.Responses)
	assert.Nil(t, notes.Options)
	assert.Nil(t, notes.Number)
}

func TestSummarize_NoSubmissions(t *testing.T) {
	report := Summarize("form-1", []domain.Field{{ID: "n", Type: domain.FieldNumber}}, nil)
	assert.Zero(t, report.TotalResponses)
	require.Len(t, report.Fields, 1)
	assert.Nil(t, report.Fields[0].Number)
}

func TestSummarize_RadioOptionWithComma(t *testing.T) {
	fields := []domain.Field{
		{ID: "agree", Type: domain.FieldRadio, Options: []string{"Yes, definitely", "No"}},
	}
	subs := []domain.Submission{
		{ID: "1", Answers: []domain.Answer{{FieldID: "agree", Value: "Yes, definitely"}}},
		{ID: "2", Answers: []domain.Answer{{FieldID: "agree", Value: " No "}}},
	}

	report := Summarize("form-1", fields, subs)
	require.Len(t, report.Fields, 1)
	assert.Equal(t, []OptionCount{
		{Option: "Yes, definitely", Count: 1},
		{Option: "No", Count: 1},
	}, report.Fields[0].Options)
}

func TestSummarize_IgnoresNonFiniteNumbers(t *testing.T) {
	fields := []domain.Field{{ID: "n", Type: domain.FieldNumber}}
	subs := []domain.Submission{
		{ID: "1", Answers: []domain.Answer{{FieldID: "n", Value: "NaN"}}},
		{ID: "2", Answers: []domain.Answer{{FieldID: "n", Value: "Infinity"}}},
		{ID: "3", Answers: []domain.Answer{{FieldID: "n", Value: 5.0}}},
	}

	report := Summarize("form-1", fields, subs)
	require.NotNil(t, report.Fields[0].Number)
	assert.Equal(t, NumberStats{Count: 1, Avg: 5, Min: 5, Max: 5}, *report.Fields[0].Number)
}
