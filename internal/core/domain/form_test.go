package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string { return &s }
func timePtr(t time.Time) *time.Time { return &t }

// =============================================================================
// Form Creation Tests
// =============================================================================

func TestNewForm_ValidInput(t *testing.T) {
	form, err := NewForm("user-1", FormInput{
		Title:    "  Customer Feedback  ",
		IsPublic: true,
		Fields: []Field{
			{Label: "Name", Type: FieldText, Required: true},
			{Label: "Satisfaction", Type: "radio", Options: []string{"Great", " Okay ", "Bad"}},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, form.ID)
	assert.Len(t, form.PublicID, PublicIDLength)
	assert.True(t, IsToken(form.PublicID))
	assert.Equal(t, "user-1", form.OwnerID)
	assert.Equal(t, "Customer Feedback", form.Title)
	assert.True(t, form.IsPublic)
	require.Len(t, form.Fields, 2)
	assert.Equal(t, 0, form.Fields[0].Order)
	assert.Equal(t, 1, form.Fields[1].Order)
	assert.Equal(t, FieldRadio, form.Fields[1].Type)
	assert.Equal(t, []string{"Great", "Okay", "Bad"}, form.Fields[1].Options)
	for _, f := range form.Fields {
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, form.ID, f.FormID)
	}
}

func TestNewForm_ExplicitOrderIsSorted(t *testing.T) {
	form, err := NewForm("user-1", FormInput{
		Title: "Ordered",
		Fields: []Field{
			{Label: "Third", Type: FieldText, Order: 3},
			{Label: "First", Type: FieldText, Order: 1},
			{Label: "Second", Type: FieldText, Order: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "First", form.Fields[0].Label)
	assert.Equal(t, "Second", form.Fields[1].Label)
	assert.Equal(t, "Third", form.Fields[2].Label)
}

func TestNewForm_CollectsAllErrors(t *testing.T) {
	_, err := NewForm("user-1", FormInput{
		Title: "",
		Fields: []Field{
			{Label: "", Type: FieldText},
			{Label: "Pick", Type: FieldCheckbox},
			{Label: "Age", Type: FieldNumber, MinValue: floatPtr(10), MaxValue: floatPtr(1)},
			{Label: "Bad", Type: "DROPDOWN"},
		},
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, ErrTitleRequired.Error(), verrs["title"])
	assert.Equal(t, ErrLabelRequired.Error(), verrs["fields[0].label"])
	assert.Equal(t, ErrOptionsRequired.Error(), verrs["fields[1].options"])
	assert.Equal(t, ErrValueRange.Error(), verrs["fields[2].minValue"])
	assert.Equal(t, ErrFieldTypeInvalid.Error(), verrs["fields[3].type"])
}

func TestNewForm_SettingsFromBuilder(t *testing.T) {
	var in FormInput
	body := `{
		"title": "Event RSVP",
		"isPublic": true,
		"brandColor": "#3366ff",
		"startDate": "2026-01-01T09:00",
		"endDate": "2026-02-01",
		"maxSubmissions": "50",
		"webhookUrl": "https://hooks.example.com/rsvp",
		"enableCaptcha": true,
		"fields": []
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))

	form, err := NewForm("user-1", in)
	require.NoError(t, err)

	assert.Equal(t, "#3366ff", form.BrandColor)
	require.NotNil(t, form.StartDate)
	assert.Equal(t, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), *form.StartDate)
	require.NotNil(t, form.EndDate)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *form.EndDate)
	require.NotNil(t, form.MaxSubmissions)
	assert.Equal(t, 50, *form.MaxSubmissions)
	assert.Equal(t, "https://hooks.example.com/rsvp", form.WebhookURL)
	assert.True(t, form.EnableCaptcha)
}

func TestNewForm_InvalidSettings(t *testing.T) {
	_, err := NewForm("user-1", FormInput{
		Title: "Bad settings",
		SettingsInput: SettingsInput{
			StartDate:   strPtr("2026-03-01"),
			EndDate:     strPtr("2026-01-01"),
			BrandColor:  strPtr("blue"),
			RedirectURL: strPtr("/thanks"),
		},
	})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "endDate")
	assert.Contains(t, verrs, "brandColor")
	assert.Contains(t, verrs, "redirectUrl")
}

// =============================================================================
// Patch Tests
// =============================================================================

func TestApplyPatch_OnlyProvidedKeys(t *testing.T) {
	form, err := NewForm("user-1", FormInput{
		Title:       "Original",
		Description: "keep me",
		SettingsInput: SettingsInput{
			MaxSubmissions: &OptionalInt{Value: intPtr(5)},
		},
		Fields: []Field{{Label: "Name", Type: FieldText}},
	})
	require.NoError(t, err)

	updated, replaced, err := form.ApplyPatch(FormPatch{Title: strPtr("Renamed")})
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "keep me", updated.Description)
	assert.Equal(t, form.Fields, updated.Fields)
	require.NotNil(t, updated.MaxSubmissions)
	assert.Equal(t, 5, *updated.MaxSubmissions)
}

func TestApplyPatch_ReplacesFieldsAndClearsSettings(t *testing.T) {
	form, err := NewForm("user-1", FormInput{
		Title:         "Original",
		SettingsInput: SettingsInput{EndDate: strPtr("2030-01-01")},
		Fields:        []Field{{Label: "Old", Type: FieldText}},
	})
	require.NoError(t, err)

	var patch FormPatch
	require.NoError(t, json.Unmarshal([]byte(`{"endDate":"","fields":[{"label":"New","type":"NUMBER"}]}`), &patch))

	updated, replaced, err := form.ApplyPatch(patch)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Nil(t, updated.EndDate)
	require.Len(t, updated.Fields, 1)
	assert.Equal(t, "New", updated.Fields[0].Label)
	assert.Equal(t, form.ID, updated.Fields[0].FormID)
	assert.NotEqual(t, form.Fields[0].ID, updated.Fields[0].ID)
}

func TestApplyPatch_InvalidLeavesFormUnchanged(t *testing.T) {
	form, err := NewForm("user-1", FormInput{Title: "Original"})
	require.NoError(t, err)

	got, replaced, err := form.ApplyPatch(FormPatch{Title: strPtr("   ")})
	require.Error(t, err)
	assert.False(t, replaced)
	assert.Equal(t, form, got)
}

// =============================================================================
// Acceptance Tests
// =============================================================================

func TestAcceptsSubmissions(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		form     Form
		count    int
		expected error
	}{
		{"private", Form{IsPublic: false}, 0, ErrFormNotPublic},
		{"open", Form{IsPublic: true}, 100, nil},
		{"not started", Form{IsPublic: true, Settings: Settings{StartDate: timePtr(now.Add(time.Hour))}}, 0, ErrFormNotOpen},
		{"ended", Form{IsPublic: true, Settings: Settings{EndDate: timePtr(now)}}, 0, ErrFormClosed},
		{"within window", Form{IsPublic: true, Settings: Settings{StartDate: timePtr(now.Add(-time.Hour)), EndDate: timePtr(now.Add(time.Hour))}}, 0, nil},
		{"at limit", Form{IsPublic: true, Settings: Settings{MaxSubmissions: intPtr(3)}}, 3, ErrSubmissionLimit},
		{"below limit", Form{IsPublic: true, Settings: Settings{MaxSubmissions: intPtr(3)}}, 2, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.form.AcceptsSubmissions(now, tc.count)
			if tc.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expected)
			}
		})
	}
}

func TestPublicView_HidesPrivateData(t *testing.T) {
	form := Form{ID: "f1", OwnerID: "user-1", Settings: Settings{WebhookURL: "https://x.test/hook", ThankYouMessage: "Thanks"}}
	view := form.PublicView()

	assert.Empty(t, view.OwnerID)
	assert.Empty(t, view.WebhookURL)
	assert.Equal(t, "Thanks", view.ThankYouMessage)
	assert.Equal(t, "user-1", form.OwnerID)
}

func TestFormSummary_JSONShape(t *testing.T) {
	summary := FormSummary{Form: Form{ID: "f1", Title: "T"}, Count: SubmissionCount{Submissions: 4}}
	data, err := json.Marshal(summary)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "f1", decoded["id"])
	assert.Equal(t, map[string]any{"submissions": float64(4)}, decoded["_count"])
	assert.Contains(t, decoded, "enableCaptcha")
	assert.NotContains(t, decoded, "webhookUrl")
}

func TestFieldByID(t *testing.T) {
	form := Form{Fields: []Field{{ID: "a", Label: "Name"}, {ID: "b", Label: "Photo"}}}

	f, ok := form.FieldByID("b")
	require.True(t, ok)
	assert.Equal(t, "Photo", f.Label)

	_, ok = form.FieldByID("Photo")
	assert.False(t, ok)
}
