package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Settings
// =============================================================================

// Settings holds the advanced options a form owner can set in the builder.
// It is embedded in Form so the JSON stays flat.
type Settings struct {
	BrandColor      string     `json:"brandColor,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	MaxSubmissions  *int       `json:"maxSubmissions,omitempty"`
	ThankYouMessage string     `json:"thankYouMessage,omitempty"`
	RedirectURL     string     `json:"redirectUrl,omitempty"`
	Language        string     `json:"language,omitempty"`
	WebhookURL      string     `json:"webhookUrl,omitempty"`
	EnableCaptcha   bool       `json:"enableCaptcha"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps as well as the date and
// datetime-local values HTML inputs produce. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrTimestampInvalid
}

var brandColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateSettings validates the advanced settings of a form.
func ValidateSettings(s Settings) ValidationErrors {
	errs := ValidationErrors{}

	if s.StartDate != nil && s.EndDate != nil && !s.StartDate.Before(*s.EndDate) {
		errs.Add("endDate", ErrScheduleRange)
	}
	if s.MaxSubmissions != nil && *s.MaxSubmissions < 1 {
		errs.Add("maxSubmissions", ErrMaxSubmissions)
	}
	if s.BrandColor != "" && !brandColorRegex.MatchString(s.BrandColor) {
		errs.Add("brandColor", ErrBrandColorInvalid)
	}
	if s.RedirectURL != "" {
		errs.Add("redirectUrl", ValidateHTTPURL(s.RedirectURL))
	}
	if s.WebhookURL != "" {
		errs.Add("webhookUrl", ValidateHTTPURL(s.WebhookURL))
	}

	return errs
}

// ValidateHTTPURL checks that raw is an absolute http or https URL.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrURLInvalid
	}
	return nil
}
