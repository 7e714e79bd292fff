// Package analytics summarizes a form's submissions per field.
package analytics

import (
	"math"
	"strconv"
	"strings"

	"github.com/artpar/formdesk/internal/core/answers"
	"github.com/artpar/formdesk/internal/core/domain"
)

// Report is the per-field summary of a form's submissions.
type Report struct {
	FormID         string        `json:"formId"`
	TotalResponses int           `json:"totalResponses"`
	Fields         []FieldReport `json:"fields"`
}

// FieldReport summarizes the answers given to one field.
type FieldReport struct {
	FieldID   string           `json:"fieldId"`
	Label     string           `json:"label"`
	Type      domain.FieldType `json:"type"`
	Responses int              `json:"responses"`
	Options   []OptionCount    `json:"options,omitempty"`
	Number    *NumberStats     `json:"number,omitempty"`
}

// OptionCount is how often a choice was picked.
type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

// NumberStats describes the numeric answers to a NUMBER field.
type NumberStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize builds a report over subs. Choice fields list their declared
// options first, in order, followed by any other values respondents gave.
func Summarize(formID string, fields []domain.Field, subs []domain.Submission) Report {
	report := Report{
		FormID:         formID,
		TotalResponses: len(subs),
		Fields:         make([]FieldReport, 0, len(fields)),
	}

	for _, f := range fields {
		fr := FieldReport{FieldID: f.ID, Label: f.Label, Type: f.Type}

		counts := make(map[string]int)
		var extra []string
		var nums []float64

		for _, s := range subs {
			a, ok := findAnswer(s, f.ID)
			if !ok || answers.IsEmpty(a) {
				continue
			}
			fr.Responses++

			switch f.Type {
			case domain.FieldRadio, domain.FieldCheckbox:
				for _, choice := range choices(f.Type, a.Value) {
					if counts[choice] == 0 && !f.HasOption(choice) {
						extra = append(extra, choice)
					}
					counts[choice]++
				}
			case domain.FieldNumber:
				if n, ok := number(a.Value); ok {
					nums = append(nums, n)
				}
			}
		}

		if f.Type.HasOptions() {
			for _, opt := range f.Options {
				fr.Options = append(fr.Options, OptionCount{Option: opt, Count: counts[opt]})
			}
			for _, opt := range extra {
				fr.Options = append(fr.Options, OptionCount{Option: opt, Count: counts[opt]})
			}
		}
		if f.Type == domain.FieldNumber && len(nums) > 0 {
			fr.Number = numberStats(nums)
		}

		report.Fields = append(report.Fields, fr)
	}

	return report
}

func findAnswer(s domain.Submission, fieldID string) (domain.Answer, bool) {
	for _, a := range s.Answers {
		if a.FieldID == fieldID {
			return a, true
		}
	}
	return domain.Answer{}, false
}

// choices extracts picked options from a stored value. A RADIO string is
// one choice; older submissions stored checkbox picks as one
// comma-separated string.
func choices(ft domain.FieldType, v any) []string {
	switch t := v.(type) {
	case string:
		if ft != domain.FieldCheckbox {
			if t = strings.TrimSpace(t); t == "" {
				return nil
			}
			return []string{t}
		}
		var out []string
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil && !math.IsNaN(n) && !math.IsInf(n, 0)
	default:
		return 0, false
	}
}

func numberStats(nums []float64) *NumberStats {
	stats := &NumberStats{Count: len(nums), Min: nums[0], Max: nums[0]}
	var sum float64
	for _, n := range nums {
		sum += n
		if n < stats.Min {
			stats.Min = n
		}
		if n > stats.Max {
			stats.Max = n
		}
	}
	stats.Avg = sum / float64(len(nums))
	return stats
}
