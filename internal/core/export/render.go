package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Formats
// =============================================================================

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat for anything but csv or json.
var ErrUnknownFormat = fmt.Errorf("export type must be %q or %q", FormatCSV, FormatJSON)

// ParseFormat parses an export type case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", ErrUnknownFormat
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Render renders rows in format f.
func Render(f Format, rows []*Row) ([]byte, error) {
	switch f {
	case FormatCSV:
		return []byte(CSV(rows)), nil
	case FormatJSON:
		return JSON(rows)
	default:
		return nil, ErrUnknownFormat
	}
}

// =============================================================================
// JSON
// =============================================================================

// JSON renders rows as a JSON array indented with two spaces. No rows
// renders as [].
func JSON(rows []*Row) ([]byte, error) {
	if rows == nil {
		rows = []*Row{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("encoding export rows: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// =============================================================================
// CSV
// =============================================================================

// Headers returns the union of keys across rows, in the order each key is
// first seen.
func Headers(rows []*Row) []string {
	seen := make(map[string]bool)
	var headers []string
	for _, r := range rows {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	return headers
}

// CSV renders rows as CSV text. Every cell is quoted, lines are separated by
// \n with no trailing newline, and no rows renders as the empty string.
func CSV(rows []*Row) string {
	if len(rows) == 0 {
		return ""
	}

	headers := Headers(rows)
	lines := make([]string, 0, len(rows)+1)

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = quote(h)
	}
	lines = append(lines, strings.Join(cells, ","))

	for _, r := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			v, ok := r.Get(h)
			if !ok {
				v = nil
			}
			cells[i] = quote(cellText(v))
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	return strings.Join(lines, "\n")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// cellText renders a value for a CSV cell: nil is empty, strings are their
// plain text, anything else (floats included) is its JSON text.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		b, err := marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
