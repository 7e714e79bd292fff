// Package export flattens submissions into rows and renders them as JSON or
// CSV. Every function is pure.
package export

import (
	"bytes"
	"encoding/json"

	"github.com/artpar/formdesk/internal/core/domain"
)

// =============================================================================
// Row
// =============================================================================

// Row is an ordered set of key/value pairs. Keys keep the order in which they
// were first set, which drives both the JSON property order and the CSV
// header order.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// Set stores v under key. Setting an existing key keeps its position.
func (r *Row) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of keys.
func (r *Row) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the row as a JSON object in key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without HTML escaping so exported text stays readable.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// =============================================================================
// Submissions to Rows
// =============================================================================

// TimestampLayout renders createdAt as UTC RFC 3339 with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FromSubmission flattens a submission into {id, createdAt, <fieldId>...}.
// An answer's file path wins over its value.
func FromSubmission(s domain.Submission) *Row {
	row := NewRow()
	row.Set("id", s.ID)
	row.Set("createdAt", s.CreatedAt.UTC().Format(TimestampLayout))
	for _, a := range s.Answers {
		row.Set(a.FieldID, a.Export())
	}
	return row
}

// Rows flattens submissions in order. It never drops a submission.
func Rows(subs []domain.Submission) []*Row {
	rows := make([]*Row, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, FromSubmission(s))
	}
	return rows
}
