// Package record decodes raw business records from the input dataset into a
// typed Business.
//
// Input records are loosely typed: a record may be a bare object or an
// envelope of the form {"value": {...}}, fields may hold strings, numbers,
// booleans, nulls or nested JSON. Decode unwraps the envelope and coerces
// every top-level field to text so the business row can be written verbatim
// into TEXT columns:
//
//   - strings are kept as-is,
//   - numbers keep their literal JSON form,
//   - booleans become "true" / "false",
//   - objects and arrays become their compact JSON text,
//   - null is treated as absent (SQL NULL).
//
// The nested service_option taxonomy is parsed leniently: malformed nodes are
// skipped where they occur and never fail the record.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"bizsync/internal/slug"
)

// Well-known field names of the input records.
const (
	FieldDataID        = "data_id"
	FieldTitle         = "title"
	FieldProviderID    = "provider_id"
	FieldCategory      = "category"
	FieldServiceOption = "service_option"
	FieldURL           = "url"
)

var (
	// ErrNotObject is returned for records that are not JSON objects.
	ErrNotObject = errors.New("record: not a JSON object")
	// ErrMissingDataID is returned when data_id is absent, null or empty.
	// The returned Business still carries Category and Sections.
	ErrMissingDataID = errors.New("record: missing data_id")
)

// Business is the typed view of one input record.
type Business struct {
	DataID     string
	Title      string
	ProviderID string
	Category   string
	Sections   []Section

	// Fields holds every top-level field coerced to text. Absent keys
	// (including JSON nulls) map to SQL NULL.
	Fields map[string]string

	// URL is assigned by the normalizer for new businesses.
	URL string
}

// Section is one service category of a business with its options.
type Section struct {
	Name    string
	Slug    string
	Options []Option
}

// Option is a single service option inside a Section.
type Option struct {
	Name string
	Slug string
}

// Value returns the text of column col and whether it is non-NULL. The url
// column always reflects the assigned URL.
func (b *Business) Value(col string) (string, bool) {
	switch col {
	case FieldDataID:
		return b.DataID, b.DataID != ""
	case FieldURL:
		return b.URL, b.URL != ""
	}
	v, ok := b.Fields[col]
	return v, ok
}

// Decode unwraps and decodes raw into a Business.
func Decode(raw json.RawMessage) (Business, error) {
	obj, err := unwrap(raw)
	if err != nil {
		return Business{}, err
	}

	b := Business{Fields: make(map[string]string, len(obj))}
	for k, v := range obj {
		if s, ok := textOf(v); ok {
			b.Fields[k] = s
		}
	}
	b.DataID = b.Fields[FieldDataID]
	b.Title = b.Fields[FieldTitle]
	b.ProviderID = b.Fields[FieldProviderID]
	if c := b.Fields[FieldCategory]; strings.TrimSpace(c) != "" {
		b.Category = c
	}
	b.Sections = parseSections(obj[FieldServiceOption])

	if strings.TrimSpace(b.DataID) == "" {
		b.DataID = ""
		return b, ErrMissingDataID
	}
	return b, nil
}

// unwrap returns the record object, looking through a {"value": {...}}
// envelope when present.
func unwrap(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}
	if v, ok := obj["value"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(v, &inner); err == nil && inner != nil {
			return inner, nil
		}
	}
	return obj, nil
}

// textOf coerces one JSON value to text. ok is false for null or invalid
// input.
func textOf(v json.RawMessage) (string, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", false
	}
	switch v[0] {
	case 'n':
		return "", false
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return "", false
		}
		return buf.String(), true
	default:
		// numbers, true, false
		return string(v), true
	}
}

// scalarText is textOf restricted to strings, numbers and booleans.
func scalarText(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] == '{' || v[0] == '[' {
		return ""
	}
	s, _ := textOf(v)
	return strings.TrimSpace(s)
}

type rawNode struct {
	Name    json.RawMessage `json:"name"`
	Slug    json.RawMessage `json:"slug"`
	Options json.RawMessage `json:"options"`
}

func parseSections(raw json.RawMessage) []Section {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]Section, 0, len(items))
	for _, it := range items {
		var n rawNode
		if err := json.Unmarshal(it, &n); err != nil {
			continue
		}
		name, key, ok := nameAndSlug(n, true)
		if !ok {
			continue
		}
		sec := Section{Name: name, Slug: key}

		var opts []json.RawMessage
		if err := json.Unmarshal(n.Options, &opts); err == nil {
			for _, o := range opts {
				var on rawNode
				if err := json.Unmarshal(o, &on); err != nil {
					continue
				}
				oname, okey, ok := nameAndSlug(on, false)
				if !ok {
					continue
				}
				sec.Options = append(sec.Options, Option{Name: oname, Slug: okey})
			}
		}
		out = append(out, sec)
	}
	return out
}

// nameAndSlug extracts the display name and slug of a taxonomy node. A
// missing slug is derived from the name. Options require a name; sections
// fall back to the slug as their name.
func nameAndSlug(n rawNode, nameOptional bool) (string, string, bool) {
	name := scalarText(n.Name)
	key := scalarText(n.Slug)
	if name == "" && !nameOptional {
		return "", "", false
	}
	if key == "" {
		key = slug.Slugify(name)
	}
	if key == "" {
		return "", "", false
	}
	if name == "" {
		name = key
	}
	return name, key, true
}
