package table

import (
	"fmt"
	"maps"
)

// DefaultKeyField is the identity field used when Options.KeyField is empty.
const DefaultKeyField = "id"

// Row is a single record keyed by column id.
type Row map[string]any

// Key is the stable identity of a row, derived from its key field.
type Key string

// Clone returns a shallow copy of the row. Field values are shared.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// KeyOf extracts the row key from field.
// Returns false if the field is missing, nil, or renders as an empty string.
func KeyOf(r Row, field string) (Key, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "", false
	}
	return Key(s), true
}

// CloneRows copies a collection so the result shares no row maps with rows.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
