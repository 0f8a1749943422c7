// Package records defines the basic record shape passed between pipeline
// stages: a flat mapping from canonical column name to value.
//
// Conventions:
//
//   - A nil value means SQL NULL.
//   - An absent key means "not set"; downstream writers must not touch the
//     corresponding column at all.
//   - Values are plain Go types (string, int64, bool, time.Time, maps/slices
//     for structured columns).
package records

// Record is a single flat row keyed by canonical column name.
type Record map[string]any

// Clone returns a shallow copy of the record. Structured values (maps,
// slices) are shared with the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the record carries the given column, including when
// its value is nil.
func (r Record) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// IsEmpty reports whether the value for col is missing, nil, or an empty
// string. Useful for required-field checks where "" and NULL are equally
// unusable as an identifier.
func (r Record) IsEmpty(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}
