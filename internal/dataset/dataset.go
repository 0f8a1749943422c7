// Package dataset implements the Tabular Dataset: an ordered sequence of
// flat rows sharing one stable column set. The dataset is the unit of
// transfer between the two pipeline stages; between them it is materialized
// as a CSV artifact in object storage (see csv.go) and is otherwise
// ephemeral in memory.
package dataset

import (
	"lmsetl/pkg/records"
)

// Dataset couples a stable, ordered column set with its rows.
//
// Invariants:
//
//   - Every row's keys are a subset of Columns.
//   - Column order and naming are stable across runs; downstream schema
//     coercion matches by name, never by position.
//   - Row order matches the order of the source records.
type Dataset struct {
	Columns []string
	Rows    []records.Record
}

// New constructs an empty dataset over the given column set.
func New(columns []string) *Dataset {
	return &Dataset{Columns: append([]string(nil), columns...)}
}

// Append adds a row. Keys outside the column set are ignored by the CSV
// writer, so callers should keep rows aligned with Columns.
func (d *Dataset) Append(r records.Record) {
	d.Rows = append(d.Rows, r)
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether the dataset declares the given column.
func (d *Dataset) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// DropColumn removes a column from the declared set and from every row.
// Used by the coercion engine when the live schema does not know a column.
func (d *Dataset) DropColumn(col string) {
	out := d.Columns[:0]
	for _, c := range d.Columns {
		if c != col {
			out = append(out, c)
		}
	}
	d.Columns = out
	for _, r := range d.Rows {
		delete(r, col)
	}
}
