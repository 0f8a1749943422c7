// Package coerce implements the schema-aware type coercion engine for stage
// two. Input values arrive as raw CSV text; the engine converts each column
// to the semantic type the live target schema declares for it.
//
// Design goals:
//
//   - Exhaustive, testable typing: coercion switches on the tagged
//     schema.Kind enumeration resolved once per run, never on ad hoc
//     runtime type inspection.
//   - Per-column plans are compiled once per dataset, so the row loop does
//     no map lookups on type names.
//   - Schema is the source of truth: dataset columns unknown to the schema
//     are dropped; schema columns missing from the dataset are left unset
//     so the upsert cannot clobber them with nulls.
package coerce

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lmsetl/internal/dataset"
	"lmsetl/internal/fault"
	"lmsetl/internal/schema"
)

// Policy selects the batch behavior when individual rows fail coercion.
type Policy string

const (
	// PolicySkip drops failed rows, reports them, and lets the remainder
	// proceed to upsert. This is the default.
	PolicySkip Policy = "skip"

	// PolicyAbort fails the whole batch on the first bad row.
	PolicyAbort Policy = "abort"
)

// DateLayouts is the fixed, ordered set of accepted date/timestamp input
// formats. The first successful parse wins. The leading layout matches the
// LMS export convention (MM-DD-YYYY with a 24h clock); the rest cover ISO
// forms commonly produced by intermediate tooling.
var DateLayouts = []string{
	"01-02-2006 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coercer converts one raw field value. ok=false carries a reason suitable
// for a row error.
type coercer func(v any) (out any, ok bool, reason string)

// Apply coerces the dataset in place against the target table schema.
//
// Returned values: skipped lists the rows removed under PolicySkip (empty
// when every row converted); err is non-nil only for a batch abort under
// PolicyAbort, carrying the offending row. Rows are reported with their
// index in the incoming dataset.
func Apply(d *dataset.Dataset, t schema.Table, p Policy) (skipped []fault.RowError, err error) {
	if p == "" {
		p = PolicySkip
	}
	kinds := t.Kinds()

	// Schema decides what gets persisted; unknown columns are dropped up
	// front so the row loop only sees coercible columns.
	for _, col := range append([]string(nil), d.Columns...) {
		if _, ok := kinds[col]; !ok {
			d.DropColumn(col)
		}
	}

	plans := make(map[string]coercer, len(d.Columns))
	for _, col := range d.Columns {
		plans[col] = planFor(kinds[col])
	}

	kept := d.Rows[:0]
	for i, rec := range d.Rows {
		var rowErr *fault.RowError
		for _, col := range d.Columns {
			v, present := rec[col]
			if !present {
				continue
			}
			out, ok, reason := plans[col](v)
			if !ok {
				rowErr = &fault.RowError{Index: i, Column: col, Reason: reason}
				break
			}
			rec[col] = out
		}
		if rowErr == nil {
			kept = append(kept, rec)
			continue
		}
		if p == PolicyAbort {
			d.Rows = kept
			return nil, fault.NewRows("load", fault.RowData, []fault.RowError{*rowErr})
		}
		skipped = append(skipped, *rowErr)
	}
	d.Rows = kept
	return skipped, nil
}

// planFor compiles the coercer for a semantic kind.
func planFor(k schema.Kind) coercer {
	switch k {
	case schema.Integer:
		return coerceInteger
	case schema.Boolean:
		return coerceBoolean
	case schema.Date, schema.Timestamp:
		return coerceTime
	case schema.JSON:
		return coerceJSON
	default: // schema.Text
		return coerceText
	}
}

// coerceInteger parses decimal integers. An empty field is NULL, never
// zero. A trailing float form like "42.0" is tolerated because spreadsheet
// round-trips of the artifact produce it for id columns.
func coerceInteger(v any) (any, bool, string) {
	s, isStr := v.(string)
	if !isStr {
		return v, true, ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true, ""
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true, ""
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true, ""
		}
	}
	return nil, false, fmt.Sprintf("%q not an integer", s)
}

// coerceText passes strings through unchanged. The empty string stays
// empty: "" and NULL are distinct values for text columns.
func coerceText(v any) (any, bool, string) {
	return v, true, ""
}

// coerceBoolean accepts a small fixed vocabulary, case-insensitively.
func coerceBoolean(v any) (any, bool, string) {
	s, isStr := v.(string)
	if !isStr {
		return v, true, ""
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, true, ""
	case "1", "t", "true", "yes", "y":
		return true, true, ""
	case "0", "f", "false", "no", "n":
		return false, true, ""
	default:
		return nil, false, fmt.Sprintf("%q not a recognized boolean", s)
	}
}

// coerceTime tries DateLayouts in order; the first parse wins and the
// result is normalized to UTC. A non-empty unparseable value is a hard
// error for the row, never a silent NULL.
func coerceTime(v any) (any, bool, string) {
	s, isStr := v.(string)
	if !isStr {
		return v, true, ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true, ""
	}
	for _, layout := range DateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true, ""
		}
	}
	return nil, false, fmt.Sprintf("%q matches no accepted date layout", s)
}

// coerceJSON parses the field as a structured value (object, array, or
// scalar). Invalid structured text is a hard error for the row.
func coerceJSON(v any) (any, bool, string) {
	s, isStr := v.(string)
	if !isStr {
		return v, true, ""
	}
	if strings.TrimSpace(s) == "" {
		return nil, true, ""
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false, fmt.Sprintf("invalid structured value: %v", err)
	}
	return out, true, ""
}
