// Package fault defines the structured error values shared by both pipeline
// stages. Every unrecoverable condition is classified into a small set of
// kinds so that the run boundary can log, meter, and notify uniformly
// without string-matching on error text.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// SourceUnavailable covers authentication or API failures in stage one.
	SourceUnavailable Kind = "source_unavailable"

	// ArtifactUnreadable covers a missing or unreadable CSV artifact in
	// stage two.
	ArtifactUnreadable Kind = "artifact_unreadable"

	// RowData covers per-row flattening or coercion failures. Depending on
	// the configured policy this is degraded (rows skipped) or fatal.
	RowData Kind = "row_data"

	// SchemaMismatch covers a target schema missing an expected column type
	// mapping. Always fatal, raised before any upsert.
	SchemaMismatch Kind = "schema_mismatch"

	// Persistence covers a write rejected by a store: the artifact put in
	// stage one, or the upsert in stage two. The whole batch is rolled back.
	Persistence Kind = "persistence"
)

// RowError pins a data-quality failure to a specific row and column so the
// run log contains enough context to reproduce.
type RowError struct {
	Index  int    // 0-based row index within the dataset
	Column string // offending column, empty when the whole row is at fault
	Reason string
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d column %q: %s", e.Index, e.Column, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Index, e.Reason)
}

// Error is the structured failure surfaced at the run boundary and published
// to the notification topic.
type Error struct {
	Stage string // "extract" or "load"
	Kind  Kind
	Rows  []RowError // affected rows, when row-level detail exists
	Err   error      // root cause, may be nil for pure data-quality faults
}

// New constructs a fault with a root cause.
func New(stage string, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// NewRows constructs a row-level fault carrying the offending rows.
func NewRows(stage string, kind Kind, rows []RowError) *Error {
	return &Error{Stage: stage, Kind: kind, Rows: rows}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		fmt.Fprintf(&b, "%s: ", e.Stage)
	}
	fmt.Fprintf(&b, "%s", e.Kind)
	if n := len(e.Rows); n > 0 {
		fmt.Fprintf(&b, " (%d rows affected)", n)
		// Include the first row error inline; the full list is available to
		// callers that inspect Rows.
		fmt.Fprintf(&b, ": %s", e.Rows[0].Error())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the root cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches faults by kind, so callers can write
// errors.Is(err, &fault.Error{Kind: fault.RowData}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

// WithStage stamps the pipeline stage onto a fault raised by a component
// that does not know which driver called it (e.g. the storage backends).
// Non-fault errors are wrapped into a new fault of the given kind.
func WithStage(stage string, kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Stage == "" {
			e.Stage = stage
		}
		return e
	}
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the fault kind carried by err, or "" when err is not a
// pipeline fault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RowCount returns the number of affected rows carried by err, or 0.
func RowCount(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return len(e.Rows)
	}
	return 0
}
