// Package schema models the target table schema used by the coercion
// engine: an ordered mapping from column name to a semantic type tag.
//
// The schema is read live from the relational store on every stage-two
// invocation (see the storage backends' InspectSchema); nothing here is
// hardcoded to a particular table so that schema evolution in the store
// propagates without a code change.
package schema

import (
	"fmt"
	"strings"
)

// Kind is the semantic type of a column. Coercion switches exhaustively on
// this tag rather than inspecting database driver types at runtime.
type Kind string

const (
	Integer   Kind = "integer"
	Text      Kind = "text"
	Boolean   Kind = "boolean"
	Date      Kind = "date"
	Timestamp Kind = "timestamp"
	JSON      Kind = "json"
)

// Column is one introspected column of the target table.
type Column struct {
	Name string
	Kind Kind
}

// Table is the live schema of the target table in declared column order.
type Table struct {
	Name    string
	Columns []Column
}

// Kinds returns the column→kind mapping for lookup-style access.
func (t Table) Kinds() map[string]Kind {
	m := make(map[string]Kind, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.Kind
	}
	return m
}

// Has reports whether the table declares the given column.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c.Name == col {
			return true
		}
	}
	return false
}

// KindOf maps a SQL type name, as reported by schema introspection
// (e.g. information_schema.columns.data_type or PRAGMA table_info), onto a
// semantic Kind. Matching is case-insensitive and tolerant of length
// suffixes such as "character varying(255)".
//
// Unknown type names return an error: a column the engine cannot classify
// must abort the run before any upsert rather than pass values through
// unverified.
func KindOf(sqlType string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(sqlType))
	// Strip length/precision qualifiers: "varchar(255)" -> "varchar".
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch s {
	case "smallint", "integer", "int", "int2", "int4", "int8", "bigint", "serial", "bigserial":
		return Integer, nil
	case "text", "varchar", "character varying", "character", "char", "citext", "name", "clob":
		return Text, nil
	case "boolean", "bool":
		return Boolean, nil
	case "date":
		return Date, nil
	case "timestamp", "timestamptz", "timestamp without time zone", "timestamp with time zone", "datetime":
		return Timestamp, nil
	case "json", "jsonb":
		return JSON, nil
	default:
		return "", fmt.Errorf("unmapped sql type %q", sqlType)
	}
}
