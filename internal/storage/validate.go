package storage

import (
	"fmt"

	"lmsetl/internal/fault"
	"lmsetl/pkg/records"
)

// ValidateKeys enforces the upsert-key invariants shared by every backend:
// the key column must be part of the column set, and each row's key must be
// present, non-null, and unique within the batch. A batch with duplicate
// keys would make a single set-based upsert statement non-deterministic, so
// it is rejected before any row reaches the store.
func ValidateKeys(keyColumn string, columns []string, rows []records.Record) []fault.RowError {
	found := false
	for _, c := range columns {
		if c == keyColumn {
			found = true
			break
		}
	}
	if !found {
		return []fault.RowError{{
			Index:  -1,
			Column: keyColumn,
			Reason: "key column not present in dataset columns",
		}}
	}

	var bad []fault.RowError
	seen := make(map[string]int, len(rows))
	for i, r := range rows {
		if r.IsEmpty(keyColumn) {
			bad = append(bad, fault.RowError{
				Index: i, Column: keyColumn, Reason: "null upsert key",
			})
			continue
		}
		k := fmt.Sprint(r[keyColumn])
		if first, dup := seen[k]; dup {
			bad = append(bad, fault.RowError{
				Index:  i,
				Column: keyColumn,
				Reason: fmt.Sprintf("duplicate key %q (first at row %d)", k, first),
			})
			continue
		}
		seen[k] = i
	}
	return bad
}
