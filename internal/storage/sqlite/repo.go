// Package sqlite implements the tracking-store repository on SQLite via the
// CGO-free modernc.org driver. It honors the same contract as the Postgres
// backend (live PRAGMA-based schema introspection and a transactional
// ON CONFLICT upsert), which makes it the hermetic stand-in for repository
// tests and local runs without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lmsetl/internal/fault"
	"lmsetl/internal/schema"
	"lmsetl/internal/storage"
	"lmsetl/pkg/records"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository opens the database file (or ":memory:") named by cfg.DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("sqlite: table is required")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The upsert transaction is the only writer; one connection keeps
	// ":memory:" databases stable across calls.
	db.SetMaxOpenConns(1)
	return &Repository{db: db, cfg: cfg}, nil
}

// Close releases the database handle.
func (r *Repository) Close() { _ = r.db.Close() }

// DB exposes the underlying handle so tests can create the target table and
// inspect stored rows.
func (r *Repository) DB() *sql.DB { return r.db }

// InspectSchema reads column names and declared types via pragma_table_info
// in column order, mapping declared types onto semantic kinds exactly like
// the Postgres backend.
func (r *Repository) InspectSchema(ctx context.Context) (schema.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, r.cfg.Table)
	if err != nil {
		return schema.Table{}, fault.New("", fault.SchemaMismatch, fmt.Errorf("introspect %s: %w", r.cfg.Table, err))
	}
	defer rows.Close()

	t := schema.Table{Name: r.cfg.Table}
	for rows.Next() {
		var name, sqlType string
		if err := rows.Scan(&name, &sqlType); err != nil {
			return schema.Table{}, fault.New("", fault.SchemaMismatch, fmt.Errorf("scan column row: %w", err))
		}
		kind, err := schema.KindOf(sqlType)
		if err != nil {
			return schema.Table{}, fault.New("", fault.SchemaMismatch,
				fmt.Errorf("column %q of %s: %w", name, r.cfg.Table, err))
		}
		t.Columns = append(t.Columns, schema.Column{Name: name, Kind: kind})
	}
	if err := rows.Err(); err != nil {
		return schema.Table{}, fault.New("", fault.SchemaMismatch, fmt.Errorf("introspect %s: %w", r.cfg.Table, err))
	}
	if len(t.Columns) == 0 {
		return schema.Table{}, fault.New("", fault.SchemaMismatch,
			fmt.Errorf("table %s not found", r.cfg.Table))
	}
	return t, nil
}

// Upsert applies the batch inside one transaction using a prepared
// single-row ON CONFLICT statement. Any rejected row rolls back the whole
// batch.
func (r *Repository) Upsert(ctx context.Context, columns []string, rows []records.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if bad := storage.ValidateKeys(r.cfg.KeyColumn, columns, rows); len(bad) > 0 {
		return 0, fault.NewRows("", fault.RowData, bad)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertSQL(r.cfg.Table, columns, r.cfg.KeyColumn))
	if err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	for i, rec := range rows {
		args := make([]any, len(columns))
		for j, col := range columns {
			v, err := bindValue(rec[col])
			if err != nil {
				return 0, &fault.Error{Kind: fault.Persistence, Rows: []fault.RowError{{
					Index: i, Column: col, Reason: err.Error(),
				}}, Err: err}
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, &fault.Error{Kind: fault.Persistence, Rows: []fault.RowError{{
				Index: i, Reason: err.Error(),
			}}, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("commit: %w", err))
	}
	return int64(len(rows)), nil
}

// upsertSQL renders the SQLite flavor of the single-row upsert.
func upsertSQL(table string, columns []string, keyColumn string) string {
	cols := ""
	vals := ""
	sets := ""
	for i, col := range columns {
		if i > 0 {
			cols += ", "
			vals += ", "
		}
		cols += quote(col)
		vals += "?"
		if col == keyColumn {
			continue
		}
		if sets != "" {
			sets += ", "
		}
		sets += quote(col) + " = excluded." + quote(col)
	}
	action := "DO NOTHING"
	if sets != "" {
		action = "DO UPDATE SET " + sets
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) %s",
		quote(table), cols, vals, quote(keyColumn), action)
}

// bindValue converts coerced values into types database/sql can bind.
// Structured values travel as JSON text; timestamps as RFC 3339 text.
func bindValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64:
		return t, nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal structured value: %w", err)
		}
		return string(b), nil
	}
}

// quote escapes an identifier for SQLite.
func quote(id string) string {
	out := `"`
	for _, r := range id {
		if r == '"' {
			out += `""`
		} else {
			out += string(r)
		}
	}
	return out + `"`
}
