// Package postgres implements the tracking-store repository on Postgres
// using pgx v5. Schema introspection reads information_schema live on every
// call; the upsert runs as a single transaction of batched
// INSERT ... ON CONFLICT ... DO UPDATE statements, so a batch either
// applies completely or not at all, and re-running the same batch is a
// no-op beyond refreshing the same values.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lmsetl/internal/fault"
	"lmsetl/internal/schema"
	"lmsetl/internal/storage"
	"lmsetl/pkg/records"
)

// init registers the "postgres" backend with the storage factory, keeping
// callers backend-agnostic.
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config

	schemaName string
	tableName  string
}

// NewRepository opens a connection pool for cfg.DSN. The pool is the one
// connection resource the invocation holds; Close releases it.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("postgres: table is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	sch, tbl := splitTable(cfg.Table)
	return &Repository{pool: pool, cfg: cfg, schemaName: sch, tableName: tbl}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() { r.pool.Close() }

// InspectSchema reads the target table's columns and declared types from
// information_schema in ordinal order. An empty result means the table does
// not exist from this connection's point of view; an unmappable declared
// type means the engine cannot safely coerce that column. Both are
// schema-mismatch faults that must abort before any upsert.
func (r *Repository) InspectSchema(ctx context.Context) (schema.Table, error) {
	const q = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := r.pool.Query(ctx, q, r.schemaName, r.tableName)
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
			fmt.Errorf("table %s has no columns visible to this role", r.cfg.Table))
	}
	return t, nil
}

// Upsert applies the batch in one transaction. Rows are queued as a pgx
// batch of single-row upsert statements sharing one prepared SQL text; the
// first rejected row aborts and rolls back the whole batch, surfacing the
// offending row index and, when the driver reports it, the column.
func (r *Repository) Upsert(ctx context.Context, columns []string, rows []records.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if bad := storage.ValidateKeys(r.cfg.KeyColumn, columns, rows); len(bad) > 0 {
		return 0, fault.NewRows("", fault.RowData, bad)
	}

	sql := upsertSQL(pgFQN(r.cfg.Table), columns, r.cfg.KeyColumn)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	b := &pgx.Batch{}
	for _, rec := range rows {
		args := make([]any, len(columns))
		for j, col := range columns {
			args[j] = rec[col]
		}
		b.Queue(sql, args...)
	}

	br := tx.SendBatch(ctx, b)
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, persistenceFault(i, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("close batch: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fault.New("", fault.Persistence, fmt.Errorf("commit: %w", err))
	}
	return int64(len(rows)), nil
}

// upsertSQL renders the single-row upsert statement:
//
//	INSERT INTO t (cols...) VALUES ($1..$n)
//	ON CONFLICT (key) DO UPDATE SET col = EXCLUDED.col, ...
//
// Every non-key column is overwritten on conflict; when the key is the only
// column the conflict action degrades to DO NOTHING.
func upsertSQL(fqTable string, columns []string, keyColumn string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var sets []string
	for _, col := range columns {
		if col == keyColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		fqTable,
		strings.Join(mapIdent(columns), ", "),
		strings.Join(placeholders, ", "),
		pgIdent(keyColumn),
		action,
	)
}

// persistenceFault converts a driver error on row i into a structured
// persistence fault, lifting the column name out of the PgError when the
// server reported one.
func persistenceFault(i int, err error) *fault.Error {
	re := fault.RowError{Index: i, Reason: err.Error()}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		re.Column = pgErr.ColumnName
		re.Reason = pgErr.Message
		if pgErr.Detail != "" {
			re.Reason += " (" + pgErr.Detail + ")"
		}
	}
	return &fault.Error{Kind: fault.Persistence, Rows: []fault.RowError{re}, Err: err}
}

// splitTable splits an optionally schema-qualified table name, defaulting
// the schema to "public".
func splitTable(table string) (schemaName, tableName string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "public", table
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.members" to
// "public"."members". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
