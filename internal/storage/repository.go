// Package storage contains the storage-agnostic contract for the tracking
// store and a small registry that lets backends self-register at init time.
// Callers (the load driver, tests) depend only on the Repository interface
// and obtain a concrete backend via New, keyed by Config.Kind.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lmsetl/internal/schema"
	"lmsetl/pkg/records"
)

// Repository is the tracking-store collaborator used by stage two.
//
// InspectSchema reads the live column/type layout of the configured target
// table; it is called fresh on every invocation so schema changes propagate
// without a code change.
//
// Upsert persists the rows in a single atomic batch: new keys are inserted,
// existing keys have all non-key columns overwritten. Implementations must
// be idempotent per call and roll the whole batch back on any failure.
type Repository interface {
	InspectSchema(ctx context.Context) (schema.Table, error)
	Upsert(ctx context.Context, columns []string, rows []records.Record) (int64, error)
	Close()
}

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the backend implementation (e.g. "postgres", "sqlite").
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Table is the target table, optionally schema-qualified
	// (e.g. "public.department_members").
	Table string

	// KeyColumn is the unique upsert key (e.g. "lms_user_id").
	KeyColumn string
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind. It is
// typically called from backend packages' init functions; tests may
// re-register a kind to inject fakes.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository for cfg.Kind. Unknown kinds are an error so that
// a misconfigured run fails fast instead of silently doing nothing.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
