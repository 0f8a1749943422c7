package storage

import (
	"context"
	"testing"

	"lmsetl/internal/schema"
	"lmsetl/pkg/records"
)

type fakeRepo struct{}

func (fakeRepo) InspectSchema(ctx context.Context) (schema.Table, error) {
	return schema.Table{}, nil
}
func (fakeRepo) Upsert(ctx context.Context, columns []string, rows []records.Record) (int64, error) {
	return 0, nil
}
func (fakeRepo) Close() {}

// TestRegistry covers Register/New/ListKinds, including the unknown-kind
// error path.
func TestRegistry(t *testing.T) {
	t.Parallel()

	Register("fake-test", func(ctx context.Context, cfg Config) (Repository, error) {
		return fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-test"})
	if err != nil {
		t.Fatalf("New(fake-test): %v", err)
	}
	repo.Close()

	if _, err := New(context.Background(), Config{Kind: "no-such"}); err == nil {
		t.Fatalf("New(no-such) expected error")
	}

	found := false
	for _, k := range ListKinds() {
		if k == "fake-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListKinds() = %v; missing fake-test", ListKinds())
	}
}

// TestValidateKeys covers the key invariants: key column present, non-null
// per row, unique within the batch.
func TestValidateKeys(t *testing.T) {
	t.Parallel()

	cols := []string{"lms_user_id", "first_name"}

	if bad := ValidateKeys("lms_user_id", cols, []records.Record{
		{"lms_user_id": int64(1), "first_name": "Ann"},
		{"lms_user_id": int64(2), "first_name": "Bo"},
	}); len(bad) != 0 {
		t.Fatalf("valid batch flagged: %v", bad)
	}

	bad := ValidateKeys("lms_user_id", []string{"first_name"}, nil)
	if len(bad) != 1 || bad[0].Index != -1 {
		t.Fatalf("missing key column: %v", bad)
	}

	bad = ValidateKeys("lms_user_id", cols, []records.Record{
		{"lms_user_id": nil, "first_name": "NoKey"},
		{"lms_user_id": "", "first_name": "EmptyKey"},
	})
	if len(bad) != 2 {
		t.Fatalf("null keys: %v", bad)
	}

	bad = ValidateKeys("lms_user_id", cols, []records.Record{
		{"lms_user_id": int64(7)},
		{"lms_user_id": int64(7)},
	})
	if len(bad) != 1 || bad[0].Index != 1 {
		t.Fatalf("duplicate keys: %v", bad)
	}
}
