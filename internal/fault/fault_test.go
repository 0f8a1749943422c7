package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorFormatting checks the rendered message for the common shapes:
// stage + kind, row detail, and wrapped root cause.
func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	e := New("extract", SourceUnavailable, fmt.Errorf("status 503"))
	if got := e.Error(); got != "extract: source_unavailable: status 503" {
		t.Fatalf("Error() = %q", got)
	}

	re := NewRows("load", RowData, []RowError{
		{Index: 4, Column: "date_hired", Reason: `"nope" matches no accepted date layout`},
		{Index: 9, Column: "lms_user_id", Reason: "null key"},
	})
	msg := re.Error()
	if !strings.Contains(msg, "(2 rows affected)") {
		t.Fatalf("Error() = %q; want row count", msg)
	}
	if !strings.Contains(msg, `row 4 column "date_hired"`) {
		t.Fatalf("Error() = %q; want first row detail", msg)
	}
}

// TestIs verifies kind-based matching with and without a stage on the
// target.
func TestIs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", New("load", Persistence, errors.New("deadlock")))

	if !errors.Is(err, &Error{Kind: Persistence}) {
		t.Fatalf("errors.Is should match on kind alone")
	}
	if !errors.Is(err, &Error{Stage: "load", Kind: Persistence}) {
		t.Fatalf("errors.Is should match on stage+kind")
	}
	if errors.Is(err, &Error{Stage: "extract", Kind: Persistence}) {
		t.Fatalf("errors.Is must not match a different stage")
	}
	if errors.Is(err, &Error{Kind: RowData}) {
		t.Fatalf("errors.Is must not match a different kind")
	}
}

// TestWithStage covers both paths: stamping a stage onto a stage-less
// fault, and wrapping a plain error into a new fault.
func TestWithStage(t *testing.T) {
	t.Parallel()

	inner := NewRows("", RowData, []RowError{{Index: 0, Reason: "dup"}})
	out := WithStage("load", Persistence, inner)
	if out.Stage != "load" || out.Kind != RowData {
		t.Fatalf("WithStage stamped stage=%q kind=%q; want load/row_data", out.Stage, out.Kind)
	}

	plain := errors.New("connection refused")
	out = WithStage("load", Persistence, plain)
	if out.Kind != Persistence || !errors.Is(out, plain) {
		t.Fatalf("WithStage(plain) = %+v; want persistence fault wrapping cause", out)
	}

	// A fault that already has a stage keeps it.
	stamped := New("extract", SourceUnavailable, nil)
	out = WithStage("load", Persistence, stamped)
	if out.Stage != "extract" {
		t.Fatalf("WithStage overwrote stage: %q", out.Stage)
	}
}

// TestKindOfAndRowCount checks the inspection helpers on fault and
// non-fault errors.
func TestKindOfAndRowCount(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain) = %q; want empty", got)
	}
	err := NewRows("load", RowData, make([]RowError, 3))
	if got := KindOf(err); got != RowData {
		t.Fatalf("KindOf = %q; want row_data", got)
	}
	if got := RowCount(err); got != 3 {
		t.Fatalf("RowCount = %d; want 3", got)
	}
	if got := RowCount(errors.New("plain")); got != 0 {
		t.Fatalf("RowCount(plain) = %d; want 0", got)
	}
}
