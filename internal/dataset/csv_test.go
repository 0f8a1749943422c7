package dataset

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"lmsetl/pkg/records"
)

// TestWriteReadCSV round-trips a dataset through the artifact wire format
// and checks that readers always see raw strings.
func TestWriteReadCSV(t *testing.T) {
	t.Parallel()

	d := New([]string{"lms_user_id", "first_name", "active_status", "custom_fields"})
	d.Append(records.Record{
		"lms_user_id":   int64(7),
		"first_name":    "Ann",
		"active_status": true,
		"custom_fields": map[string]any{"Shirt Size": "M"},
	})
	d.Append(records.Record{
		"lms_user_id":   int64(8),
		"first_name":    nil,
		"active_status": false,
		"custom_fields": map[string]any{},
	})

	raw, err := d.MarshalCSV()
	if err != nil {
		t.Fatalf("MarshalCSV: %v", err)
	}

	got, err := ReadCSV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got.Columns) != 4 || got.Columns[0] != "lms_user_id" {
		t.Fatalf("columns = %v", got.Columns)
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %d; want 2", got.Len())
	}
	if got.Rows[0]["lms_user_id"] != "7" {
		t.Fatalf("lms_user_id = %v; want string \"7\"", got.Rows[0]["lms_user_id"])
	}
	if got.Rows[0]["active_status"] != "true" {
		t.Fatalf("active_status = %v", got.Rows[0]["active_status"])
	}
	// Structured values travel as JSON text inside the field.
	if got.Rows[0]["custom_fields"] != `{"Shirt Size":"M"}` {
		t.Fatalf("custom_fields = %v", got.Rows[0]["custom_fields"])
	}
	// nil serializes as the empty field and reads back as "".
	if got.Rows[1]["first_name"] != "" {
		t.Fatalf("first_name = %q; want empty", got.Rows[1]["first_name"])
	}
}

// TestFieldString covers the scalar rendering rules, including the UTC
// normalization of time values.
func TestFieldString(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 31, 12, 0, 0, 0, time.FixedZone("X", 3600))
	type tc struct {
		in   any
		want string
	}
	cases := []tc{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{int64(42), "42"},
		{3.5, "3.5"},
		{ts, "2024-01-31T11:00:00Z"},
		{[]any{"a", "b"}, `["a","b"]`},
	}
	for _, c := range cases {
		got, err := fieldString(c.in)
		if err != nil {
			t.Fatalf("fieldString(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("fieldString(%v) = %q; want %q", c.in, got, c.want)
		}
	}
}

// TestReadCSV_BOM checks that a byte-order mark on the first header cell is
// stripped.
func TestReadCSV_BOM(t *testing.T) {
	t.Parallel()

	raw := "\uFEFF" + "lms_user_id,first_name\n7,Ann\n"
	d, err := ReadCSV(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if d.Columns[0] != "lms_user_id" {
		t.Fatalf("first column = %q; BOM not stripped", d.Columns[0])
	}
}

// TestReadCSV_RaggedRow checks that a row narrower than the header is an
// artifact error rather than silent misalignment.
func TestReadCSV_RaggedRow(t *testing.T) {
	t.Parallel()

	raw := "a,b,c\n1,2\n"
	if _, err := ReadCSV(strings.NewReader(raw)); err == nil {
		t.Fatalf("ReadCSV accepted a ragged row")
	}
}

// TestFingerprint checks that the hash is content-addressed: equal bytes
// hash equal, different bytes differ.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := []byte("lms_user_id\n7\n")
	if Fingerprint(a) != Fingerprint([]byte("lms_user_id\n7\n")) {
		t.Fatalf("equal artifacts produced different fingerprints")
	}
	if Fingerprint(a) == Fingerprint([]byte("lms_user_id\n8\n")) {
		t.Fatalf("different artifacts produced equal fingerprints")
	}
}

// TestDropColumn verifies removal from both the column set and the rows.
func TestDropColumn(t *testing.T) {
	t.Parallel()

	d := New([]string{"a", "b"})
	d.Append(records.Record{"a": "1", "b": "2"})
	d.DropColumn("b")

	if d.HasColumn("b") {
		t.Fatalf("column b still declared")
	}
	if _, ok := d.Rows[0]["b"]; ok {
		t.Fatalf("column b still present on row")
	}
}
