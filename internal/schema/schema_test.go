package schema

import "testing"

// TestKindOf verifies the SQL type name mapping, including qualifier
// stripping and case-insensitivity.
func TestKindOf(t *testing.T) {
	t.Parallel()

	type tc struct {
		in   string
		want Kind
	}
	cases := []tc{
		{"integer", Integer},
		{"INTEGER", Integer},
		{"bigint", Integer},
		{"smallint", Integer},
		{"serial", Integer},
		{"text", Text},
		{"varchar(255)", Text},
		{"character varying(64)", Text},
		{"boolean", Boolean},
		{"bool", Boolean},
		{"date", Date},
		{"timestamp", Timestamp},
		{"timestamp without time zone", Timestamp},
		{"timestamptz", Timestamp},
		{"datetime", Timestamp},
		{"json", JSON},
		{"jsonb", JSON},
	}
	for _, c := range cases {
		got, err := KindOf(c.in)
		if err != nil {
			t.Fatalf("KindOf(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("KindOf(%q) = %v; want %v", c.in, got, c.want)
		}
	}
}

// TestKindOf_Unknown checks that an unmapped type name is an error, not a
// silent fallback.
func TestKindOf_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := KindOf("geometry"); err == nil {
		t.Fatalf("KindOf(geometry) expected error, got nil")
	}
}

// TestTableKinds verifies the column-to-kind lookup and membership check.
func TestTableKinds(t *testing.T) {
	t.Parallel()

	tbl := Table{
		Name: "department_members",
		Columns: []Column{
			{Name: "lms_user_id", Kind: Integer},
			{Name: "first_name", Kind: Text},
			{Name: "custom_fields", Kind: JSON},
		},
	}

	kinds := tbl.Kinds()
	if len(kinds) != 3 {
		t.Fatalf("Kinds() returned %d entries; want 3", len(kinds))
	}
	if kinds["lms_user_id"] != Integer {
		t.Fatalf("kinds[lms_user_id] = %v; want Integer", kinds["lms_user_id"])
	}
	if !tbl.Has("custom_fields") {
		t.Fatalf("Has(custom_fields) = false; want true")
	}
	if tbl.Has("nope") {
		t.Fatalf("Has(nope) = true; want false")
	}
}
