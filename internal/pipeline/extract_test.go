package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"lmsetl/internal/dataset"
	"lmsetl/internal/fault"
)

// TestExtract_Run drives a full extract over a three-user, two-page
// population and checks the published artifact.
func TestExtract_Run(t *testing.T) {
	t.Parallel()

	src := &fakeSource{users: []map[string]any{
		{"id": float64(1), "firstName": "Ann", "customFields": map[string]any{"Team": "Blue"}},
		{"id": float64(2), "firstName": "Bo"},
		{"id": float64(3), "firstName": "Cy"},
	}}
	store := newMemStore()
	pub := &capturePublisher{}

	ex := &Extract{Source: src, Store: store, Notify: pub, Key: "exports/members.csv"}
	sum, err := ex.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Rows != 3 || sum.Pages != 2 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Fingerprint == 0 {
		t.Fatalf("fingerprint not set")
	}
	if len(pub.subjects) != 0 {
		t.Fatalf("success published notifications: %v", pub.subjects)
	}

	raw, ok := store.objects["exports/members.csv"]
	if !ok {
		t.Fatalf("artifact not stored")
	}
	d, err := dataset.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("artifact rows = %d", d.Len())
	}
	if d.Columns[0] != "lms_user_id" || d.Columns[len(d.Columns)-1] != "custom_fields" {
		t.Fatalf("artifact columns = %v", d.Columns)
	}
	if d.Rows[0]["first_name"] != "Ann" {
		t.Fatalf("row 1 = %v", d.Rows[0])
	}
	if !strings.Contains(d.Rows[0]["custom_fields"].(string), `"Team":"Blue"`) {
		t.Fatalf("custom_fields = %v", d.Rows[0]["custom_fields"])
	}
}

// TestExtract_SkipsRecordsWithoutID treats missing identity as degraded:
// the run succeeds, skipped rows are counted, and the artifact holds the
// remainder.
func TestExtract_SkipsRecordsWithoutID(t *testing.T) {
	t.Parallel()

	src := &fakeSource{users: []map[string]any{
		{"id": float64(1), "firstName": "Ok"},
		{"firstName": "NoID"},
	}}
	store := newMemStore()

	ex := &Extract{Source: src, Store: store, Notify: &capturePublisher{}, Key: "k.csv"}
	sum, err := ex.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Rows != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

// TestExtract_AuthFailureNotifies classifies the fault and publishes it.
func TestExtract_AuthFailureNotifies(t *testing.T) {
	t.Parallel()

	src := &fakeSource{authErr: errors.New("status 503")}
	pub := &capturePublisher{}

	ex := &Extract{Source: src, Store: newMemStore(), Notify: pub, Key: "k.csv"}
	_, err := ex.Run(context.Background())
	if !errors.Is(err, &fault.Error{Stage: "extract", Kind: fault.SourceUnavailable}) {
		t.Fatalf("err = %v; want extract source_unavailable", err)
	}
	if len(pub.subjects) != 1 || !strings.Contains(pub.subjects[0], "source_unavailable") {
		t.Fatalf("notifications = %v", pub.subjects)
	}
	if !strings.Contains(pub.bodies[0], "run_id=") {
		t.Fatalf("body = %q", pub.bodies[0])
	}
}

// TestExtract_PutFailureNotifies classifies a failed artifact publish as a
// persistence fault.
func TestExtract_PutFailureNotifies(t *testing.T) {
	t.Parallel()

	src := &fakeSource{users: []map[string]any{{"id": float64(1)}}}
	store := newMemStore()
	store.putErr = errors.New("access denied")
	pub := &capturePublisher{}

	ex := &Extract{Source: src, Store: store, Notify: pub, Key: "k.csv"}
	_, err := ex.Run(context.Background())
	if !errors.Is(err, &fault.Error{Stage: "extract", Kind: fault.Persistence}) {
		t.Fatalf("err = %v; want extract persistence", err)
	}
	if len(pub.subjects) != 1 {
		t.Fatalf("notifications = %v", pub.subjects)
	}
}

// TestExtract_OffsetAdvancesByReturned checks the pagination contract: the
// next offset is the server-reported returnedItems, so every record is
// fetched exactly once.
func TestExtract_OffsetAdvancesByReturned(t *testing.T) {
	t.Parallel()

	users := make([]map[string]any, 5)
	for i := range users {
		users[i] = map[string]any{"id": float64(i + 1)}
	}
	src := &fakeSource{users: users, pageSize: 2}

	ex := &Extract{Source: src, Store: newMemStore(), Notify: &capturePublisher{}, Key: "k.csv"}
	sum, err := ex.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Rows != 5 {
		t.Fatalf("rows = %d; want 5", sum.Rows)
	}
	if sum.Pages != 3 || src.calls != 3 {
		t.Fatalf("pages = %d calls = %d; want 3", sum.Pages, src.calls)
	}
}
