package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records every call for assertions.
type captureBackend struct {
	counters  []string
	labels    []Labels
	deltas    []float64
	durations []float64
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters = append(c.counters, name)
	c.deltas = append(c.deltas, delta)
	c.labels = append(c.labels, labels)
}
func (c *captureBackend) ObserveDuration(name string, value float64, labels Labels) {
	c.durations = append(c.durations, value)
	c.labels = append(c.labels, labels)
}
func (c *captureBackend) Flush() error { return nil }

// TestRecordStage checks the counter/duration pair and the status label.
// Not parallel: tests in this file swap the global backend.
func TestRecordStage(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(nopBackend{})

	RecordStage("load", "upsert", nil, 250*time.Millisecond)
	RecordStage("load", "upsert", errors.New("boom"), time.Second)

	if len(cap.counters) != 2 || cap.counters[0] != "lms_etl_step_total" {
		t.Fatalf("counters = %v", cap.counters)
	}
	if cap.labels[0]["status"] != "success" {
		t.Fatalf("labels[0] = %v", cap.labels[0])
	}
	// Label sets: counter then duration per call.
	if cap.labels[2]["status"] != "failure" || cap.labels[2]["stage"] != "load" {
		t.Fatalf("labels[2] = %v", cap.labels[2])
	}
	if len(cap.durations) != 2 || cap.durations[0] != 0.25 {
		t.Fatalf("durations = %v", cap.durations)
	}
}

// TestRecordRows ignores non-positive deltas.
func TestRecordRows(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(nopBackend{})

	RecordRows("extract", "fetched", 0)
	RecordRows("extract", "fetched", -3)
	RecordRows("extract", "fetched", 42)

	if len(cap.counters) != 1 || cap.deltas[0] != 42 {
		t.Fatalf("counters = %v deltas = %v", cap.counters, cap.deltas)
	}
	if cap.labels[0]["kind"] != "fetched" {
		t.Fatalf("labels = %v", cap.labels[0])
	}
}

// TestSetBackend_Nil keeps the current backend.
func TestSetBackend_Nil(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(nopBackend{})

	SetBackend(nil)
	RecordPages(1)
	if len(cap.counters) != 1 {
		t.Fatalf("nil SetBackend replaced the backend")
	}
}
