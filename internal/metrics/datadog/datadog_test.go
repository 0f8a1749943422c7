package datadog

import (
	"testing"

	"lmsetl/internal/metrics"
)

// TestNewBackend builds a client with namespace and global tags through
// the v5 option API and exercises the Backend surface. DogStatsD is UDP,
// so no agent needs to be listening.
func TestNewBackend(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:8125",
		Namespace:  "lms_etl.",
		GlobalTags: []string{"env:test", "service:lms-etl"},
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("lms_etl_rows_total", 3, metrics.Labels{"stage": "load", "kind": "upserted"})
	b.ObserveDuration("lms_etl_step_duration_seconds", 0.25, metrics.Labels{"stage": "load", "step": "upsert"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// TestNewBackend_RequiresAddr rejects an empty address.
func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend(empty addr) expected error")
	}
}

// TestLabelsToTags checks the label-to-tag conversion.
func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v", got)
	}
	tags := labelsToTags(metrics.Labels{"stage": "extract"})
	if len(tags) != 1 || tags[0] != "stage:extract" {
		t.Fatalf("tags = %v", tags)
	}
}
