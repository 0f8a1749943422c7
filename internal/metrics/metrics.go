// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from both pipeline stages.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and
//     timing data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the storage abstraction pattern used elsewhere in the
//     project (storage.Repository): the pipeline depends only on this
//     interface while concrete metric systems live in subpackages.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a value in a latency/duration style metric.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it
	// (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics stay optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                              { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures one pipeline stage: latency plus success/failure.
// Stage is "extract" or "load"; step names the phase within it
// ("fetch", "flatten", "publish", "coerce", "upsert", ...).
func RecordStage(stage, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"stage":  stage,
		"step":   step,
		"status": status,
	}

	backend.IncCounter("lms_etl_step_total", 1, lbls)
	backend.ObserveDuration("lms_etl_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given stage and kind.
//
// Typical kinds mirror the run summary fields, e.g.:
//   - "fetched"
//   - "flattened"
//   - "skipped"
//   - "upserted"
func RecordRows(stage, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("lms_etl_rows_total", float64(delta), Labels{
		"stage": stage,
		"kind":  kind,
	})
}

// RecordPages increments the API page counter for the extract stage.
func RecordPages(delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("lms_etl_pages_total", float64(delta), Labels{
		"stage": "extract",
	})
}
