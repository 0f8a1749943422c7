// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Both pipeline stages run as short-lived batch jobs, so a scrape endpoint
// never stays up long enough to be useful; metrics are pushed to a
// Pushgateway at the end of each run instead. All Prometheus-specific
// dependencies live here so the rest of the project stays decoupled from
// the metric system.
package prompush

import (
	"fmt"

	"lmsetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group, "extract" or "load"
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // "lms_etl_step_total"
	stepDuration *prometheus.SummaryVec // "lms_etl_step_duration_seconds"
	rowCounter   *prometheus.CounterVec // "lms_etl_rows_total"
	pageCounter  prometheus.Counter     // "lms_etl_pages_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName becomes the Pushgateway "job" grouping key, normally the stage
// name. gatewayURL is the base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lms-etl"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_etl_step_total",
			Help: "Total number of pipeline step executions, partitioned by stage, step, and status.",
		},
		[]string{"stage", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "lms_etl_step_duration_seconds",
			Help:       "Duration of pipeline steps in seconds, partitioned by stage, step, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_etl_rows_total",
			Help: "Row-level counts per stage and kind (fetched, flattened, skipped, upserted).",
		},
		[]string{"stage", "kind"},
	)
	pageCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_etl_pages_total",
			Help: "Total number of source API pages fetched by the extract stage.",
		},
	)

	if err := reg.Register(stepCounter); err != nil {
		return nil, fmt.Errorf("prompush: register step counter: %w", err)
	}
	if err := reg.Register(stepDuration); err != nil {
		return nil, fmt.Errorf("prompush: register step summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(pageCounter); err != nil {
		return nil, fmt.Errorf("prompush: register page counter: %w", err)
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowCounter:   rowCounter,
		pageCounter:  pageCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "lms_etl_step_total":
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["stage"], labels["step"], labels["status"]).Add(delta)

	case "lms_etl_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["stage"], labels["kind"]).Add(delta)

	case "lms_etl_pages_total":
		if b.pageCounter == nil {
			return
		}
		b.pageCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	if name != "lms_etl_step_duration_seconds" || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["stage"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
