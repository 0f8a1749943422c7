// Package notify implements the failure-notification collaborator. It
// mirrors the metrics backend pattern: a narrow Publisher interface, a nop
// default so publishing is always safe to call, and concrete backends kept
// in their own files so the pipeline depends only on the abstraction.
package notify

import (
	"context"
	"fmt"

	"lmsetl/internal/fault"
)

// Publisher delivers failure alerts to the notification topic.
type Publisher interface {
	Publish(ctx context.Context, subject, message string) error
}

// Nop discards notifications. It is the default for local runs and tests.
type Nop struct{}

// Publish implements Publisher by doing nothing.
func (Nop) Publish(ctx context.Context, subject, message string) error { return nil }

// Message renders the structured failure body published on any
// unrecoverable error: stage name, error kind, count of affected rows, and
// root cause, prefixed with the run id so alerts correlate with logs.
func Message(runID string, err error) (subject, body string) {
	kind := fault.KindOf(err)
	if kind == "" {
		kind = "internal"
	}
	subject = fmt.Sprintf("lms-etl failure: %s", kind)
	body = fmt.Sprintf("run_id=%s kind=%s affected_rows=%d error=%v",
		runID, kind, fault.RowCount(err), err)
	return subject, body
}
