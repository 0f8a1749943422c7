// Package pipeline contains the two stage drivers. Each driver owns the
// orchestration of one batch run: sequencing the collaborators, stamping
// stage names onto faults, metering each step, and publishing a
// notification when the run dies.
//
// Design goals:
//
//  1. Drivers hold interfaces, not concrete clients, so tests run against
//     in-memory fakes with no network or database.
//  2. A run is single-flight and sequential. Page fetches, flattening, and
//     the upsert batch each depend on the previous step's complete output,
//     so there is nothing to parallelize inside one run.
//  3. Every exit path with an error has already notified; callers only log
//     and set the exit code.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"lmsetl/internal/metrics"
	"lmsetl/internal/notify"
)

// step meters one driver phase and logs its completion.
func step(stage, name, runID string, start time.Time, err error) {
	d := time.Since(start)
	metrics.RecordStage(stage, name, err, d)
	if err != nil {
		log.Printf("stage=%s step=%s run_id=%s duration=%s error=%v", stage, name, runID, d.Truncate(time.Millisecond), err)
		return
	}
	log.Printf("stage=%s step=%s run_id=%s duration=%s", stage, name, runID, d.Truncate(time.Millisecond))
}

// notifyFailure publishes the structured failure message. Publishing is
// best-effort: a broken notifier must not mask the original fault.
func notifyFailure(ctx context.Context, p notify.Publisher, runID string, err error) {
	if p == nil {
		p = notify.Nop{}
	}
	subject, body := notify.Message(runID, err)
	if perr := p.Publish(ctx, subject, body); perr != nil {
		log.Printf("notify: publish failed: %v (original error: %v)", perr, err)
	}
}

// newRunID returns the correlation id stamped on every log line, metric
// flush, and notification of one run.
func newRunID() string { return uuid.NewString() }
