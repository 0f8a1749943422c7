package pipeline

import (
	"bytes"
	"context"
	"log"
	"time"

	"lmsetl/internal/coerce"
	"lmsetl/internal/dataset"
	"lmsetl/internal/fault"
	"lmsetl/internal/metrics"
	"lmsetl/internal/notify"
	"lmsetl/internal/objstore"
	"lmsetl/internal/storage"
)

// Load is the stage-two driver: read the CSV artifact, coerce it against
// the live target schema, and upsert it into the tracking store.
type Load struct {
	Store  objstore.Store
	Repo   storage.Repository
	Notify notify.Publisher

	// Key is the artifact object key to consume.
	Key string

	// Policy selects the behavior on per-row coercion failures;
	// empty defaults to coerce.PolicySkip.
	Policy coerce.Policy
}

// LoadSummary reports one completed load run.
type LoadSummary struct {
	RunID       string
	Rows        int    // rows read from the artifact
	Skipped     int    // rows dropped by the coercion policy
	Upserted    int64  // rows the store reports affected
	Key         string // artifact object key
	Fingerprint uint64 // artifact content hash
}

// Run executes one load. On error the failure has already been published
// to the notification topic.
func (l *Load) Run(ctx context.Context) (LoadSummary, error) {
	sum := LoadSummary{RunID: newRunID(), Key: l.Key}
	log.Printf("stage=load run_id=%s key=%s", sum.RunID, l.Key)

	err := l.run(ctx, &sum)
	if err != nil {
		err = fault.WithStage("load", fault.Persistence, err)
		notifyFailure(ctx, l.Notify, sum.RunID, err)
	}
	return sum, err
}

func (l *Load) run(ctx context.Context, sum *LoadSummary) error {
	start := time.Now()
	artifact, err := l.Store.Get(ctx, l.Key)
	step("load", "fetch", sum.RunID, start, err)
	if err != nil {
		return fault.New("load", fault.ArtifactUnreadable, err)
	}
	sum.Fingerprint = dataset.Fingerprint(artifact)

	d, err := dataset.ReadCSV(bytes.NewReader(artifact))
	if err != nil {
		return fault.New("load", fault.ArtifactUnreadable, err)
	}
	sum.Rows = d.Len()
	metrics.RecordRows("load", "fetched", int64(d.Len()))

	start = time.Now()
	table, err := l.Repo.InspectSchema(ctx)
	step("load", "inspect", sum.RunID, start, err)
	if err != nil {
		return fault.WithStage("load", fault.SchemaMismatch, err)
	}

	start = time.Now()
	skipped, err := coerce.Apply(d, table, l.Policy)
	step("load", "coerce", sum.RunID, start, err)
	if err != nil {
		return err
	}
	if n := len(skipped); n > 0 {
		sum.Skipped = n
		metrics.RecordRows("load", "skipped", int64(n))
		log.Printf("stage=load run_id=%s skipped=%d first=%v", sum.RunID, n, skipped[0])
	}

	start = time.Now()
	affected, err := l.Repo.Upsert(ctx, d.Columns, d.Rows)
	step("load", "upsert", sum.RunID, start, err)
	if err != nil {
		return fault.WithStage("load", fault.Persistence, err)
	}
	sum.Upserted = affected
	metrics.RecordRows("load", "upserted", affected)

	log.Printf("stage=load run_id=%s rows=%d skipped=%d upserted=%d fingerprint=%016x key=%s",
		sum.RunID, sum.Rows, sum.Skipped, sum.Upserted, sum.Fingerprint, l.Key)
	return nil
}
