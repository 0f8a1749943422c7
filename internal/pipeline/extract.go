package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"lmsetl/internal/dataset"
	"lmsetl/internal/fault"
	"lmsetl/internal/flatten"
	"lmsetl/internal/lms"
	"lmsetl/internal/metrics"
	"lmsetl/internal/notify"
	"lmsetl/internal/objstore"
)

// UserSource is the slice of the LMS client the extract driver needs.
type UserSource interface {
	Authenticate(ctx context.Context) (string, error)
	Users(ctx context.Context, token, departmentID string, offset, limit int) (*lms.Page, error)
}

// maxPages caps the pagination loop so a server that keeps returning rows
// without advancing cannot spin the job forever.
const maxPages = 10_000

// Extract is the stage-one driver: fetch every user page, flatten, and
// publish the CSV artifact.
type Extract struct {
	Source UserSource
	Store  objstore.Store
	Notify notify.Publisher

	// DepartmentID optionally scopes the listing; empty fetches all users.
	DepartmentID string

	// PageSize caps the per-request listing; 0 uses the API default.
	PageSize int

	// Key is the artifact object key to publish under.
	Key string
}

// ExtractSummary reports one completed extract run.
type ExtractSummary struct {
	RunID       string
	Pages       int
	Fetched     int    // raw records received from the API
	Rows        int    // rows written to the artifact
	Skipped     int    // records dropped for a missing identity field
	Key         string // artifact object key
	Fingerprint uint64 // artifact content hash
}

// Run executes one extract. On error the failure has already been
// published to the notification topic; the summary is still returned with
// whatever counters were reached.
func (e *Extract) Run(ctx context.Context) (ExtractSummary, error) {
	sum := ExtractSummary{RunID: newRunID(), Key: e.Key}
	log.Printf("stage=extract run_id=%s department_id=%q key=%s", sum.RunID, e.DepartmentID, e.Key)

	err := e.run(ctx, &sum)
	if err != nil {
		err = fault.WithStage("extract", fault.SourceUnavailable, err)
		notifyFailure(ctx, e.Notify, sum.RunID, err)
	}
	return sum, err
}

func (e *Extract) run(ctx context.Context, sum *ExtractSummary) error {
	start := time.Now()
	token, err := e.Source.Authenticate(ctx)
	step("extract", "authenticate", sum.RunID, start, err)
	if err != nil {
		return fault.New("extract", fault.SourceUnavailable, err)
	}

	start = time.Now()
	raw, pages, err := e.fetchAll(ctx, token)
	step("extract", "fetch", sum.RunID, start, err)
	sum.Pages = pages
	sum.Fetched = len(raw)
	metrics.RecordPages(int64(pages))
	metrics.RecordRows("extract", "fetched", int64(len(raw)))
	if err != nil {
		return fault.New("extract", fault.SourceUnavailable, err)
	}

	start = time.Now()
	d, ferr := flatten.Flatten(raw)
	step("extract", "flatten", sum.RunID, start, nil)
	if ferr != nil {
		// Missing-identity rows are degraded, not fatal: log, count, and
		// continue with the usable remainder.
		sum.Skipped = fault.RowCount(ferr)
		metrics.RecordRows("extract", "skipped", int64(sum.Skipped))
		log.Printf("stage=extract run_id=%s skipped=%d reason=%v", sum.RunID, sum.Skipped, ferr)
	}
	sum.Rows = d.Len()
	metrics.RecordRows("extract", "flattened", int64(d.Len()))

	artifact, err := d.MarshalCSV()
	if err != nil {
		return fault.New("extract", fault.RowData, err)
	}
	sum.Fingerprint = dataset.Fingerprint(artifact)

	start = time.Now()
	err = e.Store.Put(ctx, e.Key, artifact)
	step("extract", "publish", sum.RunID, start, err)
	if err != nil {
		return fault.New("extract", fault.Persistence, err)
	}

	log.Printf("stage=extract run_id=%s rows=%d pages=%d skipped=%d fingerprint=%016x key=%s",
		sum.RunID, sum.Rows, sum.Pages, sum.Skipped, sum.Fingerprint, e.Key)
	return nil
}

// fetchAll walks the paged listing until the reported total is reached.
// The next offset is advanced by the server-reported returnedItems, not the
// requested limit, so a short page cannot skip records.
func (e *Extract) fetchAll(ctx context.Context, token string) ([]map[string]any, int, error) {
	var (
		raw    []map[string]any
		offset int
		pages  int
	)
	for pages < maxPages {
		p, err := e.Source.Users(ctx, token, e.DepartmentID, offset, e.PageSize)
		if err != nil {
			return raw, pages, err
		}
		pages++
		raw = append(raw, p.Users...)

		if p.ReturnedItems <= 0 {
			break
		}
		offset += p.ReturnedItems
		// Stop at the reported total; a server that reports none keeps
		// paging until an empty page.
		if p.TotalItems > 0 && offset >= p.TotalItems {
			break
		}
	}
	if pages >= maxPages {
		return raw, pages, fmt.Errorf("pagination did not terminate after %d pages", maxPages)
	}
	return raw, pages, nil
}
