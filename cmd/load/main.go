// Command load runs stage two of the pipeline: it reads the CSV artifact
// from object storage, coerces it against the live tracking-table schema,
// and upserts it into the tracking store.
//
// The artifact key comes from one of three places, in precedence order:
// the -event flag (an object-created event document, as delivered by the
// hosting environment when the artifact lands), the -key flag, or the
// S3_DEPARTMENT_MEMBERS_PATH environment variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lmsetl/internal/coerce"
	"lmsetl/internal/config"
	"lmsetl/internal/metrics"
	"lmsetl/internal/metrics/datadog"
	"lmsetl/internal/metrics/prompush"
	"lmsetl/internal/notify"
	"lmsetl/internal/objstore"
	"lmsetl/internal/pipeline"
	"lmsetl/internal/storage"

	// register all storage backends with the factory.
	_ "lmsetl/internal/storage/all"
)

func main() {
	var (
		eventPath string
		key       string
		policy    string
		validate  bool
	)

	flag.StringVar(&eventPath, "event", "", "path to an object-created event document naming the artifact")
	flag.StringVar(&key, "key", "", "artifact object key (overrides env S3_DEPARTMENT_MEMBERS_PATH)")
	flag.StringVar(&policy, "row-error-policy", "", "skip or abort on per-row coercion failures (overrides env ROW_ERROR_POLICY)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.Parse()

	cfg := config.FromEnv()
	if key != "" {
		cfg.Artifact.Key = key
	}
	if policy != "" {
		cfg.Run.RowErrorPolicy = policy
	}
	if eventPath != "" {
		doc, err := os.ReadFile(eventPath)
		if err != nil {
			fatalf("read event: %v", err)
		}
		ev, err := objstore.ParseObjectCreated(doc)
		if err != nil {
			fatalf("parse event: %v", err)
		}
		cfg.Artifact.Bucket = ev.Bucket
		cfg.Artifact.Key = ev.Key
	}

	issues := config.ValidateLoad(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid (known storage kinds: %v)", storage.ListKinds())
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	initMetrics(cfg.Metrics, "load")
	defer flushMetrics()

	ctx := context.Background()

	store, err := objstore.NewS3Store(ctx, objstore.Config{
		Bucket:    cfg.Artifact.Bucket,
		Region:    cfg.Artifact.Region,
		Endpoint:  cfg.Artifact.Endpoint,
		PathStyle: cfg.Artifact.PathStyle,
	})
	if err != nil {
		fatalf("artifact store: %v", err)
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.Notify.TopicARN != "" {
		p, err := notify.NewSNSPublisher(ctx, cfg.Notify.Region, cfg.Notify.TopicARN)
		if err != nil {
			fatalf("notifier: %v", err)
		}
		publisher = p
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:      cfg.Store.Kind,
		DSN:       cfg.Store.DSN,
		Table:     cfg.Store.Table,
		KeyColumn: cfg.Store.KeyColumn,
	})
	if err != nil {
		fatalf("tracking store: %v", err)
	}
	defer repo.Close()

	ld := &pipeline.Load{
		Store:  store,
		Repo:   repo,
		Notify: publisher,
		Key:    cfg.Artifact.Key,
		Policy: coerce.Policy(cfg.Run.RowErrorPolicy),
	}

	start := time.Now()
	sum, err := ld.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("completed run_id=%s upserted=%d in %s", sum.RunID, sum.Upserted, time.Since(start).Truncate(time.Millisecond))
}

// initMetrics installs the configured metrics backend; misconfiguration
// degrades to nop rather than blocking the run.
func initMetrics(m config.Metrics, job string) {
	switch m.Backend {
	case "pushgateway":
		gwURL := m.PushgatewayURL
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s job=%s", gwURL, job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.StatsdAddr,
			GlobalTags: []string{"service:lms-etl", "job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s job=%s", m.StatsdAddr, job)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
}

func flushMetrics() {
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
