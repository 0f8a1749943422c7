// Command extract runs stage one of the pipeline: it pulls the full user
// population from the LMS API, flattens it, and publishes the CSV artifact
// to object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lmsetl/internal/config"
	"lmsetl/internal/datasource/httpds"
	"lmsetl/internal/lms"
	"lmsetl/internal/metrics"
	"lmsetl/internal/metrics/datadog"
	"lmsetl/internal/metrics/prompush"
	"lmsetl/internal/notify"
	"lmsetl/internal/objstore"
	"lmsetl/internal/pipeline"
)

func main() {
	var (
		departmentID string
		key          string
		stamp        bool
		validate     bool
	)

	flag.StringVar(&departmentID, "department", "", "department guid to scope the extract (overrides env LMS_DEPARTMENT_ID)")
	flag.StringVar(&key, "key", "", "artifact object key (overrides env S3_DEPARTMENT_MEMBERS_PATH)")
	flag.BoolVar(&stamp, "stamp", false, "append a UTC timestamp to the artifact key")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.Parse()

	cfg := config.FromEnv()
	if departmentID != "" {
		cfg.LMS.DepartmentID = departmentID
	}
	if key != "" {
		cfg.Artifact.Key = key
	}

	issues := config.ValidateExtract(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	initMetrics(cfg.Metrics, "extract")
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

	transport := httpds.NewClient(httpds.Config{Timeout: cfg.Run.HTTPTimeout})
	client := lms.NewClient(lms.Config{
		BaseURL:    cfg.LMS.BaseURL,
		Username:   cfg.LMS.Username,
		Password:   cfg.LMS.Password,
		PrivateKey: cfg.LMS.PrivateKey,
	}, transport)

	artifactKey := cfg.Artifact.Key
	if stamp {
		artifactKey = cfg.Artifact.Stamped(time.Now().UTC().Format("20060102T150405Z"))
	}

	ex := &pipeline.Extract{
		Source:       client,
		Store:        store,
		Notify:       publisher,
		DepartmentID: cfg.LMS.DepartmentID,
		PageSize:     cfg.LMS.PageSize,
		Key:          artifactKey,
	}

	start := time.Now()
	sum, err := ex.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("completed run_id=%s rows=%d in %s", sum.RunID, sum.Rows, time.Since(start).Truncate(time.Millisecond))
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
