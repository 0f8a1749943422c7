// Package config collects all environment-derived settings for both
// pipeline stages into one explicit value.
//
// Design goals:
//
//  1. Components never read process-wide state; they receive the piece of
//     configuration they need and stay testable in isolation.
//  2. The full environment is read exactly once, at startup, by FromEnv.
//  3. Validation is separated from loading (validate.go) so a CLI can lint
//     a deployment without contacting any external service.
package config

import (
	"os"
	"time"
)

// Config is the complete configuration for one pipeline invocation. Stage
// one uses LMS + Artifact + Notify; stage two uses Artifact + Store +
// Notify. Both read Run.
type Config struct {
	Run      Run
	LMS      LMS
	Artifact Artifact
	Store    Store
	Notify   Notify
	Metrics  Metrics
}

// Run holds invocation-level knobs shared by both stages.
type Run struct {
	// HTTPTimeout bounds every outbound LMS request.
	HTTPTimeout time.Duration

	// RowErrorPolicy selects the batch behavior on per-row coercion
	// failures: "skip" (default) or "abort".
	RowErrorPolicy string
}

// LMS carries the source API settings (stage one).
type LMS struct {
	BaseURL      string
	Username     string
	Password     string
	PrivateKey   string
	DepartmentID string

	// PageSize caps the per-request user listing; 0 uses the API default.
	PageSize int
}

// Artifact locates the CSV artifact in object storage.
type Artifact struct {
	Bucket string
	Region string

	// Key is the full object key of the artifact, e.g.
	// "exports/department_members.csv". A timestamped variant can be
	// produced with Stamped.
	Key string

	// Endpoint/PathStyle support S3-compatible stores in development.
	Endpoint  string
	PathStyle bool
}

// Stamped derives a run-scoped artifact key by inserting the timestamp
// before the extension, e.g. "exports/members-20240131T120000Z.csv".
// With stamp empty the deterministic fixed key is returned unchanged.
func (a Artifact) Stamped(stamp string) string {
	if stamp == "" {
		return a.Key
	}
	ext := ""
	base := a.Key
	if i := len(a.Key) - len(".csv"); i > 0 && a.Key[i:] == ".csv" {
		base, ext = a.Key[:i], ".csv"
	}
	return base + "-" + stamp + ext
}

// Store carries the tracking-store settings (stage two).
type Store struct {
	// Kind selects the storage backend; "postgres" in deployment.
	Kind string

	DSN string

	// Table is the target table, optionally schema-qualified.
	Table string

	// KeyColumn is the unique upsert key.
	KeyColumn string
}

// Notify carries the failure-notification settings.
type Notify struct {
	// TopicARN of the alert topic; empty disables publishing (nop).
	TopicARN string
	Region   string
}

// Metrics selects the metrics backend wired in the cmd layer.
type Metrics struct {
	// Backend: "pushgateway", "datadog", or "none".
	Backend string

	// PushgatewayURL is the Prometheus Pushgateway base URL.
	PushgatewayURL string

	// StatsdAddr is the DogStatsD address for the datadog backend.
	StatsdAddr string
}

// FromEnv reads the full configuration from the process environment.
// Missing optional values fall back to usable defaults; required values
// are enforced by Validate, not here.
func FromEnv() Config {
	return Config{
		Run: Run{
			HTTPTimeout:    durationEnv("HTTP_TIMEOUT", 30*time.Second),
			RowErrorPolicy: envOr("ROW_ERROR_POLICY", "skip"),
		},
		LMS: LMS{
			BaseURL:      os.Getenv("REST_API_URL"),
			Username:     os.Getenv("LMS_USERNAME"),
			Password:     os.Getenv("LMS_PASSWORD"),
			PrivateKey:   os.Getenv("LMS_PRIVATE_KEY"),
			DepartmentID: os.Getenv("LMS_DEPARTMENT_ID"),
			PageSize:     intEnv("LMS_PAGE_SIZE", 0),
		},
		Artifact: Artifact{
			Bucket:    os.Getenv("S3_BUCKET_NAME"),
			Region:    envOr("AWS_REGION", "us-east-1"),
			Key:       os.Getenv("S3_DEPARTMENT_MEMBERS_PATH"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			PathStyle: os.Getenv("S3_PATH_STYLE") == "true",
		},
		Store: Store{
			Kind:      envOr("TRACKING_STORE_KIND", "postgres"),
			DSN:       os.Getenv("TRACKING_DSN"),
			Table:     envOr("TRACKING_TABLE", "public.department_members"),
			KeyColumn: envOr("TRACKING_KEY_COLUMN", "lms_user_id"),
		},
		Notify: Notify{
			TopicARN: os.Getenv("SNS_TOPIC_ARN"),
			Region:   envOr("AWS_REGION", "us-east-1"),
		},
		Metrics: Metrics{
			Backend:        envOr("METRICS_BACKEND", "none"),
			PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
			StatsdAddr:     os.Getenv("DD_DOGSTATSD_ADDR"),
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
