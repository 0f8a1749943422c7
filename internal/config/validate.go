// Static validation for Config values. Checks are per stage because each
// binary only needs its own slice of the environment: the extract stage
// never requires a database DSN and the load stage never requires LMS
// credentials.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "store.dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where needed.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateExtract checks the settings stage one needs.
func ValidateExtract(c Config) []Issue {
	var issues []Issue
	issues = append(issues, required(c.LMS.BaseURL, "lms.base_url", "REST_API_URL must be set")...)
	issues = append(issues, required(c.LMS.Username, "lms.username", "LMS_USERNAME must be set")...)
	issues = append(issues, required(c.LMS.Password, "lms.password", "LMS_PASSWORD must be set")...)
	issues = append(issues, required(c.LMS.PrivateKey, "lms.private_key", "LMS_PRIVATE_KEY must be set")...)
	issues = append(issues, validateArtifact(c.Artifact)...)
	issues = append(issues, validateNotify(c.Notify)...)
	if c.LMS.DepartmentID == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "lms.department_id",
			Message:  "no department filter set; the full user population will be extracted",
		})
	}
	return issues
}

// ValidateLoad checks the settings stage two needs.
func ValidateLoad(c Config) []Issue {
	var issues []Issue
	issues = append(issues, validateArtifact(c.Artifact)...)
	issues = append(issues, validateNotify(c.Notify)...)
	issues = append(issues, required(c.Store.Kind, "store.kind", "TRACKING_STORE_KIND must not be empty")...)
	issues = append(issues, required(c.Store.DSN, "store.dsn", "TRACKING_DSN must be set")...)
	issues = append(issues, required(c.Store.Table, "store.table", "TRACKING_TABLE must not be empty")...)
	issues = append(issues, required(c.Store.KeyColumn, "store.key_column", "TRACKING_KEY_COLUMN must not be empty")...)

	switch c.Run.RowErrorPolicy {
	case "", "skip", "abort":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "run.row_error_policy",
			Message:  fmt.Sprintf("unknown policy %q; use skip or abort", c.Run.RowErrorPolicy),
		})
	}
	return issues
}

func validateArtifact(a Artifact) []Issue {
	var issues []Issue
	issues = append(issues, required(a.Bucket, "artifact.bucket", "S3_BUCKET_NAME must be set")...)
	issues = append(issues, required(a.Key, "artifact.key", "S3_DEPARTMENT_MEMBERS_PATH must be set")...)
	return issues
}

func validateNotify(n Notify) []Issue {
	if n.TopicARN == "" {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "notify.topic_arn",
			Message:  "SNS_TOPIC_ARN not set; failure notifications are disabled",
		}}
	}
	return nil
}

func required(v, path, msg string) []Issue {
	if strings.TrimSpace(v) == "" {
		return []Issue{{Severity: SeverityError, Path: path, Message: msg}}
	}
	return nil
}
