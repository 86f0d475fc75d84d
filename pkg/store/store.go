// Package store defines the persistence interface for validation runs, job
// outcomes and metrics.
package store

import (
	"io"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Job statuses recorded per (run, country, scenario).
const (
	JobSubmitted        = "submitted"
	JobSuccess          = "success"
	JobFailed           = "failed"
	JobTimeout          = "timeout"
	JobFailedSubmission = "failed_submission"
)

type RunSummary struct {
	RunID          int64
	Timestamp      time.Time
	GitCommit      string
	Status         string
	TotalJobs      int
	SuccessfulJobs int
	FailedJobs     int
}

type Job struct {
	RunID       int64
	Country     string
	Scenario    string
	ULID        string
	JobStatus   string
	SubmittedAt *time.Time
	CompletedAt *time.Time
}

// MetricPoint is a single reading to ingest for a job.
type MetricPoint struct {
	ElementLabel  string
	TimestampYear int
	Value         float64
}

// MetricRow is a stored reading with its full key.
type MetricRow struct {
	RunID         int64
	Country       string
	Scenario      string
	ULID          string
	ElementLabel  string
	TimestampYear int
	Value         float64
}

// ResultStore persists validation runs, per-job outcomes and metrics.
// RecordJobResult and StoreMetrics are explicit upserts: re-recording a key
// overwrites, so at most one row exists per key.
type ResultStore interface {
	StartRun(gitCommit string, totalJobs int) (int64, error)
	UpdateRunStatus(runID int64, status string, successfulJobs, failedJobs int) error

	RecordJobResult(job Job) error
	StoreMetrics(runID int64, country, scenario, ulid string, points []MetricPoint) error

	// NeedsRerun reports whether the (country, scenario) pair must run
	// again under the given commit: true when no prior result exists, the
	// latest result was not a success, or it was recorded under a
	// different commit.
	NeedsRerun(country, scenario, gitCommit string) (bool, error)

	FailedJobs(runID int64) ([]Job, error)
	RunJobs(runID int64) ([]Job, error)
	LatestRunSummary() (*RunSummary, error)
	MetricsForRun(runID int64, country, scenario string) ([]MetricRow, error)

	// ScenarioTotals sums each country's latest-run values for one
	// element label under a scenario.
	ScenarioTotals(scenario, elementLabel string) (map[string]float64, error)

	ExportRunCSV(runID int64, w io.Writer) (int, error)

	// Query runs a raw read-only SQL statement against the results
	// database, returning column names and stringified rows.
	Query(sqlText string) ([]string, [][]string, error)

	// CleanupOldRuns deletes all rows of every run beyond the keep most
	// recent, returning the number of runs removed.
	CleanupOldRuns(keep int) (int, error)

	Close() error
}
