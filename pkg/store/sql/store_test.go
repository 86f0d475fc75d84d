package sql_test

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	storesql "github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store/sql"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/utils"
)

func newTestStore(t *testing.T) store.ResultStore {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st, err := storesql.NewStore(filepath.Join(t.TempDir(), "results.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

// startRun spaces runs out so timestamp ordering is deterministic.
func startRun(t *testing.T, st store.ResultStore, commit string, totalJobs int) int64 {
	t.Helper()

	time.Sleep(5 * time.Millisecond)
	runID, err := st.StartRun(commit, totalJobs)
	require.NoError(t, err)

	return runID
}

func recordJob(t *testing.T, st store.ResultStore, runID int64, country, scenario, status string) {
	t.Helper()

	require.NoError(t, st.RecordJobResult(store.Job{
		RunID:       runID,
		Country:     country,
		Scenario:    scenario,
		ULID:        "01HV2N8ZJ4R1T5W9X3K7M2P6QA",
		JobStatus:   status,
		SubmittedAt: utils.PtrTo(time.Now().UTC()),
	}))
}

func TestStartAndUpdateRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	runID := startRun(t, st, "abc123", 4)
	require.NoError(t, st.UpdateRunStatus(runID, store.RunCompleted, 3, 1))

	summary, err := st.LatestRunSummary()
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, runID, summary.RunID)
	assert.Equal(t, "abc123", summary.GitCommit)
	assert.Equal(t, store.RunCompleted, summary.Status)
	assert.Equal(t, 4, summary.TotalJobs)
	assert.Equal(t, 3, summary.SuccessfulJobs)
	assert.Equal(t, 1, summary.FailedJobs)
}

func TestLatestRunSummaryEmpty(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	summary, err := st.LatestRunSummary()
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestRecordJobResultUpsert(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 1)

	recordJob(t, st, runID, "UGA", "baseline", store.JobSubmitted)
	recordJob(t, st, runID, "UGA", "baseline", store.JobSuccess)

	jobs, err := st.RunJobs(runID)
	require.NoError(t, err)

	// Re-recording the key transitions the row in place.
	require.Len(t, jobs, 1)
	assert.Equal(t, store.JobSuccess, jobs[0].JobStatus)
}

func TestFailedJobs(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 3)

	recordJob(t, st, runID, "UGA", "baseline", store.JobSuccess)
	recordJob(t, st, runID, "KEN", "baseline", store.JobTimeout)
	recordJob(t, st, runID, "GHA", "baseline", store.JobFailedSubmission)

	failed, err := st.FailedJobs(runID)
	require.NoError(t, err)

	require.Len(t, failed, 2)
	assert.Equal(t, "GHA", failed[0].Country)
	assert.Equal(t, "KEN", failed[1].Country)
}

func TestNeedsRerun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	// No prior result at all.
	needed, err := st.NeedsRerun("UGA", "baseline", "abc123")
	require.NoError(t, err)
	assert.True(t, needed)

	runID := startRun(t, st, "abc123", 1)
	recordJob(t, st, runID, "UGA", "baseline", store.JobSuccess)

	scenarios := []struct {
		name     string
		country  string
		scenario string
		commit   string
		expected bool
	}{
		{name: "fresh success", country: "UGA", scenario: "baseline", commit: "abc123", expected: false},
		{name: "different commit", country: "UGA", scenario: "baseline", commit: "def456", expected: true},
		{name: "unknown country", country: "KEN", scenario: "baseline", commit: "abc123", expected: true},
		{name: "unknown scenario", country: "UGA", scenario: "cr1", commit: "abc123", expected: true},
	}

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			needed, err := st.NeedsRerun(sc.country, sc.scenario, sc.commit)
			require.NoError(t, err)
			assert.Equal(t, sc.expected, needed)
		})
	}
}

func TestNeedsRerunUsesLatestRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	first := startRun(t, st, "abc123", 1)
	recordJob(t, st, first, "UGA", "baseline", store.JobSuccess)

	// A newer failed attempt supersedes the old success.
	second := startRun(t, st, "abc123", 1)
	recordJob(t, st, second, "UGA", "baseline", store.JobFailed)

	needed, err := st.NeedsRerun("UGA", "baseline", "abc123")
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestStoreMetricsIdempotent(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 1)

	points := []store.MetricPoint{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 10},
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2031, Value: 11},
	}

	require.NoError(t, st.StoreMetrics(runID, "UGA", "baseline", "01HV2N8ZJ4R1T5W9X3K7M2P6QA", points))

	// Re-ingesting the same readings with a new value overwrites in place.
	points[1].Value = 12
	require.NoError(t, st.StoreMetrics(runID, "UGA", "baseline", "01HV2N8ZJ4R1T5W9X3K7M2P6QA", points))

	rows, err := st.MetricsForRun(runID, "UGA", "baseline")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, float64(12), rows[1].Value)
}

func TestStoreMetricsEmpty(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 1)

	require.NoError(t, st.StoreMetrics(runID, "UGA", "baseline", "x", nil))

	rows, err := st.MetricsForRun(runID, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScenarioTotalsUsesLatestRunPerCountry(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	first := startRun(t, st, "abc123", 2)
	require.NoError(t, st.StoreMetrics(first, "UGA", "baseline", "u1", []store.MetricPoint{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 100},
	}))
	require.NoError(t, st.StoreMetrics(first, "KEN", "baseline", "u2", []store.MetricPoint{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 200},
	}))

	// UGA reran later; only its newer readings count.
	second := startRun(t, st, "def456", 1)
	require.NoError(t, st.StoreMetrics(second, "UGA", "baseline", "u3", []store.MetricPoint{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 500},
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2031, Value: 450},
	}))

	totals, err := st.ScenarioTotals("baseline", "Healthy Years Lived")
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"UGA": 950, "KEN": 200}, totals)
}

func TestExportRunCSV(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 1)

	require.NoError(t, st.StoreMetrics(runID, "UGA", "baseline", "u1", []store.MetricPoint{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 12.5},
	}))

	var buf bytes.Buffer
	n, err := st.ExportRunCSV(runID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{"country", "scenario", "element_label", "timestamp_year", "value"}, records[0])
	assert.Equal(t, []string{"UGA", "baseline", "Healthy Years Lived", "2030", "12.5"}, records[1])
}

func TestCleanupOldRuns(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	var runIDs []int64
	for i := 0; i < 3; i++ {
		runID := startRun(t, st, "abc123", 1)
		recordJob(t, st, runID, "UGA", "baseline", store.JobSuccess)
		require.NoError(t, st.StoreMetrics(runID, "UGA", "baseline", "u1", []store.MetricPoint{
			{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 1},
		}))
		runIDs = append(runIDs, runID)
	}

	removed, err := st.CleanupOldRuns(1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// The newest run survives with its rows.
	newest := runIDs[len(runIDs)-1]
	summary, err := st.LatestRunSummary()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, newest, summary.RunID)

	jobs, err := st.RunJobs(newest)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	// Old runs lost their metrics and jobs too.
	for _, runID := range runIDs[:2] {
		rows, err := st.MetricsForRun(runID, "", "")
		require.NoError(t, err)
		assert.Empty(t, rows)

		jobs, err := st.RunJobs(runID)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	}

	// Nothing more to remove.
	removed, err = st.CleanupOldRuns(1)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestQuery(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID := startRun(t, st, "abc123", 2)
	recordJob(t, st, runID, "UGA", "baseline", store.JobSuccess)
	recordJob(t, st, runID, "KEN", "baseline", store.JobFailed)

	columns, rows, err := st.Query(
		"SELECT country, job_status FROM job_results WHERE run_id = " +
			"(SELECT MAX(run_id) FROM validation_runs) ORDER BY country")
	require.NoError(t, err)

	assert.Equal(t, []string{"country", "job_status"}, columns)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"KEN", "failed"}, rows[0])
	assert.Equal(t, []string{"UGA", "success"}, rows[1])
}

func TestQueryNoResults(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	columns, rows, err := st.Query("SELECT run_id FROM validation_runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id"}, columns)
	assert.Empty(t, rows)
}

func TestQueryInvalidSQL(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, _, err := st.Query("SELECT nope FROM no_such_table")
	require.Error(t, err)
}
