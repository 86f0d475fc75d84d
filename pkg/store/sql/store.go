// Package sql implements store.ResultStore on gorm, backed by SQLite by
// default or Postgres when the store URL carries a postgres scheme.
package sql

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store/sql/model"
)

const batchSize = 100

type Store struct {
	db *gorm.DB
}

// NewStore opens the results database and migrates the schema. The URL is a
// SQLite file path unless it carries a postgres:// or postgresql:// scheme.
//
//nolint:ireturn
func NewStore(storeURL string, log *logrus.Logger) (store.ResultStore, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(storeURL, "postgres://") || strings.HasPrefix(storeURL, "postgresql://") {
		dialector = postgres.Open(storeURL)
	} else {
		dialector = gormlite.Open(storeURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLoggerAdaptor(log, LoggerAdaptorConfig{
			SlowThreshold:             200 * time.Millisecond,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open results database %q: %w", storeURL, err)
	}

	if err := db.AutoMigrate(
		&model.ValidationRun{},
		&model.JobResult{},
		&model.Metric{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate results schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) StartRun(gitCommit string, totalJobs int) (int64, error) {
	run := model.ValidationRun{
		GitCommit: gitCommit,
		Status:    store.RunRunning,
		TotalJobs: totalJobs,
	}

	if err := s.db.Create(&run).Error; err != nil {
		return 0, fmt.Errorf("failed to start validation run: %w", err)
	}

	logrus.Infof("started validation run %d with %d jobs (commit %.8s)", run.RunID, totalJobs, gitCommit)

	return run.RunID, nil
}

func (s *Store) UpdateRunStatus(runID int64, status string, successfulJobs, failedJobs int) error {
	err := s.db.Model(&model.ValidationRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":          status,
			"successful_jobs": successfulJobs,
			"failed_jobs":     failedJobs,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", runID, err)
	}

	logrus.Infof("updated run %d: %s (%d success, %d failed)", runID, status, successfulJobs, failedJobs)

	return nil
}

// RecordJobResult upserts on (run_id, country, scenario); the second write
// for a key wins, carrying a job from submitted to its terminal status.
func (s *Store) RecordJobResult(job store.Job) error {
	row := model.NewJobResult(job)

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "run_id"}, {Name: "country"}, {Name: "scenario"},
		},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record job result for %s/%s: %w", job.Country, job.Scenario, err)
	}

	logrus.Debugf("recorded job result: %s/%s -> %s", job.Country, job.Scenario, job.JobStatus)

	return nil
}

// StoreMetrics batch-upserts readings; re-ingesting identical records
// leaves exactly one row per key.
func (s *Store) StoreMetrics(runID int64, country, scenario, ulid string, points []store.MetricPoint) error {
	if len(points) == 0 {
		logrus.Warnf("no metrics data provided for %s/%s", country, scenario)
		return nil
	}

	rows := make([]model.Metric, 0, len(points))
	for _, p := range points {
		rows = append(rows, model.Metric{
			RunID:         runID,
			Country:       country,
			Scenario:      scenario,
			ULID:          ulid,
			ElementLabel:  p.ElementLabel,
			TimestampYear: p.TimestampYear,
			Value:         p.Value,
		})
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "run_id"}, {Name: "country"}, {Name: "scenario"},
			{Name: "element_label"}, {Name: "timestamp_year"},
		},
		UpdateAll: true,
	}).CreateInBatches(rows, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to store metrics for %s/%s: %w", country, scenario, err)
	}

	logrus.Infof("stored %d metrics for %s/%s", len(points), country, scenario)

	return nil
}

func (s *Store) NeedsRerun(country, scenario, gitCommit string) (bool, error) {
	var row struct {
		JobStatus string
		GitCommit string
	}

	err := s.db.Table("job_results").
		Select("job_results.job_status, validation_runs.git_commit").
		Joins("JOIN validation_runs ON validation_runs.run_id = job_results.run_id").
		Where("job_results.country = ? AND job_results.scenario = ?", country, scenario).
		Order("validation_runs.timestamp DESC").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up prior result for %s/%s: %w", country, scenario, err)
	}

	return row.JobStatus != store.JobSuccess || row.GitCommit != gitCommit, nil
}

func (s *Store) FailedJobs(runID int64) ([]store.Job, error) {
	var rows []model.JobResult

	err := s.db.
		Where("run_id = ? AND job_status <> ?", runID, store.JobSuccess).
		Order("country, scenario").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs for run %d: %w", runID, err)
	}

	jobs := make([]store.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.ToJob())
	}

	return jobs, nil
}

func (s *Store) RunJobs(runID int64) ([]store.Job, error) {
	var rows []model.JobResult

	err := s.db.
		Where("run_id = ?", runID).
		Order("country, scenario").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for run %d: %w", runID, err)
	}

	jobs := make([]store.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.ToJob())
	}

	return jobs, nil
}

func (s *Store) LatestRunSummary() (*store.RunSummary, error) {
	var run model.ValidationRun

	err := s.db.Order("timestamp DESC").Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	return run.ToSummary(), nil
}

func (s *Store) MetricsForRun(runID int64, country, scenario string) ([]store.MetricRow, error) {
	query := s.db.Where("run_id = ?", runID)
	if country != "" {
		query = query.Where("country = ?", country)
	}
	if scenario != "" {
		query = query.Where("scenario = ?", scenario)
	}

	var rows []model.Metric
	err := query.Order("country, scenario, element_label, timestamp_year").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics for run %d: %w", runID, err)
	}

	out := make([]store.MetricRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToRow())
	}

	return out, nil
}

// ScenarioTotals sums each country's values from its latest run carrying
// the scenario and element label.
func (s *Store) ScenarioTotals(scenario, elementLabel string) (map[string]float64, error) {
	var rows []struct {
		Country string
		Total   float64
	}

	err := s.db.Raw(`
		SELECT m.country AS country, SUM(m.value) AS total
		FROM metrics m
		JOIN (
			SELECT country, MAX(run_id) AS latest_run_id
			FROM metrics
			WHERE scenario = ? AND element_label = ?
			GROUP BY country
		) lr ON m.country = lr.country AND m.run_id = lr.latest_run_id
		WHERE m.scenario = ? AND m.element_label = ?
		GROUP BY m.country
		ORDER BY m.country`,
		scenario, elementLabel, scenario, elementLabel,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to total %q for scenario %q: %w", elementLabel, scenario, err)
	}

	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.Country] = row.Total
	}

	return totals, nil
}

func (s *Store) ExportRunCSV(runID int64, w io.Writer) (int, error) {
	rows, err := s.MetricsForRun(runID, "", "")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		logrus.Warnf("no metrics found for run %d", runID)
		return 0, nil
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"country", "scenario", "element_label", "timestamp_year", "value"}); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Country,
			row.Scenario,
			row.ElementLabel,
			strconv.Itoa(row.TimestampYear),
			strconv.FormatFloat(row.Value, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return len(rows), nil
}

// Query passes sqlText straight to the database and stringifies every
// value, for ad-hoc maintainer queries over the results schema.
func (s *Store) Query(sqlText string) ([]string, [][]string, error) {
	rows, err := s.db.Raw(sqlText).Rows()
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("query failed: %w", err)
		}

		record := make([]string, len(columns))
		for i, v := range values {
			switch v := v.(type) {
			case nil:
				record[i] = ""
			case []byte:
				record[i] = string(v)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}

	return columns, out, nil
}

// CleanupOldRuns trims to the keep most recent runs. SQLite does not
// enforce cascading deletes here, so deletion order matters: metrics, then
// job_results, then validation_runs.
func (s *Store) CleanupOldRuns(keep int) (int, error) {
	var ids []int64

	err := s.db.Model(&model.ValidationRun{}).
		Order("timestamp DESC").
		Pluck("run_id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list runs for cleanup: %w", err)
	}

	if len(ids) <= keep {
		return 0, nil
	}
	old := ids[keep:]

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id IN ?", old).Delete(&model.Metric{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id IN ?", old).Delete(&model.JobResult{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id IN ?", old).Delete(&model.ValidationRun{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old runs: %w", err)
	}

	logrus.Infof("cleaned up %d old validation runs", len(old))

	return len(old), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
