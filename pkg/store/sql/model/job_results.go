package model

import (
	"time"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// JobResult mapped from table <job_results>. The composite key makes
// re-recording an upsert: a job transitions in place from submitted to its
// terminal status.
type JobResult struct {
	RunID       int64      `gorm:"column:run_id;primaryKey;autoIncrement:false"`
	Country     string     `gorm:"column:country;primaryKey;index:idx_job_results_country_scenario,priority:1"`
	Scenario    string     `gorm:"column:scenario;primaryKey;index:idx_job_results_country_scenario,priority:2"`
	ULID        string     `gorm:"column:ulid;not null"`
	JobStatus   string     `gorm:"column:job_status;not null;index:idx_job_results_status"`
	SubmittedAt *time.Time `gorm:"column:submitted_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (JobResult) TableName() string {
	return "job_results"
}

func NewJobResult(job store.Job) JobResult {
	return JobResult{
		RunID:       job.RunID,
		Country:     job.Country,
		Scenario:    job.Scenario,
		ULID:        job.ULID,
		JobStatus:   job.JobStatus,
		SubmittedAt: job.SubmittedAt,
		CompletedAt: job.CompletedAt,
	}
}

func (j JobResult) ToJob() store.Job {
	return store.Job{
		RunID:       j.RunID,
		Country:     j.Country,
		Scenario:    j.Scenario,
		ULID:        j.ULID,
		JobStatus:   j.JobStatus,
		SubmittedAt: j.SubmittedAt,
		CompletedAt: j.CompletedAt,
	}
}
