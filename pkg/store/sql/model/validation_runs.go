package model

import (
	"time"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// ValidationRun mapped from table <validation_runs>.
type ValidationRun struct {
	RunID          int64     `gorm:"column:run_id;primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"column:timestamp;autoCreateTime;index:idx_validation_runs_timestamp"`
	GitCommit      string    `gorm:"column:git_commit;not null;index:idx_validation_runs_commit"`
	Status         string    `gorm:"column:status;not null"`
	TotalJobs      int       `gorm:"column:total_jobs"`
	SuccessfulJobs int       `gorm:"column:successful_jobs"`
	FailedJobs     int       `gorm:"column:failed_jobs"`
}

func (ValidationRun) TableName() string {
	return "validation_runs"
}

func (r ValidationRun) ToSummary() *store.RunSummary {
	return &store.RunSummary{
		RunID:          r.RunID,
		Timestamp:      r.Timestamp,
		GitCommit:      r.GitCommit,
		Status:         r.Status,
		TotalJobs:      r.TotalJobs,
		SuccessfulJobs: r.SuccessfulJobs,
		FailedJobs:     r.FailedJobs,
	}
}
