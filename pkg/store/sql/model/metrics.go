package model

import (
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// Metric mapped from table <metrics>. A row only exists for a JobResult
// that reached success; duplicate ingestion overwrites.
type Metric struct {
	RunID         int64   `gorm:"column:run_id;primaryKey;autoIncrement:false"`
	Country       string  `gorm:"column:country;primaryKey;index:idx_metrics_country_scenario,priority:1"`
	Scenario      string  `gorm:"column:scenario;primaryKey;index:idx_metrics_country_scenario,priority:2"`
	ULID          string  `gorm:"column:ulid;not null"`
	ElementLabel  string  `gorm:"column:element_label;primaryKey;index:idx_metrics_element"`
	TimestampYear int     `gorm:"column:timestamp_year;primaryKey;index:idx_metrics_year"`
	Value         float64 `gorm:"column:value;not null"`
}

func (Metric) TableName() string {
	return "metrics"
}

func (m Metric) ToRow() store.MetricRow {
	return store.MetricRow{
		RunID:         m.RunID,
		Country:       m.Country,
		Scenario:      m.Scenario,
		ULID:          m.ULID,
		ElementLabel:  m.ElementLabel,
		TimestampYear: m.TimestampYear,
		Value:         m.Value,
	}
}
