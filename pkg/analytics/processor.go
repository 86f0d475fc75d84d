// Package analytics ingests aggregated simulation results and derives
// cross-scenario comparisons from the result store.
package analytics

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// Fetcher is the slice of the analytics API the processor needs.
type Fetcher interface {
	Fetch(ctx context.Context, environment, ulid string, q api.Query) ([]api.Record, error)
}

type Processor struct {
	store       store.ResultStore
	client      Fetcher
	environment string
}

func NewProcessor(st store.ResultStore, client Fetcher, environment string) *Processor {
	return &Processor{
		store:       st,
		client:      client,
		environment: environment,
	}
}

// ProcessJob pulls the default analytics query for a completed job and
// stores the readings. The simulation is addressed by the ULID embedded in
// its job name.
func (p *Processor) ProcessJob(ctx context.Context, runID int64, country, scenarioName, jobName string) error {
	id, err := api.ExtractULID(jobName, p.environment)
	if err != nil {
		return err
	}
	if !api.ValidULID(id) {
		return contract.NewError(contract.CodeInvalidInput,
			fmt.Sprintf("job name %q carries malformed ULID %q", jobName, id))
	}

	records, err := p.client.Fetch(ctx, p.environment, id, api.DefaultQuery())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logrus.Warnf("no analytics records for %s/%s (ulid %s)", country, scenarioName, id)
	}

	points := make([]store.MetricPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, store.MetricPoint{
			ElementLabel:  rec.ElementLabel,
			TimestampYear: rec.TimestampYear,
			Value:         rec.Value,
		})
	}

	return p.store.StoreMetrics(runID, country, scenarioName, id, points)
}
