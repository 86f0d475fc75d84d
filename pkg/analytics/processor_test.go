package analytics_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/analytics"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

type fakeFetcher struct {
	records  []api.Record
	err      error
	lastULID string
}

func (f *fakeFetcher) Fetch(ctx context.Context, environment, ulid string, q api.Query) ([]api.Record, error) {
	f.lastULID = ulid
	return f.records, f.err
}

func TestProcessJob(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID, err := st.StartRun("abc123", 1)
	require.NoError(t, err)

	id := ulid.Make().String()
	fetcher := &fakeFetcher{records: []api.Record{
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: 12.5},
		{ElementLabel: "Healthy Years Lived", TimestampYear: 2031, Value: 13},
	}}

	p := analytics.NewProcessor(st, fetcher, "standard")
	require.NoError(t, p.ProcessJob(context.Background(), runID, "UGA", "baseline", "botech-sim-standard-"+id))

	assert.Equal(t, id, fetcher.lastULID)

	rows, err := st.MetricsForRun(runID, "UGA", "baseline")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, id, rows[0].ULID)
	assert.Equal(t, 2030, rows[0].TimestampYear)
	assert.Equal(t, 12.5, rows[0].Value)
}

func TestProcessJobBadJobName(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	p := analytics.NewProcessor(st, &fakeFetcher{}, "standard")

	err := p.ProcessJob(context.Background(), 1, "UGA", "baseline", "not-a-job-name")
	require.Error(t, err)
	assert.Equal(t, contract.CodeInvalidInput, contract.CodeOf(err))
}

func TestProcessJobEmptyRecords(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID, err := st.StartRun("abc123", 1)
	require.NoError(t, err)

	p := analytics.NewProcessor(st, &fakeFetcher{}, "standard")
	require.NoError(t, p.ProcessJob(context.Background(), runID, "UGA", "baseline",
		"botech-sim-standard-"+ulid.Make().String()))

	rows, err := st.MetricsForRun(runID, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
