package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// HealthyYearsLived is the element label the validation pipeline tracks by
// default.
const HealthyYearsLived = "Healthy Years Lived"

// Query describes an analytics request. Filter keys support the suffix
// operators __eq, __neq, __gt, __gte, __lt, __lte, __in and __contains;
// __in values given as slices are joined comma-separated.
type Query struct {
	EventType    string
	GroupBy      []string
	GroupByDate  string
	Aggregations string
	Filters      map[string]any
}

// DefaultQuery is the query the validation pipeline runs after every
// successful job: last yearly Healthy Years Lived per element.
func DefaultQuery() Query {
	return Query{
		EventType:    "ECHO",
		GroupBy:      []string{"element_label"},
		GroupByDate:  "timestamp:year",
		Aggregations: "value:last",
		Filters:      map[string]any{"element_label": HealthyYearsLived},
	}
}

func (q Query) params() url.Values {
	values := url.Values{}
	values.Set("event_type", q.EventType)
	values.Set("group_by_date", q.GroupByDate)
	values.Set("aggregations", q.Aggregations)

	for _, field := range q.GroupBy {
		values.Add("group_by", field)
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := q.Filters[key]
		if strings.HasSuffix(key, "__in") {
			if items, ok := value.([]string); ok {
				values.Set(key, strings.Join(items, ","))
				continue
			}
			if items, ok := value.([]any); ok {
				parts := make([]string, len(items))
				for i, item := range items {
					parts[i] = fmt.Sprint(item)
				}
				values.Set(key, strings.Join(parts, ","))
				continue
			}
		}
		values.Set(key, fmt.Sprint(value))
	}

	return values
}

// Record is one aggregated metric reading.
type Record struct {
	ElementLabel  string
	TimestampYear int
	Value         float64
}

type AnalyticsClient struct {
	baseURL    string
	httpClient *http.Client

	maxAttempts int
	backoff     time.Duration
}

func NewAnalyticsClient(baseURL string) *AnalyticsClient {
	return &AnalyticsClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		backoff:     time.Second,
	}
}

// Fetch retrieves aggregated analytics for a simulation, retrying transport
// errors with exponential backoff up to a fixed attempt count.
func (c *AnalyticsClient) Fetch(ctx context.Context, environment, ulid string, q Query) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/analytics/%s/%s?%s",
		c.baseURL, environment, ulid, q.params().Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			logrus.Warnf("analytics fetch retry %d/%d in %s: %v", attempt+1, c.maxAttempts, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		records, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return records, nil
		}
		lastErr = err

		// Non-200 responses are not retried; the server answered.
		var cerr *contract.Error
		if errors.As(err, &cerr) && cerr.Err == nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("analytics fetch failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *AnalyticsClient) fetchOnce(ctx context.Context, endpoint string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build analytics request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "analytics request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "failed to read analytics response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, contract.NewError(contract.CodeRemote,
			fmt.Sprintf("analytics request failed with status %d", resp.StatusCode))
	}

	return ParseRecords(body), nil
}

// ParseRecords extracts metric records from an analytics response. Records
// are probed with gjson so extra fields are ignored and timestamp_year is
// accepted as either a number or a string; entries missing element_label are
// skipped.
func ParseRecords(body []byte) []Record {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil
	}

	var records []Record
	for _, item := range parsed.Array() {
		label := item.Get("element_label")
		if !label.Exists() || label.String() == "" {
			continue
		}
		records = append(records, Record{
			ElementLabel:  label.String(),
			TimestampYear: int(item.Get("timestamp_year").Int()),
			Value:         item.Get("value").Float(),
		})
	}

	return records
}
