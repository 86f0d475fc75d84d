// Package api talks to the remote simulation service: job submission,
// status polling and the analytics endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
)

// Job states reported by the remote scheduler. TIMEOUT is a local
// pseudo-state: the orchestrator applies it when a job outlives the polling
// budget; the remote job is never told to stop.
const (
	StateSubmitted = "SUBMITTED"
	StatePending   = "PENDING"
	StateRunnable  = "RUNNABLE"
	StateStarting  = "STARTING"
	StateRunning   = "RUNNING"
	StateSucceeded = "SUCCEEDED"
	StateFailed    = "FAILED"
	StateTimeout   = "TIMEOUT"
)

// ErrPollTimeout is returned when a job does not reach a terminal state
// within the polling budget.
var ErrPollTimeout = errors.New("job did not complete within the wait budget")

// maxStatusFailures bounds consecutive failed status checks before a job is
// treated as failed rather than retried.
const maxStatusFailures = 3

type Submission struct {
	JobID        string `json:"jobId"`
	JobName      string `json:"jobName"`
	ConfigS3Path string `json:"config_s3_path"`
}

type JobStatus struct {
	JobID         string `json:"jobId"`
	JobName       string `json:"jobName"`
	JobStatus     string `json:"jobStatus"`
	ExitCode      *int   `json:"exitCode,omitempty"`
	StatusReason  string `json:"statusReason,omitempty"`
	LogStreamName string `json:"logStreamName,omitempty"`
	StartedAt     *int64 `json:"startedAt,omitempty"`
}

// Terminal reports whether the job has reached SUCCEEDED or FAILED.
func (s *JobStatus) Terminal() bool {
	return s.JobStatus == StateSucceeded || s.JobStatus == StateFailed
}

// Started returns the remote start time, tolerating both second and
// millisecond epoch stamps.
func (s *JobStatus) Started() (time.Time, bool) {
	if s.StartedAt == nil {
		return time.Time{}, false
	}
	at := *s.StartedAt
	if at > 1e10 {
		return time.UnixMilli(at), true
	}
	return time.Unix(at, 0), true
}

type submitRequest struct {
	Data   any    `json:"data"`
	Store  bool   `json:"store"`
	FileID string `json:"file_id"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Health checks that the API is reachable by fetching its docs page.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/docs", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contract.NewErrorWith(contract.CodeRemote, "cannot reach remote API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contract.NewError(contract.CodeRemote,
			fmt.Sprintf("remote API returned status %d", resp.StatusCode))
	}

	return nil
}

// Submit posts a prepared model document for execution. Any transport error
// or non-200 response is a submission failure; submission is not retried.
func (c *Client) Submit(ctx context.Context, environment, fileID string, model any) (*Submission, error) {
	body, err := json.Marshal(submitRequest{Data: model, Store: true, FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}

	url := fmt.Sprintf("%s/run/%s", c.baseURL, environment)
	logrus.Debugf("submitting job to %s (%d bytes)", url, len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "job submission failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, contract.NewError(contract.CodeRemote,
			fmt.Sprintf("job submission failed with status %d: %s", resp.StatusCode, detail))
	}

	var submission Submission
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "invalid submission response", err)
	}
	if submission.JobID == "" {
		return nil, contract.NewError(contract.CodeRemote, "submission response missing jobId")
	}

	return &submission, nil
}

// Status fetches the current state of a submitted job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/status/%s", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "status check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, contract.NewError(contract.CodeRemote,
			fmt.Sprintf("status check failed with status %d: %s", resp.StatusCode, detail))
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, contract.NewErrorWith(contract.CodeRemote, "invalid status response", err)
	}

	return &status, nil
}

// PollJob polls a single job until it reaches a terminal state. A failed
// status check is transient: it is retried up to maxStatusFailures
// consecutive times before the poll is abandoned. Exceeding maxWait returns
// ErrPollTimeout; the remote job keeps running.
func (c *Client) PollJob(ctx context.Context, jobID string, interval, maxWait time.Duration) (*JobStatus, error) {
	deadline := time.Now().Add(maxWait)
	failures := 0

	for {
		if time.Now().After(deadline) {
			return nil, ErrPollTimeout
		}

		status, err := c.Status(ctx, jobID)
		if err != nil {
			failures++
			logrus.Warnf("status check %d/%d failed for job %s: %v", failures, maxStatusFailures, jobID, err)
			if failures >= maxStatusFailures {
				return nil, fmt.Errorf("giving up after %d failed status checks: %w", failures, err)
			}
		} else {
			failures = 0
			logrus.Infof("job %s: %s", jobID, status.JobStatus)
			if status.Terminal() {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
