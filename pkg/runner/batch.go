package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/scenario"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/utils"
)

// maxPollFailures bounds consecutive failed status checks per job before it
// is marked failed. One flaky check must not kill a running job.
const maxPollFailures = 3

type trackedJob struct {
	country     string
	scenario    string
	jobID       string
	jobName     string
	ulid        string
	status      string
	submittedAt time.Time
	completedAt *time.Time
	failures    int
	done        bool
}

func (j *trackedJob) finish(status string) {
	j.status = status
	j.completedAt = utils.PtrTo(time.Now().UTC())
	j.done = true
}

// validateScenarioGroup runs one scenario across its countries: prepare a
// per-country model, submit with throttling, poll to completion, record
// results and ingest analytics for successes.
func (r *Runner) validateScenarioGroup(ctx context.Context, runID int64, opts Options, group []Combination) (int, int) {
	name := group[0].Scenario

	sc, err := scenario.Load(group[0].ScenarioPath)
	if err != nil {
		logrus.Errorf("scenario %q: %v", name, err)
		return 0, len(group)
	}

	logrus.Infof("validating scenario %q across %d countries", name, len(group))

	jobs := make([]*trackedJob, 0, len(group))
	failed := 0

	for _, combo := range group {
		job, err := r.submitCombination(ctx, opts, sc, combo, jobs)
		if err != nil {
			logrus.Errorf("submission failed for %s/%s: %v", combo.Country.ISO3, name, err)
			r.recordJob(runID, &trackedJob{
				country:     combo.Country.ISO3,
				scenario:    name,
				status:      store.JobFailedSubmission,
				submittedAt: time.Now().UTC(),
			})
			failed++
			continue
		}

		jobs = append(jobs, job)
		r.recordJob(runID, job)

		if ctx.Err() != nil {
			break
		}
	}

	r.pollGroup(ctx, jobs)

	succeeded := 0
	for _, job := range jobs {
		if job.status == store.JobSuccess && r.processor != nil {
			if err := r.processor.ProcessJob(ctx, runID, job.country, job.scenario, job.jobName); err != nil {
				logrus.Warnf("analytics ingestion failed for %s/%s: %v", job.country, job.scenario, err)
			}
		}

		r.recordJob(runID, job)

		if job.status == store.JobSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	return succeeded, failed
}

// submitCombination prepares the per-country model and submits it,
// throttling once MaxInstances submissions are in flight.
func (r *Runner) submitCombination(ctx context.Context, opts Options, sc *scenario.Scenario, combo Combination, inflight []*trackedJob) (*trackedJob, error) {
	model, err := scenario.LoadModel(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	countrySc, err := sc.ForCountry(combo.Country.ISO3)
	if err != nil {
		return nil, err
	}

	result, err := scenario.Apply(model, countrySc)
	if err != nil {
		return nil, err
	}
	if len(result.Warnings) > 0 {
		logrus.Warnf("%d parameter warning(s) applying %q for %s",
			len(result.Warnings), combo.Scenario, combo.Country.ISO3)
	}

	tmpPath := filepath.Join(r.cfg.TmpDir,
		fmt.Sprintf("model_%s_%s.json", combo.Country.ISO3, combo.Scenario))
	if err := scenario.SaveModel(model, tmpPath); err != nil {
		return nil, err
	}

	if len(inflight) >= r.cfg.MaxInstances {
		if err := r.waitForSlot(ctx, inflight); err != nil {
			return nil, err
		}
	}

	fileID := fmt.Sprintf("%s_%s", combo.Scenario, combo.Country.ISO3)
	submission, err := r.client.Submit(ctx, r.cfg.Environment, fileID, model)
	if err != nil {
		return nil, err
	}

	id, err := api.ExtractULID(submission.JobName, r.cfg.Environment)
	if err != nil {
		logrus.Warnf("job %s has unexpected name %q: %v", submission.JobID, submission.JobName, err)
	}

	logrus.Infof("submitted %s/%s as job %s", combo.Country.ISO3, combo.Scenario, submission.JobName)

	return &trackedJob{
		country:     combo.Country.ISO3,
		scenario:    combo.Scenario,
		jobID:       submission.JobID,
		jobName:     submission.JobName,
		ulid:        id,
		status:      store.JobSubmitted,
		submittedAt: time.Now().UTC(),
	}, nil
}

// waitForSlot blocks until fewer than MaxInstances jobs are active, checking
// statuses every CheckInterval.
func (r *Runner) waitForSlot(ctx context.Context, jobs []*trackedJob) error {
	for {
		r.sweepStatuses(ctx, jobs)

		active := countActive(jobs)
		if active < r.cfg.MaxInstances {
			return nil
		}

		logrus.Infof("at capacity (%d active), waiting %s", active, r.cfg.CheckInterval.Duration)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.CheckInterval.Duration):
		}
	}
}

// pollGroup polls until every job is terminal or the wait budget runs out.
// Jobs still active at the deadline are marked timeout locally; the remote
// jobs keep running.
func (r *Runner) pollGroup(ctx context.Context, jobs []*trackedJob) {
	deadline := time.Now().Add(r.cfg.MaxWaitTime.Duration)

	for countActive(jobs) > 0 {
		if time.Now().After(deadline) {
			for _, job := range jobs {
				if !job.done {
					logrus.Errorf("job %s (%s/%s) exceeded wait budget",
						job.jobID, job.country, job.scenario)
					job.finish(store.JobTimeout)
				}
			}
			return
		}

		select {
		case <-ctx.Done():
			for _, job := range jobs {
				if !job.done {
					job.finish(store.JobFailed)
				}
			}
			return
		case <-time.After(r.cfg.PollInterval.Duration):
		}

		r.sweepStatuses(ctx, jobs)
	}
}

// sweepStatuses checks every active job once. Status failures are counted
// per job and only maxPollFailures consecutive ones mark it failed.
func (r *Runner) sweepStatuses(ctx context.Context, jobs []*trackedJob) {
	for _, job := range jobs {
		if job.done {
			continue
		}

		status, err := r.client.Status(ctx, job.jobID)
		if err != nil {
			job.failures++
			logrus.Warnf("status check %d/%d failed for job %s: %v",
				job.failures, maxPollFailures, job.jobID, err)
			if job.failures >= maxPollFailures {
				job.finish(store.JobFailed)
			}
			continue
		}
		job.failures = 0

		if !status.Terminal() {
			logrus.Debugf("job %s (%s/%s): %s", job.jobID, job.country, job.scenario, status.JobStatus)
			continue
		}

		if status.JobStatus == api.StateSucceeded {
			job.finish(store.JobSuccess)
		} else {
			logrus.Errorf("job %s (%s/%s) failed: %s",
				job.jobID, job.country, job.scenario, status.StatusReason)
			job.finish(store.JobFailed)
		}
	}
}

func countActive(jobs []*trackedJob) int {
	active := 0
	for _, job := range jobs {
		if !job.done {
			active++
		}
	}
	return active
}

func (r *Runner) recordJob(runID int64, job *trackedJob) {
	err := r.store.RecordJobResult(store.Job{
		RunID:       runID,
		Country:     job.country,
		Scenario:    job.scenario,
		ULID:        job.ulid,
		JobStatus:   job.status,
		SubmittedAt: utils.PtrTo(job.submittedAt),
		CompletedAt: job.completedAt,
	})
	if err != nil {
		logrus.Errorf("failed to record job result for %s/%s: %v", job.country, job.scenario, err)
	}
}
