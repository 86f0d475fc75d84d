// Package runner orchestrates validation runs: it expands the country and
// scenario matrix, skips combinations whose stored results are still fresh,
// submits the rest with throttling and polls them to completion.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/config"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/country"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/scenario"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// JobAPI is the slice of the remote API the runner needs.
type JobAPI interface {
	Health(ctx context.Context) error
	Submit(ctx context.Context, environment, fileID string, model any) (*api.Submission, error)
	Status(ctx context.Context, jobID string) (*api.JobStatus, error)
}

// ResultProcessor ingests analytics for a completed job.
type ResultProcessor interface {
	ProcessJob(ctx context.Context, runID int64, country, scenario, jobName string) error
}

// Options select what a validation run covers.
type Options struct {
	ModelPath     string
	CountriesFile string
	ScenariosDir  string

	// Countries and Scenarios narrow the matrix; empty means all.
	Countries []string
	Scenarios []string

	// Force reruns every combination regardless of stored results.
	Force bool
}

// Combination is one (country, scenario) cell of the validation matrix.
type Combination struct {
	Country      country.Country
	Scenario     string
	ScenarioPath string
}

// Summary is the outcome of one validation run.
type Summary struct {
	RunID     int64
	GitCommit string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

type Runner struct {
	cfg       *config.Config
	store     store.ResultStore
	client    JobAPI
	processor ResultProcessor
}

func NewRunner(cfg *config.Config, st store.ResultStore, client JobAPI, processor ResultProcessor) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     st,
		client:    client,
		processor: processor,
	}
}

// DiscoverScenarios lists the scenario files under dir in name order.
func DiscoverScenarios(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenarios in %q: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, contract.NewError(contract.CodeInvalidInput,
			fmt.Sprintf("no scenario files found in %q", dir))
	}

	sort.Strings(paths)

	return paths, nil
}

// filterScenarios keeps the paths whose stem appears in names; empty keeps
// everything.
func filterScenarios(paths, names []string) []string {
	if len(names) == 0 {
		return paths
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	kept := make([]string, 0, len(paths))
	for _, path := range paths {
		if wanted[strings.ToLower(scenario.Stem(path))] {
			kept = append(kept, path)
		}
	}

	return kept
}

// Combinations crosses countries with scenarios, scenario-major so jobs for
// one scenario submit as a batch.
func Combinations(countries []country.Country, scenarioPaths []string) []Combination {
	combos := make([]Combination, 0, len(countries)*len(scenarioPaths))
	for _, path := range scenarioPaths {
		name := scenario.Stem(path)
		for _, c := range countries {
			combos = append(combos, Combination{
				Country:      c,
				Scenario:     name,
				ScenarioPath: path,
			})
		}
	}

	return combos
}

// FilterNeedingRerun drops combinations whose latest stored result succeeded
// under the given commit.
func (r *Runner) FilterNeedingRerun(combos []Combination, gitCommit string) ([]Combination, error) {
	kept := make([]Combination, 0, len(combos))
	for _, combo := range combos {
		needed, err := r.store.NeedsRerun(combo.Country.ISO3, combo.Scenario, gitCommit)
		if err != nil {
			return nil, err
		}
		if needed {
			kept = append(kept, combo)
		} else {
			logrus.Debugf("skipping %s/%s: up to date", combo.Country.ISO3, combo.Scenario)
		}
	}

	return kept, nil
}

// Run executes the full validation pipeline and records everything in the
// result store. A partial run still produces a run row; per-job failures are
// recorded, not returned.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := r.client.Health(ctx); err != nil {
		return nil, err
	}

	countries, err := country.LoadList(opts.CountriesFile)
	if err != nil {
		return nil, err
	}
	countries = country.Filter(countries, opts.Countries)
	if len(countries) == 0 {
		return nil, contract.NewError(contract.CodeInvalidInput, "no countries selected")
	}

	scenarioPaths, err := DiscoverScenarios(opts.ScenariosDir)
	if err != nil {
		return nil, err
	}
	scenarioPaths = filterScenarios(scenarioPaths, opts.Scenarios)
	if len(scenarioPaths) == 0 {
		return nil, contract.NewError(contract.CodeInvalidInput, "no scenarios selected")
	}

	gitCommit := CurrentCommit(".")
	combos := Combinations(countries, scenarioPaths)
	total := len(combos)

	if !opts.Force {
		combos, err = r.FilterNeedingRerun(combos, gitCommit)
		if err != nil {
			return nil, err
		}
	}
	skipped := total - len(combos)

	logrus.Infof("validation matrix: %d combinations, %d to run, %d up to date",
		total, len(combos), skipped)

	summary := &Summary{
		RunID:     -1,
		GitCommit: gitCommit,
		Total:     total,
		Skipped:   skipped,
	}
	if len(combos) == 0 {
		return summary, nil
	}

	runID, err := r.store.StartRun(gitCommit, len(combos))
	if err != nil {
		return nil, err
	}
	summary.RunID = runID

	for _, group := range groupByScenario(combos) {
		succeeded, failed := r.validateScenarioGroup(ctx, runID, opts, group)
		summary.Succeeded += succeeded
		summary.Failed += failed

		if err := ctx.Err(); err != nil {
			break
		}
	}

	status := store.RunCompleted
	if summary.Failed > 0 || ctx.Err() != nil {
		status = store.RunFailed
	}
	if err := r.store.UpdateRunStatus(runID, status, summary.Succeeded, summary.Failed); err != nil {
		return summary, err
	}

	return summary, ctx.Err()
}

// groupByScenario splits combinations into per-scenario batches, preserving
// the scenario-major order Combinations produced.
func groupByScenario(combos []Combination) [][]Combination {
	var groups [][]Combination
	for _, combo := range combos {
		n := len(groups)
		if n > 0 && groups[n-1][0].Scenario == combo.Scenario {
			groups[n-1] = append(groups[n-1], combo)
		} else {
			groups = append(groups, []Combination{combo})
		}
	}

	return groups
}
