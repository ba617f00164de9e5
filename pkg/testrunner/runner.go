// Package testrunner runs contract tests against a live service.
//
// Tests that need no server state run concurrently. Tests that set state
// share the service's single state slot, so they run one at a time after
// the concurrent batch.
package testrunner

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"golang.org/x/sync/errgroup"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/pkg/contractfile"
	"github.com/EmmanuelMendoza/specmatic/result"
)

// DefaultParallelism is the number of concurrent requests when Config
// leaves it unset.
const DefaultParallelism = 4

// Config selects and paces the tests of a run.
type Config struct {
	Parallelism int
	// Suggestions add examples to scenarios of the same name.
	Suggestions []*specmatic.Scenario
	// Names restricts the run to these scenarios.
	Names []string
}

// Outcome is the verdict for one generated test.
type Outcome struct {
	Feature  string
	Scenario string
	Request  specmatic.HTTPRequest
	Response *specmatic.HTTPResponse
	Result   result.Result
	Duration time.Duration
}

// Report collects the outcomes of a run in generation order.
type Report struct {
	Outcomes []Outcome
	Started  time.Time
	Elapsed  time.Duration
}

// Results returns the verdicts alone.
func (r *Report) Results() result.Results {
	out := make(result.Results, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.Result
	}
	return out
}

// Passed counts successful tests.
func (r *Report) Passed() int { return r.Results().SuccessCount() }

// Failed counts failed tests.
func (r *Report) Failed() int { return r.Results().FailureCount() }

type job struct {
	index   int
	feature *specmatic.Feature
	test    *specmatic.Scenario
}

type indexed struct {
	index   int
	outcome Outcome
}

// Run generates the tests of every feature and executes them through
// executor. The report is returned even when ctx is cancelled midway.
func Run(ctx context.Context, features []*specmatic.Feature, executor specmatic.TestExecutor, cfg Config) (*Report, error) {
	report := &Report{Started: time.Now()}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	var concurrent, serial []job
	for _, f := range features {
		for _, s := range f.Scenarios {
			if !s.IsHTTP() || (len(cfg.Names) > 0 && !slices.Contains(cfg.Names, s.Name)) {
				continue
			}
			tests, err := s.NewBasedOn(cfg.Suggestions).GenerateTestScenarios(f.TestVariables, f.TestBaseURLs)
			if err != nil {
				report.Outcomes = append(report.Outcomes, Outcome{
					Feature:  f.Name,
					Scenario: s.Name,
					Result:   pattern.FailureFromError(err).WithScenario(s.Name),
				})
				continue
			}
			for _, test := range tests {
				j := job{index: len(report.Outcomes), feature: f, test: test}
				report.Outcomes = append(report.Outcomes, Outcome{Feature: f.Name, Scenario: test.Name})
				if len(test.ExpectedFacts) > 0 {
					serial = append(serial, j)
				} else {
					concurrent = append(concurrent, j)
				}
			}
		}
	}

	resultsCh := make(chan indexed, len(concurrent)+len(serial))
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for res := range resultsCh {
			report.Outcomes[res.index] = res.outcome
		}
	}()

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(parallelism)
	for _, j := range concurrent {
		grp.Go(func() error {
			resultsCh <- indexed{index: j.index, outcome: execute(grpCtx, j, executor)}
			return nil
		})
	}
	_ = grp.Wait()

	for _, j := range serial {
		resultsCh <- indexed{index: j.index, outcome: execute(ctx, j, executor)}
	}

	close(resultsCh)
	collectWg.Wait()
	report.Elapsed = time.Since(report.Started)

	if err := ctx.Err(); err != nil {
		return report, errors.Wrap(err, "test run cancelled")
	}
	return report, nil
}

func execute(ctx context.Context, j job, executor specmatic.TestExecutor) Outcome {
	out := Outcome{Feature: j.feature.Name, Scenario: j.test.Name}
	if err := ctx.Err(); err != nil {
		out.Result = result.Fail("Test run cancelled: %s", err.Error()).WithScenario(j.test.Name)
		return out
	}
	start := time.Now()
	tested := specmatic.ExecuteTest(ctx, j.test, executor)
	out.Duration = time.Since(start)
	out.Request = tested.Request
	out.Response = tested.Response
	out.Result = j.feature.RecordOutcome(tested)
	return out
}

// Exporter runs a referenced contract's binding scenarios against the
// service at the base URL the referencing contract names.
func Exporter(ctx context.Context, client *http.Client) contractfile.Exporter {
	return func(f *specmatic.Feature, baseURL string) (map[string]string, error) {
		return f.ExportValues(ctx, NewExecutor(baseURL, client))
	}
}
