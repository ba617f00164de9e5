package specmatic

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
)

// Feature is an ordered set of scenarios describing one API. Lookups take
// the server state as an argument, so a Feature may serve concurrent
// requests.
type Feature struct {
	Name      string
	Scenarios []*Scenario

	// TestVariables and TestBaseURLs fill $(name) and $(ref.name) example
	// cells when tests are generated.
	TestVariables map[string]string
	TestBaseURLs  map[string]string

	opts Options
	log  Logger
}

// NewFeature returns a feature over scenarios. The options' depth limit and
// generative flag are applied to every scenario.
func NewFeature(name string, scenarios []*Scenario, opts Options) *Feature {
	configured := make([]*Scenario, len(scenarios))
	for i, s := range scenarios {
		c := s.clone()
		c.MaxDepth = opts.maxDepth()
		c.GenerativeTests = c.GenerativeTests || opts.GenerativeTests
		configured[i] = c
	}
	return &Feature{
		Name:      name,
		Scenarios: configured,
		opts:      opts,
		log:       opts.logger().With(map[string]any{"feature": name}),
	}
}

func (f *Feature) logger() Logger {
	if f.log == nil {
		return newNoopLogger()
	}
	return f.log
}

// LookupResponse answers req from the first scenario that accepts it, in
// declaration order. When none does, the response is a 400 carrying the
// report of every specific failure.
func (f *Feature) LookupResponse(req HTTPRequest, state ServerState) HTTPResponse {
	return f.respond(req, state, (*Scenario).Matches)
}

// StubResponse is LookupResponse with the stub matching rules.
func (f *Feature) StubResponse(req HTTPRequest, state ServerState) HTTPResponse {
	return f.respond(req, state, (*Scenario).MatchesStub)
}

func (f *Feature) respond(req HTTPRequest, state ServerState, match func(*Scenario, HTTPRequest, ServerState) result.Result) HTTPResponse {
	results := make(result.Results, 0, len(f.Scenarios))
	for _, s := range f.Scenarios {
		res := match(s, req, state)
		if !res.IsSuccess() {
			results = append(results, res)
			continue
		}
		f.logger().Debugf("scenario %q matched %s %s", s.Name, req.Method, req.Path)
		resp, err := s.GenerateHTTPResponse(state)
		if err != nil {
			f.logger().Errorf("%v", err)
			return ErrorResponse(err.Error())
		}
		return resp
	}
	f.logger().Debugf("no scenario matched %s %s (%d tried)", req.Method, req.Path, len(results))
	return errorResponseFor(req, results)
}

// errorResponseFor renders the failures of every scenario tried for req.
func errorResponseFor(req HTTPRequest, results result.Results) HTTPResponse {
	resp := ErrorResponse(failureReport(req, results))
	if strings.TrimSpace(results.Report("")) == "" {
		resp.Headers[HeaderEmpty] = "true"
	}
	return resp
}

// failureReport renders results, leading with the request when no specific
// failure names it.
func failureReport(req HTTPRequest, results result.Results) string {
	msg := pathNotRecognizedMessage(req)
	report := results.Report(msg)
	if !strings.Contains(report, msg) {
		report = strings.TrimSpace(msg + "\n\n" + report)
	}
	return report
}

// LookupScenario returns every scenario that accepts req. Failing that it
// returns a *MismatchError for the first specific failure, a
// *PathNotRecognizedError when all failures were fluffy, or ErrEmptyContract.
func (f *Feature) LookupScenario(req HTTPRequest, state ServerState) ([]*Scenario, error) {
	if len(f.Scenarios) == 0 {
		return nil, ErrEmptyContract
	}
	var matched []*Scenario
	var firstReal *result.Failure
	for _, s := range f.Scenarios {
		res := s.Matches(req, state)
		if res.IsSuccess() {
			matched = append(matched, s)
			continue
		}
		if failure := result.AsFailure(res); failure != nil && !failure.IsFluffy() && firstReal == nil {
			firstReal = failure
		}
	}
	switch {
	case len(matched) > 0:
		if len(matched) > 1 {
			f.logger().Debugf("%d scenarios matched %s %s: %s", len(matched), req.Method, req.Path, truncateList(scenarioNames(matched), f.opts.LogMaxNames))
		}
		return matched, nil
	case firstReal != nil:
		return nil, &MismatchError{Failure: firstReal}
	default:
		return nil, &PathNotRecognizedError{Request: req}
	}
}

// LookupSingleScenario is LookupScenario for callers that need exactly one
// scenario. Several matches yield an *AmbiguousMatchError.
func (f *Feature) LookupSingleScenario(req HTTPRequest, state ServerState) (*Scenario, error) {
	matched, err := f.LookupScenario(req, state)
	if err != nil {
		return nil, err
	}
	if len(matched) > 1 {
		return nil, &AmbiguousMatchError{Names: scenarioNames(matched)}
	}
	return matched[0], nil
}

// Matches reports whether the first scenario accepting req also accepts resp.
func (f *Feature) Matches(req HTTPRequest, resp HTTPResponse) bool {
	for _, s := range f.Scenarios {
		if s.Matches(req, nil).IsSuccess() {
			return s.MatchesResponse(resp).IsSuccess()
		}
	}
	return false
}

// MatchingStub checks a hand-written request/response pair against the
// scenarios and returns stub data for the first one that accepts it.
func (f *Feature) MatchingStub(req HTTPRequest, resp HTTPResponse) (*StubData, error) {
	var failures result.Results
	for _, s := range f.Scenarios {
		res := s.MatchesMock(req, resp)
		if !res.IsSuccess() {
			failures = append(failures, res)
			continue
		}
		r := s.Resolver()
		requestType, err := s.Request.GenerateRequestType(req, r)
		if err != nil {
			failures = append(failures, pattern.FailureFromError(err).WithScenario(s.Name))
			continue
		}
		requestType.Headers.Ancestors = s.ancestorHeaders()
		return &StubData{
			RequestType:     requestType,
			Resolver:        r,
			Response:        resp,
			ResponsePattern: s.Response,
			ScenarioName:    s.Name,
		}, nil
	}
	return nil, &NoMatchingScenarioError{Report: failureReport(req, failures)}
}

// MatchingStubFor is MatchingStub for a ScenarioStub, keeping its delay.
func (f *Feature) MatchingStubFor(stub ScenarioStub) (*StubData, error) {
	data, err := f.MatchingStub(stub.Request, stub.Response)
	if err != nil {
		return nil, err
	}
	data.Delay = stub.Delay
	return data, nil
}

// GenerateContractTestScenarios expands every scenario into test scenarios,
// after merging in the suggestion of the same name.
func (f *Feature) GenerateContractTestScenarios(suggestions []*Scenario) ([]*Scenario, error) {
	var out []*Scenario
	for _, s := range f.Scenarios {
		if !s.IsHTTP() {
			continue
		}
		generated, err := s.NewBasedOn(suggestions).GenerateTestScenarios(f.TestVariables, f.TestBaseURLs)
		if err != nil {
			return nil, err
		}
		out = append(out, generated...)
	}
	return out, nil
}

// GenerateBackwardCompatibilityTestScenarios expands every scenario without
// its examples.
func (f *Feature) GenerateBackwardCompatibilityTestScenarios() ([]*Scenario, error) {
	var out []*Scenario
	for _, s := range f.Scenarios {
		generated, err := s.GenerateBackwardCompatibilityScenarios()
		if err != nil {
			return nil, err
		}
		out = append(out, generated...)
	}
	return out, nil
}

// ExecuteTests runs the generated tests one after another. When names are
// given, only scenarios with those names run. A scenario whose tests cannot
// be generated contributes one failure.
func (f *Feature) ExecuteTests(ctx context.Context, executor TestExecutor, suggestions []*Scenario, names ...string) result.Results {
	var results result.Results
	for _, s := range f.Scenarios {
		if !s.IsHTTP() || (len(names) > 0 && !contains(names, s.Name)) {
			continue
		}
		tests, err := s.NewBasedOn(suggestions).GenerateTestScenarios(f.TestVariables, f.TestBaseURLs)
		if err != nil {
			results = append(results, pattern.FailureFromError(err).WithScenario(s.Name))
			continue
		}
		for _, test := range tests {
			if err := ctx.Err(); err != nil {
				results = append(results, result.Fail("Test run cancelled: %s", err.Error()).WithScenario(test.Name))
				return results
			}
			outcome := ExecuteTest(ctx, test, executor)
			results = append(results, f.RecordOutcome(outcome))
		}
	}
	return results
}

// RecordOutcome logs a test outcome and forgives failures of scenarios
// marked as experimental.
func (f *Feature) RecordOutcome(outcome TestOutcome) result.Result {
	log := f.logger().With(map[string]any{"scenario": outcome.Scenario.Name})
	if outcome.Result.IsSuccess() {
		log.Debugf("passed")
		return outcome.Result
	}
	report := result.AsFailure(outcome.Result).Report().Text()
	if outcome.Scenario.IgnoreFailure {
		log.Warnf("ignored failure: %s", report)
		return result.Succeed()
	}
	log.Infof("failed: %s", report)
	return outcome.Result
}

// ExportValues runs the scenarios that declare bindings and collects the
// values they export. It is the usual source of References.
func (f *Feature) ExportValues(ctx context.Context, executor TestExecutor) (map[string]string, error) {
	exported := map[string]string{}
	for _, s := range f.Scenarios {
		if len(s.Bindings) == 0 {
			continue
		}
		outcome := ExecuteTest(ctx, s, executor)
		if !outcome.Result.IsSuccess() {
			return nil, errors.Errorf("scenario %q failed:\n%s", s.Name, result.AsFailure(outcome.Result).Report().Text())
		}
		values, err := s.ExportBindings(*outcome.Response)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %q", s.Name)
		}
		for k, v := range values {
			exported[k] = v
		}
	}
	return exported, nil
}

// MatchesMockKafkaMessage checks msg against the scenarios that publish
// messages: the first success wins, otherwise the first failure is returned.
func (f *Feature) MatchesMockKafkaMessage(msg KafkaMessage) result.Result {
	var first result.Result
	for _, s := range f.Scenarios {
		if s.KafkaMessage == nil {
			continue
		}
		res := s.KafkaMessage.Matches(msg, s.Resolver().WithMockMode(true)).WithScenario(s.Name)
		if res.IsSuccess() {
			return res
		}
		if first == nil {
			first = res
		}
	}
	if first == nil {
		return result.Fail("No match found, couldn't check the message")
	}
	return first
}

// AssertMatchesMockKafkaMessage is MatchesMockKafkaMessage returning a
// *MismatchError on failure.
func (f *Feature) AssertMatchesMockKafkaMessage(msg KafkaMessage) error {
	res := f.MatchesMockKafkaMessage(msg)
	if res.IsSuccess() {
		return nil
	}
	return &MismatchError{Failure: result.AsFailure(res)}
}

// LookupKafkaScenario compares an older message pattern with every scenario
// that publishes messages.
func (f *Feature) LookupKafkaScenario(older KafkaMessagePattern, olderR *pattern.Resolver) []KafkaMatch {
	var out []KafkaMatch
	for _, s := range f.Scenarios {
		if s.KafkaMessage == nil {
			continue
		}
		res := older.Encompasses(*s.KafkaMessage, olderR, s.Resolver()).WithScenario(s.Name)
		out = append(out, KafkaMatch{Scenario: s, Result: res})
	}
	return out
}

// scenariosLike returns the scenarios with the same method, path shape and
// status as s.
func (f *Feature) scenariosLike(s *Scenario) []*Scenario {
	var out []*Scenario
	for _, candidate := range f.Scenarios {
		if candidate.KafkaMessage != nil {
			continue
		}
		if !strings.EqualFold(candidate.Request.Method, s.Request.Method) {
			continue
		}
		if !candidate.Request.URL.SameShape(s.Request.URL) {
			continue
		}
		if candidate.Response.Status != s.Response.Status {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func scenarioNames(scenarios []*Scenario) []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	return names
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
