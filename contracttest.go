package specmatic

import (
	"context"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// TestExecutor sends generated requests to the system under test.
type TestExecutor interface {
	Execute(ctx context.Context, req HTTPRequest) (HTTPResponse, error)
	// SetServerState asks the system under test to establish facts before
	// the next request.
	SetServerState(ctx context.Context, state map[string]value.Value) error
}

// TestOutcome records one executed contract test.
type TestOutcome struct {
	Scenario *Scenario
	Request  HTTPRequest
	Response *HTTPResponse
	Result   result.Result
}

// ExecuteTest generates a request from s, sends it through executor and
// checks the response. Negative scenarios pass on any 4xx status.
func ExecuteTest(ctx context.Context, s *Scenario, executor TestExecutor) TestOutcome {
	out := TestOutcome{Scenario: s}

	r := s.Resolver().WithFacts(s.ExpectedFacts)
	if len(s.ExpectedFacts) > 0 {
		if err := executor.SetServerState(ctx, s.ExpectedFacts); err != nil {
			out.Result = result.Fail("Couldn't set server state: %s", err.Error()).WithScenario(s.Name)
			return out
		}
	}

	req, err := s.Request.Generate(r)
	if err != nil {
		out.Result = result.Fail("Couldn't generate a request: %s", err.Error()).WithScenario(s.Name)
		return out
	}
	out.Request = req

	resp, err := executor.Execute(ctx, req)
	if err != nil {
		out.Result = result.Fail("Error executing request: %s", err.Error()).WithScenario(s.Name)
		return out
	}
	out.Response = &resp

	if s.Negative {
		if resp.Status < 400 || resp.Status > 499 {
			out.Result = result.Fail("Expected a 4xx status for an invalid request, actual was %d", resp.Status).WithBreadcrumb("STATUS").WithScenario(s.Name)
			return out
		}
		out.Result = result.Succeed()
		return out
	}
	out.Result = s.Response.Matches(resp, r).WithScenario(s.Name)
	return out
}
