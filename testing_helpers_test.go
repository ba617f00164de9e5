package specmatic

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/value"
)

func mustURL(t *testing.T, template string) URLMatcher {
	t.Helper()
	m, err := ParseURLMatcher(template)
	require.NoError(t, err)
	return m
}

func mustPattern(t *testing.T, s string) pattern.Pattern {
	t.Helper()
	p, err := pattern.ParsePattern(s)
	require.NoError(t, err)
	return p
}

func productScenario(t *testing.T) *Scenario {
	t.Helper()
	return &Scenario{
		Name: "Get product",
		Request: HTTPRequestPattern{
			Method:  "GET",
			URL:     mustURL(t, "/products/(id:number)"),
			Headers: NewHeadersPattern(nil),
		},
		Response: HTTPResponsePattern{
			Status:  200,
			Headers: NewHeadersPattern(nil),
			Body:    mustPattern(t, `{"id": "(number)", "name": "(string)"}`),
		},
	}
}

func orderScenario(t *testing.T, body string) *Scenario {
	t.Helper()
	return &Scenario{
		Name: "Create order",
		Request: HTTPRequestPattern{
			Method:  "POST",
			URL:     mustURL(t, "/orders"),
			Headers: NewHeadersPattern(nil),
			Body:    mustPattern(t, body),
		},
		Response: HTTPResponsePattern{Status: 201, Headers: NewHeadersPattern(nil)},
	}
}

// fakeExecutor answers generated requests in memory.
type fakeExecutor struct {
	handle func(HTTPRequest) HTTPResponse

	mu       sync.Mutex
	requests []HTTPRequest
	states   []map[string]value.Value
}

func (e *fakeExecutor) Execute(_ context.Context, req HTTPRequest) (HTTPResponse, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	return e.handle(req), nil
}

func (e *fakeExecutor) SetServerState(_ context.Context, state map[string]value.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, state)
	return nil
}
