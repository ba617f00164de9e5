package specmatic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// ServerState holds the facts a caller establishes before one request. It is
// passed to every lookup and never stored.
type ServerState map[string]value.Value

// Scenario is one request/response unit of a contract.
type Scenario struct {
	Name          string
	Request       HTTPRequestPattern
	Response      HTTPResponsePattern
	ExpectedFacts map[string]value.Value
	Examples      []pattern.Examples
	Patterns      map[string]pattern.Pattern
	Fixtures      map[string]value.Value
	KafkaMessage  *KafkaMessagePattern

	// IgnoreFailure marks an experimental scenario whose test failures are
	// reported but do not fail the run.
	IgnoreFailure bool

	References map[string]*References
	// Bindings maps exported names to selectors such as response-body.id.
	Bindings map[string]string

	// Negative scenarios expect the request to be rejected with a 4xx status.
	Negative bool
	// AncestorHeaders are the headers of the contract a stub scenario was
	// derived from. When nil, the scenario's own request headers are used.
	AncestorHeaders map[string]pattern.Pattern

	GenerativeTests bool
	MaxDepth        int
}

func (s *Scenario) clone() *Scenario {
	c := *s
	return &c
}

// Resolver returns a fresh resolver over the scenario's named types.
func (s *Scenario) Resolver() *pattern.Resolver {
	r := pattern.NewResolver(s.Patterns).WithGenerativeTests(s.GenerativeTests)
	if s.MaxDepth > 0 {
		r = r.WithMaxDepth(s.MaxDepth)
	}
	return r
}

func (s *Scenario) ancestorHeaders() map[string]pattern.Pattern {
	if s.AncestorHeaders != nil {
		return s.AncestorHeaders
	}
	if s.Request.Headers.Pattern == nil {
		return map[string]pattern.Pattern{}
	}
	return s.Request.Headers.Pattern
}

// Matches checks req against the request pattern. When state is not empty
// it must also agree with the scenario's expected facts.
func (s *Scenario) Matches(req HTTPRequest, state ServerState) result.Result {
	r := s.Resolver().WithFacts(state)
	if res := s.matchesFacts(state, r); !res.IsSuccess() {
		return res.WithScenario(s.Name)
	}
	return s.Request.Matches(req, r).WithScenario(s.Name)
}

// MatchesStub is Matches with the ancestor header allowance: headers the
// contract declares are checked even when this scenario does not repeat them,
// and headers the contract does not know are ignored.
func (s *Scenario) MatchesStub(req HTTPRequest, state ServerState) result.Result {
	r := s.Resolver().WithFacts(state)
	if res := s.matchesFacts(state, r); !res.IsSuccess() {
		return res.WithScenario(s.Name)
	}
	p := s.Request
	p.Headers.Ancestors = s.ancestorHeaders()
	return p.Matches(req, r).WithScenario(s.Name)
}

// MatchesMock checks a request/response pair written by hand for a stub.
// Pattern tokens stand in for values and undeclared keys are rejected.
func (s *Scenario) MatchesMock(req HTTPRequest, resp HTTPResponse) result.Result {
	r := s.Resolver().WithMockMode(true).WithStrictKeys(true)
	p := s.Request
	p.Headers.Ancestors = s.ancestorHeaders()
	if res := p.Matches(req, r); !res.IsSuccess() {
		return res.WithScenario(s.Name)
	}
	return s.Response.Matches(resp, r).WithScenario(s.Name)
}

// MatchesResponse checks resp against the response pattern.
func (s *Scenario) MatchesResponse(resp HTTPResponse) result.Result {
	return s.Response.Matches(resp, s.Resolver()).WithScenario(s.Name)
}

func (s *Scenario) matchesFacts(state ServerState, r *pattern.Resolver) result.Result {
	if len(state) == 0 {
		return result.Succeed()
	}
	for _, key := range sortedValueKeys(state) {
		if _, ok := s.ExpectedFacts[key]; !ok {
			return result.Fail("Fact %s was not expected", key).WithBreadcrumb("FACTS")
		}
	}
	for _, key := range sortedValueKeys(s.ExpectedFacts) {
		expected := s.ExpectedFacts[key]
		actual, ok := state[key]
		if !ok {
			return result.Fail("Fact %s was missing", key).WithBreadcrumb("FACTS")
		}
		if expected.Equal(value.True) || actual.Equal(value.True) {
			continue
		}
		if token, isString := expected.(value.String); isString && pattern.IsPatternToken(string(token)) {
			p, err := pattern.ParsePattern(string(token))
			if err != nil {
				return pattern.FailureFromError(err).WithBreadcrumb(key).WithBreadcrumb("FACTS")
			}
			if res := matchText(key, p, actual.String(), r); !res.IsSuccess() {
				return res.WithBreadcrumb("FACTS")
			}
			continue
		}
		if expected.String() != actual.String() {
			return result.Mismatch(expected.Displayable(), actual.Displayable()).WithBreadcrumb(key).WithBreadcrumb("FACTS")
		}
	}
	return result.Succeed()
}

// GenerateHTTPResponse produces a response. The server state overrides the
// scenario's expected facts, and both feed fields and headers of the same
// name.
func (s *Scenario) GenerateHTTPResponse(state ServerState) (HTTPResponse, error) {
	r := s.Resolver().WithFacts(combineFacts(s.ExpectedFacts, state))
	resp, err := s.Response.Generate(r)
	if err != nil {
		return HTTPResponse{}, errors.Wrapf(err, "generate response for scenario %q", s.Name)
	}
	return resp, nil
}

func combineFacts(expected map[string]value.Value, state ServerState) map[string]value.Value {
	facts := make(map[string]value.Value, len(expected)+len(state))
	for k, v := range expected {
		// true only says the fact must exist; it is not a value to serve.
		if v.Equal(value.True) {
			continue
		}
		if s, ok := v.(value.String); ok && pattern.IsPatternToken(string(s)) {
			continue
		}
		facts[k] = v
	}
	for k, v := range state {
		if v.Equal(value.True) {
			continue
		}
		facts[k] = v
	}
	return facts
}

// ExportBindings evaluates the scenario's bindings against resp.
func (s *Scenario) ExportBindings(resp HTTPResponse) (map[string]string, error) {
	out := make(map[string]string, len(s.Bindings))
	for _, name := range sortedStringKeys(s.Bindings) {
		sel, err := ParseSelector(s.Bindings[name])
		if err != nil {
			return nil, errors.Wrapf(err, "binding %s", name)
		}
		v, err := sel.Select(resp)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %s", name)
		}
		out[name] = v
	}
	return out, nil
}

// NewBasedOn takes the examples and named types of the suggestion with the
// same name, if any.
func (s *Scenario) NewBasedOn(suggestions []*Scenario) *Scenario {
	for _, suggestion := range suggestions {
		if suggestion.Name != s.Name {
			continue
		}
		c := s.clone()
		c.Examples = suggestion.Examples
		if len(suggestion.Patterns) > 0 {
			merged := make(map[string]pattern.Pattern, len(s.Patterns)+len(suggestion.Patterns))
			for k, v := range s.Patterns {
				merged[k] = v
			}
			for k, v := range suggestion.Patterns {
				merged[k] = v
			}
			c.Patterns = merged
		}
		return c
	}
	return s
}

func (s *Scenario) rows() []pattern.Row {
	var rows []pattern.Row
	for _, ex := range s.Examples {
		for _, row := range ex.Rows {
			if row.Name == "" && ex.Name != "" {
				row.Name = ex.Name
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return []pattern.Row{{}}
	}
	return rows
}

// IsHTTP reports whether the scenario describes an HTTP exchange rather
// than only a published message.
func (s *Scenario) IsHTTP() bool { return s.Request.Method != "" }

// GenerateTestScenarios expands the scenario into runnable test scenarios,
// one per request variant and example row. Row cells of the form $(name)
// take values from variables and $(ref.name) from the scenario's references,
// loaded against baseURLs. When the resolver runs generative tests, negative
// scenarios follow the positive ones.
func (s *Scenario) GenerateTestScenarios(variables, baseURLs map[string]string) ([]*Scenario, error) {
	r := s.Resolver()
	lookup := func(ref, key string) (string, error) {
		refs, ok := s.References[ref]
		if !ok {
			return "", errors.Errorf("references %s are not declared", ref)
		}
		return refs.Lookup(key, baseURLs)
	}

	var out []*Scenario
	for _, example := range s.rows() {
		row, err := example.Substitute(variables, lookup)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %q", s.Name)
		}
		facts := s.factsFor(row)

		requests, err := s.Request.NewBasedOn(row, r)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %q", s.Name)
		}
		for _, req := range requests {
			out = append(out, s.derive(testName(s.Name, row), req, facts, false))
		}

		if !r.GenerativeTests() {
			continue
		}
		negatives, err := s.Request.NegativeBasedOn(row, r)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %q", s.Name)
		}
		for i, req := range negatives {
			name := fmt.Sprintf("%s (negative #%d)", testName(s.Name, row), i+1)
			out = append(out, s.derive(name, req, facts, true))
		}
	}
	return out, nil
}

// GenerateBackwardCompatibilityScenarios expands the request structure
// without examples.
func (s *Scenario) GenerateBackwardCompatibilityScenarios() ([]*Scenario, error) {
	requests, err := s.Request.NewBasedOn(pattern.Row{}, s.Resolver())
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q", s.Name)
	}
	out := make([]*Scenario, len(requests))
	for i, req := range requests {
		out[i] = s.derive(s.Name, req, s.ExpectedFacts, false)
	}
	return out, nil
}

func (s *Scenario) derive(name string, req HTTPRequestPattern, facts map[string]value.Value, negative bool) *Scenario {
	c := s.clone()
	c.Name = name
	c.Request = req
	c.ExpectedFacts = facts
	c.Examples = nil
	c.Negative = negative
	return c
}

// factsFor takes expected facts from the example row when it has a column of
// the same name.
func (s *Scenario) factsFor(row pattern.Row) map[string]value.Value {
	if len(s.ExpectedFacts) == 0 {
		return s.ExpectedFacts
	}
	facts := make(map[string]value.Value, len(s.ExpectedFacts))
	for k, v := range s.ExpectedFacts {
		if cell, ok := row.Value(k); ok {
			facts[k] = value.FromString(cell)
			continue
		}
		if fixture, ok := s.Fixtures[k]; ok && v.Equal(value.True) {
			facts[k] = fixture
			continue
		}
		facts[k] = v
	}
	return facts
}

func testName(name string, row pattern.Row) string {
	if row.Name == "" {
		return name
	}
	return name + " | EX:" + row.Name
}

// Description is the one-line summary used in test reports.
func (s *Scenario) Description() string {
	var b strings.Builder
	if s.IgnoreFailure {
		b.WriteString("[WIP] ")
	}
	b.WriteString("Scenario: ")
	b.WriteString(s.Name)
	if s.Request.Method != "" {
		b.WriteString(" | ")
		b.WriteString(strings.ToUpper(s.Request.Method))
		b.WriteByte(' ')
		b.WriteString(s.Request.URL.String())
	}
	if s.Negative {
		b.WriteString(" -> 4xx")
	} else if s.Response.Status != 0 {
		fmt.Fprintf(&b, " -> %d", s.Response.Status)
	}
	return b.String()
}

func sortedValueKeys(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
