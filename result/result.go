// Package result models the outcome of matching a value against a pattern.
//
// Mismatches are ordinary values: callers rank and aggregate them instead of
// unwinding the stack.
package result

import (
	"fmt"
	"strings"
)

// Result is either Success or *Failure.
type Result interface {
	IsSuccess() bool
	// WithBreadcrumb prefixes the failure location with key. Success is unchanged.
	WithBreadcrumb(key string) Result
	// WithScenario tags the failure with the scenario it came from.
	WithScenario(name string) Result
}

// Success is the result of a successful match.
type Success struct{}

func (Success) IsSuccess() bool                { return true }
func (s Success) WithBreadcrumb(string) Result { return s }
func (s Success) WithScenario(string) Result   { return s }

// Failure describes a mismatch. Cause points at the deeper failure that
// produced this one, so a chain of failures reads outermost first.
type Failure struct {
	Message      string
	Cause        *Failure
	Breadcrumb   string
	Fluffy       bool
	ScenarioName string
}

func (*Failure) IsSuccess() bool { return false }

// WithBreadcrumb returns a copy of f located under key. When f already has a
// breadcrumb, the copy wraps f as its cause.
func (f *Failure) WithBreadcrumb(key string) Result {
	if f.Breadcrumb == "" {
		c := *f
		c.Breadcrumb = key
		return &c
	}
	return &Failure{Cause: f, Breadcrumb: key, Fluffy: f.Fluffy, ScenarioName: f.ScenarioName}
}

func (f *Failure) WithScenario(name string) Result {
	c := *f
	c.ScenarioName = name
	return &c
}

// Fluff returns a copy of f marked as fluffy.
func (f *Failure) Fluff() *Failure {
	c := *f
	c.Fluffy = true
	return &c
}

// IsFluffy reports whether any failure along the cause chain is fluffy.
func (f *Failure) IsFluffy() bool {
	for cur := f; cur != nil; cur = cur.Cause {
		if cur.Fluffy {
			return true
		}
	}
	return false
}

// Report collects breadcrumbs and messages along the cause chain.
func (f *Failure) Report() FailureReport {
	report := FailureReport{ScenarioName: f.ScenarioName}
	for cur := f; cur != nil; cur = cur.Cause {
		if cur.Breadcrumb != "" {
			report.Breadcrumbs = append(report.Breadcrumbs, cur.Breadcrumb)
		}
		if cur.Message != "" {
			report.Messages = append(report.Messages, cur.Message)
		}
		if report.ScenarioName == "" {
			report.ScenarioName = cur.ScenarioName
		}
	}
	return report
}

func (f *Failure) Error() string { return f.Report().Text() }

// FailureReport is the flattened, printable form of a Failure.
type FailureReport struct {
	ScenarioName string
	Breadcrumbs  []string
	Messages     []string
}

// Path joins the breadcrumbs, e.g. BODY.items[0].id.
func (r FailureReport) Path() string {
	var b strings.Builder
	for i, crumb := range r.Breadcrumbs {
		if i > 0 && !strings.HasPrefix(crumb, "[") {
			b.WriteByte('.')
		}
		b.WriteString(crumb)
	}
	return b.String()
}

// Text renders the report for humans.
func (r FailureReport) Text() string {
	var parts []string
	if r.ScenarioName != "" {
		parts = append(parts, fmt.Sprintf("In scenario %q", r.ScenarioName))
	}
	if path := r.Path(); path != "" {
		parts = append(parts, ">> "+path)
	}

	messages := strings.Join(r.Messages, "\n")
	if len(parts) == 0 {
		return messages
	}
	if messages == "" {
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, "\n") + "\n\n" + messages
}

func (r FailureReport) IsEmpty() bool {
	return len(r.Breadcrumbs) == 0 && len(r.Messages) == 0
}

// Succeed returns Success.
func Succeed() Result { return Success{} }

// Fail returns a failure with a formatted message.
func Fail(format string, args ...any) *Failure {
	if len(args) == 0 {
		return &Failure{Message: format}
	}
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// FailFluffy returns a fluffy failure.
func FailFluffy(format string, args ...any) *Failure {
	return Fail(format, args...).Fluff()
}

// Mismatch returns the standard wrong-type failure.
func Mismatch(expected, actual string) *Failure {
	return &Failure{Message: fmt.Sprintf("Expected %s, actual was %s", expected, actual)}
}

// Breadcrumb wraps r under key when it is a failure.
func Breadcrumb(r Result, key string) Result {
	if r == nil {
		return Success{}
	}
	return r.WithBreadcrumb(key)
}

// AsFailure returns r as a failure, or nil on success.
func AsFailure(r Result) *Failure {
	f, _ := r.(*Failure)
	return f
}

// All returns the first failure among the results, or Success.
func All(results ...Result) Result {
	for _, r := range results {
		if r != nil && !r.IsSuccess() {
			return r
		}
	}
	return Success{}
}
