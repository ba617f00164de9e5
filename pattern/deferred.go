package pattern

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Deferred refers to a named type by alias, e.g. "(Person)". It is resolved
// through the resolver each time it is used, which is what allows a type to
// refer to itself.
type Deferred struct {
	Alias string
}

func (Deferred) isPattern()          {}
func (Deferred) Kind() Kind          { return KindDeferred }
func (d Deferred) TypeAlias() string { return d.Alias }
func (d Deferred) TypeName() string  { return withoutPatternDelimiters(d.Alias) }

func (d Deferred) Matches(v value.Value, r *Resolver) result.Result {
	p, err := r.Resolve(d)
	if err != nil {
		return FailureFromError(err)
	}
	return p.Matches(v, r)
}

// Generate fails with a RecursionError when the alias is already being
// generated: only required fields get here on a cycle.
func (d Deferred) Generate(r *Resolver) (value.Value, error) {
	if r.isVisiting(d.Alias) {
		return nil, &RecursionError{Chain: append(r.visiting.list(), d.Alias)}
	}
	p, err := r.Pattern(d.Alias)
	if err != nil {
		return nil, err
	}
	inner, err := r.visit(d.Alias)
	if err != nil {
		return nil, err
	}
	return p.Generate(inner)
}

// NewBasedOn expands the named type once. A type reached again while it is
// being expanded stays a reference.
func (d Deferred) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	if IsBuiltin(d.Alias) || r.isVisiting(d.Alias) {
		return []Pattern{d}, nil
	}
	p, err := r.Pattern(d.Alias)
	if err != nil {
		return nil, err
	}
	inner, err := r.visit(d.Alias)
	if err != nil {
		return nil, err
	}
	return p.NewBasedOn(row, inner)
}

func (d Deferred) NegativeBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	if r.isVisiting(d.Alias) {
		return nil, nil
	}
	p, err := r.Pattern(d.Alias)
	if err != nil {
		return nil, err
	}
	inner, err := r.visit(d.Alias)
	if err != nil {
		return nil, err
	}
	return p.NegativeBasedOn(row, inner)
}

func (d Deferred) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if res, ok := encompassesCommon(d, older, newerR, olderR); ok {
		return res
	}
	p, err := newerR.Pattern(d.Alias)
	if err != nil {
		return FailureFromError(err)
	}
	return p.Encompasses(older, newerR, olderR)
}

func (d Deferred) Parse(s string, r *Resolver) (value.Value, error) {
	p, err := r.Resolve(d)
	if err != nil {
		return nil, err
	}
	return p.Parse(s, r)
}

func withoutPatternDelimiters(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
}

func withPatternDelimiters(s string) string {
	if IsPatternToken(s) {
		return s
	}
	return "(" + s + ")"
}
