package pattern

import (
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Any matches when one of its alternatives matches. A Null alternative makes
// the pattern nullable; Exact alternatives make it an enumeration.
type Any struct {
	Alternatives []Pattern
	Alias        string
}

// Nullable returns p widened to also accept null.
func Nullable(p Pattern) Any {
	return Any{Alternatives: []Pattern{Null{}, p}}
}

// ParseEnum builds an enumeration named alias whose members are values of
// typ parsed from values.
func ParseEnum(alias string, typ Pattern, values []string) (Any, error) {
	alts := make([]Pattern, 0, len(values))
	for _, s := range values {
		v, err := typ.Parse(s, NewResolver(nil))
		if err != nil {
			return Any{}, asContractError(err).WithBreadcrumb(alias)
		}
		alts = append(alts, Exact{Value: v})
	}
	return Any{Alternatives: alts, Alias: alias}, nil
}

func (Any) isPattern()          {}
func (Any) Kind() Kind          { return KindAny }
func (a Any) TypeAlias() string { return a.Alias }

func (a Any) TypeName() string {
	names := make([]string, 0, len(a.Alternatives))
	for _, alt := range a.Alternatives {
		names = append(names, alt.TypeName())
	}
	return "(" + strings.Join(names, " or ") + ")"
}

func (a Any) Matches(v value.Value, r *Resolver) result.Result {
	var failures []result.Result
	for _, alt := range a.Alternatives {
		res := alt.Matches(v, r)
		if res.IsSuccess() {
			return res
		}
		if !isEmpty(alt) {
			failures = append(failures, res)
		}
	}
	if len(failures) == 1 {
		return failures[0]
	}
	return result.Mismatch(a.TypeName(), v.Displayable())
}

// Generate uses the first non-empty alternative that does not recurse into a
// type already being generated, falling back to null when nullable.
func (a Any) Generate(r *Resolver) (value.Value, error) {
	if len(a.Alternatives) == 0 {
		return nil, NewContractError("Cannot generate a value of an empty alternative set")
	}
	nullable := false
	for _, alt := range a.Alternatives {
		if isEmpty(alt) {
			nullable = true
			continue
		}
		if !r.cyclic(alt) {
			return alt.Generate(r)
		}
	}
	if nullable {
		return value.Null{}, nil
	}
	for _, alt := range a.Alternatives {
		if !isEmpty(alt) {
			return alt.Generate(r)
		}
	}
	return a.Alternatives[0].Generate(r)
}

// NewBasedOn returns the variants of every alternative, non-empty ones first.
func (a Any) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	var out, empties []Pattern
	for _, alt := range a.Alternatives {
		vs, err := alt.NewBasedOn(row, r)
		if err != nil {
			return nil, err
		}
		if isEmpty(alt) {
			empties = append(empties, vs...)
			continue
		}
		out = append(out, vs...)
	}
	return dedupe(append(out, empties...)), nil
}

// NegativeBasedOn gathers the negatives of every alternative and keeps only
// those no alternative accepts. A nullable pattern never gets null.
func (a Any) NegativeBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	var candidates []Pattern
	for _, alt := range a.Alternatives {
		if isEmpty(alt) {
			continue
		}
		negs, err := alt.NegativeBasedOn(row, r)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, negs...)
	}

	var out []Pattern
	for _, c := range dedupe(candidates) {
		accepted := false
		for _, alt := range a.Alternatives {
			if _, isExact := alt.(Exact); isExact {
				continue
			}
			if alt.Encompasses(c, r, r).IsSuccess() {
				accepted = true
				break
			}
		}
		if !accepted {
			out = append(out, c)
		}
	}
	return out, nil
}

// Encompasses succeeds when some alternative accepts older. An older Any is
// split by encompassesCommon so each of its alternatives must be covered.
func (a Any) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if res, ok := encompassesCommon(a, older, newerR, olderR); ok {
		return res
	}
	var first result.Result
	for _, alt := range a.Alternatives {
		res := alt.Encompasses(older, newerR, olderR)
		if res.IsSuccess() {
			return res
		}
		if first == nil && !isEmpty(alt) {
			first = res
		}
	}
	nonEmpty := 0
	for _, alt := range a.Alternatives {
		if !isEmpty(alt) {
			nonEmpty++
		}
	}
	if nonEmpty == 1 && first != nil {
		return first
	}
	return result.Mismatch(a.TypeName(), older.TypeName())
}

// Parse uses the first alternative that can read s.
func (a Any) Parse(s string, r *Resolver) (value.Value, error) {
	var errs []error
	for _, alt := range a.Alternatives {
		v, err := alt.Parse(s, r)
		if err == nil {
			return v, nil
		}
		if !isEmpty(alt) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 1 {
		return nil, errs[0]
	}
	return nil, convertError(s, a.TypeName())
}

func asContractError(err error) *ContractError {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce
	}
	return NewContractError("%s", err)
}
