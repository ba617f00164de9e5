package pattern

import (
	"fmt"
	"math/rand/v2"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// List matches a JSON array whose every element matches Element.
type List struct {
	Element Pattern
	Alias   string
}

func (List) isPattern()          {}
func (List) Kind() Kind          { return KindList }
func (l List) TypeAlias() string { return l.Alias }
func (l List) TypeName() string  { return "list of " + l.Element.TypeName() }

func (l List) Matches(v value.Value, r *Resolver) result.Result {
	items, ok := v.(value.List)
	if !ok {
		return result.Mismatch("json array", v.Displayable())
	}
	for i, item := range items {
		if res := r.MatchesPattern(fmt.Sprintf("[%d]", i), l.Element, item); !res.IsSuccess() {
			return res
		}
	}
	return result.Succeed()
}

// Generate produces one to three elements, or none when the element type is
// already being generated further up.
func (l List) Generate(r *Resolver) (value.Value, error) {
	if r.cyclic(l.Element) {
		return value.List{}, nil
	}
	n := rand.IntN(3) + 1
	out := make(value.List, 0, n)
	for i := 0; i < n; i++ {
		v, err := l.Element.Generate(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l List) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	elements, err := l.Element.NewBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	out := make([]Pattern, 0, len(elements))
	for _, e := range elements {
		out = append(out, List{Element: e, Alias: l.Alias})
	}
	return out, nil
}

func (List) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, String{}, Boolean{}}, nil
}

func (l List) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if res, ok := encompassesCommon(l, older, newerR, olderR); ok {
		return res
	}
	switch o := older.(type) {
	case List:
		return l.Element.Encompasses(o.Element, newerR, olderR)
	case Exact:
		return l.Matches(o.Value, newerR)
	default:
		return result.Mismatch(l.TypeName(), older.TypeName())
	}
}

func (l List) Parse(s string, _ *Resolver) (value.Value, error) {
	v, err := value.ParseJSON(s)
	if err != nil {
		return nil, NewContractError("Couldn't parse %q as json array", s)
	}
	if _, ok := v.(value.List); !ok {
		return nil, NewContractError("Expected json array, actual was %s", v.Displayable())
	}
	return v, nil
}
