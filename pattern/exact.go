package pattern

import (
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Exact matches only values structurally equal to Value.
type Exact struct {
	Value value.Value
}

func (Exact) isPattern()         {}
func (Exact) Kind() Kind         { return KindExact }
func (Exact) TypeAlias() string  { return "" }
func (e Exact) TypeName() string { return e.Value.Displayable() }

func (e Exact) Matches(v value.Value, _ *Resolver) result.Result {
	if e.Value.Equal(v) {
		return result.Succeed()
	}
	return result.Mismatch(e.Value.Displayable(), v.Displayable())
}

func (e Exact) Generate(*Resolver) (value.Value, error) { return e.Value, nil }

func (e Exact) NewBasedOn(Row, *Resolver) ([]Pattern, error) { return []Pattern{e}, nil }

// NegativeBasedOn returns the scalar types the value is not an instance of.
func (e Exact) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	switch e.Value.(type) {
	case value.Number:
		return []Pattern{Null{}, Boolean{}, String{}}, nil
	case value.String:
		return []Pattern{Null{}, Number{}, Boolean{}}, nil
	case value.Boolean:
		return []Pattern{Null{}, Number{}, String{}}, nil
	case value.Null:
		return nil, nil
	default:
		return []Pattern{Null{}}, nil
	}
}

func (e Exact) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if r, ok := encompassesCommon(e, older, newerR, olderR); ok {
		return r
	}
	if o, ok := older.(Exact); ok {
		return e.Matches(o.Value, newerR)
	}
	return result.Mismatch(e.Value.Displayable(), older.TypeName())
}

// Parse reads s as a value of the same kind as the expected value.
func (e Exact) Parse(s string, r *Resolver) (value.Value, error) {
	switch e.Value.(type) {
	case value.String:
		return value.String(s), nil
	case value.Number:
		return Number{}.Parse(s, r)
	case value.Boolean:
		return Boolean{}.Parse(s, r)
	case value.Null:
		return Null{}.Parse(s, r)
	case value.List, value.Object:
		v, err := value.ParseJSON(s)
		if err != nil {
			return nil, NewContractError("Couldn't parse %q as %s", s, e.Value.TypeName())
		}
		return v, nil
	case *value.XMLNode:
		return XML{}.Parse(s, r)
	default:
		return value.FromString(s), nil
	}
}
