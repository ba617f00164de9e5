package pattern

import (
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// LookupRow wraps Inner with the example column that supplies its value
// during test generation.
type LookupRow struct {
	Inner  Pattern
	Column string
}

func (LookupRow) isPattern()          {}
func (LookupRow) Kind() Kind          { return KindLookupRow }
func (l LookupRow) TypeAlias() string { return l.Inner.TypeAlias() }
func (l LookupRow) TypeName() string  { return l.Inner.TypeName() }

func (l LookupRow) Matches(v value.Value, r *Resolver) result.Result { return l.Inner.Matches(v, r) }

func (l LookupRow) Generate(r *Resolver) (value.Value, error) { return l.Inner.Generate(r) }

func (l LookupRow) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	if cell, ok := row.Value(l.Column); ok {
		v, err := exampleVariant(l.Inner, cell, r)
		if err != nil {
			return nil, asContractError(err).WithBreadcrumb(l.Column)
		}
		return []Pattern{v}, nil
	}
	return l.Inner.NewBasedOn(row, r)
}

func (l LookupRow) NegativeBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	if row.Contains(l.Column) {
		return nil, nil
	}
	return l.Inner.NegativeBasedOn(row, r)
}

func (l LookupRow) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return l.Inner.Encompasses(older, newerR, olderR)
}

func (l LookupRow) Parse(s string, r *Resolver) (value.Value, error) { return l.Inner.Parse(s, r) }
