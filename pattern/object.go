package pattern

import (
	"fmt"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Object matches a JSON object field by field. Keys ending in "?" are
// optional. Keys the pattern does not declare are ignored unless the
// resolver is strict.
type Object struct {
	Fields map[string]Pattern
	Alias  string
}

// NewObject returns an Object over fields.
func NewObject(fields map[string]Pattern) Object {
	if fields == nil {
		fields = map[string]Pattern{}
	}
	return Object{Fields: fields}
}

func (Object) isPattern()          {}
func (Object) Kind() Kind          { return KindObject }
func (o Object) TypeAlias() string { return o.Alias }
func (Object) TypeName() string    { return "json object" }

// Field returns the pattern declared for name and the key it is declared
// under, with or without the optionality marker.
func (o Object) Field(name string) (key string, p Pattern, ok bool) {
	if p, ok := o.Fields[name]; ok {
		return name, p, true
	}
	if p, ok := o.Fields[name+"?"]; ok {
		return name + "?", p, true
	}
	return "", nil, false
}

func (o Object) Matches(v value.Value, r *Resolver) result.Result {
	obj, ok := v.(value.Object)
	if !ok {
		return result.Mismatch(o.TypeName(), v.Displayable())
	}
	return matchFields(o.Fields, obj, r, "Expected key named %q was missing")
}

// matchFields matches keyed values against keyed patterns in sorted key order
// and returns the first failure.
func matchFields(fields map[string]Pattern, obj value.Object, r *Resolver, missingFormat string) result.Result {
	for _, key := range sortedKeys(fields) {
		name := WithoutOptionality(key)
		actual, present := obj[name]
		if !present {
			if IsOptional(key) {
				continue
			}
			return result.Fail(missingFormat, name).WithBreadcrumb(name)
		}
		if res := r.MatchesPattern(name, fields[key], actual); !res.IsSuccess() {
			return res
		}
	}

	if r.StrictKeys() {
		for _, k := range obj.Keys() {
			if _, declared := fields[k]; declared {
				continue
			}
			if _, declared := fields[k+"?"]; declared {
				continue
			}
			return result.Fail("Key named %q was unexpected", k).WithBreadcrumb(k)
		}
	}
	return result.Succeed()
}

// Generate produces every field. Fields named after a known fact take the
// fact's value; optional fields that would recurse into a type already being
// generated are left out.
func (o Object) Generate(r *Resolver) (value.Value, error) {
	out := make(value.Object, len(o.Fields))
	for _, key := range sortedKeys(o.Fields) {
		name := WithoutOptionality(key)
		if fact, ok := r.Fact(name); ok {
			out[name] = fact
			continue
		}
		p := o.Fields[key]
		if IsOptional(key) && r.cyclic(p) {
			continue
		}
		v, err := p.Generate(r)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// NewBasedOn varies one field at a time: the first variant of every field,
// then for each field its remaining variants and, when optional, a variant
// without it. Example values pin a field to a single variant.
func (o Object) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	keys, variants, err := o.fieldVariants(row, r)
	if err != nil {
		return nil, err
	}
	base := baseFields(keys, variants)

	out := []Pattern{o.withFields(base)}
	for _, key := range keys {
		for _, alt := range variants[key][1:] {
			fields := copyFields(base)
			fields[key] = alt
			out = append(out, o.withFields(fields))
		}
		if IsOptional(key) && !row.Contains(WithoutOptionality(key)) {
			fields := copyFields(base)
			delete(fields, key)
			out = append(out, o.withFields(fields))
		}
	}
	return dedupe(out), nil
}

func (o Object) fieldVariants(row Row, r *Resolver) ([]string, map[string][]Pattern, error) {
	keys := sortedKeys(o.Fields)
	variants := make(map[string][]Pattern, len(keys))
	for _, key := range keys {
		name := WithoutOptionality(key)
		p := o.Fields[key]
		if cell, ok := row.Value(name); ok {
			v, err := exampleVariant(p, cell, r)
			if err != nil {
				return nil, nil, asContractError(err).WithBreadcrumb(name)
			}
			variants[key] = []Pattern{v}
			continue
		}
		vs, err := p.NewBasedOn(row, r)
		if err != nil {
			return nil, nil, err
		}
		if len(vs) == 0 {
			vs = []Pattern{p}
		}
		variants[key] = vs
	}
	return keys, variants, nil
}

func baseFields(keys []string, variants map[string][]Pattern) map[string]Pattern {
	base := make(map[string]Pattern, len(keys))
	for _, key := range keys {
		base[key] = variants[key][0]
	}
	return base
}

// NegativeBasedOn mutates one field at a time into a type it must not accept,
// and drops each required field in turn. The other fields keep their first
// positive variant, so example values survive in every negative. Fields
// pinned by the example row are never mutated.
func (o Object) NegativeBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	keys, variants, err := o.fieldVariants(row, r)
	if err != nil {
		return nil, err
	}
	base := baseFields(keys, variants)

	var out []Pattern
	for _, key := range keys {
		name := WithoutOptionality(key)
		if row.Contains(name) {
			continue
		}
		negatives, err := o.Fields[key].NegativeBasedOn(row, r)
		if err != nil {
			return nil, err
		}
		for _, neg := range negatives {
			fields := copyFields(base)
			delete(fields, key)
			fields[name] = neg
			out = append(out, o.withFields(fields))
		}
		if !IsOptional(key) {
			fields := copyFields(base)
			delete(fields, key)
			out = append(out, o.withFields(fields))
		}
	}
	return dedupe(out), nil
}

// Encompasses applies the object compatibility rule: every key the older
// pattern requires must still be declared, and no key may become required
// that the older pattern did not require. In reader view the receiver reads
// what older provides instead; see encompassesProvided.
func (o Object) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if res, ok := encompassesCommon(o, older, newerR, olderR); ok {
		return res
	}
	switch old := older.(type) {
	case Object:
		if newerR.ReaderView() {
			return encompassesProvided(o.Fields, old.Fields, newerR, olderR)
		}
		return encompassesFields(o.Fields, old.Fields, newerR, olderR)
	case Exact:
		return o.Matches(old.Value, newerR)
	default:
		return result.Mismatch(o.TypeName(), older.TypeName())
	}
}

func encompassesFields(newer, older map[string]Pattern, newerR, olderR *Resolver) result.Result {
	for _, olderKey := range sortedKeys(older) {
		name := WithoutOptionality(olderKey)
		newerKey, newerP, ok := Object{Fields: newer}.Field(name)
		if !ok {
			if IsOptional(olderKey) {
				continue
			}
			return result.Fail("Expected key named %q was missing", name).WithBreadcrumb(name)
		}
		if !IsOptional(newerKey) && IsOptional(olderKey) {
			return result.Fail("Key named %q is mandatory, but was optional in the type it is compared with", name).WithBreadcrumb(name)
		}
		if res := newerP.Encompasses(older[olderKey], newerR, olderR); !res.IsSuccess() {
			return res.WithBreadcrumb(name)
		}
	}
	for _, newerKey := range sortedKeys(newer) {
		if IsOptional(newerKey) {
			continue
		}
		if _, _, ok := (Object{Fields: older}).Field(newerKey); !ok {
			return result.Fail("Key named %q is mandatory, but was absent in the type it is compared with", newerKey).WithBreadcrumb(newerKey)
		}
	}
	return result.Succeed()
}

// encompassesProvided checks that provided still carries every key reader
// requires, as a required key of a compatible type. Keys only provided has
// are ignored, and optional reader keys need only agree when present.
func encompassesProvided(reader, provided map[string]Pattern, readerR, providedR *Resolver) result.Result {
	for _, readerKey := range sortedKeys(reader) {
		name := WithoutOptionality(readerKey)
		providedKey, providedP, ok := Object{Fields: provided}.Field(name)
		if !ok {
			if IsOptional(readerKey) {
				continue
			}
			return result.Fail("Expected key named %q was missing", name).WithBreadcrumb(name)
		}
		if !IsOptional(readerKey) && IsOptional(providedKey) {
			return result.Fail("Key named %q is mandatory, but was optional in the type it is compared with", name).WithBreadcrumb(name)
		}
		if res := reader[readerKey].Encompasses(providedP, readerR, providedR); !res.IsSuccess() {
			return res.WithBreadcrumb(name)
		}
	}
	return result.Succeed()
}

func (o Object) Parse(s string, _ *Resolver) (value.Value, error) {
	v, err := value.ParseJSON(s)
	if err != nil {
		return nil, NewContractError("Couldn't parse %q as json object", s)
	}
	if _, ok := v.(value.Object); !ok {
		return nil, NewContractError("Expected json object, actual was %s", v.Displayable())
	}
	return v, nil
}

func (o Object) withFields(fields map[string]Pattern) Object {
	return Object{Fields: fields, Alias: o.Alias}
}

func copyFields(fields map[string]Pattern) map[string]Pattern {
	out := make(map[string]Pattern, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
