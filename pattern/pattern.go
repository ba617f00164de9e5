// Package pattern implements the structural type system contracts are written
// in. A Pattern knows how to match a value, generate one, derive variants of
// itself for test generation, and decide whether it still accepts everything
// an older version of itself accepted.
package pattern

import (
	"sort"
	"strings"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Pattern is a structural type. The set of implementations is closed to this
// package.
type Pattern interface {
	// Matches checks v structurally. Mismatches are returned, never raised.
	Matches(v value.Value, r *Resolver) result.Result
	// Generate fabricates a value that Matches accepts.
	Generate(r *Resolver) (value.Value, error)
	// NewBasedOn returns the positive variants used for test generation.
	// Values in row override generated ones.
	NewBasedOn(row Row, r *Resolver) ([]Pattern, error)
	// NegativeBasedOn returns variants that must be rejected by a correct
	// implementation.
	NegativeBasedOn(row Row, r *Resolver) ([]Pattern, error)
	// Encompasses reports whether the receiver (the newer pattern) accepts
	// everything older accepted. Each side resolves names in its own resolver.
	Encompasses(older Pattern, newerR, olderR *Resolver) result.Result
	// Parse converts the textual form of a value into a Value of this type.
	Parse(s string, r *Resolver) (value.Value, error)

	TypeAlias() string
	TypeName() string
	Kind() Kind

	isPattern()
}

var builtins = map[string]Pattern{
	"(number)":   Number{},
	"(string)":   String{},
	"(boolean)":  Boolean{},
	"(null)":     Null{},
	"(empty)":    Null{},
	"(nothing)":  EmptyString{},
	"(datetime)": DateTime{},
	"(uuid)":     UUID{},
}

// IsBuiltin reports whether alias names a built-in type.
func IsBuiltin(alias string) bool {
	_, ok := builtins[alias]
	return ok
}

// IsOptional reports whether an object key carries the optionality marker.
func IsOptional(key string) bool { return strings.HasSuffix(key, "?") }

// WithoutOptionality strips the optionality marker from an object key.
func WithoutOptionality(key string) string { return strings.TrimSuffix(key, "?") }

// IsNullable reports whether p accepts null through an empty alternative.
func IsNullable(p Pattern) bool {
	a, ok := p.(Any)
	if !ok {
		return false
	}
	for _, alt := range a.Alternatives {
		if isEmpty(alt) {
			return true
		}
	}
	return false
}

// NonNullable returns the first non-empty alternative of a nullable pattern,
// or p itself.
func NonNullable(p Pattern) Pattern {
	a, ok := p.(Any)
	if !ok {
		return p
	}
	for _, alt := range a.Alternatives {
		if !isEmpty(alt) {
			return alt
		}
	}
	return p
}

func isEmpty(p Pattern) bool {
	_, ok := p.(Null)
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encompassesCommon handles the older-side shapes every variant treats the
// same way. ok is false when the caller must decide.
func encompassesCommon(newer, older Pattern, newerR, olderR *Resolver) (res result.Result, ok bool) {
	switch o := older.(type) {
	case Deferred:
		// A comparison already in progress higher up is assumed to hold.
		key := Fingerprint(newer) + "|" + o.Alias
		if newerR.comparing.contains(key) {
			return result.Succeed(), true
		}
		if newerR.comparing.len() >= newerR.maxDepth {
			return result.Fail("%s", &RecursionError{Chain: []string{newer.TypeName(), o.Alias}}), true
		}
		newerR = newerR.clone()
		newerR.comparing = newerR.comparing.push(key)

		resolved, err := olderR.Pattern(o.Alias)
		if err != nil {
			return FailureFromError(err), true
		}
		return newer.Encompasses(resolved, newerR, olderR), true
	case Any:
		if len(o.Alternatives) == 0 {
			return result.Succeed(), true
		}
		for _, alt := range o.Alternatives {
			if r := newer.Encompasses(alt, newerR, olderR); !r.IsSuccess() {
				return r, true
			}
		}
		return result.Succeed(), true
	case LookupRow:
		return newer.Encompasses(o.Inner, newerR, olderR), true
	}
	return nil, false
}

// encompassesScalar is the rule for scalar types: older exact values must
// match, and older types must be of the same kind or one of compatible.
func encompassesScalar(newer, older Pattern, newerR, olderR *Resolver, compatible ...Kind) result.Result {
	if r, ok := encompassesCommon(newer, older, newerR, olderR); ok {
		return r
	}
	if e, ok := older.(Exact); ok {
		return newer.Matches(e.Value, newerR)
	}
	if older.Kind() == newer.Kind() {
		return result.Succeed()
	}
	for _, k := range compatible {
		if older.Kind() == k {
			return result.Succeed()
		}
	}
	return result.Mismatch(newer.TypeName(), older.TypeName())
}

// dedupe drops patterns with the same fingerprint, keeping the first.
func dedupe(patterns []Pattern) []Pattern {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		fp := Fingerprint(p)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, p)
	}
	return out
}

// exampleVariant turns an example cell into the single pattern it pins a
// field to. Tokens stay types; anything else is parsed as a value of p.
func exampleVariant(p Pattern, cell string, r *Resolver) (Pattern, error) {
	if IsPatternToken(cell) {
		return ParsePattern(cell)
	}
	v, err := p.Parse(cell, r)
	if err != nil {
		return nil, err
	}
	return Exact{Value: v}, nil
}
