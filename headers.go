package specmatic

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
)

// HeadersPattern matches HTTP headers by name, case-insensitively. Header
// names ending in "?" are optional. Headers the pattern does not declare are
// ignored.
//
// Ancestors holds the headers of the contract a stub was created from. When
// set, only headers the contract declares take part in matching, and those the
// stub itself leaves out are still checked against the contract.
type HeadersPattern struct {
	Pattern   map[string]pattern.Pattern
	Ancestors map[string]pattern.Pattern
}

// NewHeadersPattern returns a HeadersPattern over patterns.
func NewHeadersPattern(patterns map[string]pattern.Pattern) HeadersPattern {
	if patterns == nil {
		patterns = map[string]pattern.Pattern{}
	}
	return HeadersPattern{Pattern: patterns}
}

func (h HeadersPattern) Matches(headers map[string]string, r *pattern.Resolver) result.Result {
	if h.Ancestors != nil {
		filtered := make(map[string]string, len(headers))
		for _, name := range sortedStringKeys(headers) {
			v := headers[name]
			ancestorKey, ok := findHeaderKey(h.Ancestors, name)
			if !ok {
				continue
			}
			filtered[name] = v
			if _, own := findHeaderKey(h.Pattern, name); own {
				continue
			}
			if res := matchText(name, h.Ancestors[ancestorKey], v, r); !res.IsSuccess() {
				return res.WithBreadcrumb("HEADERS")
			}
		}
		headers = filtered
	}

	for _, key := range sortedPatternKeys(h.Pattern) {
		name := pattern.WithoutOptionality(key)
		actual, ok := lookupHeader(headers, name)
		if !ok {
			if pattern.IsOptional(key) {
				continue
			}
			return result.Fail("Header was missing").WithBreadcrumb(name).WithBreadcrumb("HEADERS")
		}
		if res := matchText(name, h.Pattern[key], actual, r); !res.IsSuccess() {
			return res.WithBreadcrumb("HEADERS")
		}
	}
	return result.Succeed()
}

// Generate produces every declared header. Headers named after a fact take
// the fact's value.
func (h HeadersPattern) Generate(r *pattern.Resolver) (map[string]string, error) {
	out := make(map[string]string, len(h.Pattern))
	for _, key := range sortedPatternKeys(h.Pattern) {
		name := pattern.WithoutOptionality(key)
		s, err := generateText(name, h.Pattern[key], r)
		if err != nil {
			return nil, withBreadcrumbs(err, "HEADERS", name)
		}
		out[name] = s
	}
	return out, nil
}

func (h HeadersPattern) NewBasedOn(row pattern.Row, r *pattern.Resolver) ([]HeadersPattern, error) {
	variants, err := pattern.NewObject(h.Pattern).NewBasedOn(row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "HEADERS")
	}
	out := make([]HeadersPattern, len(variants))
	for i, v := range variants {
		out[i] = HeadersPattern{Pattern: fieldsOf(v), Ancestors: h.Ancestors}
	}
	return out, nil
}

// NegativeBasedOn replaces one header at a time with a value the declared
// type rejects, and drops each required header in turn.
func (h HeadersPattern) NegativeBasedOn(row pattern.Row, r *pattern.Resolver) ([]HeadersPattern, error) {
	variants, err := textFieldNegatives(h.Pattern, row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "HEADERS")
	}
	out := make([]HeadersPattern, len(variants))
	for i, fields := range variants {
		out[i] = HeadersPattern{Pattern: fields, Ancestors: h.Ancestors}
	}
	return out, nil
}

// Encompasses applies the object compatibility rule to header sets.
func (h HeadersPattern) Encompasses(older HeadersPattern, newerR, olderR *pattern.Resolver) result.Result {
	res := pattern.NewObject(canonicalHeaders(h.Pattern)).Encompasses(pattern.NewObject(canonicalHeaders(older.Pattern)), newerR, olderR)
	return result.Breadcrumb(res, "HEADERS")
}

// findHeaderKey returns the key under which name is declared, ignoring case
// and optionality.
func findHeaderKey(patterns map[string]pattern.Pattern, name string) (string, bool) {
	for key := range patterns {
		if strings.EqualFold(pattern.WithoutOptionality(key), name) {
			return key, true
		}
	}
	return "", false
}

// canonicalHeaders lower-cases header names so that comparisons ignore case.
func canonicalHeaders(patterns map[string]pattern.Pattern) map[string]pattern.Pattern {
	out := make(map[string]pattern.Pattern, len(patterns))
	for k, v := range patterns {
		out[strings.ToLower(k)] = v
	}
	return out
}
