package specmatic

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// PathSegment is one segment of a URL template: a literal, or a named
// parameter written as (name:type).
type PathSegment struct {
	Literal string
	Name    string
	Pattern pattern.Pattern
}

// IsParam reports whether the segment is a path parameter.
func (s PathSegment) IsParam() bool { return s.Pattern != nil }

func (s PathSegment) String() string {
	if !s.IsParam() {
		return s.Literal
	}
	return "(" + s.Name + ":" + typeToken(s.Pattern) + ")"
}

// URLMatcher matches request paths and query strings against a URL template
// such as /products/(id:number)?type=(string). Query parameters are optional
// unless declared otherwise.
type URLMatcher struct {
	Segments []PathSegment
	Query    map[string]pattern.Pattern
}

// ParseURLMatcher reads a URL template.
func ParseURLMatcher(template string) (URLMatcher, error) {
	path, rawQuery := splitTemplate(template)

	var segments []PathSegment
	for _, part := range splitPath(path) {
		if !pattern.IsPatternToken(part) {
			segments = append(segments, PathSegment{Literal: part})
			continue
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(part, "("), ")")
		name, typ, ok := strings.Cut(inner, ":")
		if !ok {
			return URLMatcher{}, pattern.NewContractError("Path parameter %s must be written as (name:type)", part)
		}
		p, err := pattern.ParsePattern("(" + strings.TrimSpace(typ) + ")")
		if err != nil {
			return URLMatcher{}, err
		}
		segments = append(segments, PathSegment{Name: strings.TrimSpace(name), Pattern: p})
	}

	query := map[string]pattern.Pattern{}
	if rawQuery != "" {
		for _, pair := range strings.Split(rawQuery, "&") {
			if pair == "" {
				continue
			}
			key, typ, _ := strings.Cut(pair, "=")
			p, err := pattern.ParsePattern(typ)
			if err != nil {
				return URLMatcher{}, withBreadcrumbs(err, "QUERY-PARAMS", key)
			}
			if !pattern.IsOptional(key) {
				key += "?"
			}
			query[key] = p
		}
	}
	return URLMatcher{Segments: segments, Query: query}, nil
}

// splitTemplate cuts template at the first "?" outside parentheses, so a
// nullable path parameter such as (id:number?) stays in the path.
func splitTemplate(template string) (path, rawQuery string) {
	depth := 0
	for i, c := range template {
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '?':
			if depth == 0 {
				return template[:i], template[i+1:]
			}
		}
	}
	return template, ""
}

// Path renders the path template.
func (m URLMatcher) Path() string {
	parts := make([]string, len(m.Segments))
	for i, s := range m.Segments {
		parts[i] = s.String()
	}
	return "/" + strings.Join(parts, "/")
}

func (m URLMatcher) String() string {
	if len(m.Query) == 0 {
		return m.Path()
	}
	keys := make([]string, 0, len(m.Query))
	for k := range m.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		token := typeToken(m.Query[k])
		if _, exact := m.Query[k].(pattern.Exact); !exact {
			token = "(" + token + ")"
		}
		pairs[i] = pattern.WithoutOptionality(k) + "=" + token
	}
	return m.Path() + "?" + strings.Join(pairs, "&")
}

// PathParams returns the declared path parameters in order.
func (m URLMatcher) PathParams() []PathSegment {
	var out []PathSegment
	for _, s := range m.Segments {
		if s.IsParam() {
			out = append(out, s)
		}
	}
	return out
}

// SameShape reports whether two templates have the same literals in the same
// places, whatever their parameter types.
func (m URLMatcher) SameShape(other URLMatcher) bool {
	if len(m.Segments) != len(other.Segments) {
		return false
	}
	for i, s := range m.Segments {
		o := other.Segments[i]
		if s.IsParam() != o.IsParam() {
			return false
		}
		if !s.IsParam() && s.Literal != o.Literal {
			return false
		}
	}
	return true
}

// Matches checks the request's path and query. A path that differs in
// shape fails fluffily so that more specific failures from other scenarios
// are reported first.
func (m URLMatcher) Matches(req HTTPRequest, r *pattern.Resolver) result.Result {
	if res := m.matchesPath(req.Path, r); !res.IsSuccess() {
		return res
	}
	return m.matchesQuery(req.Query, r)
}

func (m URLMatcher) matchesPath(path string, r *pattern.Resolver) result.Result {
	actual := splitPath(path)
	if len(actual) != len(m.Segments) {
		return result.FailFluffy("Expected %s (having %d path segments) to match %s (which has %d path segments).",
			m.Path(), len(m.Segments), path, len(actual)).WithBreadcrumb("PATH")
	}
	for i, seg := range m.Segments {
		part, err := url.PathUnescape(actual[i])
		if err != nil {
			part = actual[i]
		}
		if !seg.IsParam() {
			if seg.Literal != part {
				return result.Mismatch(strconv.Quote(seg.Literal), strconv.Quote(part)).Fluff().WithBreadcrumb("PATH")
			}
			continue
		}
		if res := matchText(seg.Name, seg.Pattern, part, r); !res.IsSuccess() {
			return res.WithBreadcrumb("PATH")
		}
	}
	return result.Succeed()
}

func (m URLMatcher) matchesQuery(query map[string]string, r *pattern.Resolver) result.Result {
	for _, key := range sortedPatternKeys(m.Query) {
		name := pattern.WithoutOptionality(key)
		actual, ok := query[name]
		if !ok {
			if pattern.IsOptional(key) {
				continue
			}
			return result.Fail("Expected query param named %q was missing", name).WithBreadcrumb(name).WithBreadcrumb("QUERY-PARAMS")
		}
		if res := matchText(name, m.Query[key], actual, r); !res.IsSuccess() {
			return res.WithBreadcrumb("QUERY-PARAMS")
		}
	}
	if r.StrictKeys() {
		for _, name := range sortedStringKeys(query) {
			if declared(m.Query, name) {
				continue
			}
			return result.Fail("Query param named %q was unexpected", name).WithBreadcrumb(name).WithBreadcrumb("QUERY-PARAMS")
		}
	}
	return result.Succeed()
}

// Generate produces a concrete path and query. Path parameters named after
// a fact take the fact's value.
func (m URLMatcher) Generate(r *pattern.Resolver) (string, map[string]string, error) {
	parts := make([]string, len(m.Segments))
	for i, seg := range m.Segments {
		if !seg.IsParam() {
			parts[i] = seg.Literal
			continue
		}
		s, err := generateText(seg.Name, seg.Pattern, r)
		if err != nil {
			return "", nil, err
		}
		parts[i] = url.PathEscape(s)
	}

	query := make(map[string]string, len(m.Query))
	for _, key := range sortedPatternKeys(m.Query) {
		name := pattern.WithoutOptionality(key)
		s, err := generateText(name, m.Query[key], r)
		if err != nil {
			return "", nil, err
		}
		query[name] = s
	}
	return "/" + strings.Join(parts, "/"), query, nil
}

// NewBasedOn varies path parameters and query parameters one at a time.
func (m URLMatcher) NewBasedOn(row pattern.Row, r *pattern.Resolver) ([]URLMatcher, error) {
	pathVariants, err := pattern.NewObject(m.pathFields()).NewBasedOn(row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "PATH")
	}
	queryVariants, err := pattern.NewObject(m.Query).NewBasedOn(row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "QUERY-PARAMS")
	}

	out := []URLMatcher{m.with(fieldsOf(pathVariants[0]), fieldsOf(queryVariants[0]))}
	for _, p := range pathVariants[1:] {
		out = append(out, m.with(fieldsOf(p), fieldsOf(queryVariants[0])))
	}
	for _, q := range queryVariants[1:] {
		out = append(out, m.with(fieldsOf(pathVariants[0]), fieldsOf(q)))
	}
	return out, nil
}

// NegativeBasedOn replaces one parameter at a time with a type whose text
// the declared type rejects, and drops required query parameters.
func (m URLMatcher) NegativeBasedOn(row pattern.Row, r *pattern.Resolver) ([]URLMatcher, error) {
	var out []URLMatcher
	for i, seg := range m.Segments {
		if !seg.IsParam() || row.Contains(seg.Name) {
			continue
		}
		negatives, err := textNegatives(seg.Pattern, row, r)
		if err != nil {
			return nil, err
		}
		for _, neg := range negatives {
			segments := append([]PathSegment(nil), m.Segments...)
			segments[i] = PathSegment{Name: seg.Name, Pattern: neg}
			out = append(out, URLMatcher{Segments: segments, Query: m.Query})
		}
	}

	queries, err := textFieldNegatives(m.Query, row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "QUERY-PARAMS")
	}
	for _, query := range queries {
		out = append(out, URLMatcher{Segments: m.Segments, Query: query})
	}
	return out, nil
}

// Encompasses reports whether m accepts every URL older accepted.
func (m URLMatcher) Encompasses(older URLMatcher, newerR, olderR *pattern.Resolver) result.Result {
	if !m.SameShape(older) {
		return result.Fail("Expected path %s, actual was %s", older.Path(), m.Path()).WithBreadcrumb("PATH")
	}
	for i, seg := range m.Segments {
		if !seg.IsParam() {
			continue
		}
		if res := seg.Pattern.Encompasses(older.Segments[i].Pattern, newerR, olderR); !res.IsSuccess() {
			return res.WithBreadcrumb(seg.Name).WithBreadcrumb("PATH")
		}
	}
	res := pattern.NewObject(m.Query).Encompasses(pattern.NewObject(older.Query), newerR, olderR)
	return result.Breadcrumb(res, "QUERY-PARAMS")
}

func (m URLMatcher) pathFields() map[string]pattern.Pattern {
	fields := map[string]pattern.Pattern{}
	for _, s := range m.PathParams() {
		fields[s.Name] = s.Pattern
	}
	return fields
}

func (m URLMatcher) with(path, query map[string]pattern.Pattern) URLMatcher {
	segments := make([]PathSegment, len(m.Segments))
	for i, s := range m.Segments {
		if s.IsParam() {
			s.Pattern = path[s.Name]
		}
		segments[i] = s
	}
	return URLMatcher{Segments: segments, Query: query}
}

// matchText parses the textual form of a parameter as a value of p, then
// matches it. In mock mode a pattern token is matched as a type.
func matchText(name string, p pattern.Pattern, text string, r *pattern.Resolver) result.Result {
	var v value.Value
	if r.MockMode() && pattern.IsPatternToken(text) {
		v = value.String(text)
	} else {
		parsed, err := p.Parse(text, r)
		if err != nil {
			return pattern.FailureFromError(err).WithBreadcrumb(name)
		}
		v = parsed
	}
	return r.MatchesPattern(name, p, v)
}

func generateText(name string, p pattern.Pattern, r *pattern.Resolver) (string, error) {
	if fact, ok := r.Fact(name); ok {
		return fact.String(), nil
	}
	v, err := p.Generate(r)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// textNegatives keeps the negative variants of p whose generated text p
// itself would reject. In a URL or a header every value is text, so a
// number is a perfectly good string.
func textNegatives(p pattern.Pattern, row pattern.Row, r *pattern.Resolver) ([]pattern.Pattern, error) {
	negatives, err := p.NegativeBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	var out []pattern.Pattern
	for _, neg := range negatives {
		sample, err := neg.Generate(r)
		if err != nil {
			continue
		}
		parsed, err := p.Parse(sample.String(), r)
		if err != nil || !p.Matches(parsed, r).IsSuccess() {
			out = append(out, neg)
		}
	}
	return out, nil
}

// textFieldNegatives mutates one text field at a time into a type its
// declared type rejects, and drops each required field in turn. Fields pinned
// by the example row are left alone.
func textFieldNegatives(fields map[string]pattern.Pattern, row pattern.Row, r *pattern.Resolver) ([]map[string]pattern.Pattern, error) {
	var out []map[string]pattern.Pattern
	for _, key := range sortedPatternKeys(fields) {
		name := pattern.WithoutOptionality(key)
		if row.Contains(name) {
			continue
		}
		negatives, err := textNegatives(fields[key], row, r)
		if err != nil {
			return nil, withBreadcrumbs(err, name)
		}
		for _, neg := range negatives {
			mutated := copyPatterns(fields)
			delete(mutated, key)
			mutated[name] = neg
			out = append(out, mutated)
		}
		if !pattern.IsOptional(key) {
			mutated := copyPatterns(fields)
			delete(mutated, key)
			out = append(out, mutated)
		}
	}
	return out, nil
}

func splitPath(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// typeToken renders a pattern as the token it was parsed from, without the
// surrounding parentheses.
func typeToken(p pattern.Pattern) string {
	if alias := p.TypeAlias(); alias != "" {
		return strings.TrimSuffix(strings.TrimPrefix(alias, "("), ")")
	}
	switch t := p.(type) {
	case pattern.Exact:
		return t.Value.String()
	case pattern.List:
		return typeToken(t.Element) + "*"
	case pattern.Any:
		if pattern.IsNullable(t) && len(t.Alternatives) == 2 {
			return typeToken(pattern.NonNullable(t)) + "?"
		}
	}
	return p.TypeName()
}

// withBreadcrumbs locates a contract error under crumbs, outermost first.
// Other errors are returned unchanged.
func withBreadcrumbs(err error, crumbs ...string) error {
	var ce *pattern.ContractError
	if !errors.As(err, &ce) {
		return err
	}
	for i := len(crumbs) - 1; i >= 0; i-- {
		ce = ce.WithBreadcrumb(crumbs[i])
	}
	return ce
}

func fieldsOf(p pattern.Pattern) map[string]pattern.Pattern {
	if o, ok := p.(pattern.Object); ok {
		return o.Fields
	}
	return map[string]pattern.Pattern{}
}

func declared(fields map[string]pattern.Pattern, name string) bool {
	if _, ok := fields[name]; ok {
		return true
	}
	_, ok := fields[name+"?"]
	return ok
}

func copyPatterns(in map[string]pattern.Pattern) map[string]pattern.Pattern {
	out := make(map[string]pattern.Pattern, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedPatternKeys(m map[string]pattern.Pattern) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
