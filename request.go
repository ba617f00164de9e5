package specmatic

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// RequestBodyColumn is the example column that supplies a whole request body.
const RequestBodyColumn = "(REQUEST-BODY)"

// MultiPartPattern describes one part of a multipart/form-data request.
type MultiPartPattern struct {
	Name     string
	Content  pattern.Pattern
	Optional bool
}

// HTTPRequestPattern describes the requests a scenario accepts. A nil Body
// accepts only an empty body.
type HTTPRequestPattern struct {
	Method     string
	URL        URLMatcher
	Headers    HeadersPattern
	Body       pattern.Pattern
	FormFields map[string]pattern.Pattern
	MultiPart  []MultiPartPattern
}

func (p HTTPRequestPattern) bodyPattern() pattern.Pattern {
	if p.Body == nil {
		return pattern.EmptyString{}
	}
	return p.Body
}

// Matches checks req part by part and returns the first failure. A different
// method is a fluffy failure.
func (p HTTPRequestPattern) Matches(req HTTPRequest, r *pattern.Resolver) result.Result {
	if p.Method != "" && !strings.EqualFold(p.Method, req.Method) {
		return result.FailFluffy("Expected method %s, actual was %s", p.Method, req.Method).WithBreadcrumb("METHOD")
	}
	if res := p.URL.Matches(req, r); !res.IsSuccess() {
		return res
	}
	if res := p.Headers.Matches(req.Headers, r); !res.IsSuccess() {
		return res
	}
	if res := matchParsed(p.bodyPattern(), req.BodyValue(), r); !res.IsSuccess() {
		return res.WithBreadcrumb("BODY")
	}
	if res := p.matchFormFields(req.FormFields, r); !res.IsSuccess() {
		return res.WithBreadcrumb("FORM-FIELDS")
	}
	if res := p.matchMultiPart(req.MultiPart, r); !res.IsSuccess() {
		return res.WithBreadcrumb("MULTIPART-FORMDATA")
	}
	return result.Succeed()
}

func (p HTTPRequestPattern) matchFormFields(form map[string]string, r *pattern.Resolver) result.Result {
	for _, key := range sortedPatternKeys(p.FormFields) {
		name := pattern.WithoutOptionality(key)
		actual, ok := form[name]
		if !ok {
			if pattern.IsOptional(key) {
				continue
			}
			return result.Fail("Expected form field named %q was missing", name).WithBreadcrumb(name)
		}
		if res := matchText(name, p.FormFields[key], actual, r); !res.IsSuccess() {
			return res
		}
	}
	if r.StrictKeys() {
		for _, name := range sortedStringKeys(form) {
			if !declared(p.FormFields, name) {
				return result.Fail("Form field named %q was unexpected", name).WithBreadcrumb(name)
			}
		}
	}
	return result.Succeed()
}

func (p HTTPRequestPattern) matchMultiPart(parts []MultiPartValue, r *pattern.Resolver) result.Result {
	for _, part := range p.MultiPart {
		actual, ok := findPart(parts, part.Name)
		if !ok {
			if part.Optional {
				continue
			}
			return result.Fail("Expected part named %q was missing", part.Name)
		}
		if res := matchParsed(part.Content, bodyOrEmpty(actual.Content), r); !res.IsSuccess() {
			return res.WithBreadcrumb(part.Name)
		}
	}
	return result.Succeed()
}

func findPart(parts []MultiPartValue, name string) (MultiPartValue, bool) {
	for _, part := range parts {
		if part.Name == name {
			return part, true
		}
	}
	return MultiPartValue{}, false
}

// matchParsed matches a body-like value. Text is first read as a value of
// the expected type, so a JSON document sent as a string still matches an
// object pattern.
func matchParsed(p pattern.Pattern, v value.Value, r *pattern.Resolver) result.Result {
	if s, ok := v.(value.String); ok && !(r.MockMode() && pattern.IsPatternToken(string(s))) {
		if parsed, err := p.Parse(string(s), r); err == nil {
			v = parsed
		}
	}
	return r.MatchesPattern("", p, v)
}

// Generate produces a request the pattern accepts.
func (p HTTPRequestPattern) Generate(r *pattern.Resolver) (HTTPRequest, error) {
	path, query, err := p.URL.Generate(r)
	if err != nil {
		return HTTPRequest{}, err
	}
	headers, err := p.Headers.Generate(r)
	if err != nil {
		return HTTPRequest{}, err
	}
	req := HTTPRequest{Method: strings.ToUpper(p.Method), Path: path, Query: query, Headers: headers}

	if p.Body != nil {
		body, err := p.Body.Generate(r)
		if err != nil {
			return HTTPRequest{}, withBreadcrumbs(err, "BODY")
		}
		if s, isString := body.(value.String); !isString || s != "" {
			req.Body = body
			if _, ok := lookupHeader(req.Headers, HeaderContentType); !ok {
				req.Headers[HeaderContentType] = ContentTypeOf(body)
			}
		}
	}

	if len(p.FormFields) > 0 {
		req.FormFields = make(map[string]string, len(p.FormFields))
		for _, key := range sortedPatternKeys(p.FormFields) {
			name := pattern.WithoutOptionality(key)
			s, err := generateText(name, p.FormFields[key], r)
			if err != nil {
				return HTTPRequest{}, withBreadcrumbs(err, "FORM-FIELDS", name)
			}
			req.FormFields[name] = s
		}
	}

	for _, part := range p.MultiPart {
		content, err := part.Content.Generate(r)
		if err != nil {
			return HTTPRequest{}, withBreadcrumbs(err, "MULTIPART-FORMDATA", part.Name)
		}
		req.MultiPart = append(req.MultiPart, MultiPartValue{Name: part.Name, Content: content})
	}
	return req, nil
}

// NewBasedOn returns the request variants for one example row: the first
// variant of every part, then the remaining variants of each part in turn.
func (p HTTPRequestPattern) NewBasedOn(row pattern.Row, r *pattern.Resolver) ([]HTTPRequestPattern, error) {
	urls, err := p.URL.NewBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	headers, err := p.Headers.NewBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	bodies, err := p.bodyVariants(row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "BODY")
	}
	forms, err := pattern.NewObject(p.FormFields).NewBasedOn(row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "FORM-FIELDS")
	}

	base := p
	base.URL = urls[0]
	base.Headers = headers[0]
	base.Body = bodies[0]
	base.FormFields = formFieldsOf(forms[0], p.FormFields)

	out := []HTTPRequestPattern{base}
	for _, u := range urls[1:] {
		v := base
		v.URL = u
		out = append(out, v)
	}
	for _, h := range headers[1:] {
		v := base
		v.Headers = h
		out = append(out, v)
	}
	for _, b := range bodies[1:] {
		v := base
		v.Body = b
		out = append(out, v)
	}
	for _, f := range forms[1:] {
		v := base
		v.FormFields = formFieldsOf(f, p.FormFields)
		out = append(out, v)
	}
	return out, nil
}

func (p HTTPRequestPattern) bodyVariants(row pattern.Row, r *pattern.Resolver) ([]pattern.Pattern, error) {
	if p.Body == nil {
		return []pattern.Pattern{nil}, nil
	}
	if cell, ok := row.Value(RequestBodyColumn); ok {
		v, err := p.Body.Parse(cell, r)
		if err != nil {
			return nil, err
		}
		if res := p.Body.Matches(v, r); !res.IsSuccess() {
			return nil, pattern.NewContractError("Example body does not match the request body type: %s", result.AsFailure(res).Report().Text())
		}
		return []pattern.Pattern{pattern.Exact{Value: v}}, nil
	}
	variants, err := p.Body.NewBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return []pattern.Pattern{p.Body}, nil
	}
	return variants, nil
}

func formFieldsOf(p pattern.Pattern, original map[string]pattern.Pattern) map[string]pattern.Pattern {
	if original == nil {
		return nil
	}
	return fieldsOf(p)
}

// NegativeBasedOn mutates one part of the request at a time. The parts left
// alone come from the first positive variant, so they carry the example row.
func (p HTTPRequestPattern) NegativeBasedOn(row pattern.Row, r *pattern.Resolver) ([]HTTPRequestPattern, error) {
	positives, err := p.NewBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	base := positives[0]

	var out []HTTPRequestPattern

	urls, err := base.URL.NegativeBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		v := base
		v.URL = u
		out = append(out, v)
	}

	headers, err := base.Headers.NegativeBasedOn(row, r)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		v := base
		v.Headers = h
		out = append(out, v)
	}

	if p.Body != nil && !row.Contains(RequestBodyColumn) {
		bodies, err := p.Body.NegativeBasedOn(row, r)
		if err != nil {
			return nil, withBreadcrumbs(err, "BODY")
		}
		for _, b := range bodies {
			v := base
			v.Body = b
			out = append(out, v)
		}
	}

	forms, err := textFieldNegatives(base.FormFields, row, r)
	if err != nil {
		return nil, withBreadcrumbs(err, "FORM-FIELDS")
	}
	for _, f := range forms {
		v := base
		v.FormFields = f
		out = append(out, v)
	}
	return out, nil
}

// Encompasses reports whether p accepts every request older accepted.
func (p HTTPRequestPattern) Encompasses(older HTTPRequestPattern, newerR, olderR *pattern.Resolver) result.Result {
	if !strings.EqualFold(p.Method, older.Method) {
		return result.Fail("Expected method %s, actual was %s", older.Method, p.Method).WithBreadcrumb("METHOD")
	}
	if res := p.URL.Encompasses(older.URL, newerR, olderR); !res.IsSuccess() {
		return res
	}
	if res := p.Headers.Encompasses(older.Headers, newerR, olderR); !res.IsSuccess() {
		return res
	}
	if res := p.bodyPattern().Encompasses(older.bodyPattern(), newerR, olderR); !res.IsSuccess() {
		return res.WithBreadcrumb("BODY")
	}
	res := pattern.NewObject(p.FormFields).Encompasses(pattern.NewObject(older.FormFields), newerR, olderR)
	if !res.IsSuccess() {
		return res.WithBreadcrumb("FORM-FIELDS")
	}
	return result.Breadcrumb(encompassesParts(p.MultiPart, older.MultiPart, newerR, olderR), "MULTIPART-FORMDATA")
}

func encompassesParts(newer, older []MultiPartPattern, newerR, olderR *pattern.Resolver) result.Result {
	for _, o := range older {
		n, ok := findPartPattern(newer, o.Name)
		if !ok {
			if o.Optional {
				continue
			}
			return result.Fail("Expected part named %q was missing", o.Name)
		}
		if !n.Optional && o.Optional {
			return result.Fail("Part named %q is mandatory, but was optional in the type it is compared with", o.Name)
		}
		if res := n.Content.Encompasses(o.Content, newerR, olderR); !res.IsSuccess() {
			return res.WithBreadcrumb(o.Name)
		}
	}
	for _, n := range newer {
		if _, ok := findPartPattern(older, n.Name); !ok && !n.Optional {
			return result.Fail("Part named %q is mandatory, but was absent in the type it is compared with", n.Name)
		}
	}
	return result.Succeed()
}

func findPartPattern(parts []MultiPartPattern, name string) (MultiPartPattern, bool) {
	for _, part := range parts {
		if part.Name == name {
			return part, true
		}
	}
	return MultiPartPattern{}, false
}

// GenerateRequestType derives the request type of a stub: the values in req
// become exact values, pattern tokens stay types. The contract pattern p
// decides how each piece of text is read.
func (p HTTPRequestPattern) GenerateRequestType(req HTTPRequest, r *pattern.Resolver) (HTTPRequestPattern, error) {
	out := HTTPRequestPattern{Method: strings.ToUpper(req.Method)}

	actual := splitPath(req.Path)
	segments := make([]PathSegment, len(actual))
	for i, part := range actual {
		if i >= len(p.URL.Segments) || !p.URL.Segments[i].IsParam() {
			segments[i] = PathSegment{Literal: part}
			continue
		}
		seg := p.URL.Segments[i]
		typ, err := stubTextPattern(seg.Pattern, part, r)
		if err != nil {
			return HTTPRequestPattern{}, withBreadcrumbs(err, "PATH", seg.Name)
		}
		segments[i] = PathSegment{Name: seg.Name, Pattern: typ}
	}
	out.URL.Segments = segments

	out.URL.Query = make(map[string]pattern.Pattern, len(req.Query))
	for _, name := range sortedStringKeys(req.Query) {
		typ, err := stubTextPattern(declaredOrString(p.URL.Query, name), req.Query[name], r)
		if err != nil {
			return HTTPRequestPattern{}, withBreadcrumbs(err, "QUERY-PARAMS", name)
		}
		out.URL.Query[name] = typ
	}

	out.Headers.Pattern = make(map[string]pattern.Pattern, len(req.Headers))
	for _, name := range sortedStringKeys(req.Headers) {
		declaredType := pattern.Pattern(pattern.String{})
		if key, ok := findHeaderKey(p.Headers.Pattern, name); ok {
			declaredType = p.Headers.Pattern[key]
		}
		typ, err := stubTextPattern(declaredType, req.Headers[name], r)
		if err != nil {
			return HTTPRequestPattern{}, withBreadcrumbs(err, "HEADERS", name)
		}
		out.Headers.Pattern[name] = typ
	}

	if req.Body != nil {
		body, err := stubValuePattern(req.Body)
		if err != nil {
			return HTTPRequestPattern{}, withBreadcrumbs(err, "BODY")
		}
		out.Body = body
	}

	if len(req.FormFields) > 0 {
		out.FormFields = make(map[string]pattern.Pattern, len(req.FormFields))
		for _, name := range sortedStringKeys(req.FormFields) {
			typ, err := stubTextPattern(declaredOrString(p.FormFields, name), req.FormFields[name], r)
			if err != nil {
				return HTTPRequestPattern{}, withBreadcrumbs(err, "FORM-FIELDS", name)
			}
			out.FormFields[name] = typ
		}
	}

	for _, part := range req.MultiPart {
		content, err := stubValuePattern(part.Content)
		if err != nil {
			return HTTPRequestPattern{}, withBreadcrumbs(err, "MULTIPART-FORMDATA", part.Name)
		}
		out.MultiPart = append(out.MultiPart, MultiPartPattern{Name: part.Name, Content: content})
	}
	return out, nil
}

func declaredOrString(fields map[string]pattern.Pattern, name string) pattern.Pattern {
	if p, ok := fields[name]; ok {
		return p
	}
	if p, ok := fields[name+"?"]; ok {
		return p
	}
	return pattern.String{}
}

// stubTextPattern reads one piece of stub text: a token stays a type,
// anything else becomes the exact value of the declared type.
func stubTextPattern(declaredType pattern.Pattern, text string, r *pattern.Resolver) (pattern.Pattern, error) {
	if pattern.IsPatternToken(text) {
		return pattern.ParsePattern(text)
	}
	v, err := declaredType.Parse(text, r)
	if err != nil {
		return nil, err
	}
	return pattern.Exact{Value: v}, nil
}

// stubValuePattern turns a stub body into a pattern: string tokens become
// types and every other value must match exactly.
func stubValuePattern(v value.Value) (pattern.Pattern, error) {
	switch t := v.(type) {
	case nil:
		return pattern.EmptyString{}, nil
	case value.String:
		if pattern.IsPatternToken(strings.TrimSpace(string(t))) {
			return pattern.ParsePattern(strings.TrimSpace(string(t)))
		}
		return pattern.Exact{Value: t}, nil
	case value.Object:
		fields := make(map[string]pattern.Pattern, len(t))
		for _, k := range t.Keys() {
			p, err := stubValuePattern(t[k])
			if err != nil {
				return nil, withBreadcrumbs(err, k)
			}
			fields[k] = p
		}
		return pattern.NewObject(fields), nil
	case value.List:
		if containsToken(t) {
			return pattern.FromValue(t)
		}
		return pattern.Exact{Value: t}, nil
	case *value.XMLNode:
		return pattern.NewXMLPattern(t)
	default:
		return pattern.Exact{Value: v}, nil
	}
}

func containsToken(v value.Value) bool {
	switch t := v.(type) {
	case value.String:
		return pattern.IsPatternToken(strings.TrimSpace(string(t)))
	case value.List:
		for _, item := range t {
			if containsToken(item) {
				return true
			}
		}
	case value.Object:
		for _, item := range t {
			if containsToken(item) {
				return true
			}
		}
	}
	return false
}
