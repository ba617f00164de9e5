package specmatic

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// HTTPResponsePattern describes the response a scenario produces. A nil Body
// means an empty body.
type HTTPResponsePattern struct {
	Status  int
	Headers HeadersPattern
	Body    pattern.Pattern
}

func (p HTTPResponsePattern) bodyPattern() pattern.Pattern {
	if p.Body == nil {
		return pattern.EmptyString{}
	}
	return p.Body
}

// Matches checks resp. A different status is a fluffy failure.
func (p HTTPResponsePattern) Matches(resp HTTPResponse, r *pattern.Resolver) result.Result {
	if p.Status != 0 && p.Status != resp.Status {
		return result.FailFluffy("Expected status %d, actual was %d", p.Status, resp.Status).WithBreadcrumb("STATUS")
	}
	if res := p.Headers.Matches(resp.Headers, r); !res.IsSuccess() {
		return res
	}
	if res := matchParsed(p.bodyPattern(), resp.BodyValue(), r); !res.IsSuccess() {
		return res.WithBreadcrumb("BODY")
	}
	return result.Succeed()
}

// Generate produces a response. Object fields and headers named after a fact
// in r take the fact's value.
func (p HTTPResponsePattern) Generate(r *pattern.Resolver) (HTTPResponse, error) {
	headers, err := p.Headers.Generate(r)
	if err != nil {
		return HTTPResponse{}, err
	}
	resp := HTTPResponse{Status: p.Status, Headers: headers}
	if p.Body == nil {
		return resp, nil
	}
	body, err := p.Body.Generate(r)
	if err != nil {
		return HTTPResponse{}, withBreadcrumbs(err, "BODY")
	}
	if s, isString := body.(value.String); isString && s == "" {
		return resp, nil
	}
	resp.Body = body
	if _, ok := lookupHeader(resp.Headers, HeaderContentType); !ok {
		resp.Headers[HeaderContentType] = ContentTypeOf(body)
	}
	return resp, nil
}

// Encompasses reports whether p accepts every response other describes.
// Compatibility checks call it on the older contract's response with the
// newer one as argument, since old consumers must understand what the new
// provider sends. Headers and body are compared in reader view, so other may
// add keys but may not drop or loosen one p requires.
func (p HTTPResponsePattern) Encompasses(other HTTPResponsePattern, r, otherR *pattern.Resolver) result.Result {
	r = r.WithReaderView(true)
	if p.Status != other.Status {
		return result.Fail("Expected status %d, actual was %d", p.Status, other.Status).WithBreadcrumb("STATUS")
	}
	if res := p.Headers.Encompasses(other.Headers, r, otherR); !res.IsSuccess() {
		return res
	}
	res := p.bodyPattern().Encompasses(other.bodyPattern(), r, otherR)
	return result.Breadcrumb(res, "BODY")
}

// resolveTokens replaces pattern tokens in a stub response with generated
// values, so that a stub may say "(number)" and serve a number.
func resolveTokens(v value.Value, r *pattern.Resolver) (value.Value, error) {
	switch t := v.(type) {
	case value.String:
		token := strings.TrimSpace(string(t))
		if !pattern.IsPatternToken(token) {
			return t, nil
		}
		p, err := pattern.ParsePattern(token)
		if err != nil {
			return nil, err
		}
		return p.Generate(r)
	case value.Object:
		out := make(value.Object, len(t))
		for _, k := range t.Keys() {
			resolved, err := resolveTokens(t[k], r)
			if err != nil {
				return nil, withBreadcrumbs(err, k)
			}
			out[k] = resolved
		}
		return out, nil
	case value.List:
		out := make(value.List, len(t))
		for i, item := range t {
			resolved, err := resolveTokens(item, r)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
