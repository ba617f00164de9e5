package specmatic

import (
	"time"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
)

// ScenarioStub is a request/response pair written by hand, optionally served
// after a delay.
type ScenarioStub struct {
	Request  HTTPRequest
	Response HTTPResponse
	Delay    time.Duration
}

// StubData is a stub checked against the contract and ready to serve.
type StubData struct {
	// RequestType accepts the requests the stub answers. Its headers carry
	// the contract's headers as ancestors.
	RequestType     HTTPRequestPattern
	Resolver        *pattern.Resolver
	Response        HTTPResponse
	ResponsePattern HTTPResponsePattern
	Delay           time.Duration
	ScenarioName    string
}

// Matches checks an incoming request against the stub's request type.
func (d *StubData) Matches(req HTTPRequest) result.Result {
	return d.RequestType.Matches(req, d.Resolver)
}

// Serve returns the stub response with any pattern tokens in its body and
// headers replaced by generated values.
func (d *StubData) Serve() (HTTPResponse, error) {
	resp := HTTPResponse{Status: d.Response.Status, Headers: make(map[string]string, len(d.Response.Headers))}
	for k, v := range d.Response.Headers {
		if !pattern.IsPatternToken(v) {
			resp.Headers[k] = v
			continue
		}
		p, err := pattern.ParsePattern(v)
		if err != nil {
			return HTTPResponse{}, withBreadcrumbs(err, "HEADERS", k)
		}
		s, err := generateText(k, p, d.Resolver)
		if err != nil {
			return HTTPResponse{}, withBreadcrumbs(err, "HEADERS", k)
		}
		resp.Headers[k] = s
	}
	if d.Response.Body != nil {
		body, err := resolveTokens(d.Response.Body, d.Resolver)
		if err != nil {
			return HTTPResponse{}, withBreadcrumbs(err, "BODY")
		}
		resp.Body = body
		if _, ok := lookupHeader(resp.Headers, HeaderContentType); !ok {
			resp.Headers[HeaderContentType] = ContentTypeOf(body)
		}
	}
	return resp, nil
}
