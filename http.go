// Package specmatic checks HTTP traffic against contracts, serves contract
// stubs and generates contract tests and compatibility checks from them.
//
// The core does no network I/O. Adapters in pkg/ turn real requests into
// HTTPRequest values and HTTPResponse values back into real responses.
package specmatic

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/EmmanuelMendoza/specmatic/value"
)

// Headers the stub and test adapters exchange with callers.
const (
	HeaderResult      = "X-Specmatic-Result"
	HeaderEmpty       = "X-Specmatic-Empty"
	HeaderSOAPAction  = "SOAPAction"
	HeaderContentType = "Content-Type"
)

// HTTPRequest is a transport-neutral request.
type HTTPRequest struct {
	Method     string
	Path       string
	Query      map[string]string
	Headers    map[string]string
	Body       value.Value // nil when the request has no body
	FormFields map[string]string
	MultiPart  []MultiPartValue
}

// MultiPartValue is one part of a multipart/form-data body.
type MultiPartValue struct {
	Name     string
	Content  value.Value
	Filename string
}

// HTTPResponse is a transport-neutral response.
type HTTPResponse struct {
	Status  int
	Headers map[string]string
	Body    value.Value // nil when the response has no body
}

// Header looks up a request header case-insensitively.
func (r HTTPRequest) Header(name string) (string, bool) { return lookupHeader(r.Headers, name) }

// Header looks up a response header case-insensitively.
func (r HTTPResponse) Header(name string) (string, bool) { return lookupHeader(r.Headers, name) }

// BodyValue returns the body, or an empty string when there is none.
func (r HTTPRequest) BodyValue() value.Value { return bodyOrEmpty(r.Body) }

// BodyValue returns the body, or an empty string when there is none.
func (r HTTPResponse) BodyValue() value.Value { return bodyOrEmpty(r.Body) }

// URL joins base with the request path and its query string. Query
// parameters are written in sorted order.
func (r HTTPRequest) URL(base string) string {
	u := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(r.Path, "/")
	if len(r.Query) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range r.Query {
		q.Set(k, v)
	}
	return u + "?" + q.Encode()
}

// String renders the request line used in reports and logs.
func (r HTTPRequest) String() string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL(""))
	if r.Body != nil {
		if s := r.Body.String(); s != "" {
			b.WriteString("\n\n")
			b.WriteString(s)
		}
	}
	return b.String()
}

func (r HTTPResponse) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.Status))
	for _, k := range sortedHeaderNames(r.Headers) {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Headers[k])
	}
	if r.Body != nil {
		if s := r.Body.String(); s != "" {
			b.WriteString("\n\n")
			b.WriteString(s)
		}
	}
	return b.String()
}

// ErrorResponse is the 400 response returned when no scenario accepts a
// request. An empty report is flagged with HeaderEmpty.
func ErrorResponse(report string) HTTPResponse {
	headers := map[string]string{
		HeaderContentType: "text/plain",
		HeaderResult:      "failure",
	}
	report = strings.TrimSpace(report)
	if report == "" {
		headers[HeaderEmpty] = "true"
	}
	return HTTPResponse{Status: 400, Headers: headers, Body: value.String(report)}
}

// ParseBody turns raw body text into a value: JSON and XML documents are
// parsed, anything else stays a string.
func ParseBody(raw string) value.Value {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return nil
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		if v, err := value.ParseJSON(trimmed); err == nil {
			return v
		}
	case strings.HasPrefix(trimmed, "<"):
		if n, err := value.ParseXML(trimmed); err == nil {
			return n
		}
	}
	return value.String(raw)
}

// ContentTypeOf returns the media type a body value is served with.
func ContentTypeOf(v value.Value) string {
	switch v.(type) {
	case value.Object, value.List:
		return "application/json"
	case *value.XMLNode:
		return "text/xml"
	default:
		return "text/plain"
	}
}

func bodyOrEmpty(v value.Value) value.Value {
	if v == nil {
		return value.String("")
	}
	return v
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func sortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
