package specmatic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic/value"
)

func TestParseBody(t *testing.T) {
	assert.Nil(t, ParseBody("  "))
	assert.Equal(t, value.Object{"a": value.Number(1)}, ParseBody(`{"a": 1}`))
	assert.Equal(t, value.List{value.True}, ParseBody(`[true]`))
	assert.Equal(t, value.String("{not json"), ParseBody("{not json"))
	assert.Equal(t, value.String("hello"), ParseBody("hello"))

	node, ok := ParseBody(`<order id="1"><item>pen</item></order>`).(*value.XMLNode)
	require.True(t, ok)
	assert.Equal(t, "order", node.Name)
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse("  something failed \n")
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "failure", resp.Headers[HeaderResult])
	assert.Equal(t, "text/plain", resp.Headers[HeaderContentType])
	assert.Equal(t, value.String("something failed"), resp.Body)
	assert.NotContains(t, resp.Headers, HeaderEmpty)

	assert.Equal(t, "true", ErrorResponse("").Headers[HeaderEmpty])
}

func TestRequestURLAndHeaders(t *testing.T) {
	req := HTTPRequest{
		Method:  "GET",
		Path:    "/search",
		Query:   map[string]string{"q": "a b", "limit": "5"},
		Headers: map[string]string{"Content-Type": "application/json"},
	}
	assert.Equal(t, "http://localhost:9000/search?limit=5&q=a+b", req.URL("http://localhost:9000/"))
	assert.Equal(t, "GET /search?limit=5&q=a+b", req.String())

	v, ok := req.Header("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)
}

func TestPathNotRecognizedMessage(t *testing.T) {
	assert.Equal(t, "Request not recognized; method=PUT, path=/a",
		(&PathNotRecognizedError{Request: HTTPRequest{Method: "PUT", Path: "/a"}}).Error())

	soap := HTTPRequest{Method: "POST", Path: "/ws", Headers: map[string]string{"SOAPAction": `"order"`}}
	assert.Equal(t, `SOAP request not recognized; path=/ws, SOAPAction="order"`, pathNotRecognizedMessage(soap))
}

func TestSelector(t *testing.T) {
	sel, err := ParseSelector("response-body.items.1.name")
	require.NoError(t, err)
	assert.Equal(t, []SelectorStep{{Key: "items"}, {Key: 1}, {Key: "name"}}, sel.Path)

	resp := HTTPResponse{Body: value.Object{"items": value.List{
		value.Object{"name": value.String("pen")},
		value.Object{"name": value.String("ink")},
	}}}
	got, err := sel.Select(resp)
	require.NoError(t, err)
	assert.Equal(t, "ink", got)

	xml := HTTPResponse{Body: ParseBody(`<order><id>12</id></order>`)}
	sel, err = ParseSelector("response-body.id")
	require.NoError(t, err)
	got, err = sel.Select(xml)
	require.NoError(t, err)
	assert.Equal(t, "12", got)

	_, err = ParseSelector("request-body.id")
	assert.Error(t, err)
	_, err = ParseSelector("response-header")
	assert.Error(t, err)

	sel, err = ParseSelector("response-body.items.5")
	require.NoError(t, err)
	_, err = sel.Select(resp)
	assert.Error(t, err)
}
