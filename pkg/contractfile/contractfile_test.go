package contractfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/value"
)

const ordersContract = `
name: Orders
patterns:
  Order:
    id: (number)
    status: (Status)
    note?: (string)
enums:
  Status: {type: (string), values: [open, closed]}
scenarios:
  - name: Get order
    request:
      method: get
      path: /orders/(id:number)
      headers:
        X-Trace?: (string)
    response:
      status: 200
      body: (Order)
  - name: Create order
    request:
      method: POST
      path: /orders
      body:
        status: (Status)
        qty: (number)
    response:
      status: 201
      headers:
        Location: (string)
  - name: Order placed
    kafka:
      topic: orders
      value: {id: (number)}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(ordersContract), specmatic.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Orders", f.Name)
	require.Len(t, f.Scenarios, 3)
	assert.Equal(t, "GET", f.Scenarios[0].Request.Method)

	t.Run("ServesNamedTypes", func(t *testing.T) {
		resp := f.LookupResponse(specmatic.HTTPRequest{
			Method:  "GET",
			Path:    "/orders/10",
			Headers: map[string]string{"X-Trace": "abc"},
		}, nil)
		require.Equal(t, 200, resp.Status, resp.BodyValue().String())

		body, ok := resp.Body.(value.Object)
		require.True(t, ok, "body was %T", resp.Body)
		assert.IsType(t, value.Number(0), body["id"])
		assert.Contains(t, []value.Value{value.String("open"), value.String("closed")}, body["status"])
	})

	t.Run("Enums", func(t *testing.T) {
		ok := f.LookupResponse(specmatic.HTTPRequest{
			Method: "POST",
			Path:   "/orders",
			Body:   value.Object{"status": value.String("open"), "qty": value.Number(2)},
		}, nil)
		assert.Equal(t, 201, ok.Status, ok.BodyValue().String())
		_, hasLocation := ok.Header("Location")
		assert.True(t, hasLocation)

		bad := f.LookupResponse(specmatic.HTTPRequest{
			Method: "POST",
			Path:   "/orders",
			Body:   value.Object{"status": value.String("pending"), "qty": value.Number(2)},
		}, nil)
		assert.Equal(t, 400, bad.Status)
		assert.Contains(t, bad.BodyValue().String(), "BODY.status")
	})

	t.Run("KafkaMessages", func(t *testing.T) {
		res := f.MatchesMockKafkaMessage(specmatic.KafkaMessage{Topic: "orders", Value: value.Object{"id": value.Number(1)}})
		assert.True(t, res.IsSuccess())
	})
}

func TestParseExamplesAndFacts(t *testing.T) {
	f, err := Parse([]byte(`
fixtures:
  known_user: {id: 7}
scenarios:
  - name: Get user
    facts:
      known_user: true
      region: eu
    request:
      method: GET
      path: /users/(id:number)
    response:
      status: 200
    examples:
      - name: seven
        rows:
          - id: "7"
`), specmatic.DefaultOptions())
	require.NoError(t, err)

	s := f.Scenarios[0]
	assert.Equal(t, value.String("eu"), s.ExpectedFacts["region"])
	assert.Equal(t, value.Object{"id": value.Number(7)}, s.Fixtures["known_user"])
	require.Len(t, s.Examples, 1)
	assert.Equal(t, "seven", s.Examples[0].Name)

	tests, err := f.GenerateContractTestScenarios(nil)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	req, err := tests[0].Request.Generate(tests[0].Resolver())
	require.NoError(t, err)
	assert.Equal(t, "/users/7", req.Path)
}

func TestParseNullablePathParamWithQuery(t *testing.T) {
	f, err := Parse([]byte(`
scenarios:
  - name: Get product
    request:
      method: GET
      path: /products/(id:number?)?verbose=(boolean)
    response:
      status: 200
      body: {id: (number)}
`), specmatic.DefaultOptions())
	require.NoError(t, err)

	url := f.Scenarios[0].Request.URL
	assert.Equal(t, "/products/(id:number?)", url.Path())
	require.Len(t, url.Query, 1)
	assert.Contains(t, url.Query, "verbose?")

	resp := f.LookupResponse(specmatic.HTTPRequest{
		Method: "GET",
		Path:   "/products/10",
		Query:  map[string]string{"verbose": "true"},
	}, nil)
	assert.Equal(t, 200, resp.Status, resp.BodyValue().String())

	bad := f.LookupResponse(specmatic.HTTPRequest{
		Method: "GET",
		Path:   "/products/10",
		Query:  map[string]string{"verbose": "loud"},
	}, nil)
	assert.Equal(t, 400, bad.Status)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		contract string
		want     string
	}{
		{
			name:     "NoScenarios",
			contract: "name: empty\n",
			want:     "declares no scenarios",
		},
		{
			name: "MissingStatus",
			contract: `
scenarios:
  - name: broken
    request: {method: GET, path: /x}
`,
			want: "response status is required",
		},
		{
			name: "BadToken",
			contract: `
scenarios:
  - name: broken
    request: {method: GET, path: /x, body: "(not a type)"}
    response: {status: 200}
`,
			want: "not a valid type name",
		},
		{
			name: "BadEnumValue",
			contract: `
enums:
  Size: {type: (number), values: [one]}
scenarios:
  - name: s
    request: {method: GET, path: /x}
    response: {status: 200}
`,
			want: "Couldn't convert",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.contract), specmatic.DefaultOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeContract(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoaderCachesUntilFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeContract(t, dir, "orders.yaml", ordersContract)
	l := NewLoader(specmatic.DefaultOptions(), nil, time.Minute)

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	third, err := l.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestLoaderNamesUnnamedContracts(t *testing.T) {
	dir := t.TempDir()
	path := writeContract(t, dir, "ping.yaml", `
scenarios:
  - name: Ping
    request: {method: GET, path: /ping}
    response: {status: 200}
`)
	f, err := NewLoader(specmatic.DefaultOptions(), nil, time.Minute).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ping.yaml", f.Name)
}

func TestLoaderResolvesReferences(t *testing.T) {
	dir := t.TempDir()
	writeContract(t, dir, "auth.yaml", `
name: Auth
scenarios:
  - name: Login
    request: {method: POST, path: /login}
    response:
      status: 200
      body: {token: (string)}
    bindings:
      token: response-body.token
`)
	path := writeContract(t, dir, "products.yaml", `
name: Products
references:
  auth: auth.yaml
scenarios:
  - name: Get product
    request:
      method: GET
      path: /products/(id:number)
      headers:
        Authorization: (string)
    response:
      status: 200
    examples:
      - rows:
          - id: "3"
            Authorization: $(auth.token)
`)

	var exportedFrom []string
	exporter := func(f *specmatic.Feature, baseURL string) (map[string]string, error) {
		exportedFrom = append(exportedFrom, f.Name+"@"+baseURL)
		return map[string]string{"token": "secret"}, nil
	}
	f, err := NewLoader(specmatic.DefaultOptions(), exporter, time.Minute).Load(path)
	require.NoError(t, err)
	f.TestBaseURLs = map[string]string{"auth": "http://auth.local"}

	tests, err := f.GenerateContractTestScenarios(nil)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	req, err := tests[0].Request.Generate(tests[0].Resolver())
	require.NoError(t, err)
	assert.Equal(t, "secret", req.Headers["Authorization"])
	assert.Equal(t, []string{"Auth@http://auth.local"}, exportedFrom)
}

func TestReferencesWithoutLoaderFail(t *testing.T) {
	f, err := Parse([]byte(`
references:
  auth: auth.yaml
scenarios:
  - name: Get product
    request: {method: GET, path: /products/(id:number)}
    response: {status: 200}
    examples:
      - rows:
          - id: $(auth.id)
`), specmatic.DefaultOptions())
	require.NoError(t, err)

	_, err = f.GenerateContractTestScenarios(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source")
}
