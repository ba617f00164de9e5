package testrunner

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/contractfile"
	"github.com/EmmanuelMendoza/specmatic/pkg/stubserver"
	"github.com/EmmanuelMendoza/specmatic/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const shopContract = `
name: Shop
scenarios:
  - name: Get product
    facts:
      id: 10
    request:
      method: GET
      path: /products/(id:number)
    response:
      status: 200
      body: {id: (number), name: (string)}
  - name: Create order
    request:
      method: POST
      path: /orders
      body: {qty: (number)}
    response:
      status: 201
      body: {id: (number)}
    bindings:
      orderId: response-body.id
  - name: Login
    request:
      method: POST
      path: /login
      form:
        user: (string)
        pin: (number)
    response:
      status: 204
  - name: Upload
    request:
      method: POST
      path: /uploads
      multipart:
        - name: title
          content: (string)
    response:
      status: 201
  - name: Order placed
    kafka:
      topic: orders
      value: {id: (number)}
`

func mustFeature(t *testing.T, contract string) *specmatic.Feature {
	t.Helper()
	f, err := contractfile.Parse([]byte(contract), specmatic.DefaultOptions())
	require.NoError(t, err)
	return f
}

// newStub serves f and returns an executor pointed at it.
func newStub(t *testing.T, f *specmatic.Feature) *Executor {
	t.Helper()
	ts := httptest.NewServer(stubserver.New([]*specmatic.Feature{f}, stubserver.Config{}).Handler())
	client := &http.Client{Transport: &http.Transport{}}
	t.Cleanup(func() {
		client.CloseIdleConnections()
		ts.Close()
	})
	return NewExecutor(ts.URL+"/", client)
}

func TestRunAgainstStubServer(t *testing.T) {
	f := mustFeature(t, shopContract)
	executor := newStub(t, f)

	report, err := Run(context.Background(), []*specmatic.Feature{f}, executor, Config{Parallelism: 2})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 4, report.Passed(), report.Results().Report(""))
	assert.Zero(t, report.Failed())

	names := make([]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		names[i] = o.Scenario
		assert.Equal(t, "Shop", o.Feature)
	}
	assert.Equal(t, []string{"Get product", "Create order", "Login", "Upload"}, names)
	assert.Equal(t, "/products/10", report.Outcomes[0].Request.Path)
	require.NotNil(t, report.Outcomes[1].Response)
	assert.Equal(t, 201, report.Outcomes[1].Response.Status)
}

func TestRunFiltersByName(t *testing.T) {
	f := mustFeature(t, shopContract)
	executor := newStub(t, f)

	report, err := Run(context.Background(), []*specmatic.Feature{f}, executor, Config{Names: []string{"Login"}})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "Login", report.Outcomes[0].Scenario)
	assert.Equal(t, 1, report.Passed())
}

func TestRunReportsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	client := &http.Client{Transport: &http.Transport{}}
	defer func() {
		client.CloseIdleConnections()
		ts.Close()
	}()

	f := mustFeature(t, `
scenarios:
  - name: Health
    request: {method: GET, path: /health}
    response: {status: 200}
  - name: Experimental
    ignoreFailure: true
    request: {method: GET, path: /beta}
    response: {status: 200}
`)
	report, err := Run(context.Background(), []*specmatic.Feature{f}, NewExecutor(ts.URL, client), Config{})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.Failed())
	assert.False(t, report.Outcomes[0].Result.IsSuccess())
	assert.True(t, report.Outcomes[1].Result.IsSuccess())
	assert.Contains(t, report.Results().Report(""), "500")
}

func TestRunCancelled(t *testing.T) {
	f := mustFeature(t, shopContract)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, []*specmatic.Feature{f}, NewExecutor("http://127.0.0.1:1", nil), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 4, report.Failed())
	assert.Contains(t, report.Results().Report(""), "Test run cancelled")
}

func TestExecutorEncodesBodies(t *testing.T) {
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/x-www-form-urlencoded":
			require.NoError(t, r.ParseForm())
			seen = append(seen, "form:"+r.PostForm.Get("user"))
		case "multipart/form-data":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			fh := r.MultipartForm.File["doc"][0]
			seen = append(seen, "multipart:"+r.MultipartForm.Value["title"][0]+":"+fh.Filename)
		default:
			raw, _ := io.ReadAll(r.Body)
			seen = append(seen, mediaType+":"+string(raw))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok": true}`)
	}))
	client := &http.Client{Transport: &http.Transport{}}
	defer func() {
		client.CloseIdleConnections()
		ts.Close()
	}()
	e := NewExecutor(ts.URL, client)
	ctx := context.Background()

	resp, err := e.Execute(ctx, specmatic.HTTPRequest{Method: "POST", Path: "/a", FormFields: map[string]string{"user": "ann"}})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"ok": value.Boolean(true)}, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	_, err = e.Execute(ctx, specmatic.HTTPRequest{Method: "POST", Path: "/b", MultiPart: []specmatic.MultiPartValue{
		{Name: "title", Content: value.String("report")},
		{Name: "doc", Content: value.String("hello"), Filename: "report.txt"},
	}})
	require.NoError(t, err)

	_, err = e.Execute(ctx, specmatic.HTTPRequest{Method: "PUT", Path: "/c", Body: value.Object{"qty": value.Number(2)}})
	require.NoError(t, err)

	_, err = e.Execute(ctx, specmatic.HTTPRequest{Method: "GET", Path: "/d"})
	require.NoError(t, err)

	assert.Equal(t, []string{"form:ann", "multipart:report:report.txt", `application/json:{"qty":2}`, ":"}, seen)
}

func TestSetServerState(t *testing.T) {
	f := mustFeature(t, shopContract)
	e := newStub(t, f)
	require.NoError(t, e.SetServerState(context.Background(), map[string]value.Value{"id": value.Number(10)}))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, stubserver.StatePath, r.URL.Path)
		http.Error(w, "no state here", http.StatusNotFound)
	}))
	client := &http.Client{Transport: &http.Transport{}}
	defer func() {
		client.CloseIdleConnections()
		ts.Close()
	}()
	err := NewExecutor(ts.URL, client).SetServerState(context.Background(), map[string]value.Value{"id": value.Number(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no state here")
}

func TestExporter(t *testing.T) {
	f := mustFeature(t, shopContract)
	e := newStub(t, f)

	client := &http.Client{Transport: &http.Transport{}}
	defer client.CloseIdleConnections()
	exported, err := Exporter(context.Background(), client)(f, e.BaseURL())
	require.NoError(t, err)
	require.Contains(t, exported, "orderId")
	_, err = strconv.ParseFloat(exported["orderId"], 64)
	assert.NoError(t, err, exported["orderId"])
	assert.False(t, strings.Contains(exported["orderId"], `"`))
}
