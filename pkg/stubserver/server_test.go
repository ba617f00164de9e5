package stubserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/contractfile"
	"github.com/EmmanuelMendoza/specmatic/value"
)

const productsContract = `
name: Products
scenarios:
  - name: Get product
    facts:
      id: true
    request:
      method: GET
      path: /products/(id:number)
    response:
      status: 200
      body: {id: (number), name: (string)}
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
        - name: doc
          content: (string)
    response:
      status: 201
`

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	f, err := contractfile.Parse([]byte(productsContract), specmatic.DefaultOptions())
	require.NoError(t, err)
	s := New([]*specmatic.Feature{f}, cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func post(t *testing.T, ts *httptest.Server, path, contentType string, body io.Reader) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestNewLeavesGinModeAlone(t *testing.T) {
	newTestServer(t, Config{})
	newTestServer(t, Config{Strict: true})
	assert.Equal(t, gin.TestMode, gin.Mode())
}

func TestServesContract(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := get(t, ts, "/products/10")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var product map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &product))
	assert.IsType(t, float64(0), product["id"])
	assert.IsType(t, "", product["name"])
}

func TestReportsMismatches(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := get(t, ts, "/products/abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "failure", resp.Header.Get(specmatic.HeaderResult))
	assert.Contains(t, body, `Couldn't convert "abc" to number`)

	resp, body = get(t, ts, "/customers")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Request not recognized; method=GET, path=/customers")
}

func TestStateIsSingleUse(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := post(t, ts, StatePath, "application/json", strings.NewReader(`{"id": 10}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = get(t, ts, "/products/10")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `10`, mustField(t, body, "id"))

	resp, body = post(t, ts, StatePath, "application/json", strings.NewReader(`[1]`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "JSON object")
}

func mustField(t *testing.T, body, key string) string {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &obj))
	return string(obj[key])
}

func TestExpectations(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := post(t, ts, ExpectationsPath, "application/json", strings.NewReader(`{
  "http-request": {"method": "GET", "path": "/products/7"},
  "http-response": {"status": 200, "body": {"id": 7, "name": "Teapot"}}
}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = get(t, ts, "/products/7")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"id": 7, "name": "Teapot"}`, body)

	// Other ids still come from the contract.
	resp, body = get(t, ts, "/products/8")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotContains(t, body, "Teapot")

	resp, body = post(t, ts, ExpectationsPath, "application/json", strings.NewReader(`{
  "http-request": {"method": "GET", "path": "/products/7"},
  "http-response": {"status": 200, "body": {"id": "seven", "name": "Teapot"}}
}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "id")
}

func TestLatestStubWins(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	for _, name := range []string{"first", "second"} {
		require.NoError(t, s.AddStub(specmatic.ScenarioStub{
			Request:  specmatic.HTTPRequest{Method: "GET", Path: "/products/1"},
			Response: specmatic.HTTPResponse{Status: 200, Body: value.Object{"id": value.Number(1), "name": value.String(name)}},
		}))
	}
	_, body := get(t, ts, "/products/1")
	assert.JSONEq(t, `{"id": 1, "name": "second"}`, body)
}

func TestStubDelay(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	require.NoError(t, s.AddStub(specmatic.ScenarioStub{
		Request:  specmatic.HTTPRequest{Method: "GET", Path: "/products/2"},
		Response: specmatic.HTTPResponse{Status: 200, Body: value.Object{"id": value.Number(2), "name": value.String("slow")}},
		Delay:    50 * time.Millisecond,
	}))

	start := time.Now()
	resp, _ := get(t, ts, "/products/2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStrictMode(t *testing.T) {
	_, ts := newTestServer(t, Config{Strict: true})

	resp, body := get(t, ts, "/products/10")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "STRICT MODE ON")
}

func TestFormAndMultipartRequests(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	form := url.Values{"user": {"ann"}, "pin": {"1234"}}
	resp, body := post(t, ts, "/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, body)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "report"))
	fw, err := w.CreateFormFile("doc", "report.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, body = post(t, ts, "/uploads", w.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, body)
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	get(t, ts, "/products/10")
	get(t, ts, "/nothing")

	resp, body := get(t, ts, MetricsPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `specmatic_stub_requests_total{outcome="contract"} 1`)
	assert.Contains(t, body, `specmatic_stub_requests_total{outcome="mismatch"} 1`)
}
