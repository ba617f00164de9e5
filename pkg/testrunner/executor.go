package testrunner

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/stubserver"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// DefaultTimeout bounds a single test request when no client is given.
const DefaultTimeout = 60 * time.Second

// Executor sends generated requests to a running service.
type Executor struct {
	baseURL string
	client  *http.Client
}

// NewExecutor returns an executor for the service at baseURL. A nil client
// gets DefaultTimeout.
func NewExecutor(baseURL string, client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Executor{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// BaseURL returns the address requests are sent to.
func (e *Executor) BaseURL() string { return e.baseURL }

// Execute sends req and converts the reply.
func (e *Executor) Execute(ctx context.Context, req specmatic.HTTPRequest) (specmatic.HTTPResponse, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return specmatic.HTTPResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(e.baseURL), body)
	if err != nil {
		return specmatic.HTTPResponse{}, errors.Wrap(err, "build request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get(specmatic.HeaderContentType) == "" {
		httpReq.Header.Set(specmatic.HeaderContentType, contentType)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return specmatic.HTTPResponse{}, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return specmatic.HTTPResponse{}, errors.Wrap(err, "read response body")
	}
	out := specmatic.HTTPResponse{
		Status:  resp.StatusCode,
		Headers: make(map[string]string, len(resp.Header)),
		Body:    specmatic.ParseBody(string(raw)),
	}
	for k, vs := range resp.Header {
		if len(vs) > 0 {
			out.Headers[k] = vs[0]
		}
	}
	return out, nil
}

// SetServerState posts facts to the service's state endpoint.
func (e *Executor) SetServerState(ctx context.Context, state map[string]value.Value) error {
	payload := value.Object(state).String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+stubserver.StatePath, strings.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build state request")
	}
	httpReq.Header.Set(specmatic.HeaderContentType, "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "post state")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(resp.Body)
		return errors.Errorf("state endpoint answered %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// encodeBody renders the request body and the content type it implies.
func encodeBody(req specmatic.HTTPRequest) (io.Reader, string, error) {
	switch {
	case len(req.FormFields) > 0:
		form := url.Values{}
		for k, v := range req.FormFields {
			form.Set(k, v)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	case len(req.MultiPart) > 0:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, part := range req.MultiPart {
			content := ""
			if part.Content != nil {
				content = part.Content.String()
			}
			if part.Filename == "" {
				if err := w.WriteField(part.Name, content); err != nil {
					return nil, "", errors.Wrapf(err, "write part %s", part.Name)
				}
				continue
			}
			fw, err := w.CreateFormFile(part.Name, part.Filename)
			if err != nil {
				return nil, "", errors.Wrapf(err, "create part %s", part.Name)
			}
			if _, err := io.WriteString(fw, content); err != nil {
				return nil, "", errors.Wrapf(err, "write part %s", part.Name)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", errors.Wrap(err, "close multipart body")
		}
		return &buf, w.FormDataContentType(), nil
	case req.Body == nil:
		return nil, "", nil
	default:
		return strings.NewReader(req.Body.String()), specmatic.ContentTypeOf(req.Body), nil
	}
}
