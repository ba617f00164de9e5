package stubserver

import (
	"io"
	"mime"
	"net/http"
	"sort"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/EmmanuelMendoza/specmatic"
)

const maxMultipartMemory = 32 << 20

// toRequest converts an incoming request. Repeated query parameters and
// headers keep their first value.
func toRequest(r *http.Request) (specmatic.HTTPRequest, error) {
	req := specmatic.HTTPRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: make(map[string]string, len(r.Header)),
	}
	if q := r.URL.Query(); len(q) > 0 {
		req.Query = make(map[string]string, len(q))
		for k, vs := range q {
			req.Query[k] = vs[0]
		}
	}
	for k, vs := range r.Header {
		if len(vs) > 0 {
			req.Headers[k] = vs[0]
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(specmatic.HeaderContentType))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, errors.Wrap(err, "parse form")
		}
		req.FormFields = make(map[string]string, len(r.PostForm))
		for k, vs := range r.PostForm {
			req.FormFields[k] = vs[0]
		}
	case "multipart/form-data":
		parts, err := multipartValues(r)
		if err != nil {
			return req, err
		}
		req.MultiPart = parts
	default:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return req, errors.Wrap(err, "read body")
		}
		req.Body = specmatic.ParseBody(string(raw))
	}
	return req, nil
}

func multipartValues(r *http.Request) ([]specmatic.MultiPartValue, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, errors.Wrap(err, "parse multipart body")
	}
	var parts []specmatic.MultiPartValue
	for name, vs := range r.MultipartForm.Value {
		for _, v := range vs {
			parts = append(parts, specmatic.MultiPartValue{Name: name, Content: specmatic.ParseBody(v)})
		}
	}
	for name, files := range r.MultipartForm.File {
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return nil, errors.Wrapf(err, "open part %s", name)
			}
			raw, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, errors.Wrapf(err, "read part %s", name)
			}
			parts = append(parts, specmatic.MultiPartValue{Name: name, Content: specmatic.ParseBody(string(raw)), Filename: fh.Filename})
		}
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	return parts, nil
}

func writeResponse(c *gin.Context, resp specmatic.HTTPResponse) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	if resp.Body == nil {
		c.Status(resp.Status)
		return
	}
	contentType, ok := resp.Header(specmatic.HeaderContentType)
	if !ok {
		contentType = specmatic.ContentTypeOf(resp.Body)
	}
	c.Data(resp.Status, contentType, []byte(resp.Body.String()))
}
