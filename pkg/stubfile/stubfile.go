// Package stubfile reads hand-written stubs: a request, the response to
// serve for it and an optional delay. Files are JSON or YAML:
//
//	{
//	  "http-request": {"method": "GET", "path": "/products/10"},
//	  "http-response": {"status": 200, "body": {"id": 10, "name": "(string)"}},
//	  "delay-in-seconds": 1
//	}
package stubfile

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"gopkg.in/yaml.v3"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Stub is a stub and the file it came from.
type Stub struct {
	Path string
	specmatic.ScenarioStub
}

type stubDoc struct {
	Request      *requestDoc  `yaml:"http-request"`
	Response     *responseDoc `yaml:"http-response"`
	DelaySeconds float64      `yaml:"delay-in-seconds"`
	DelayMillis  int64        `yaml:"delay-in-milliseconds"`
}

type requestDoc struct {
	Method    string            `yaml:"method"`
	Path      string            `yaml:"path"`
	Query     map[string]string `yaml:"query"`
	Headers   map[string]string `yaml:"headers"`
	Body      yaml.Node         `yaml:"body"`
	Form      map[string]string `yaml:"form-fields"`
	Multipart []partDoc         `yaml:"multipart-formdata"`
}

type partDoc struct {
	Name     string    `yaml:"name"`
	Content  yaml.Node `yaml:"content"`
	Filename string    `yaml:"filename"`
}

type responseDoc struct {
	Status  int               `yaml:"status"`
	Headers map[string]string `yaml:"headers"`
	Body    yaml.Node         `yaml:"body"`
}

// Parse reads one stub.
func Parse(data []byte) (specmatic.ScenarioStub, error) {
	var doc stubDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return specmatic.ScenarioStub{}, errors.Wrap(err, "decode stub")
	}
	if doc.Request == nil {
		return specmatic.ScenarioStub{}, errors.New("stub has no http-request")
	}
	if doc.Response == nil {
		return specmatic.ScenarioStub{}, errors.New("stub has no http-response")
	}

	req, err := requestOf(doc.Request)
	if err != nil {
		return specmatic.ScenarioStub{}, errors.Wrap(err, "http-request")
	}
	resp, err := responseOf(doc.Response)
	if err != nil {
		return specmatic.ScenarioStub{}, errors.Wrap(err, "http-response")
	}

	delay := time.Duration(doc.DelaySeconds * float64(time.Second))
	if doc.DelayMillis > 0 {
		delay = time.Duration(doc.DelayMillis) * time.Millisecond
	}
	if delay < 0 {
		return specmatic.ScenarioStub{}, errors.Errorf("negative delay %s", delay)
	}
	return specmatic.ScenarioStub{Request: req, Response: resp, Delay: delay}, nil
}

// LoadFile reads the stub at path.
func LoadFile(path string) (Stub, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stub{}, errors.Wrapf(err, "read %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return Stub{}, errors.Wrapf(err, "stub %s", path)
	}
	return Stub{Path: path, ScenarioStub: s}, nil
}

// LoadDir reads every .json, .yaml and .yml file under dir, in lexical order.
func LoadDir(dir string) ([]Stub, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", dir)
	}
	sort.Strings(paths)

	stubs := make([]Stub, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		stubs = append(stubs, s)
	}
	return stubs, nil
}

func requestOf(rd *requestDoc) (specmatic.HTTPRequest, error) {
	if rd.Method == "" || rd.Path == "" {
		return specmatic.HTTPRequest{}, errors.New("method and path are required")
	}
	u, err := url.Parse(rd.Path)
	if err != nil {
		return specmatic.HTTPRequest{}, errors.Wrapf(err, "path %s", rd.Path)
	}
	query := make(map[string]string, len(rd.Query))
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	for k, v := range rd.Query {
		query[k] = v
	}
	if len(query) == 0 {
		query = nil
	}

	body, err := bodyOf(&rd.Body)
	if err != nil {
		return specmatic.HTTPRequest{}, errors.Wrap(err, "body")
	}

	var parts []specmatic.MultiPartValue
	for _, pd := range rd.Multipart {
		content, err := bodyOf(&pd.Content)
		if err != nil {
			return specmatic.HTTPRequest{}, errors.Wrapf(err, "multipart %s", pd.Name)
		}
		if content == nil {
			content = value.String("")
		}
		parts = append(parts, specmatic.MultiPartValue{Name: pd.Name, Content: content, Filename: pd.Filename})
	}

	return specmatic.HTTPRequest{
		Method:     strings.ToUpper(rd.Method),
		Path:       u.Path,
		Query:      query,
		Headers:    rd.Headers,
		Body:       body,
		FormFields: rd.Form,
		MultiPart:  parts,
	}, nil
}

func responseOf(rd *responseDoc) (specmatic.HTTPResponse, error) {
	if rd.Status == 0 {
		return specmatic.HTTPResponse{}, errors.New("status is required")
	}
	body, err := bodyOf(&rd.Body)
	if err != nil {
		return specmatic.HTTPResponse{}, errors.Wrap(err, "body")
	}
	headers := rd.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return specmatic.HTTPResponse{Status: rd.Status, Headers: headers, Body: body}, nil
}

// bodyOf reads a body node. Strings go through specmatic.ParseBody so JSON
// and XML text become structured values.
func bodyOf(n *yaml.Node) (value.Value, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		return specmatic.ParseBody(n.Value), nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	return value.FromYAMLNode(n)
}
