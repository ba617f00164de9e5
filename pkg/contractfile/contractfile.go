// Package contractfile reads contracts written in YAML into a Feature.
//
// A contract file looks like this:
//
//	name: Orders
//	patterns:
//	  Order: {id: "(number)", items: ["(Item)"]}
//	enums:
//	  Status: {type: (string), values: [open, closed]}
//	references:
//	  auth: auth.yaml
//	fixtures:
//	  user_exists: {id: 10}
//	scenarios:
//	  - name: Get order
//	    facts: {id: 10}
//	    request:
//	      method: GET
//	      path: /orders/(id:number)
//	      headers:
//	        X-Trace?: (string)
//	    response:
//	      status: 200
//	      body: (Order)
//	    examples:
//	      - name: known
//	        rows: [{id: "10"}]
//
// Scalar strings are read as pattern text, so "(number)" is a type and
// "{...}" is JSON whose members may be types. Mappings and sequences are
// sample values whose string members may be types.
package contractfile

import (
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"gopkg.in/yaml.v3"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/value"
)

type document struct {
	Name       string               `yaml:"name"`
	Patterns   map[string]yaml.Node `yaml:"patterns"`
	Enums      map[string]enumDoc   `yaml:"enums"`
	References map[string]string    `yaml:"references"`
	Fixtures   yaml.Node            `yaml:"fixtures"`
	Scenarios  []scenarioDoc        `yaml:"scenarios"`
}

type enumDoc struct {
	Type   string   `yaml:"type"`
	Values []string `yaml:"values"`
}

type scenarioDoc struct {
	Name          string            `yaml:"name"`
	IgnoreFailure bool              `yaml:"ignoreFailure"`
	Facts         yaml.Node         `yaml:"facts"`
	Bindings      map[string]string `yaml:"bindings"`
	Examples      []examplesDoc     `yaml:"examples"`
	Request       *requestDoc       `yaml:"request"`
	Response      *responseDoc      `yaml:"response"`
	Kafka         *kafkaDoc         `yaml:"kafka"`
}

type requestDoc struct {
	Method    string            `yaml:"method"`
	Path      string            `yaml:"path"`
	Headers   map[string]string `yaml:"headers"`
	Body      yaml.Node         `yaml:"body"`
	Form      map[string]string `yaml:"form"`
	Multipart []partDoc         `yaml:"multipart"`
}

type partDoc struct {
	Name     string    `yaml:"name"`
	Content  yaml.Node `yaml:"content"`
	Optional bool      `yaml:"optional"`
}

type responseDoc struct {
	Status  int               `yaml:"status"`
	Headers map[string]string `yaml:"headers"`
	Body    yaml.Node         `yaml:"body"`
}

type kafkaDoc struct {
	Topic string    `yaml:"topic"`
	Key   yaml.Node `yaml:"key"`
	Value yaml.Node `yaml:"value"`
}

type examplesDoc struct {
	Name string              `yaml:"name"`
	Rows []map[string]string `yaml:"rows"`
}

// Parse reads a contract. Declared references get no source; use a Loader
// to resolve them against other contract files.
func Parse(data []byte, opts specmatic.Options) (*specmatic.Feature, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]*specmatic.References, len(doc.References))
	for name := range doc.References {
		refs[name] = specmatic.NewReferences(name, nil)
	}
	return build(doc, refs, opts)
}

func decode(data []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode contract")
	}
	if len(doc.Scenarios) == 0 {
		return nil, errors.Errorf("contract %q declares no scenarios", doc.Name)
	}
	return &doc, nil
}

func build(doc *document, refs map[string]*specmatic.References, opts specmatic.Options) (*specmatic.Feature, error) {
	patterns, err := namedPatterns(doc)
	if err != nil {
		return nil, err
	}
	fixtures, err := factsOf(&doc.Fixtures)
	if err != nil {
		return nil, errors.Wrap(err, "fixtures")
	}

	scenarios := make([]*specmatic.Scenario, 0, len(doc.Scenarios))
	for i := range doc.Scenarios {
		sd := &doc.Scenarios[i]
		s, err := buildScenario(sd, patterns)
		if err != nil {
			name := sd.Name
			if name == "" {
				name = "#" + strconv.Itoa(i+1)
			}
			return nil, errors.Wrapf(err, "scenario %s", name)
		}
		s.Fixtures = fixtures
		s.References = refs
		scenarios = append(scenarios, s)
	}
	return specmatic.NewFeature(doc.Name, scenarios, opts), nil
}

// namedPatterns builds the registry shared by every scenario of the file.
func namedPatterns(doc *document) (map[string]pattern.Pattern, error) {
	patterns := make(map[string]pattern.Pattern, len(doc.Patterns)+len(doc.Enums))
	for name, node := range doc.Patterns {
		alias := aliasOf(name)
		p, err := patternOf(&node)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %s (line %d)", alias, node.Line)
		}
		if p == nil {
			return nil, errors.Errorf("pattern %s is empty", alias)
		}
		if obj, ok := p.(pattern.Object); ok {
			obj.Alias = alias
			p = obj
		}
		patterns[alias] = p
	}
	for name, e := range doc.Enums {
		alias := aliasOf(name)
		typ, err := pattern.ParsePattern(e.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "enum %s", alias)
		}
		enum, err := pattern.ParseEnum(alias, typ, e.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "enum %s", alias)
		}
		patterns[alias] = enum
	}
	return patterns, nil
}

func aliasOf(name string) string {
	if pattern.IsPatternToken(name) {
		return name
	}
	return "(" + name + ")"
}

func buildScenario(sd *scenarioDoc, patterns map[string]pattern.Pattern) (*specmatic.Scenario, error) {
	s := &specmatic.Scenario{
		Name:          sd.Name,
		Patterns:      patterns,
		IgnoreFailure: sd.IgnoreFailure,
		Bindings:      sd.Bindings,
	}

	facts, err := factsOf(&sd.Facts)
	if err != nil {
		return nil, errors.Wrap(err, "facts")
	}
	s.ExpectedFacts = facts

	for _, ex := range sd.Examples {
		examples := pattern.Examples{Name: ex.Name}
		for _, row := range ex.Rows {
			r := pattern.RowFromMap(row)
			r.Name = ex.Name
			examples.Rows = append(examples.Rows, r)
		}
		s.Examples = append(s.Examples, examples)
	}

	if sd.Kafka != nil {
		msg, err := kafkaPattern(sd.Kafka)
		if err != nil {
			return nil, errors.Wrap(err, "kafka")
		}
		s.KafkaMessage = msg
		if sd.Request == nil {
			return s, nil
		}
	}

	if sd.Request == nil {
		return nil, errors.New("request is required")
	}
	if sd.Response == nil || sd.Response.Status == 0 {
		return nil, errors.New("response status is required")
	}
	if s.Request, err = requestPattern(sd.Request); err != nil {
		return nil, errors.Wrap(err, "request")
	}
	if s.Response, err = responsePattern(sd.Response); err != nil {
		return nil, errors.Wrap(err, "response")
	}
	return s, nil
}

func requestPattern(rd *requestDoc) (specmatic.HTTPRequestPattern, error) {
	if rd.Method == "" || rd.Path == "" {
		return specmatic.HTTPRequestPattern{}, errors.New("method and path are required")
	}
	url, err := specmatic.ParseURLMatcher(rd.Path)
	if err != nil {
		return specmatic.HTTPRequestPattern{}, errors.Wrapf(err, "path %s", rd.Path)
	}
	headers, err := textPatterns(rd.Headers)
	if err != nil {
		return specmatic.HTTPRequestPattern{}, errors.Wrap(err, "headers")
	}
	body, err := patternOf(&rd.Body)
	if err != nil {
		return specmatic.HTTPRequestPattern{}, errors.Wrapf(err, "body (line %d)", rd.Body.Line)
	}
	form, err := textPatterns(rd.Form)
	if err != nil {
		return specmatic.HTTPRequestPattern{}, errors.Wrap(err, "form")
	}
	if len(form) == 0 {
		form = nil
	}

	var parts []specmatic.MultiPartPattern
	for _, pd := range rd.Multipart {
		content, err := patternOf(&pd.Content)
		if err != nil {
			return specmatic.HTTPRequestPattern{}, errors.Wrapf(err, "multipart %s", pd.Name)
		}
		if content == nil {
			content = pattern.String{}
		}
		parts = append(parts, specmatic.MultiPartPattern{Name: pd.Name, Content: content, Optional: pd.Optional})
	}

	return specmatic.HTTPRequestPattern{
		Method:     strings.ToUpper(rd.Method),
		URL:        url,
		Headers:    specmatic.NewHeadersPattern(headers),
		Body:       body,
		FormFields: form,
		MultiPart:  parts,
	}, nil
}

func responsePattern(rd *responseDoc) (specmatic.HTTPResponsePattern, error) {
	headers, err := textPatterns(rd.Headers)
	if err != nil {
		return specmatic.HTTPResponsePattern{}, errors.Wrap(err, "headers")
	}
	body, err := patternOf(&rd.Body)
	if err != nil {
		return specmatic.HTTPResponsePattern{}, errors.Wrapf(err, "body (line %d)", rd.Body.Line)
	}
	return specmatic.HTTPResponsePattern{
		Status:  rd.Status,
		Headers: specmatic.NewHeadersPattern(headers),
		Body:    body,
	}, nil
}

func kafkaPattern(kd *kafkaDoc) (*specmatic.KafkaMessagePattern, error) {
	if kd.Topic == "" {
		return nil, errors.New("topic is required")
	}
	key, err := patternOf(&kd.Key)
	if err != nil {
		return nil, errors.Wrap(err, "key")
	}
	val, err := patternOf(&kd.Value)
	if err != nil {
		return nil, errors.Wrap(err, "value")
	}
	return &specmatic.KafkaMessagePattern{Topic: kd.Topic, Key: key, Value: val}, nil
}

func textPatterns(m map[string]string) (map[string]pattern.Pattern, error) {
	out := make(map[string]pattern.Pattern, len(m))
	for k, text := range m {
		p, err := pattern.ParsePattern(text)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", k)
		}
		out[k] = p
	}
	return out, nil
}

// patternOf reads a node as a pattern. An absent node yields nil.
func patternOf(n *yaml.Node) (pattern.Pattern, error) {
	if n == nil || n.Kind == 0 {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		return pattern.ParsePattern(n.Value)
	}
	v, err := value.FromYAMLNode(n)
	if err != nil {
		return nil, err
	}
	return pattern.FromValue(v)
}

func factsOf(n *yaml.Node) (map[string]value.Value, error) {
	if n == nil || n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, errors.Errorf("expected a mapping at line %d", n.Line)
	}
	v, err := value.FromYAMLNode(n)
	if err != nil {
		return nil, err
	}
	obj := v.(value.Object)
	facts := make(map[string]value.Value, len(obj))
	for k, fv := range obj {
		facts[k] = fv
	}
	return facts, nil
}
