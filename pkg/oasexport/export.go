// Package oasexport renders a Feature as an OpenAPI 3.1 document.
//
// The document skeleton (paths, parameters, named components) is built as a
// plain tree and loaded with the openapi package. Schemas that do not refer
// to named types are left as placeholders in the skeleton and filled in
// afterwards by walking the loaded document, so they are built with the oas3
// model directly.
package oasexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/openapi"
	"gopkg.in/yaml.v3"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// OpenAPIVersion is the version written to exported documents.
const OpenAPIVersion = "3.1.0"

const slotExtension = "x-specmatic-slot"

// Summary counts what an export produced.
type Summary struct {
	Paths      int
	Operations int
	Schemas    int
}

// Export writes f to w as an OpenAPI document in YAML. Kafka scenarios are
// skipped; XML bodies fail the export.
func Export(ctx context.Context, f *specmatic.Feature, w io.Writer) (*Summary, error) {
	tree, slots, err := Document(f)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "marshal skeleton")
	}

	doc, validationErrs, err := openapi.Unmarshal(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "load exported document")
	}
	if len(validationErrs) > 0 {
		return nil, errors.Errorf("OpenAPI validation failed: %v", validationErrs[0])
	}

	summary := &Summary{}
	paths := tree["paths"].(map[string]any)
	summary.Paths = len(paths)
	for _, ops := range paths {
		summary.Operations += len(ops.(map[string]any))
	}

	type placeholder struct {
		schema   *oas3.JSONSchema[oas3.Referenceable]
		slot     int
		location string
	}
	var placeholders []placeholder
	var walkErrors []string
	for item := range openapi.Walk(ctx, doc) {
		err := item.Match(openapi.Matcher{
			Schema: func(schema *oas3.JSONSchema[oas3.Referenceable]) error {
				summary.Schemas++
				ext := schema.GetExtensions()
				if ext == nil {
					return nil
				}
				node, ok := ext.Get(slotExtension)
				if !ok {
					return nil
				}
				slot, err := strconv.Atoi(node.Value)
				if err != nil || slot < 0 || slot >= len(slots) {
					return errors.Errorf("bad schema placeholder %q", node.Value)
				}
				placeholders = append(placeholders, placeholder{
					schema:   schema,
					slot:     slot,
					location: fmt.Sprintf("%v", item.Location),
				})
				return nil
			},
		})
		if err != nil {
			walkErrors = append(walkErrors, err.Error())
		}
	}
	if len(walkErrors) > 0 {
		return nil, errors.Errorf("walk exported document:\n  %s", strings.Join(walkErrors, "\n  "))
	}

	// Children before parents.
	for i := len(placeholders) - 1; i >= 0; i-- {
		p := placeholders[i]
		*p.schema = *oas3.NewJSONSchemaFromSchema[oas3.Referenceable](slots[p.slot])
	}

	if err := openapi.Marshal(ctx, doc, w); err != nil {
		return nil, errors.Wrap(err, "marshal exported document")
	}
	return summary, nil
}

// Document builds the document skeleton for f. Schema placeholders in the
// tree index into the returned slots.
func Document(f *specmatic.Feature) (map[string]any, []*oas3.Schema, error) {
	b := &builder{
		resolver:   featureResolver(f),
		components: map[string]any{},
	}

	paths := map[string]any{}
	for _, s := range f.Scenarios {
		if s.Request.Method == "" {
			continue
		}
		if err := b.addScenario(paths, s); err != nil {
			return nil, nil, errors.Wrapf(err, "scenario %q", s.Name)
		}
	}

	title := f.Name
	if title == "" {
		title = "Contract"
	}
	tree := map[string]any{
		"openapi": OpenAPIVersion,
		"info":    map[string]any{"title": title, "version": "1"},
		"paths":   paths,
	}
	if len(b.components) > 0 {
		tree["components"] = map[string]any{"schemas": b.components}
	}
	return tree, b.slots, nil
}

func featureResolver(f *specmatic.Feature) *pattern.Resolver {
	merged := map[string]pattern.Pattern{}
	for _, s := range f.Scenarios {
		for k, p := range s.Patterns {
			if _, ok := merged[k]; !ok {
				merged[k] = p
			}
		}
	}
	return pattern.NewResolver(merged)
}

type builder struct {
	resolver   *pattern.Resolver
	components map[string]any
	slots      []*oas3.Schema
}

func (b *builder) addScenario(paths map[string]any, s *specmatic.Scenario) error {
	path := openAPIPath(s.Request.URL)
	ops, ok := paths[path].(map[string]any)
	if !ok {
		ops = map[string]any{}
		paths[path] = ops
	}
	method := strings.ToLower(s.Request.Method)
	op, ok := ops[method].(map[string]any)
	if !ok {
		params, err := b.parameters(s.Request)
		if err != nil {
			return err
		}
		op = map[string]any{"summary": s.Name, "responses": map[string]any{}}
		if len(params) > 0 {
			op["parameters"] = params
		}
		ops[method] = op
	}

	if _, ok := op["requestBody"]; !ok {
		body, err := b.requestBody(s.Request)
		if err != nil {
			return errors.Wrap(err, "request body")
		}
		if body != nil {
			op["requestBody"] = body
		}
	}

	responses := op["responses"].(map[string]any)
	status := strconv.Itoa(s.Response.Status)
	if _, ok := responses[status]; ok {
		return nil
	}
	resp, err := b.response(s)
	if err != nil {
		return errors.Wrap(err, "response")
	}
	responses[status] = resp
	return nil
}

// openAPIPath renders /products/(id:number) as /products/{id}.
func openAPIPath(m specmatic.URLMatcher) string {
	parts := make([]string, len(m.Segments))
	for i, seg := range m.Segments {
		if seg.IsParam() {
			parts[i] = "{" + seg.Name + "}"
		} else {
			parts[i] = seg.Literal
		}
	}
	return "/" + strings.Join(parts, "/")
}

func (b *builder) parameters(req specmatic.HTTPRequestPattern) ([]any, error) {
	var params []any
	for _, seg := range req.URL.PathParams() {
		schema, err := b.schema(seg.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "path parameter %s", seg.Name)
		}
		params = append(params, map[string]any{"name": seg.Name, "in": "path", "required": true, "schema": schema})
	}
	add := func(in string, fields map[string]pattern.Pattern) error {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			name := pattern.WithoutOptionality(key)
			if in == "header" && strings.EqualFold(name, specmatic.HeaderContentType) {
				continue
			}
			schema, err := b.schema(fields[key])
			if err != nil {
				return errors.Wrapf(err, "%s parameter %s", in, name)
			}
			params = append(params, map[string]any{
				"name":     name,
				"in":       in,
				"required": !pattern.IsOptional(key),
				"schema":   schema,
			})
		}
		return nil
	}
	if err := add("query", req.URL.Query); err != nil {
		return nil, err
	}
	if err := add("header", req.Headers.Pattern); err != nil {
		return nil, err
	}
	return params, nil
}

func (b *builder) requestBody(req specmatic.HTTPRequestPattern) (map[string]any, error) {
	switch {
	case len(req.FormFields) > 0:
		schema, err := b.schema(pattern.NewObject(req.FormFields))
		if err != nil {
			return nil, err
		}
		return bodyContent("application/x-www-form-urlencoded", schema, true), nil
	case len(req.MultiPart) > 0:
		fields := make(map[string]pattern.Pattern, len(req.MultiPart))
		for _, part := range req.MultiPart {
			key := part.Name
			if part.Optional {
				key += "?"
			}
			fields[key] = part.Content
		}
		schema, err := b.schema(pattern.NewObject(fields))
		if err != nil {
			return nil, err
		}
		return bodyContent("multipart/form-data", schema, true), nil
	}

	if req.Body == nil {
		return nil, nil
	}
	if _, empty := req.Body.(pattern.EmptyString); empty {
		return nil, nil
	}
	mediaType, err := b.mediaType(req.Body)
	if err != nil {
		return nil, err
	}
	schema, err := b.schema(req.Body)
	if err != nil {
		return nil, err
	}
	return bodyContent(mediaType, schema, true), nil
}

func (b *builder) response(s *specmatic.Scenario) (map[string]any, error) {
	description := s.Name
	if description == "" {
		description = "Response"
	}
	resp := map[string]any{"description": description}

	if len(s.Response.Headers.Pattern) > 0 {
		headers := map[string]any{}
		for key, p := range s.Response.Headers.Pattern {
			name := pattern.WithoutOptionality(key)
			if strings.EqualFold(name, specmatic.HeaderContentType) {
				continue
			}
			schema, err := b.schema(p)
			if err != nil {
				return nil, errors.Wrapf(err, "header %s", name)
			}
			headers[name] = map[string]any{"required": !pattern.IsOptional(key), "schema": schema}
		}
		if len(headers) > 0 {
			resp["headers"] = headers
		}
	}

	body := s.Response.Body
	if body == nil {
		return resp, nil
	}
	if _, empty := body.(pattern.EmptyString); empty {
		return resp, nil
	}
	mediaType, err := b.mediaType(body)
	if err != nil {
		return nil, err
	}
	schema, err := b.schema(body)
	if err != nil {
		return nil, err
	}
	resp["content"] = map[string]any{mediaType: map[string]any{"schema": schema}}
	return resp, nil
}

func bodyContent(mediaType string, schema map[string]any, required bool) map[string]any {
	return map[string]any{
		"required": required,
		"content":  map[string]any{mediaType: map[string]any{"schema": schema}},
	}
}

// mediaType picks the content type a body pattern is exchanged as.
func (b *builder) mediaType(p pattern.Pattern) (string, error) {
	for depth := 0; depth < pattern.DefaultMaxDepth; depth++ {
		switch t := p.(type) {
		case pattern.XML:
			return "", ErrXMLNotSupported
		case pattern.Deferred:
			resolved, err := b.resolver.Pattern(t.Alias)
			if err != nil {
				return "", err
			}
			p = resolved
			continue
		case pattern.Exact:
			switch t.Value.(type) {
			case value.Object, value.List:
				return "application/json", nil
			case *value.XMLNode:
				return "", ErrXMLNotSupported
			}
			return "text/plain", nil
		case pattern.String, pattern.Number, pattern.Boolean:
			return "text/plain", nil
		}
		return "application/json", nil
	}
	return "", &pattern.RecursionError{Chain: []string{p.TypeName()}}
}

// schema returns the skeleton form of p. Patterns without named types are
// built now and referenced through a placeholder.
func (b *builder) schema(p pattern.Pattern) (map[string]any, error) {
	if !hasNamedTypes(p) {
		built, err := BuildSchema(p)
		if err != nil {
			return nil, err
		}
		b.slots = append(b.slots, built)
		return map[string]any{slotExtension: strconv.Itoa(len(b.slots) - 1)}, nil
	}

	switch t := p.(type) {
	case pattern.Deferred:
		name, err := b.component(t.Alias)
		if err != nil {
			return nil, err
		}
		return map[string]any{"$ref": "#/components/schemas/" + name}, nil
	case pattern.LookupRow:
		return b.schema(t.Inner)
	case pattern.List:
		items, err := b.schema(t.Element)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case pattern.Object:
		props := map[string]any{}
		var required []string
		for key, field := range t.Fields {
			name := pattern.WithoutOptionality(key)
			s, err := b.schema(field)
			if err != nil {
				return nil, errors.Wrapf(err, "property %s", name)
			}
			props[name] = s
			if !pattern.IsOptional(key) {
				required = append(required, name)
			}
		}
		out := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			sort.Strings(required)
			out["required"] = required
		}
		return out, nil
	case pattern.Any:
		alts := make([]any, 0, len(t.Alternatives))
		for _, alt := range t.Alternatives {
			s, err := b.schema(alt)
			if err != nil {
				return nil, err
			}
			alts = append(alts, s)
		}
		return map[string]any{"anyOf": alts}, nil
	case pattern.XML:
		return nil, ErrXMLNotSupported
	default:
		return nil, errors.Errorf("cannot export %s", p.TypeName())
	}
}

// component registers the named type alias under components/schemas and
// returns its name. Recursive types refer to their own component.
func (b *builder) component(alias string) (string, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(alias, "("), ")")
	if _, done := b.components[name]; done {
		return name, nil
	}
	p, err := b.resolver.Pattern(alias)
	if err != nil {
		return "", err
	}
	b.components[name] = map[string]any{}
	s, err := b.schema(p)
	if err != nil {
		return "", errors.Wrapf(err, "component %s", name)
	}
	b.components[name] = s
	return name, nil
}
