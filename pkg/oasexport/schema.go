package oasexport

import (
	"sort"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// ErrXMLNotSupported is returned for scenarios whose bodies are XML.
var ErrXMLNotSupported = errors.New("XML bodies cannot be exported to OpenAPI")

// StringType creates a basic string schema.
func StringType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeString)}
}

// NumberType creates a basic number schema.
func NumberType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNumber)}
}

// BoolType creates a basic boolean schema.
func BoolType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeBoolean)}
}

// NullType creates a null schema.
func NullType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNull)}
}

// FormattedString creates a string schema with a format such as date-time.
func FormattedString(format string) *oas3.Schema {
	s := StringType()
	s.Format = &format
	return s
}

// ArrayType creates an array schema over items.
func ArrayType(items *oas3.Schema) *oas3.Schema {
	s := &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeArray)}
	if items != nil {
		s.Items = oas3.NewJSONSchemaFromSchema[oas3.Referenceable](items)
	}
	return s
}

// BuildObject creates an object schema with properties in sorted order.
func BuildObject(props map[string]*oas3.Schema, required []string) *oas3.Schema {
	propMap := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		propMap.Set(k, oas3.NewJSONSchemaFromSchema[oas3.Referenceable](props[k]))
	}
	sort.Strings(required)

	s := &oas3.Schema{
		Type:       oas3.NewTypeFromString(oas3.SchemaTypeObject),
		Properties: propMap,
	}
	if len(required) > 0 {
		s.Required = required
	}
	return s
}

// Const creates a single-valued schema for a scalar value.
func Const(v value.Value) *oas3.Schema {
	switch t := v.(type) {
	case value.Number:
		return withEnum(NumberType(), &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(float64(t), 'g', -1, 64), Tag: "!!float"})
	case value.Boolean:
		return withEnum(BoolType(), &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatBool(bool(t)), Tag: "!!bool"})
	case value.Null:
		return NullType()
	default:
		return withEnum(StringType(), &yaml.Node{Kind: yaml.ScalarNode, Value: v.String(), Tag: "!!str"})
	}
}

func withEnum(s *oas3.Schema, node *yaml.Node) *oas3.Schema {
	s.Enum = []*yaml.Node{node}
	return s
}

// Union combines alternatives. Single-typed enums of the same type merge
// into one enum; anything else becomes anyOf.
func Union(schemas []*oas3.Schema) *oas3.Schema {
	if len(schemas) == 1 {
		return schemas[0]
	}
	if merged, ok := mergeEnums(schemas); ok {
		return merged
	}
	anyOf := make([]*oas3.JSONSchema[oas3.Referenceable], len(schemas))
	for i, s := range schemas {
		anyOf[i] = oas3.NewJSONSchemaFromSchema[oas3.Referenceable](s)
	}
	return &oas3.Schema{AnyOf: anyOf}
}

func mergeEnums(schemas []*oas3.Schema) (*oas3.Schema, bool) {
	if len(schemas) == 0 {
		return nil, false
	}
	typ := singleType(schemas[0])
	if typ == "" || typ == oas3.SchemaTypeNull {
		return nil, false
	}
	seen := make(map[string]bool)
	var values []*yaml.Node
	for _, s := range schemas {
		if singleType(s) != typ || len(s.Enum) == 0 || s.Format != nil {
			return nil, false
		}
		for _, node := range s.Enum {
			if seen[node.Value] {
				continue
			}
			seen[node.Value] = true
			values = append(values, node)
		}
	}
	return &oas3.Schema{Type: oas3.NewTypeFromString(typ), Enum: values}, true
}

func singleType(s *oas3.Schema) oas3.SchemaType {
	types := s.GetType()
	if len(types) != 1 {
		return ""
	}
	return types[0]
}

// BuildSchema converts a pattern free of named types into a schema.
func BuildSchema(p pattern.Pattern) (*oas3.Schema, error) {
	switch t := p.(type) {
	case pattern.Number:
		return NumberType(), nil
	case pattern.String:
		return StringType(), nil
	case pattern.EmptyString:
		return Const(value.String("")), nil
	case pattern.Boolean:
		return BoolType(), nil
	case pattern.Null:
		return NullType(), nil
	case pattern.DateTime:
		return FormattedString("date-time"), nil
	case pattern.UUID:
		return FormattedString("uuid"), nil
	case pattern.LookupRow:
		return BuildSchema(t.Inner)
	case pattern.Exact:
		return constSchema(t.Value)
	case pattern.List:
		items, err := BuildSchema(t.Element)
		if err != nil {
			return nil, err
		}
		return ArrayType(items), nil
	case pattern.Object:
		props := make(map[string]*oas3.Schema, len(t.Fields))
		var required []string
		for key, field := range t.Fields {
			name := pattern.WithoutOptionality(key)
			s, err := BuildSchema(field)
			if err != nil {
				return nil, errors.Wrapf(err, "property %s", name)
			}
			props[name] = s
			if !pattern.IsOptional(key) {
				required = append(required, name)
			}
		}
		return BuildObject(props, required), nil
	case pattern.Any:
		alts := make([]*oas3.Schema, 0, len(t.Alternatives))
		for _, alt := range t.Alternatives {
			s, err := BuildSchema(alt)
			if err != nil {
				return nil, err
			}
			alts = append(alts, s)
		}
		if len(alts) == 0 {
			return &oas3.Schema{}, nil
		}
		return Union(alts), nil
	case pattern.XML:
		return nil, ErrXMLNotSupported
	default:
		return nil, errors.Errorf("cannot build a schema for %s", p.TypeName())
	}
}

func constSchema(v value.Value) (*oas3.Schema, error) {
	switch t := v.(type) {
	case value.Object:
		props := make(map[string]*oas3.Schema, len(t))
		required := make([]string, 0, len(t))
		for k, fv := range t {
			s, err := constSchema(fv)
			if err != nil {
				return nil, err
			}
			props[k] = s
			required = append(required, k)
		}
		return BuildObject(props, required), nil
	case value.List:
		if len(t) == 0 {
			return ArrayType(nil), nil
		}
		items := make([]*oas3.Schema, 0, len(t))
		for _, item := range t {
			s, err := constSchema(item)
			if err != nil {
				return nil, err
			}
			items = append(items, s)
		}
		return ArrayType(Union(items)), nil
	case *value.XMLNode:
		return nil, ErrXMLNotSupported
	default:
		return Const(v), nil
	}
}

// hasNamedTypes reports whether p refers to a named type anywhere.
func hasNamedTypes(p pattern.Pattern) bool {
	switch t := p.(type) {
	case pattern.Deferred:
		return true
	case pattern.LookupRow:
		return hasNamedTypes(t.Inner)
	case pattern.List:
		return hasNamedTypes(t.Element)
	case pattern.Object:
		for _, f := range t.Fields {
			if hasNamedTypes(f) {
				return true
			}
		}
	case pattern.Any:
		for _, alt := range t.Alternatives {
			if hasNamedTypes(alt) {
				return true
			}
		}
	case pattern.XML:
		for _, c := range t.Children {
			if hasNamedTypes(c) {
				return true
			}
		}
	}
	return false
}
