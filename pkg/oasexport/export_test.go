package oasexport

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic"
	"github.com/EmmanuelMendoza/specmatic/pkg/contractfile"
	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/value"
)

const catalogue = `
name: Catalogue
patterns:
  Node:
    value: (number)
    children?: ["(Node)"]
enums:
  Size: {type: (string), values: [small, large]}
scenarios:
  - name: Get product
    request:
      method: GET
      path: /products/(id:number)?verbose=(boolean)
      headers:
        X-Trace?: (string)
    response:
      status: 200
      headers:
        X-Served-By: (string)
      body:
        id: (number)
        name: (string)
        size: (Size)
        tags?: ["(string)"]
  - name: Missing product
    request:
      method: GET
      path: /products/(id:number)
    response:
      status: 404
  - name: Create tree
    request:
      method: POST
      path: /trees
      body: (Node)
    response:
      status: 201
  - name: Product changed
    kafka:
      topic: products
      value: {id: (number)}
`

func mustFeature(t *testing.T, contract string) *specmatic.Feature {
	t.Helper()
	f, err := contractfile.Parse([]byte(contract), specmatic.DefaultOptions())
	require.NoError(t, err)
	return f
}

func TestDocument(t *testing.T) {
	tree, slots, err := Document(mustFeature(t, catalogue))
	require.NoError(t, err)

	assert.Equal(t, OpenAPIVersion, tree["openapi"])
	paths := tree["paths"].(map[string]any)
	require.Len(t, paths, 2)

	get := paths["/products/{id}"].(map[string]any)["get"].(map[string]any)
	assert.Equal(t, "Get product", get["summary"])

	params := get["parameters"].([]any)
	require.Len(t, params, 3)
	id := params[0].(map[string]any)
	assert.Equal(t, "id", id["name"])
	assert.Equal(t, "path", id["in"])
	assert.Equal(t, true, id["required"])
	assert.Equal(t, "query", params[1].(map[string]any)["in"])
	assert.Equal(t, false, params[1].(map[string]any)["required"])
	assert.Equal(t, "X-Trace", params[2].(map[string]any)["name"])

	idSlot := slotOf(t, id["schema"], slots)
	assert.Equal(t, []oas3.SchemaType{oas3.SchemaTypeNumber}, idSlot.GetType())

	responses := get["responses"].(map[string]any)
	require.Contains(t, responses, "200")
	require.Contains(t, responses, "404")
	notFound := responses["404"].(map[string]any)
	assert.Equal(t, "Missing product", notFound["description"])
	assert.NotContains(t, notFound, "content")

	ok := responses["200"].(map[string]any)
	assert.Contains(t, ok["headers"], "X-Served-By")
	content := ok["content"].(map[string]any)
	require.Contains(t, content, "application/json")
}

func slotOf(t *testing.T, skeleton any, slots []*oas3.Schema) *oas3.Schema {
	t.Helper()
	m, ok := skeleton.(map[string]any)
	require.True(t, ok, "schema was %T", skeleton)
	raw, ok := m[slotExtension].(string)
	require.True(t, ok, "schema %v is not a placeholder", m)
	i, err := strconv.Atoi(raw)
	require.NoError(t, err)
	require.Less(t, i, len(slots))
	return slots[i]
}

func TestDocumentRecursiveComponents(t *testing.T) {
	tree, _, err := Document(mustFeature(t, catalogue))
	require.NoError(t, err)

	schemas := tree["components"].(map[string]any)["schemas"].(map[string]any)
	require.Contains(t, schemas, "Node")
	node := schemas["Node"].(map[string]any)
	assert.Equal(t, "object", node["type"])
	assert.Equal(t, []string{"value"}, node["required"])

	children := node["properties"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, map[string]any{"$ref": "#/components/schemas/Node"}, children["items"])

	post := tree["paths"].(map[string]any)["/trees"].(map[string]any)["post"].(map[string]any)
	body := post["requestBody"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)
	assert.Equal(t, map[string]any{"$ref": "#/components/schemas/Node"}, body["schema"])
}

func TestDocumentRejectsXML(t *testing.T) {
	f := mustFeature(t, `
scenarios:
  - name: Soap call
    request:
      method: POST
      path: /soap
      body: <order id="(number)"/>
    response:
      status: 200
`)
	_, _, err := Document(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrXMLNotSupported))
	assert.Contains(t, err.Error(), "Soap call")
}

func TestBuildSchema(t *testing.T) {
	t.Run("Enum", func(t *testing.T) {
		enum, err := pattern.ParseEnum("(Size)", pattern.String{}, []string{"small", "large"})
		require.NoError(t, err)
		s, err := BuildSchema(enum)
		require.NoError(t, err)
		assert.Equal(t, []oas3.SchemaType{oas3.SchemaTypeString}, s.GetType())
		require.Len(t, s.Enum, 2)
		assert.Equal(t, "small", s.Enum[0].Value)
		assert.Equal(t, "large", s.Enum[1].Value)
	})

	t.Run("Nullable", func(t *testing.T) {
		s, err := BuildSchema(pattern.Nullable(pattern.Number{}))
		require.NoError(t, err)
		require.Len(t, s.AnyOf, 2)
		assert.Equal(t, []oas3.SchemaType{oas3.SchemaTypeNull}, s.AnyOf[0].GetLeft().GetType())
	})

	t.Run("Object", func(t *testing.T) {
		s, err := BuildSchema(pattern.NewObject(map[string]pattern.Pattern{
			"id":    pattern.UUID{},
			"when?": pattern.DateTime{},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, s.Required)
		id, ok := s.Properties.Get("id")
		require.True(t, ok)
		require.NotNil(t, id.GetLeft().Format)
		assert.Equal(t, "uuid", *id.GetLeft().Format)
	})

	t.Run("ExactValues", func(t *testing.T) {
		s, err := BuildSchema(pattern.Exact{Value: value.Number(3)})
		require.NoError(t, err)
		assert.Equal(t, []oas3.SchemaType{oas3.SchemaTypeNumber}, s.GetType())
		require.Len(t, s.Enum, 1)
		assert.Equal(t, "3", s.Enum[0].Value)
	})

	t.Run("XML", func(t *testing.T) {
		_, err := BuildSchema(pattern.XML{RealName: "a"})
		assert.ErrorIs(t, err, ErrXMLNotSupported)
	})
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	summary, err := Export(context.Background(), mustFeature(t, catalogue), &buf)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Paths)
	assert.Equal(t, 2, summary.Operations)
	assert.Positive(t, summary.Schemas)

	out := buf.String()
	assert.Contains(t, out, "openapi: 3.1.0")
	assert.Contains(t, out, "/products/{id}")
	assert.Contains(t, out, "#/components/schemas/Node")
	assert.NotContains(t, out, slotExtension)
}
