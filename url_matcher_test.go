package specmatic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

func TestParseURLMatcher(t *testing.T) {
	m := mustURL(t, "/products/(id:number)/reviews?sort=(string)&limit=(number)")
	require.Len(t, m.Segments, 3)
	assert.Equal(t, "products", m.Segments[0].Literal)
	assert.Equal(t, "id", m.Segments[1].Name)
	assert.Equal(t, pattern.Number{}, m.Segments[1].Pattern)
	assert.Len(t, m.PathParams(), 1)
	assert.Contains(t, m.Query, "sort?")
	assert.Contains(t, m.Query, "limit?")
	assert.Equal(t, "/products/(id:number)/reviews?limit=(number)&sort=(string)", m.String())

	_, err := ParseURLMatcher("/products/(id)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(name:type)")
}

func TestParseURLMatcherNullablePathParam(t *testing.T) {
	m := mustURL(t, "/products/(id:number?)")
	require.Len(t, m.Segments, 2)
	assert.Equal(t, "id", m.Segments[1].Name)
	assert.True(t, pattern.IsNullable(m.Segments[1].Pattern))
	assert.Empty(t, m.Query)
	assert.Equal(t, "/products/(id:number?)", m.Path())
	assert.True(t, m.Matches(HTTPRequest{Path: "/products/10"}, pattern.NewResolver(nil)).IsSuccess())

	m = mustURL(t, "/products/(id:number?)?verbose=(boolean)")
	require.Len(t, m.Segments, 2)
	assert.True(t, pattern.IsNullable(m.Segments[1].Pattern))
	require.Len(t, m.Query, 1)
	assert.Equal(t, pattern.Boolean{}, m.Query["verbose?"])
}

func TestURLMatcherPath(t *testing.T) {
	m := mustURL(t, "/products/(id:number)")
	r := pattern.NewResolver(nil)

	assert.True(t, m.Matches(HTTPRequest{Path: "/products/10"}, r).IsSuccess())
	assert.True(t, m.Matches(HTTPRequest{Path: "/products/10/"}, r).IsSuccess())

	res := m.Matches(HTTPRequest{Path: "/products/abc"}, r)
	require.False(t, res.IsSuccess())
	report := result.AsFailure(res).Report()
	assert.Equal(t, "PATH.id", report.Path())
	assert.Equal(t, []string{`Couldn't convert "abc" to number`}, report.Messages)
	assert.False(t, result.AsFailure(res).IsFluffy())

	res = m.Matches(HTTPRequest{Path: "/products/10/reviews"}, r)
	require.False(t, res.IsSuccess())
	assert.True(t, result.AsFailure(res).IsFluffy())
	assert.Contains(t, result.AsFailure(res).Report().Text(), "path segments")

	res = m.Matches(HTTPRequest{Path: "/orders/10"}, r)
	require.False(t, res.IsSuccess())
	assert.True(t, result.AsFailure(res).IsFluffy())
	assert.Equal(t, "PATH", result.AsFailure(res).Report().Path())
}

func TestURLMatcherQuery(t *testing.T) {
	m := mustURL(t, "/search?limit=(number)")
	r := pattern.NewResolver(nil)

	assert.True(t, m.Matches(HTTPRequest{Path: "/search"}, r).IsSuccess())
	assert.True(t, m.Matches(HTTPRequest{Path: "/search", Query: map[string]string{"limit": "5"}}, r).IsSuccess())
	assert.True(t, m.Matches(HTTPRequest{Path: "/search", Query: map[string]string{"other": "x"}}, r).IsSuccess())

	res := m.Matches(HTTPRequest{Path: "/search", Query: map[string]string{"limit": "many"}}, r)
	require.False(t, res.IsSuccess())
	assert.Equal(t, "QUERY-PARAMS.limit", result.AsFailure(res).Report().Path())

	res = m.Matches(HTTPRequest{Path: "/search", Query: map[string]string{"other": "x"}}, r.WithStrictKeys(true))
	require.False(t, res.IsSuccess())
	assert.Contains(t, result.AsFailure(res).Report().Text(), `Query param named "other" was unexpected`)

	required := URLMatcher{Segments: m.Segments, Query: map[string]pattern.Pattern{"limit": pattern.Number{}}}
	res = required.Matches(HTTPRequest{Path: "/search"}, r)
	require.False(t, res.IsSuccess())
	assert.Contains(t, result.AsFailure(res).Report().Text(), `Expected query param named "limit" was missing`)
}

func TestURLMatcherMockMode(t *testing.T) {
	m := mustURL(t, "/products/(id:number)")
	r := pattern.NewResolver(nil).WithMockMode(true)

	assert.True(t, m.Matches(HTTPRequest{Path: "/products/(number)"}, r).IsSuccess())
	assert.False(t, m.Matches(HTTPRequest{Path: "/products/(boolean)"}, r).IsSuccess())
}

func TestURLMatcherGenerate(t *testing.T) {
	m := mustURL(t, "/products/(id:number)?q=(string)")

	path, query, err := m.Generate(pattern.NewResolver(nil).WithFacts(map[string]value.Value{"id": value.Number(3)}))
	require.NoError(t, err)
	assert.Equal(t, "/products/3", path)
	assert.Contains(t, query, "q")

	path, _, err = m.Generate(pattern.NewResolver(nil))
	require.NoError(t, err)
	assert.True(t, m.Matches(HTTPRequest{Path: path}, pattern.NewResolver(nil)).IsSuccess(), path)
}

func TestURLMatcherSameShape(t *testing.T) {
	a := mustURL(t, "/products/(id:number)")
	assert.True(t, a.SameShape(mustURL(t, "/products/(key:string)")))
	assert.False(t, a.SameShape(mustURL(t, "/products/latest")))
	assert.False(t, a.SameShape(mustURL(t, "/orders/(id:number)")))
	assert.False(t, a.SameShape(mustURL(t, "/products")))
}

func TestURLMatcherNegatives(t *testing.T) {
	m := mustURL(t, "/products/(id:number)")
	r := pattern.NewResolver(nil)

	negatives, err := m.NegativeBasedOn(pattern.Row{}, r)
	require.NoError(t, err)
	require.NotEmpty(t, negatives)
	for _, neg := range negatives {
		path, _, err := neg.Generate(r)
		require.NoError(t, err)
		assert.False(t, m.Matches(HTTPRequest{Path: path}, r).IsSuccess(), path)
	}

	pinned, err := m.NegativeBasedOn(pattern.Row{Columns: []string{"id"}, Values: []string{"10"}}, r)
	require.NoError(t, err)
	assert.Empty(t, pinned)
}
