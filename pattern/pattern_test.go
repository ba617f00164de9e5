package pattern

import (
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

func mustParse(t *testing.T, s string) Pattern {
	t.Helper()
	p, err := ParsePattern(s)
	require.NoError(t, err)
	return p
}

func personResolver() *Resolver {
	return NewResolver(map[string]Pattern{
		"(Person)": NewObject(map[string]Pattern{
			"name":     String{},
			"age?":     Number{},
			"friend?":  Deferred{Alias: "(Person)"},
			"children": List{Element: Deferred{Alias: "(Person)"}},
			"spouse":   Nullable(Deferred{Alias: "(Person)"}),
		}),
	})
}

func TestGeneratedValuesMatch(t *testing.T) {
	r := personResolver()
	enum, err := ParseEnum("(Status)", String{}, []string{"open", "closed"})
	require.NoError(t, err)

	cases := map[string]Pattern{
		"Number":    Number{},
		"Boolean":   Boolean{},
		"String":    String{},
		"Empty":     EmptyString{},
		"Null":      Null{},
		"DateTime":  DateTime{},
		"UUID":      UUID{},
		"Exact":     Exact{Value: value.Number(10)},
		"List":      List{Element: Number{}},
		"Nullable":  Nullable(String{}),
		"Enum":      enum,
		"Object":    mustParse(t, `{"id": "(number)", "tags": ["(string)"], "note": "(string?)"}`),
		"Recursive": Deferred{Alias: "(Person)"},
		"XML":       mustParse(t, `<order id="(number)"><item>(string)</item></order>`),
		"LookupRow": LookupRow{Inner: Number{}, Column: "id"},
	}

	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := p.Generate(r)
			require.NoError(t, err)
			res := p.Matches(v, r)
			assert.True(t, res.IsSuccess(), "generated %s: %v", v.String(), res)
		})
	}
}

func TestObjectMatching(t *testing.T) {
	r := NewResolver(nil)
	p := mustParse(t, `{"id": "(number)", "name": "(string)", "nick?": "(string)"}`)

	t.Run("MissingRequiredKey", func(t *testing.T) {
		res := p.Matches(value.Object{"id": value.Number(1)}, r)
		require.False(t, res.IsSuccess())

		report := result.AsFailure(res).Report()
		assert.Equal(t, []string{"name"}, report.Breadcrumbs)
		assert.Equal(t, []string{`Expected key named "name" was missing`}, report.Messages)
	})

	t.Run("WrongType", func(t *testing.T) {
		res := p.Matches(value.Object{"id": value.String("x"), "name": value.String("pen")}, r)
		report := result.AsFailure(res).Report()
		assert.Equal(t, []string{"id"}, report.Breadcrumbs)
		assert.Equal(t, []string{`Expected number, actual was "x"`}, report.Messages)
	})

	t.Run("OptionalAbsent", func(t *testing.T) {
		res := p.Matches(value.Object{"id": value.Number(1), "name": value.String("pen")}, r)
		assert.True(t, res.IsSuccess())
	})

	t.Run("ExtraKeysOpenWorld", func(t *testing.T) {
		v := value.Object{"id": value.Number(1), "name": value.String("pen"), "extra": value.True}
		assert.True(t, p.Matches(v, r).IsSuccess())

		res := p.Matches(v, r.WithStrictKeys(true))
		require.False(t, res.IsSuccess())
		assert.Equal(t, []string{`Key named "extra" was unexpected`}, result.AsFailure(res).Report().Messages)
	})

	t.Run("NestedBreadcrumbs", func(t *testing.T) {
		nested := mustParse(t, `{"items": [{"id": "(number)"}]}`)
		res := nested.Matches(value.Object{"items": value.List{value.Object{"id": value.True}}}, r)
		assert.Equal(t, "items[0].id", result.AsFailure(res).Report().Path())
	})
}

func TestParseValues(t *testing.T) {
	r := NewResolver(nil)

	_, err := Number{}.Parse("abc", r)
	require.Error(t, err)
	assert.Equal(t, `Couldn't convert "abc" to number`, err.Error())

	v, err := Nullable(Number{}).Parse("10", r)
	require.NoError(t, err)
	assert.Equal(t, value.Number(10), v)

	_, err = Nullable(Number{}).Parse("abc", r)
	assert.Equal(t, `Couldn't convert "abc" to number`, err.Error())
}

func TestEncompasses(t *testing.T) {
	r := personResolver()

	t.Run("Reflexive", func(t *testing.T) {
		patterns := []Pattern{
			Number{}, String{}, Boolean{}, Null{}, EmptyString{}, DateTime{}, UUID{},
			Exact{Value: value.String("x")},
			List{Element: Nullable(Number{})},
			mustParse(t, `{"id": "(number)", "name?": "(string)"}`),
			Deferred{Alias: "(Person)"},
			mustParse(t, `<a x="(number)"><b>(string)</b></a>`),
		}
		for _, p := range patterns {
			res := p.Encompasses(p, r, r)
			assert.True(t, res.IsSuccess(), "%s: %v", p.TypeName(), res)
		}
	})

	t.Run("KindsMustMatch", func(t *testing.T) {
		assert.False(t, String{}.Encompasses(Number{}, r, r).IsSuccess())
		assert.True(t, String{}.Encompasses(Exact{Value: value.String("a")}, r, r).IsSuccess())
		assert.True(t, String{}.Encompasses(UUID{}, r, r).IsSuccess())
	})

	t.Run("NewRequiredFieldIsBreaking", func(t *testing.T) {
		older := mustParse(t, `{"id": "(number)"}`)
		newer := mustParse(t, `{"id": "(number)", "sku": "(string)"}`)
		widened := mustParse(t, `{"id": "(number)", "sku?": "(string)"}`)

		assert.True(t, widened.Encompasses(older, r, r).IsSuccess())
		res := newer.Encompasses(older, r, r)
		require.False(t, res.IsSuccess())
		assert.Equal(t, []string{"sku"}, result.AsFailure(res).Report().Breadcrumbs)
	})

	t.Run("OptionalityChanges", func(t *testing.T) {
		required := mustParse(t, `{"id": "(number)"}`)
		optional := mustParse(t, `{"id?": "(number)"}`)

		assert.True(t, optional.Encompasses(required, r, r).IsSuccess())
		assert.False(t, required.Encompasses(optional, r, r).IsSuccess())
	})

	t.Run("ReaderView", func(t *testing.T) {
		reader := r.WithReaderView(true)
		promised := mustParse(t, `{"id": "(number)", "tag?": "(string)"}`)

		assert.True(t, promised.Encompasses(mustParse(t, `{"id": "(number)", "sku": "(string)"}`), reader, r).IsSuccess())
		assert.True(t, promised.Encompasses(mustParse(t, `{"id": "(number)", "tag": "(string)"}`), reader, r).IsSuccess())

		res := promised.Encompasses(mustParse(t, `{"sku": "(string)"}`), reader, r)
		require.False(t, res.IsSuccess())
		assert.Equal(t, []string{"id"}, result.AsFailure(res).Report().Breadcrumbs)

		res = promised.Encompasses(mustParse(t, `{"id?": "(number)"}`), reader, r)
		require.False(t, res.IsSuccess())
		assert.Equal(t, []string{"id"}, result.AsFailure(res).Report().Breadcrumbs)

		res = promised.Encompasses(mustParse(t, `{"id": "(number)", "tag": "(boolean)"}`), reader, r)
		require.False(t, res.IsSuccess())
		assert.Equal(t, []string{"tag"}, result.AsFailure(res).Report().Breadcrumbs)
	})

	t.Run("AnyCoversEveryOlderAlternative", func(t *testing.T) {
		assert.True(t, Nullable(Number{}).Encompasses(Number{}, r, r).IsSuccess())
		assert.False(t, Number{}.Encompasses(Nullable(Number{}), r, r).IsSuccess())
	})

	t.Run("RecursiveTypesAcrossResolvers", func(t *testing.T) {
		older := personResolver()
		newer := personResolver().WithPatterns(map[string]Pattern{
			"(Person)": NewObject(map[string]Pattern{
				"name":      String{},
				"age?":      Number{},
				"friend?":   Deferred{Alias: "(Person)"},
				"children":  List{Element: Deferred{Alias: "(Person)"}},
				"spouse":    Nullable(Deferred{Alias: "(Person)"}),
				"nickname?": String{},
			}),
		})
		p := Deferred{Alias: "(Person)"}
		assert.True(t, p.Encompasses(p, newer, older).IsSuccess())
	})
}

func TestDeferred(t *testing.T) {
	t.Run("Unregistered", func(t *testing.T) {
		_, err := Deferred{Alias: "(Missing)"}.Generate(NewResolver(nil))
		var unregistered *UnregisteredTypeError
		require.True(t, errors.As(err, &unregistered))
		assert.Equal(t, "(Missing)", unregistered.Alias)

		res := Deferred{Alias: "(Missing)"}.Matches(value.Null{}, NewResolver(nil))
		assert.False(t, res.IsSuccess())
	})

	t.Run("RequiredCycleFails", func(t *testing.T) {
		r := NewResolver(map[string]Pattern{
			"(Node)": NewObject(map[string]Pattern{"next": Deferred{Alias: "(Node)"}}),
		})
		_, err := Deferred{Alias: "(Node)"}.Generate(r)
		var recursion *RecursionError
		require.True(t, errors.As(err, &recursion))
		assert.Equal(t, []string{"(Node)", "(Node)"}, recursion.Chain)
	})

	t.Run("OptionalCycleTerminates", func(t *testing.T) {
		r := personResolver()
		v, err := Deferred{Alias: "(Person)"}.Generate(r)
		require.NoError(t, err)

		obj := v.(value.Object)
		assert.NotContains(t, obj, "friend")
		assert.Equal(t, value.List{}, obj["children"])
		assert.Equal(t, value.Null{}, obj["spouse"])
	})
}

func TestFactsLinkGeneration(t *testing.T) {
	r := NewResolver(nil).WithFacts(map[string]value.Value{"id": value.Number(42)})
	v, err := mustParse(t, `{"id": "(number)", "name": "(string)"}`).Generate(r)
	require.NoError(t, err)
	assert.Equal(t, value.Number(42), v.(value.Object)["id"])
}

func TestNewBasedOn(t *testing.T) {
	r := NewResolver(nil)

	t.Run("OneFieldAtATime", func(t *testing.T) {
		p := mustParse(t, `{"a": "(number)", "b?": "(string)", "c": "(boolean?)"}`)
		variants, err := p.NewBasedOn(Row{}, r)
		require.NoError(t, err)
		// base, c as null, b omitted
		assert.Len(t, variants, 3)
	})

	t.Run("RowOverrides", func(t *testing.T) {
		p := mustParse(t, `{"id": "(number)", "name": "(string)"}`)
		variants, err := p.NewBasedOn(NewRow([]string{"id"}, []string{"10"}), r)
		require.NoError(t, err)
		require.Len(t, variants, 1)

		v, err := variants[0].Generate(r)
		require.NoError(t, err)
		assert.Equal(t, value.Number(10), v.(value.Object)["id"])
	})

	t.Run("BadExampleIsContractError", func(t *testing.T) {
		p := mustParse(t, `{"id": "(number)"}`)
		_, err := p.NewBasedOn(NewRow([]string{"id"}, []string{"abc"}), r)
		var ce *ContractError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, []string{"id"}, ce.Breadcrumbs)
	})

	t.Run("RecursiveTypeExpandsOnce", func(t *testing.T) {
		variants, err := Deferred{Alias: "(Person)"}.NewBasedOn(Row{}, personResolver())
		require.NoError(t, err)
		assert.NotEmpty(t, variants)
	})
}

func TestNegativeBasedOn(t *testing.T) {
	r := NewResolver(nil)
	p := mustParse(t, `{"a": "(number)", "b": "(string?)"}`)

	negatives, err := p.NegativeBasedOn(Row{}, r)
	require.NoError(t, err)
	assert.Len(t, negatives, 7)

	for _, neg := range negatives {
		obj := neg.(Object)
		if b, ok := obj.Fields["b"]; ok {
			assert.NotEqual(t, KindNull, b.Kind(), "nullable field mutated to null")
		}
		v, err := neg.Generate(r)
		require.NoError(t, err)
		assert.False(t, p.Matches(v, r).IsSuccess(), "negative %s was accepted", v.String())
	}

	t.Run("RowSuppressesMutation", func(t *testing.T) {
		negatives, err := p.NegativeBasedOn(NewRow([]string{"a"}, []string{"1"}), r)
		require.NoError(t, err)
		assert.Len(t, negatives, 3)
	})

	t.Run("ExampleValuesSurvive", func(t *testing.T) {
		p := mustParse(t, `{"a": "(number)", "b": "(string)", "c?": "(boolean)"}`)
		row := NewRow([]string{"a"}, []string{"7"})

		negatives, err := p.NegativeBasedOn(row, r.WithGenerativeTests(true))
		require.NoError(t, err)
		require.NotEmpty(t, negatives)
		for _, neg := range negatives {
			v, err := neg.Generate(r)
			require.NoError(t, err)
			assert.Equal(t, value.Number(7), v.(value.Object)["a"], v.String())
		}
	})
}

func TestMockMode(t *testing.T) {
	p := mustParse(t, `{"id": "(number)"}`)
	r := NewResolver(nil).WithMockMode(true)

	assert.True(t, p.Matches(value.Object{"id": value.String("(number)")}, r).IsSuccess())
	assert.False(t, p.Matches(value.Object{"id": value.String("(string)")}, r).IsSuccess())
	assert.False(t, p.Matches(value.Object{"id": value.String("(number)")}, NewResolver(nil)).IsSuccess())
}

func TestParsePattern(t *testing.T) {
	assert.Equal(t, Number{}, mustParse(t, "(number)"))
	assert.Equal(t, Nullable(Number{}), mustParse(t, "(number?)"))
	assert.Equal(t, List{Element: String{}}, mustParse(t, "(string*)"))
	assert.Equal(t, Deferred{Alias: "(Person)"}, mustParse(t, "(Person)"))
	assert.Equal(t, LookupRow{Inner: Number{}, Column: "id"}, mustParse(t, "(id:number)"))
	assert.Equal(t, Exact{Value: value.String("hello")}, mustParse(t, "hello"))

	_, err := ParsePattern("(bad name)")
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := mustParse(t, `{"x": "(number)", "y": "(string)"}`)
	b := mustParse(t, `{"y": "(string)", "x": "(number)"}`)
	c := mustParse(t, `{"x": "(number)", "y": "(number)"}`)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, dedupe([]Pattern{a, b, c}), 2)
}

func TestRowSubstitute(t *testing.T) {
	row := NewRow([]string{"id", "token", "plain"}, []string{"$(id)", "$(auth.token)", "x"})
	out, err := row.Substitute(map[string]string{"id": "10"}, func(ref, key string) (string, error) {
		return ref + "-" + key, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "auth-token", "x"}, out.Values)

	_, err = NewRow([]string{"id"}, []string{"$(missing)"}).Substitute(nil, nil)
	assert.Error(t, err)
}

func TestErrorMessagesKeepPercentSigns(t *testing.T) {
	f := FailureFromError(errors.New("discount 100%d off"))
	assert.Equal(t, []string{"discount 100%d off"}, f.Report().Messages)

	f = FailureFromError(NewContractError("%s", "rate 5%s"))
	assert.Equal(t, []string{"rate 5%s"}, f.Report().Messages)

	ce := asContractError(errors.New("50% of %v"))
	assert.Equal(t, "50% of %v", ce.Message)
}
