package pattern

import (
	"fmt"
	"strings"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// XML mirrors the shape of a sample node. Attribute values and text content
// are patterns; element children are XML patterns matched in order.
type XML struct {
	RealName   string
	Attributes map[string]Pattern
	Children   []Pattern
	Alias      string
}

// NewXMLPattern derives a pattern from a sample node. Pattern tokens such as
// "(number)" in attributes or text become types; other text stays exact.
func NewXMLPattern(node *value.XMLNode) (XML, error) {
	attrs := make(map[string]Pattern, len(node.Attributes))
	for k, v := range node.Attributes {
		p, err := textPattern(string(v))
		if err != nil {
			return XML{}, asContractError(err).WithBreadcrumb(k)
		}
		attrs[k] = p
	}
	children := make([]Pattern, 0, len(node.Children))
	for _, c := range node.Children {
		switch child := c.(type) {
		case *value.XMLNode:
			p, err := NewXMLPattern(child)
			if err != nil {
				return XML{}, asContractError(err).WithBreadcrumb(node.Name)
			}
			children = append(children, p)
		default:
			p, err := textPattern(child.String())
			if err != nil {
				return XML{}, asContractError(err).WithBreadcrumb(node.Name)
			}
			children = append(children, p)
		}
	}
	return XML{RealName: node.RealName, Attributes: attrs, Children: children}, nil
}

func textPattern(s string) (Pattern, error) {
	if IsPatternToken(strings.TrimSpace(s)) {
		return ParsePattern(strings.TrimSpace(s))
	}
	return Exact{Value: value.String(s)}, nil
}

func (XML) isPattern()          {}
func (XML) Kind() Kind          { return KindXML }
func (x XML) TypeAlias() string { return x.Alias }
func (XML) TypeName() string    { return "xml" }

// Name is the local name of the node.
func (x XML) Name() string { return value.WithoutNamespacePrefix(x.RealName) }

func (x XML) textChild() (Pattern, bool) {
	if len(x.Children) != 1 {
		return nil, false
	}
	if _, isNode := x.Children[0].(XML); isNode {
		return nil, false
	}
	return x.Children[0], true
}

func (x XML) Matches(v value.Value, r *Resolver) result.Result {
	node, ok := v.(*value.XMLNode)
	if !ok {
		return result.Mismatch("xml node", v.Displayable())
	}
	if node.Name != x.Name() {
		return result.Fail("Expected node named %q, actual was %q", x.Name(), node.Name)
	}

	if res := x.matchAttributes(node, r); !res.IsSuccess() {
		return res
	}

	if text, ok := x.textChild(); ok {
		content := textContent(node)
		parsed, err := text.Parse(content, r)
		if err != nil {
			return FailureFromError(err).WithBreadcrumb(x.Name())
		}
		return r.MatchesPattern(x.Name(), text, parsed)
	}

	expected := make([]XML, 0, len(x.Children))
	for _, c := range x.Children {
		if child, isNode := c.(XML); isNode {
			expected = append(expected, child)
		}
	}
	if len(expected) == 0 {
		return result.Succeed()
	}
	actual := node.ChildNodes()
	if len(actual) != len(expected) {
		return result.Fail("Expected %d child nodes, actual was %d", len(expected), len(actual)).WithBreadcrumb(x.Name())
	}
	for i, child := range expected {
		if res := r.MatchesPattern(child.Name(), child, actual[i]); !res.IsSuccess() {
			return res
		}
	}
	return result.Succeed()
}

func (x XML) matchAttributes(node *value.XMLNode, r *Resolver) result.Result {
	for _, key := range sortedKeys(x.Attributes) {
		name := WithoutOptionality(key)
		if strings.HasPrefix(name, "xmlns") {
			continue
		}
		actual, ok := node.Attributes[name]
		if !ok {
			if IsOptional(key) {
				continue
			}
			return result.Fail("Expected attribute named %q was missing", name).WithBreadcrumb(name)
		}
		p := x.Attributes[key]
		parsed, err := p.Parse(string(actual), r)
		if err != nil {
			return FailureFromError(err).WithBreadcrumb(name)
		}
		if res := r.MatchesPattern(name, p, parsed); !res.IsSuccess() {
			return res
		}
	}
	if r.StrictKeys() {
		for _, name := range sortedKeys(node.Attributes) {
			if strings.HasPrefix(name, "xmlns") {
				continue
			}
			if _, ok := x.Attributes[name]; ok {
				continue
			}
			if _, ok := x.Attributes[name+"?"]; ok {
				continue
			}
			return result.Fail("Attribute named %q was unexpected", name).WithBreadcrumb(name)
		}
	}
	return result.Succeed()
}

func textContent(node *value.XMLNode) string {
	var b strings.Builder
	for _, c := range node.Children {
		if s, ok := c.(value.String); ok {
			b.WriteString(string(s))
		}
	}
	return b.String()
}

func (x XML) Generate(r *Resolver) (value.Value, error) {
	node, err := x.generate(r, nil)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (x XML) generate(r *Resolver, parentNamespaces map[string]string) (*value.XMLNode, error) {
	attrs := make(map[string]value.String, len(x.Attributes))
	for _, key := range sortedKeys(x.Attributes) {
		v, err := x.Attributes[key].Generate(r)
		if err != nil {
			return nil, fmt.Errorf("generate attribute %s: %w", key, err)
		}
		attrs[WithoutOptionality(key)] = value.String(v.String())
	}
	node := value.NewXMLNode(x.RealName, attrs, nil, parentNamespaces)

	children := make([]value.Value, 0, len(x.Children))
	for _, c := range x.Children {
		if child, isNode := c.(XML); isNode {
			n, err := child.generate(r, node.Namespaces)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
			continue
		}
		v, err := c.Generate(r)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", x.Name(), err)
		}
		children = append(children, value.String(v.String()))
	}
	node.Children = children
	return node, nil
}

// NewBasedOn pins text nodes named after example columns and varies the
// children one at a time.
func (x XML) NewBasedOn(row Row, r *Resolver) ([]Pattern, error) {
	if text, ok := x.textChild(); ok {
		if cell, found := row.Value(x.Name()); found {
			v, err := exampleVariant(text, cell, r)
			if err != nil {
				return nil, asContractError(err).WithBreadcrumb(x.Name())
			}
			return []Pattern{x.withChildren([]Pattern{v})}, nil
		}
	}

	variants := make([][]Pattern, len(x.Children))
	for i, c := range x.Children {
		vs, err := c.NewBasedOn(row, r)
		if err != nil {
			return nil, err
		}
		if len(vs) == 0 {
			vs = []Pattern{c}
		}
		variants[i] = vs
	}

	base := make([]Pattern, len(x.Children))
	for i := range variants {
		base[i] = variants[i][0]
	}
	out := []Pattern{x.withChildren(base)}
	for i := range variants {
		for _, alt := range variants[i][1:] {
			children := append([]Pattern(nil), base...)
			children[i] = alt
			out = append(out, x.withChildren(children))
		}
	}
	return dedupe(out), nil
}

func (XML) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) { return nil, nil }

// Encompasses checks that a value generated from the older pattern is
// accepted by the newer one.
func (x XML) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	if res, ok := encompassesCommon(x, older, newerR, olderR); ok {
		return res
	}
	switch o := older.(type) {
	case XML:
		sample, err := o.Generate(olderR)
		if err != nil {
			return FailureFromError(err)
		}
		return x.Matches(sample, newerR)
	case Exact:
		return x.Matches(o.Value, newerR)
	default:
		return result.Mismatch(x.TypeName(), older.TypeName())
	}
}

func (XML) Parse(s string, _ *Resolver) (value.Value, error) {
	node, err := value.ParseXML(s)
	if err != nil {
		return nil, NewContractError("Couldn't parse %q as xml", s)
	}
	return node, nil
}

func (x XML) withChildren(children []Pattern) XML {
	return XML{RealName: x.RealName, Attributes: x.Attributes, Children: children, Alias: x.Alias}
}
