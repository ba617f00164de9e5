package value

import (
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
)

// XMLNode is an element of an XML document.
//
// Namespaces always holds every prefix declared on the node itself or
// inherited from an ancestor at construction time.
type XMLNode struct {
	Name       string
	RealName   string
	Attributes map[string]String
	Children   []Value
	Prefix     string
	Namespaces map[string]string
}

// NewXMLNode builds a node named realName (optionally prefixed, e.g.
// "ns:Field"), collecting the namespace map from parentNamespaces and the
// node's own xmlns:* declarations.
func NewXMLNode(realName string, attributes map[string]String, children []Value, parentNamespaces map[string]string) *XMLNode {
	namespaces := make(map[string]string, len(parentNamespaces))
	for k, v := range parentNamespaces {
		namespaces[k] = v
	}
	for k, v := range namespacesOf(attributes) {
		namespaces[k] = v
	}
	if attributes == nil {
		attributes = map[string]String{}
	}
	return &XMLNode{
		Name:       WithoutNamespacePrefix(realName),
		RealName:   realName,
		Attributes: attributes,
		Children:   children,
		Prefix:     NamespacePrefix(realName),
		Namespaces: namespaces,
	}
}

// WithoutNamespacePrefix drops everything up to the first colon.
func WithoutNamespacePrefix(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NamespacePrefix returns the prefix of a qualified name, or "" when absent.
func NamespacePrefix(name string) string {
	parts := strings.Split(name, ":")
	if len(parts) == 1 {
		return ""
	}
	return parts[0]
}

func namespacesOf(attributes map[string]String) map[string]string {
	out := map[string]string{}
	for k, v := range attributes {
		if strings.HasPrefix(k, "xmlns:") {
			out[strings.TrimPrefix(k, "xmlns:")] = string(v)
		}
	}
	return out
}

func (*XMLNode) Kind() Kind       { return KindXML }
func (*XMLNode) TypeName() string { return "xml" }
func (*XMLNode) isValue()         {}

// Equal compares names, attributes and children; namespace maps are derived
// state and do not take part.
func (n *XMLNode) Equal(other Value) bool {
	o, ok := other.(*XMLNode)
	if !ok {
		return false
	}
	if n == o {
		return true
	}
	if n.RealName != o.RealName || len(n.Attributes) != len(o.Attributes) || len(n.Children) != len(o.Children) {
		return false
	}
	for k, v := range n.Attributes {
		if ov, ok := o.Attributes[k]; !ok || ov != v {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (n *XMLNode) String() string { return n.render("", "") }

func (n *XMLNode) Displayable() string { return n.String() }

// PrettyString renders the node with two-space indentation.
func (n *XMLNode) PrettyString() string { return n.render("  ", "\n") }

func (n *XMLNode) render(indent, sep string) string {
	var attrs strings.Builder
	for _, k := range n.attributeKeys() {
		attrs.WriteString(" ")
		attrs.WriteString(k)
		attrs.WriteString("=")
		attrs.WriteString(strconv.Quote(string(n.Attributes[k])))
	}

	if len(n.Children) == 0 {
		return "<" + n.RealName + attrs.String() + "/>"
	}

	open := "<" + n.RealName + attrs.String() + ">"
	closing := "</" + n.RealName + ">"

	lines := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		switch c := child.(type) {
		case *XMLNode:
			lines = append(lines, c.render(indent, sep))
		default:
			lines = append(lines, escapeText(child.String()))
		}
	}

	if _, textFirst := n.Children[0].(String); textFirst {
		return open + lines[0] + closing
	}

	body := strings.Join(lines, sep)
	if indent != "" {
		body = prependIndent(body, indent)
	}
	return open + sep + body + sep + closing
}

func (n *XMLNode) attributeKeys() []string {
	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func prependIndent(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}

func escapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ResolveNamespace returns the URI bound to the prefix of name. A blank prefix
// resolves to "" (no namespace); an unbound prefix is an error.
func (n *XMLNode) ResolveNamespace(name string) (string, error) {
	prefix := NamespacePrefix(name)
	if strings.TrimSpace(prefix) == "" {
		return "", nil
	}
	uri, ok := n.Namespaces[prefix]
	if !ok {
		return "", errors.Errorf("Namespace %s not found in node %s\nAvailable namespaces: %v", prefix, n.String(), n.Namespaces)
	}
	return uri, nil
}

// QName returns the node name qualified with its namespace URI.
func (n *XMLNode) QName() (string, error) {
	switch {
	case strings.TrimSpace(n.Prefix) != "":
		uri, ok := n.Namespaces[n.Prefix]
		if !ok {
			return "", errors.Errorf("Namespace prefix %s cannot be resolved", n.Prefix)
		}
		return "{" + uri + "}" + n.Name, nil
	case n.Attributes["xmlns"] != "":
		return "{" + string(n.Attributes["xmlns"]) + "}" + n.Name, nil
	default:
		return n.Name, nil
	}
}

// CreateNewNode creates an empty child-less node that inherits this node's
// namespaces.
func (n *XMLNode) CreateNewNode(realName string, attributes map[string]string) (*XMLNode, error) {
	prefix := NamespacePrefix(realName)
	if strings.TrimSpace(prefix) != "" {
		if _, ok := n.Namespaces[prefix]; !ok {
			return nil, errors.Errorf("Namespace prefix %s not found, can't create a node by the name %s", prefix, realName)
		}
	}
	attrs := make(map[string]String, len(attributes))
	for k, v := range attributes {
		attrs[k] = String(v)
	}
	return NewXMLNode(realName, attrs, nil, n.Namespaces), nil
}

// ChildNodes returns only the element children.
func (n *XMLNode) ChildNodes() []*XMLNode {
	out := make([]*XMLNode, 0, len(n.Children))
	for _, c := range n.Children {
		if node, ok := c.(*XMLNode); ok {
			out = append(out, node)
		}
	}
	return out
}

// FindFirstChildByName returns the first element child with the given local name.
func (n *XMLNode) FindFirstChildByName(name string) (*XMLNode, bool) {
	for _, c := range n.ChildNodes() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ChildrenByName returns every element child with the given local name.
func (n *XMLNode) ChildrenByName(name string) []*XMLNode {
	var out []*XMLNode
	for _, c := range n.ChildNodes() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindFirstChildByPath walks a dot separated path of local names.
func (n *XMLNode) FindFirstChildByPath(path string) (*XMLNode, bool) {
	current := n
	if path == "" {
		return current, true
	}
	for _, part := range strings.Split(path, ".") {
		next, ok := current.FindFirstChildByName(part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// NodeByPath is FindFirstChildByPath failing with an error.
func (n *XMLNode) NodeByPath(path string) (*XMLNode, error) {
	node, ok := n.FindFirstChildByPath(path)
	if !ok {
		return nil, errors.Errorf("Couldn't find node at path %s", path)
	}
	return node, nil
}

// AttributeValue returns the named attribute.
func (n *XMLNode) AttributeValue(name string) (string, error) {
	v, ok := n.Attributes[name]
	if !ok {
		return "", errors.Errorf("Couldn't find attribute %s in node %s", name, n.RealName)
	}
	return string(v), nil
}

// AttributeValueAtPath returns the attribute of the node found at path.
func (n *XMLNode) AttributeValueAtPath(path, name string) (string, error) {
	node, err := n.NodeByPath(path)
	if err != nil {
		return "", err
	}
	v, ok := node.Attributes[name]
	if !ok {
		return "", errors.Errorf("Couldn't find attribute %s at path %s", name, path)
	}
	return string(v), nil
}

// ParseXML parses an XML document into its root node. Whitespace-only text
// between elements is dropped.
func ParseXML(data string) (*XMLNode, error) {
	dec := xml.NewDecoder(strings.NewReader(data))

	type frame struct {
		realName   string
		attrs      map[string]String
		children   []Value
		namespaces map[string]string
	}
	var stack []*frame
	var root *XMLNode

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make(map[string]String, len(t.Attr))
			for _, a := range t.Attr {
				attrs[qualified(a.Name)] = String(a.Value)
			}
			parentNamespaces := map[string]string{}
			if len(stack) > 0 {
				parentNamespaces = stack[len(stack)-1].namespaces
			}
			ns := make(map[string]string, len(parentNamespaces))
			for k, v := range parentNamespaces {
				ns[k] = v
			}
			for k, v := range namespacesOf(attrs) {
				ns[k] = v
			}
			stack = append(stack, &frame{realName: qualified(t.Name), attrs: attrs, namespaces: ns})
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.Errorf("unexpected closing tag %s", qualified(t.Name))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			var parentNamespaces map[string]string
			if len(stack) > 0 {
				parentNamespaces = stack[len(stack)-1].namespaces
			}
			node := NewXMLNode(top.realName, top.attrs, top.children, parentNamespaces)
			if len(stack) == 0 {
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, String(text))
		}
	}

	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
