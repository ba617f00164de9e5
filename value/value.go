// Package value holds the immutable runtime data model that patterns are
// matched against and generated into: JSON-like scalars and containers plus
// XML nodes.
package value

import (
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindList
	KindObject
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "json object"
	case KindXML:
		return "xml"
	default:
		return "unknown"
	}
}

// Value is a structurally comparable, immutable piece of data.
// The set of implementations is closed to this package.
type Value interface {
	Kind() Kind
	// Equal reports structural equality. Object key order is irrelevant.
	Equal(other Value) bool
	// String returns the serialized form (JSON text, or XML markup for nodes).
	String() string
	// Displayable returns the form used inside failure reports.
	Displayable() string
	// TypeName is the human-readable name of the value's type.
	TypeName() string

	isValue()
}

// Null is the JSON null.
type Null struct{}

// Boolean is a JSON boolean.
type Boolean bool

// Number is a JSON number.
type Number float64

// String is a JSON string or an XML text node.
type String string

// List is an ordered sequence of values.
type List []Value

// Object is a JSON object.
type Object map[string]Value

// True and False are the two Boolean values.
const (
	True  = Boolean(true)
	False = Boolean(false)
)

func (Null) Kind() Kind    { return KindNull }
func (Boolean) Kind() Kind { return KindBoolean }
func (Number) Kind() Kind  { return KindNumber }
func (String) Kind() Kind  { return KindString }
func (List) Kind() Kind    { return KindList }
func (Object) Kind() Kind  { return KindObject }

func (Null) isValue()    {}
func (Boolean) isValue() {}
func (Number) isValue()  {}
func (String) isValue()  {}
func (List) isValue()    {}
func (Object) isValue()  {}

func (Null) TypeName() string    { return "null" }
func (Boolean) TypeName() string { return "boolean" }
func (Number) TypeName() string  { return "number" }
func (String) TypeName() string  { return "string" }
func (List) TypeName() string    { return "list" }
func (Object) TypeName() string  { return "json object" }

func (Null) Equal(other Value) bool {
	_, ok := other.(Null)
	return ok
}

func (b Boolean) Equal(other Value) bool {
	o, ok := other.(Boolean)
	return ok && o == b
}

func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok && o == n
}

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == s
}

func (l List) Equal(other Value) bool {
	o, ok := other.(List)
	if !ok || len(o) != len(l) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (m Object) Equal(other Value) bool {
	o, ok := other.(Object)
	if !ok || len(o) != len(m) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (Null) String() string { return "null" }

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }

func (s String) String() string { return string(s) }

func (l List) String() string { return ToJSON(l) }

func (m Object) String() string { return ToJSON(m) }

func (Null) Displayable() string      { return "null" }
func (b Boolean) Displayable() string { return b.String() }
func (n Number) Displayable() string  { return n.String() }
func (s String) Displayable() string  { return strconv.Quote(string(s)) }
func (l List) Displayable() string    { return ToJSON(l) }
func (m Object) Displayable() string  { return ToJSON(m) }

// Keys returns the object's keys in sorted order.
func (m Object) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of the object with key set to v.
func (m Object) With(key string, v Value) Object {
	out := make(Object, len(m)+1)
	for k, existing := range m {
		out[k] = existing
	}
	out[key] = v
	return out
}

// IsInteger reports whether the number has no fractional part.
func (n Number) IsInteger() bool {
	return float64(n) == float64(int64(n))
}

// ParseNumber converts s into a Number.
func ParseNumber(s string) (Number, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return Number(f), true
}

// FromString guesses the most specific scalar value for s: numbers, booleans
// and null become their typed values, anything else stays a String.
func FromString(s string) Value {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "true":
		return True
	case "false":
		return False
	case "null":
		return Null{}
	}
	if n, ok := ParseNumber(trimmed); ok && trimmed != "" {
		return n
	}
	return String(s)
}
