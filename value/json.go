package value

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"gopkg.in/yaml.v3"
)

// ParseJSON converts JSON text into a Value.
func ParseJSON(data string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "parse json %q", truncate(data, 64))
	}
	return FromNative(raw)
}

// FromNative converts values produced by encoding/json (or plain Go maps,
// slices and scalars) into a Value.
func FromNative(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "convert %s to number", t.String())
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case string:
		return String(t), nil
	case []any:
		list := make(List, 0, len(t))
		for _, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, errors.Errorf("unsupported value of type %T", raw)
	}
}

// ToNative converts v into plain Go values suitable for encoding/json or yaml.
func ToNative(v Value) any {
	switch t := v.(type) {
	case Null:
		return nil
	case Boolean:
		return bool(t)
	case Number:
		if t.IsInteger() {
			return int64(t)
		}
		return float64(t)
	case String:
		return string(t)
	case List:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, ToNative(item))
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = ToNative(item)
		}
		return out
	case *XMLNode:
		return t.String()
	default:
		return nil
	}
}

// ToJSON renders v as compact JSON with sorted object keys.
func ToJSON(v Value) string {
	var b bytes.Buffer
	writeJSON(&b, v)
	return b.String()
}

func writeJSON(b *bytes.Buffer, v Value) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Boolean, Number:
		b.WriteString(t.String())
	case String:
		b.WriteString(strconv.Quote(string(t)))
	case List:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(b, item)
		}
		b.WriteByte(']')
	case Object:
		b.WriteByte('{')
		for i, k := range t.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeJSON(b, t[k])
		}
		b.WriteByte('}')
	case *XMLNode:
		b.WriteString(strconv.Quote(t.String()))
	}
}

// FromYAMLNode converts a yaml.v3 node into a Value. Scalars keep their
// resolved YAML type, so `10` becomes a Number and `"10"` stays a String.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	if n == nil {
		return Null{}, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null{}, nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return Null{}, nil
		case "!!bool":
			return Boolean(n.Value == "true" || n.Value == "True" || n.Value == "TRUE"), nil
		case "!!int", "!!float":
			if num, ok := ParseNumber(n.Value); ok {
				return num, nil
			}
			return String(n.Value), nil
		default:
			return String(n.Value), nil
		}
	case yaml.SequenceNode:
		list := make(List, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := FromYAMLNode(child)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		obj := make(Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	default:
		return nil, errors.Errorf("unsupported yaml node kind %d at line %d", n.Kind, n.Line)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
