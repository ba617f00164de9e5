package specmatic

import (
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/value"
)

// SelectorStep is one step of a selector path.
type SelectorStep struct {
	Key any // string (object key or XML child name) or int (list index)
}

// Selector picks a value out of a response. It is written as
// "response-body", "response-body.a.b.0" or "response-header.X-Id".
type Selector struct {
	Header string         // set for response-header selectors
	Path   []SelectorStep // steps into the body for response-body selectors
}

// ParseSelector reads a binding selector.
func ParseSelector(s string) (Selector, error) {
	source, rest, _ := strings.Cut(strings.TrimSpace(s), ".")
	switch source {
	case "response-header":
		if rest == "" {
			return Selector{}, errors.Errorf("selector %q names no header", s)
		}
		return Selector{Header: rest}, nil
	case "response-body":
		var steps []SelectorStep
		if rest != "" {
			for _, part := range strings.Split(rest, ".") {
				if i, err := strconv.Atoi(part); err == nil {
					steps = append(steps, SelectorStep{Key: i})
					continue
				}
				steps = append(steps, SelectorStep{Key: part})
			}
		}
		return Selector{Path: steps}, nil
	default:
		return Selector{}, errors.Errorf("selector %q must start with response-body or response-header", s)
	}
}

// Select evaluates the selector against resp.
func (s Selector) Select(resp HTTPResponse) (string, error) {
	if s.Header != "" {
		v, ok := resp.Header(s.Header)
		if !ok {
			return "", errors.Errorf("response header %s not found", s.Header)
		}
		return v, nil
	}

	cur := resp.BodyValue()
	for _, step := range s.Path {
		next, err := selectStep(cur, step)
		if err != nil {
			return "", err
		}
		cur = next
	}
	if n, ok := cur.(*value.XMLNode); ok && len(n.ChildNodes()) == 0 {
		var b strings.Builder
		for _, c := range n.Children {
			b.WriteString(c.String())
		}
		return b.String(), nil
	}
	return cur.String(), nil
}

func selectStep(v value.Value, step SelectorStep) (value.Value, error) {
	switch k := step.Key.(type) {
	case int:
		list, ok := v.(value.List)
		if !ok {
			return nil, errors.Errorf("cannot index %s with %d", v.TypeName(), k)
		}
		if k < 0 || k >= len(list) {
			return nil, errors.Errorf("index %d out of range for list of %d", k, len(list))
		}
		return list[k], nil
	case string:
		switch t := v.(type) {
		case value.Object:
			item, ok := t[k]
			if !ok {
				return nil, errors.Errorf("key %s not found", k)
			}
			return item, nil
		case *value.XMLNode:
			child, ok := t.FindFirstChildByName(k)
			if !ok {
				return nil, errors.Errorf("node %s not found", k)
			}
			return child, nil
		default:
			// A JSON body sent as text is read before selecting from it.
			if s, isString := v.(value.String); isString {
				if parsed := ParseBody(string(s)); parsed != nil {
					if _, stillString := parsed.(value.String); !stillString {
						return selectStep(parsed, step)
					}
				}
			}
			return nil, errors.Errorf("cannot select %s from %s", k, v.TypeName())
		}
	default:
		return nil, errors.Errorf("unsupported selector step %v", step.Key)
	}
}
