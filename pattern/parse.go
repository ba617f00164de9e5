package pattern

import (
	"strings"

	"github.com/EmmanuelMendoza/specmatic/value"
)

// IsPatternToken reports whether s is a type token such as "(number)".
func IsPatternToken(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
}

// ParsePattern reads the textual form of a pattern:
//
//	(number) (string) (boolean) (null) (empty) (nothing) (datetime) (uuid)
//	(Alias)      a named type, resolved lazily
//	(T?)         T or null
//	(T*)         list of T
//	(col:T)      T whose example value comes from column col
//	{...} [...]  JSON text whose string members may be tokens
//	<...>        an XML sample
//
// Any other text is an exact string.
func ParsePattern(s string) (Pattern, error) {
	trimmed := strings.TrimSpace(s)
	switch {
	case IsPatternToken(trimmed):
		return parseToken(trimmed)
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		v, err := value.ParseJSON(trimmed)
		if err != nil {
			return nil, NewContractError("Couldn't parse %q as json", trimmed)
		}
		return FromValue(v)
	case strings.HasPrefix(trimmed, "<"):
		node, err := value.ParseXML(trimmed)
		if err != nil {
			return nil, NewContractError("Couldn't parse %q as xml", trimmed)
		}
		return NewXMLPattern(node)
	default:
		return Exact{Value: value.String(s)}, nil
	}
}

func parseToken(token string) (Pattern, error) {
	inner := strings.TrimSpace(withoutPatternDelimiters(token))
	if inner == "" {
		return nil, NewContractError("Pattern %s is empty", token)
	}

	switch {
	case strings.HasSuffix(inner, "?"):
		base, err := parseToken("(" + strings.TrimSuffix(inner, "?") + ")")
		if err != nil {
			return nil, err
		}
		return Nullable(base), nil
	case strings.HasSuffix(inner, "*"):
		base, err := parseToken("(" + strings.TrimSuffix(inner, "*") + ")")
		if err != nil {
			return nil, err
		}
		return List{Element: base}, nil
	}

	if column, typ, ok := strings.Cut(inner, ":"); ok {
		base, err := parseToken("(" + strings.TrimSpace(typ) + ")")
		if err != nil {
			return nil, err
		}
		return LookupRow{Inner: base, Column: strings.TrimSpace(column)}, nil
	}

	alias := "(" + inner + ")"
	if p, ok := builtins[alias]; ok {
		return p, nil
	}
	if strings.ContainsAny(inner, " ()") {
		return nil, NewContractError("Pattern %s is not a valid type name", token)
	}
	return Deferred{Alias: alias}, nil
}

// FromValue turns a sample value into a pattern: string members that are
// tokens become types, everything else must match exactly. A single-element
// array describes a list of its element.
func FromValue(v value.Value) (Pattern, error) {
	switch t := v.(type) {
	case value.String:
		if IsPatternToken(strings.TrimSpace(string(t))) {
			return parseToken(strings.TrimSpace(string(t)))
		}
		return Exact{Value: t}, nil
	case value.Object:
		fields := make(map[string]Pattern, len(t))
		for _, k := range t.Keys() {
			p, err := FromValue(t[k])
			if err != nil {
				return nil, asContractError(err).WithBreadcrumb(k)
			}
			fields[k] = p
		}
		return NewObject(fields), nil
	case value.List:
		if len(t) == 1 {
			p, err := FromValue(t[0])
			if err != nil {
				return nil, asContractError(err).WithBreadcrumb("[0]")
			}
			return List{Element: p}, nil
		}
		for i, item := range t {
			if s, ok := item.(value.String); ok && IsPatternToken(string(s)) {
				return nil, NewContractError("Only single-element arrays may contain types, found %s at [%d]", s, i)
			}
		}
		return Exact{Value: t}, nil
	case *value.XMLNode:
		return NewXMLPattern(t)
	default:
		return Exact{Value: v}, nil
	}
}
