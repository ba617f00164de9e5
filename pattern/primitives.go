package pattern

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// Number matches JSON numbers.
type Number struct{}

// Boolean matches JSON booleans.
type Boolean struct{}

// String matches any JSON string.
type String struct{}

// EmptyString matches only "".
type EmptyString struct{}

// Null matches null. It is the empty alternative that makes an Any nullable.
type Null struct{}

// DateTime matches RFC 3339 timestamps carried in strings.
type DateTime struct{}

// UUID matches UUIDs carried in strings.
type UUID struct{}

func (Number) isPattern()      {}
func (Boolean) isPattern()     {}
func (String) isPattern()      {}
func (EmptyString) isPattern() {}
func (Null) isPattern()        {}
func (DateTime) isPattern()    {}
func (UUID) isPattern()        {}

func (Number) Kind() Kind      { return KindNumber }
func (Boolean) Kind() Kind     { return KindBoolean }
func (String) Kind() Kind      { return KindString }
func (EmptyString) Kind() Kind { return KindEmptyString }
func (Null) Kind() Kind        { return KindNull }
func (DateTime) Kind() Kind    { return KindDateTime }
func (UUID) Kind() Kind        { return KindUUID }

func (Number) TypeAlias() string      { return "(number)" }
func (Boolean) TypeAlias() string     { return "(boolean)" }
func (String) TypeAlias() string      { return "(string)" }
func (EmptyString) TypeAlias() string { return "(nothing)" }
func (Null) TypeAlias() string        { return "(empty)" }
func (DateTime) TypeAlias() string    { return "(datetime)" }
func (UUID) TypeAlias() string        { return "(uuid)" }

func (Number) TypeName() string      { return "number" }
func (Boolean) TypeName() string     { return "boolean" }
func (String) TypeName() string      { return "string" }
func (EmptyString) TypeName() string { return "empty string" }
func (Null) TypeName() string        { return "null" }
func (DateTime) TypeName() string    { return "datetime" }
func (UUID) TypeName() string        { return "uuid" }

// Matching

func (p Number) Matches(v value.Value, _ *Resolver) result.Result {
	if _, ok := v.(value.Number); ok {
		return result.Succeed()
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

func (p Boolean) Matches(v value.Value, _ *Resolver) result.Result {
	if _, ok := v.(value.Boolean); ok {
		return result.Succeed()
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

func (p String) Matches(v value.Value, _ *Resolver) result.Result {
	if _, ok := v.(value.String); ok {
		return result.Succeed()
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

func (p EmptyString) Matches(v value.Value, _ *Resolver) result.Result {
	if s, ok := v.(value.String); ok && s == "" {
		return result.Succeed()
	}
	return result.Mismatch("empty string", v.Displayable())
}

func (p Null) Matches(v value.Value, _ *Resolver) result.Result {
	if _, ok := v.(value.Null); ok {
		return result.Succeed()
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

func (p DateTime) Matches(v value.Value, _ *Resolver) result.Result {
	if s, ok := v.(value.String); ok {
		if _, err := time.Parse(time.RFC3339, string(s)); err == nil {
			return result.Succeed()
		}
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

func (p UUID) Matches(v value.Value, _ *Resolver) result.Result {
	if s, ok := v.(value.String); ok {
		if _, err := uuid.Parse(string(s)); err == nil {
			return result.Succeed()
		}
	}
	return result.Mismatch(p.TypeName(), v.Displayable())
}

// Generation

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

func (Number) Generate(*Resolver) (value.Value, error) {
	return value.Number(rand.IntN(900) + 100), nil
}

func (Boolean) Generate(*Resolver) (value.Value, error) {
	return value.Boolean(rand.IntN(2) == 1), nil
}

func (String) Generate(*Resolver) (value.Value, error) {
	return value.String(randomString(5)), nil
}

func (EmptyString) Generate(*Resolver) (value.Value, error) { return value.String(""), nil }

func (Null) Generate(*Resolver) (value.Value, error) { return value.Null{}, nil }

func (DateTime) Generate(*Resolver) (value.Value, error) {
	return value.String(time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)), nil
}

func (UUID) Generate(*Resolver) (value.Value, error) {
	return value.String(uuid.NewString()), nil
}

// Variants. A scalar has only itself as a positive variant; its negatives are
// the other JSON scalar types.

func (p Number) NewBasedOn(Row, *Resolver) ([]Pattern, error)      { return []Pattern{p}, nil }
func (p Boolean) NewBasedOn(Row, *Resolver) ([]Pattern, error)     { return []Pattern{p}, nil }
func (p String) NewBasedOn(Row, *Resolver) ([]Pattern, error)      { return []Pattern{p}, nil }
func (p EmptyString) NewBasedOn(Row, *Resolver) ([]Pattern, error) { return []Pattern{p}, nil }
func (p Null) NewBasedOn(Row, *Resolver) ([]Pattern, error)        { return []Pattern{p}, nil }
func (p DateTime) NewBasedOn(Row, *Resolver) ([]Pattern, error)    { return []Pattern{p}, nil }
func (p UUID) NewBasedOn(Row, *Resolver) ([]Pattern, error)        { return []Pattern{p}, nil }

func (Number) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Boolean{}, String{}}, nil
}

func (Boolean) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, String{}}, nil
}

func (String) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, Boolean{}}, nil
}

func (EmptyString) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, Boolean{}}, nil
}

func (Null) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) { return nil, nil }

func (DateTime) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, Boolean{}}, nil
}

func (UUID) NegativeBasedOn(Row, *Resolver) ([]Pattern, error) {
	return []Pattern{Null{}, Number{}, Boolean{}}, nil
}

// Compatibility

func (p Number) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

func (p Boolean) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

func (p String) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR, KindEmptyString, KindDateTime, KindUUID)
}

func (p EmptyString) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

func (p Null) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

func (p DateTime) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

func (p UUID) Encompasses(older Pattern, newerR, olderR *Resolver) result.Result {
	return encompassesScalar(p, older, newerR, olderR)
}

// Parsing

func (Number) Parse(s string, _ *Resolver) (value.Value, error) {
	n, ok := value.ParseNumber(s)
	if !ok {
		return nil, convertError(s, "number")
	}
	return n, nil
}

func (Boolean) Parse(s string, _ *Resolver) (value.Value, error) {
	switch strings.TrimSpace(s) {
	case "true":
		return value.True, nil
	case "false":
		return value.False, nil
	default:
		return nil, convertError(s, "boolean")
	}
}

func (String) Parse(s string, _ *Resolver) (value.Value, error) { return value.String(s), nil }

func (EmptyString) Parse(s string, _ *Resolver) (value.Value, error) {
	if s != "" {
		return nil, convertError(s, "empty string")
	}
	return value.String(""), nil
}

func (Null) Parse(s string, _ *Resolver) (value.Value, error) {
	switch strings.TrimSpace(s) {
	case "", "null":
		return value.Null{}, nil
	default:
		return nil, convertError(s, "null")
	}
}

func (DateTime) Parse(s string, _ *Resolver) (value.Value, error) {
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err != nil {
		return nil, convertError(s, "datetime")
	}
	return value.String(strings.TrimSpace(s)), nil
}

func (UUID) Parse(s string, _ *Resolver) (value.Value, error) {
	if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
		return nil, convertError(s, "uuid")
	}
	return value.String(strings.TrimSpace(s)), nil
}
