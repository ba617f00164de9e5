package pattern

import (
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// DefaultMaxDepth bounds how many Deferred types may be nested while
// generating or comparing.
const DefaultMaxDepth = 64

// Resolver is the context all matching, generation and comparison runs in:
// the named-type registry, the server-state facts and the mode flags.
//
// A Resolver is never mutated after construction. The With* methods return
// modified copies, so one instance may be shared by concurrent callers.
type Resolver struct {
	patterns map[string]Pattern
	facts    map[string]value.Value

	generativeTests bool
	mockMode        bool
	strictKeys      bool
	readerView      bool
	maxDepth        int

	visiting  *aliasChain
	comparing *aliasChain
}

// NewResolver returns a resolver over the given named types. Aliases are
// written with their delimiters, e.g. "(Person)".
func NewResolver(patterns map[string]Pattern) *Resolver {
	if patterns == nil {
		patterns = map[string]Pattern{}
	}
	return &Resolver{
		patterns: patterns,
		facts:    map[string]value.Value{},
		maxDepth: DefaultMaxDepth,
	}
}

func (r *Resolver) clone() *Resolver {
	c := *r
	return &c
}

// Pattern looks up alias among the built-in types and the registry.
func (r *Resolver) Pattern(alias string) (Pattern, error) {
	if p, ok := builtins[alias]; ok {
		return p, nil
	}
	if p, ok := r.patterns[alias]; ok {
		return p, nil
	}
	return nil, &UnregisteredTypeError{Alias: alias}
}

// Patterns returns a copy of the registry.
func (r *Resolver) Patterns() map[string]Pattern {
	out := make(map[string]Pattern, len(r.patterns))
	for k, v := range r.patterns {
		out[k] = v
	}
	return out
}

// WithPatterns returns a resolver whose registry also holds patterns.
// Entries in patterns win over existing ones.
func (r *Resolver) WithPatterns(patterns map[string]Pattern) *Resolver {
	merged := r.Patterns()
	for k, v := range patterns {
		merged[k] = v
	}
	c := r.clone()
	c.patterns = merged
	return c
}

// Fact returns the server-state value recorded under key.
func (r *Resolver) Fact(key string) (value.Value, bool) {
	v, ok := r.facts[key]
	return v, ok
}

func (r *Resolver) Facts() map[string]value.Value {
	out := make(map[string]value.Value, len(r.facts))
	for k, v := range r.facts {
		out[k] = v
	}
	return out
}

// WithFacts replaces the fact map wholesale.
func (r *Resolver) WithFacts(facts map[string]value.Value) *Resolver {
	c := r.clone()
	c.facts = make(map[string]value.Value, len(facts))
	for k, v := range facts {
		c.facts[k] = v
	}
	return c
}

func (r *Resolver) GenerativeTests() bool { return r.generativeTests }
func (r *Resolver) MockMode() bool        { return r.mockMode }
func (r *Resolver) StrictKeys() bool      { return r.strictKeys }
func (r *Resolver) MaxDepth() int         { return r.maxDepth }
func (r *Resolver) ReaderView() bool      { return r.readerView }

func (r *Resolver) WithGenerativeTests(on bool) *Resolver {
	c := r.clone()
	c.generativeTests = on
	return c
}

// WithMockMode lets string values that are pattern tokens, such as
// "(number)", stand in for any value of that type.
func (r *Resolver) WithMockMode(on bool) *Resolver {
	c := r.clone()
	c.mockMode = on
	return c
}

// WithStrictKeys makes object, header and attribute matching reject keys the
// pattern does not declare.
func (r *Resolver) WithStrictKeys(on bool) *Resolver {
	c := r.clone()
	c.strictKeys = on
	return c
}

// WithReaderView switches object comparison to the reader's side: the
// receiver reads what the other pattern provides, so every key the receiver
// requires must be required by the other side and extra keys there are
// ignored. Responses and messages are compared this way.
func (r *Resolver) WithReaderView(on bool) *Resolver {
	c := r.clone()
	c.readerView = on
	return c
}

func (r *Resolver) WithMaxDepth(depth int) *Resolver {
	c := r.clone()
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	c.maxDepth = depth
	return c
}

// MatchesPattern matches v against p and locates any failure under
// breadcrumb. In mock mode a pattern token stands in for a value.
func (r *Resolver) MatchesPattern(breadcrumb string, p Pattern, v value.Value) result.Result {
	var res result.Result
	if token, ok := v.(value.String); ok && r.mockMode && IsPatternToken(string(token)) {
		res = r.matchesToken(p, string(token))
	} else {
		res = p.Matches(v, r)
	}
	if breadcrumb == "" {
		return res
	}
	return res.WithBreadcrumb(breadcrumb)
}

func (r *Resolver) matchesToken(p Pattern, token string) result.Result {
	tokenPattern, err := ParsePattern(token)
	if err != nil {
		return FailureFromError(err)
	}
	if encompassed := p.Encompasses(tokenPattern, r, r); !encompassed.IsSuccess() {
		// A literal value that merely looks like a token still gets a chance.
		if direct := p.Matches(value.String(token), r); direct.IsSuccess() {
			return direct
		}
		return encompassed
	}
	return result.Succeed()
}

// Resolve follows Deferred references until a concrete pattern is reached.
func (r *Resolver) Resolve(p Pattern) (Pattern, error) {
	seen := 0
	for {
		d, ok := p.(Deferred)
		if !ok {
			return p, nil
		}
		if seen++; seen > r.maxDepth {
			return nil, &RecursionError{Chain: []string{d.Alias}}
		}
		next, err := r.Pattern(d.Alias)
		if err != nil {
			return nil, err
		}
		p = next
	}
}

func (r *Resolver) isVisiting(alias string) bool { return r.visiting.contains(alias) }

func (r *Resolver) visit(alias string) (*Resolver, error) {
	if r.visiting.len() >= r.maxDepth {
		return nil, &RecursionError{Chain: append(r.visiting.list(), alias)}
	}
	c := r.clone()
	c.visiting = r.visiting.push(alias)
	return c, nil
}

// cyclic reports whether generating p would re-enter a type that is already
// being generated.
func (r *Resolver) cyclic(p Pattern) bool {
	switch t := p.(type) {
	case Deferred:
		return r.isVisiting(t.Alias)
	case List:
		return r.cyclic(t.Element)
	case LookupRow:
		return r.cyclic(t.Inner)
	case Any:
		for _, alt := range t.Alternatives {
			if !isEmpty(alt) && !r.cyclic(alt) {
				return false
			}
		}
		return len(t.Alternatives) > 0
	default:
		return false
	}
}

// aliasChain is a persistent stack of aliases.
type aliasChain struct {
	alias string
	next  *aliasChain
	n     int
}

func (c *aliasChain) push(alias string) *aliasChain {
	return &aliasChain{alias: alias, next: c, n: c.len() + 1}
}

func (c *aliasChain) len() int {
	if c == nil {
		return 0
	}
	return c.n
}

func (c *aliasChain) contains(alias string) bool {
	for cur := c; cur != nil; cur = cur.next {
		if cur.alias == alias {
			return true
		}
	}
	return false
}

func (c *aliasChain) list() []string {
	out := make([]string, c.len())
	i := len(out) - 1
	for cur := c; cur != nil; cur = cur.next {
		out[i] = cur.alias
		i--
	}
	return out
}
