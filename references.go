package specmatic

import (
	"sync"

	"github.com/Laisky/errors/v2"
)

// ReferenceSource produces the values another contract exports, typically by
// running that contract's scenarios against baseURL.
type ReferenceSource func(baseURL string) (map[string]string, error)

// References gives a scenario access to values exported by another
// contract. The source runs at most once.
type References struct {
	Name   string
	Source ReferenceSource

	once   sync.Once
	values map[string]string
	err    error
}

// NewReferences returns references named name backed by source.
func NewReferences(name string, source ReferenceSource) *References {
	return &References{Name: name, Source: source}
}

// Lookup returns the exported value key. The base URL used for the first
// lookup is baseURLs[Name].
func (r *References) Lookup(key string, baseURLs map[string]string) (string, error) {
	r.once.Do(func() {
		if r.Source == nil {
			r.err = errors.Errorf("references %s have no source", r.Name)
			return
		}
		r.values, r.err = r.Source(baseURLs[r.Name])
	})
	if r.err != nil {
		return "", errors.Wrapf(r.err, "load references %s", r.Name)
	}
	v, ok := r.values[key]
	if !ok {
		return "", errors.Errorf("%s does not export %s", r.Name, key)
	}
	return v, nil
}
