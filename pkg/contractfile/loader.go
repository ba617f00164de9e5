package contractfile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/patrickmn/go-cache"

	"github.com/EmmanuelMendoza/specmatic"
)

// Exporter runs a contract against baseURL and returns the values its
// scenarios export.
type Exporter func(f *specmatic.Feature, baseURL string) (map[string]string, error)

// Loader reads contract files and caches the parsed features until the file
// changes or the entry expires.
type Loader struct {
	opts     specmatic.Options
	exporter Exporter
	log      specmatic.Logger
	cache    *cache.Cache
}

type cached struct {
	modTime time.Time
	feature *specmatic.Feature
}

// NewLoader returns a loader whose entries live for ttl, or until the file
// changes when ttl is zero. A nil exporter leaves references unresolvable.
func NewLoader(opts specmatic.Options, exporter Exporter, ttl time.Duration) *Loader {
	log := opts.Logger
	if log == nil {
		log = specmatic.NopLogger()
	}
	return &Loader{
		opts:     opts,
		exporter: exporter,
		log:      log.With(map[string]any{"component": "contractfile"}),
		cache:    cache.New(ttl, 2*ttl),
	}
}

// Load parses the contract at path. References declared by the file are
// resolved relative to its directory and loaded on first use.
func (l *Loader) Load(path string) (*specmatic.Feature, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	if item, ok := l.cache.Get(abs); ok {
		if c := item.(cached); c.modTime.Equal(info.ModTime()) {
			l.log.Debugf("contract %s served from cache", abs)
			return c.feature, nil
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	doc, err := decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s", path)
	}

	refs := make(map[string]*specmatic.References, len(doc.References))
	for name, file := range doc.References {
		target := file
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(abs), target)
		}
		refs[name] = specmatic.NewReferences(name, l.referenceSource(target))
	}

	if doc.Name == "" {
		doc.Name = filepath.Base(abs)
	}
	f, err := build(doc, refs, l.opts)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s", path)
	}
	l.cache.Set(abs, cached{modTime: info.ModTime(), feature: f}, cache.DefaultExpiration)
	l.log.Debugf("loaded contract %s with %d scenarios", abs, len(f.Scenarios))
	return f, nil
}

// LoadAll loads each path in order.
func (l *Loader) LoadAll(paths []string) ([]*specmatic.Feature, error) {
	features := make([]*specmatic.Feature, 0, len(paths))
	for _, p := range paths {
		f, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

func (l *Loader) referenceSource(path string) specmatic.ReferenceSource {
	return func(baseURL string) (map[string]string, error) {
		if l.exporter == nil {
			return nil, errors.Errorf("no exporter configured for %s", path)
		}
		f, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		return l.exporter(f, baseURL)
	}
}
