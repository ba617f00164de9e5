package pattern

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/EmmanuelMendoza/specmatic/value"
)

// maxFingerprintDepth bounds canonicalization of pathologically deep patterns.
const maxFingerprintDepth = 1000

// Fingerprint returns a deterministic hex digest of p's structure. Deferred
// references are encoded by alias and never expanded, so recursive types
// fingerprint in finite time.
func Fingerprint(p Pattern) string {
	w := newCanonWriter()
	encodePattern(p, w, 0)
	sum := sha256.Sum256(w.bytes())
	return fmt.Sprintf("%x", sum[:])
}

// encodePattern writes a canonical representation of p.
func encodePattern(p Pattern, w *canonWriter, depth int) {
	if depth > maxFingerprintDepth {
		w.writeString(`{"$max_depth":true}`)
		return
	}
	if p == nil {
		w.writeString(`{"$nil":true}`)
		return
	}

	w.writeString(`{"k":`)
	w.writeString(strconv.Quote(p.Kind().String()))

	switch t := p.(type) {
	case Exact:
		w.writeString(`,"v":`)
		w.writeString(strconv.Quote(canonicalValue(t.Value)))
	case List:
		w.writeString(`,"e":`)
		encodePattern(t.Element, w, depth+1)
	case Object:
		w.writeString(`,"f":{`)
		for i, k := range sortedKeys(t.Fields) {
			if i > 0 {
				w.writeByte(',')
			}
			w.writeString(strconv.Quote(k))
			w.writeByte(':')
			encodePattern(t.Fields[k], w, depth+1)
		}
		w.writeByte('}')
	case Any:
		// Order is significant: generation prefers earlier alternatives.
		w.writeString(`,"a":[`)
		for i, alt := range t.Alternatives {
			if i > 0 {
				w.writeByte(',')
			}
			encodePattern(alt, w, depth+1)
		}
		w.writeByte(']')
	case Deferred:
		w.writeString(`,"ref":`)
		w.writeString(strconv.Quote(t.Alias))
	case LookupRow:
		w.writeString(`,"col":`)
		w.writeString(strconv.Quote(t.Column))
		w.writeString(`,"in":`)
		encodePattern(t.Inner, w, depth+1)
	case XML:
		w.writeString(`,"n":`)
		w.writeString(strconv.Quote(t.RealName))
		w.writeString(`,"attrs":{`)
		for i, k := range sortedKeys(t.Attributes) {
			if i > 0 {
				w.writeByte(',')
			}
			w.writeString(strconv.Quote(k))
			w.writeByte(':')
			encodePattern(t.Attributes[k], w, depth+1)
		}
		w.writeString(`},"c":[`)
		for i, c := range t.Children {
			if i > 0 {
				w.writeByte(',')
			}
			encodePattern(c, w, depth+1)
		}
		w.writeByte(']')
	}

	if alias := p.TypeAlias(); alias != "" && !p.Kind().IsScalar() {
		w.writeString(`,"alias":`)
		w.writeString(strconv.Quote(alias))
	}
	w.writeByte('}')
}

func canonicalValue(v value.Value) string {
	if v == nil {
		return "null"
	}
	return v.Kind().String() + ":" + value.ToJSON(v)
}

// canonWriter is a simple buffer for building canonical representations.
type canonWriter struct {
	buf []byte
}

func newCanonWriter() *canonWriter {
	return &canonWriter{buf: make([]byte, 0, 256)}
}

func (w *canonWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *canonWriter) writeString(s string) {
	w.buf = append(w.buf, s...)
}

func (w *canonWriter) bytes() []byte {
	return w.buf
}
