// Package pointer models structural paths inside a decoded JSON Schema document
// and converts them to and from RFC 6901 JSON Pointers.
package pointer

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either an object key or an array index.
type Segment struct {
	key   string
	index int
	isIdx bool
}

// Key returns an object-key segment.
func Key(k string) Segment { return Segment{key: k} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{index: i, isIdx: true} }

// IsIndex reports whether the segment addresses an array element.
func (s Segment) IsIndex() bool { return s.isIdx }

// Key returns the object key, or the decimal index for index segments.
func (s Segment) Key() string {
	if s.isIdx {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Index returns the array index; it is -1 for key segments.
func (s Segment) Index() int {
	if !s.isIdx {
		return -1
	}
	return s.index
}

func (s Segment) String() string { return s.Key() }

// Path locates a fragment within a root schema.
type Path []Segment

// Child returns a new path extended by segs. The receiver is never aliased.
func (p Path) Child(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Equal reports whether both paths address the same location. Index and
// key segments compare by their token, so a parsed "/items/0" equals a
// path built with Index(0).
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i].Key() != o[i].Key() {
			return false
		}
	}
	return true
}

// String renders the path as a JSON Pointer ("" for the root).
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	b := &strings.Builder{}
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(escape(s.Key()))
	}
	return b.String()
}

// Fragment renders the path as a URI fragment pointer ("#/a/b").
func (p Path) Fragment() string { return "#" + p.String() }

// escape applies RFC 6901: '~' -> '~0', '/' -> '~1'.
func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func unescape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// Parse converts a JSON Pointer into a Path. Numeric tokens become key
// segments; Lookup treats them as indexes when it meets an array.
func Parse(ptr string) (Path, error) {
	if ptr == "" {
		return Path{}, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("pointer: %q must start with '/'", ptr)
	}
	parts := strings.Split(ptr[1:], "/")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		out = append(out, Key(unescape(p)))
	}
	return out, nil
}

// Ref is a parsed $ref value.
type Ref struct {
	Raw      string
	Document string // empty for same-document references
	Path     Path
}

// IsLocal reports whether the reference points into the same document.
func (r Ref) IsLocal() bool { return r.Document == "" }

// ParseRef splits a $ref string into its document part and fragment path.
// "#/definitions/Foo" is local; "common.json#/Bar" targets another document;
// "common.json" targets another document's root.
func ParseRef(raw string) (Ref, error) {
	doc, frag, _ := strings.Cut(raw, "#")
	p, err := Parse(frag)
	if err != nil {
		return Ref{}, fmt.Errorf("pointer: ref %q: %w", raw, err)
	}
	return Ref{Raw: raw, Document: doc, Path: p}, nil
}
