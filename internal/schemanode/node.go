// Package schemanode interprets decoded JSON Schema fragments into a tagged
// Node: either a reference to another fragment or a regular node with its
// type information and structural children.
package schemanode

import (
	"sort"

	"github.com/starford/schemaview/internal/pointer"
)

// Kind discriminates the Node variants.
type Kind uint8

const (
	KindRegular Kind = iota
	KindRef
)

func (k Kind) String() string {
	if k == KindRef {
		return "ref"
	}
	return "regular"
}

// Role describes how a child relates to its parent fragment.
type Role string

const (
	RoleProperty             Role = "property"
	RolePatternProperty      Role = "patternProperty"
	RoleAdditionalProperties Role = "additionalProperties"
	RoleItems                Role = "items"
	RoleBranch               Role = "branch"
)

// Combiner keywords, in the order their branches are listed.
const (
	AllOf = "allOf"
	OneOf = "oneOf"
	AnyOf = "anyOf"
)

var combiners = []string{AllOf, OneOf, AnyOf}

// structuralKeys mark a fragment as a container even when it has no
// children right now (e.g. "properties": {}).
var structuralKeys = []string{"properties", "patternProperties", "additionalProperties", "items", AllOf, OneOf, AnyOf}

// Child is one structural descent from a Regular node.
type Child struct {
	// Segments are appended to the parent's path to address Fragment.
	Segments []pointer.Segment
	Name     string
	Role     Role
	Fragment any
}

// Regular is the interpretation of a non-reference fragment.
type Regular struct {
	Types       []string
	Title       string
	Description string
	Format      string
	Required    []string
	Combiners   []string
	Children    []Child
	// Merged is set when an allOf composition was folded into this node.
	Merged bool

	structural bool
}

// Node is a tagged variant; exactly one of Ref (for KindRef) or Regular
// (for KindRegular) is meaningful.
type Node struct {
	Kind Kind
	// Ref is the $ref target; nil means the $ref value is not a string.
	Ref     *string
	Regular *Regular
}

// IsRef reports whether n is a Reference Node.
func (n Node) IsRef() bool { return n.Kind == KindRef }

// HasStructure reports whether the tree node for n should be a parent.
func (n Node) HasStructure() bool {
	switch n.Kind {
	case KindRef:
		return true
	default:
		return n.Regular != nil && (n.Regular.structural || len(n.Regular.Children) > 0)
	}
}

// Types returns the declared types of a regular node, nil for references.
func (n Node) Types() []string {
	if n.Kind != KindRegular || n.Regular == nil {
		return nil
	}
	return n.Regular.Types
}

// Resolver returns the fragment a $ref string points at.
type Resolver func(ref string) (any, bool)

// Options controls interpretation.
type Options struct {
	MergeAllOf bool
	// Resolve is consulted for $ref branches of a merged allOf.
	Resolve Resolver
}

// Interpret builds the Node for fragment. Non-object fragments (boolean
// schemas, null) become childless regular nodes.
func Interpret(fragment any, opts Options) Node {
	m, ok := fragment.(map[string]any)
	if !ok {
		return Node{Kind: KindRegular, Regular: &Regular{}}
	}
	if raw, ok := m["$ref"]; ok {
		n := Node{Kind: KindRef}
		if s, ok := raw.(string); ok {
			n.Ref = &s
		}
		return n
	}

	merged := false
	if opts.MergeAllOf {
		if _, has := m[AllOf]; has {
			if mm, ok := MergeAllOf(m, opts.Resolve); ok {
				m = mm
				merged = true
			}
		}
	}

	r := &Regular{
		Types:       stringList(m["type"]),
		Title:       stringValue(m["title"]),
		Description: stringValue(m["description"]),
		Format:      stringValue(m["format"]),
		Required:    stringList(m["required"]),
		Merged:      merged,
	}
	for _, k := range structuralKeys {
		if _, ok := m[k]; ok {
			r.structural = true
			break
		}
	}
	for _, t := range r.Types {
		if t == "object" || t == "array" {
			r.structural = true
		}
	}
	r.Children = children(m, r)
	return Node{Kind: KindRegular, Regular: r}
}

func children(m map[string]any, r *Regular) []Child {
	var out []Child
	for _, kw := range []struct {
		key  string
		role Role
	}{{"properties", RoleProperty}, {"patternProperties", RolePatternProperty}} {
		pm, ok := m[kw.key].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range sortedKeys(pm) {
			out = append(out, Child{
				Segments: []pointer.Segment{pointer.Key(kw.key), pointer.Key(name)},
				Name:     name,
				Role:     kw.role,
				Fragment: pm[name],
			})
		}
	}

	if ap, ok := m["additionalProperties"].(map[string]any); ok {
		out = append(out, Child{
			Segments: []pointer.Segment{pointer.Key("additionalProperties")},
			Name:     "additionalProperties",
			Role:     RoleAdditionalProperties,
			Fragment: ap,
		})
	}

	switch it := m["items"].(type) {
	case map[string]any:
		out = append(out, Child{
			Segments: []pointer.Segment{pointer.Key("items")},
			Name:     "items",
			Role:     RoleItems,
			Fragment: it,
		})
	case []any:
		for i, v := range it {
			out = append(out, Child{
				Segments: []pointer.Segment{pointer.Key("items"), pointer.Index(i)},
				Name:     "items",
				Role:     RoleItems,
				Fragment: v,
			})
		}
	}

	for _, c := range combiners {
		branches, ok := m[c].([]any)
		if !ok {
			continue
		}
		r.Combiners = append(r.Combiners, c)
		for i, b := range branches {
			out = append(out, Child{
				Segments: []pointer.Segment{pointer.Key(c), pointer.Index(i)},
				Name:     c,
				Role:     RoleBranch,
				Fragment: b,
			})
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// stringList accepts either a single string or an array of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return nil
}
