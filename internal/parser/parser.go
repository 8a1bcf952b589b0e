// Package parser decodes JSON and YAML schema documents and extracts the
// catalog fields: title, draft, $id, references and a searchable body.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/starford/schemaview/internal/apperr"
)

// Result holds the output of parsing a schema file.
type Result struct {
	Document    any
	Title       string
	Description string
	Draft       string
	ID          string
	// Refs lists every distinct $ref string in document order of a sorted
	// key walk.
	Refs []string
	// External lists the other catalog files referenced, relative to the
	// catalog root.
	External []string
	Body     string
}

// Parse decodes data according to the extension of path and extracts the
// catalog fields.
func Parse(filePath string, data []byte) (*Result, error) {
	doc, err := Decode(filePath, data)
	if err != nil {
		return nil, err
	}

	r := &Result{Document: doc}
	if m, ok := doc.(map[string]any); ok {
		r.Title = stringField(m, "title")
		r.Description = stringField(m, "description")
		r.Draft = stringField(m, "$schema")
		r.ID = stringField(m, "$id")
	}

	var names []string
	seenRef := make(map[string]struct{})
	seenDoc := make(map[string]struct{})
	walk(doc, func(m map[string]any) {
		if ref, ok := m["$ref"].(string); ok {
			if _, dup := seenRef[ref]; !dup {
				seenRef[ref] = struct{}{}
				r.Refs = append(r.Refs, ref)
			}
			if target, ok := ResolveDocument(filePath, ref); ok && target != filePath {
				if _, dup := seenDoc[target]; !dup {
					seenDoc[target] = struct{}{}
					r.External = append(r.External, target)
				}
			}
		}
		if props, ok := m["properties"].(map[string]any); ok {
			names = append(names, sortedKeys(props)...)
		}
	})
	r.Body = buildBody(r.Title, r.Description, names)
	return r, nil
}

// Decode turns raw bytes into a generic document. JSON numbers are kept as
// json.Number; YAML mappings are normalised to map[string]any.
func Decode(filePath string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("parser: %s is empty: %w", filePath, apperr.ErrInvalidInput)
	}

	switch strings.ToLower(path.Ext(filePath)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parser: decode %s: %v: %w", filePath, err, apperr.ErrInvalidInput)
		}
		return normalize(v), nil
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("parser: decode %s: %v: %w", filePath, err, apperr.ErrInvalidInput)
		}
		return v, nil
	}
}

// ResolveDocument returns the catalog path of the document a $ref points
// into, relative to the file that contains it. Same-document and remote
// (scheme-qualified) references report false.
func ResolveDocument(source, ref string) (string, bool) {
	doc, _, _ := strings.Cut(ref, "#")
	if doc == "" || strings.Contains(doc, "://") {
		return "", false
	}
	if strings.HasPrefix(doc, "/") {
		return strings.TrimPrefix(path.Clean(doc), "/"), true
	}
	return path.Join(path.Dir(source), doc), true
}

// normalize converts yaml's map[any]any into map[string]any recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}

// walk visits every object in v, keys in sorted order.
func walk(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, k := range sortedKeys(t) {
			walk(t[k], fn)
		}
	case []any:
		for _, e := range t {
			walk(e, fn)
		}
	}
}

func buildBody(title, description string, names []string) string {
	var parts []string
	for _, s := range []string{title, description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(names) > 0 {
		parts = append(parts, strings.Join(names, " "))
	}
	return strings.Join(parts, "\n")
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
