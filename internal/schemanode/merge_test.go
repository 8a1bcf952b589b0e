package schemanode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeAllOfPolicy(t *testing.T) {
	in := map[string]any{
		"title": "base",
		"allOf": []any{
			map[string]any{
				"type":     "object",
				"required": []any{"a", "b"},
				"properties": map[string]any{
					"a": map[string]any{"type": "string", "minLength": 1},
				},
				"description": "first",
			},
			map[string]any{
				"type":     "string",
				"required": []any{"b", "c"},
				"properties": map[string]any{
					"a": map[string]any{"maxLength": 5},
					"c": map[string]any{"type": "boolean"},
				},
				"description": "second",
			},
		},
	}

	out, ok := MergeAllOf(in, nil)
	if !ok {
		t.Fatal("merge failed")
	}
	if out["type"] != "object" {
		t.Errorf("type = %v, first declaration should win", out["type"])
	}
	if out["description"] != "second" {
		t.Errorf("description = %v, last write should win", out["description"])
	}
	if out["title"] != "base" {
		t.Errorf("title = %v", out["title"])
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, out["required"]); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	props := out["properties"].(map[string]any)
	want := map[string]any{"type": "string", "minLength": 1, "maxLength": 5}
	if diff := cmp.Diff(want, props["a"]); diff != "" {
		t.Errorf("property a (-want +got):\n%s", diff)
	}
	if _, ok := out[AllOf]; ok {
		t.Error("allOf should be removed after merge")
	}

	// Input must be untouched.
	first := in["allOf"].([]any)[0].(map[string]any)
	if _, ok := first["properties"].(map[string]any)["a"].(map[string]any)["maxLength"]; ok {
		t.Error("merge mutated its input")
	}
}

func TestMergeAllOfResolvesRefs(t *testing.T) {
	defs := map[string]any{
		"#/definitions/Named": map[string]any{
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
		},
	}
	resolve := func(ref string) (any, bool) {
		v, ok := defs[ref]
		return v, ok
	}
	in := map[string]any{
		"allOf": []any{
			map[string]any{"$ref": "#/definitions/Named"},
			map[string]any{"properties": map[string]any{"age": map[string]any{"type": "integer"}}},
		},
	}
	out, ok := MergeAllOf(in, resolve)
	if !ok {
		t.Fatal("merge failed")
	}
	props := out["properties"].(map[string]any)
	if len(props) != 2 {
		t.Errorf("properties = %v", props)
	}
}

func TestMergeAllOfAbandonsUnresolvable(t *testing.T) {
	in := map[string]any{
		"allOf": []any{
			map[string]any{"$ref": "#/definitions/Missing"},
		},
	}
	if _, ok := MergeAllOf(in, func(string) (any, bool) { return nil, false }); ok {
		t.Error("unresolvable branch should abandon the merge")
	}
	n := Interpret(in, Options{MergeAllOf: true, Resolve: func(string) (any, bool) { return nil, false }})
	if n.Regular.Merged || len(n.Regular.Children) != 1 {
		t.Errorf("expected unmerged fallback, got %+v", n.Regular)
	}
}

func TestMergeAllOfSelfReference(t *testing.T) {
	var loop map[string]any
	loop = map[string]any{"allOf": []any{map[string]any{"$ref": "#/loop"}}}
	resolve := func(string) (any, bool) { return loop, true }
	if _, ok := MergeAllOf(loop, resolve); ok {
		t.Error("cyclic allOf should not merge")
	}
}
