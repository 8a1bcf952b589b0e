package schematree

import (
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/schemaview/internal/schemanode"
	"github.com/starford/schemaview/internal/tree"
)

// countingSeq yields ids and records how many were pulled.
func countingSeq(ids []tree.NodeID, pulled *int) iter.Seq[tree.NodeID] {
	return func(yield func(tree.NodeID) bool) {
		for _, id := range ids {
			*pulled++
			if !yield(id) {
				return
			}
		}
	}
}

func intp(n int) *int { return &n }

func TestListProperties(t *testing.T) {
	ids := []tree.NodeID{1, 2, 3, 4, 5}
	tests := []struct {
		name       string
		ids        []tree.NodeID
		limit      *int
		want       []tree.NodeID
		overflow   bool
		wantPulled int
	}{
		{"unbounded", ids, nil, ids, false, 5},
		{"truncated", ids, intp(2), []tree.NodeID{1, 2}, true, 3},
		{"exact fit", ids, intp(5), ids, false, 5},
		{"limit above count", ids, intp(10), ids, false, 5},
		{"zero limit", ids, intp(0), nil, true, 1},
		{"empty input", nil, intp(0), nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pulled := 0
			got := ListProperties(countingSeq(tt.ids, &pulled), tt.limit)
			if diff := cmp.Diff(tt.want, got.Properties); diff != "" {
				t.Errorf("properties (-want +got):\n%s", diff)
			}
			if got.IsOverflow != tt.overflow {
				t.Errorf("IsOverflow = %v, want %v", got.IsOverflow, tt.overflow)
			}
			if pulled != tt.wantPulled {
				t.Errorf("pulled %d items, want %d", pulled, tt.wantPulled)
			}
		})
	}
}

func TestTopLevelPropertiesHonorLimit(t *testing.T) {
	st := populated(t, `{"type": "object", "properties": {
		"a": {"type": "string"}, "b": {"type": "string"}, "c": {"type": "string"}
	}}`, WithLimitPropertyCount(2))

	list := ListProperties(st.TopLevelProperties(), st.Limit())
	if diff := cmp.Diff([]string{"/properties/a", "/properties/b"}, pathsOf(st, list.Properties)); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}
	if !list.IsOverflow {
		t.Error("third property should overflow")
	}
	if got := st.Properties(st.Root()); len(got.Properties) != 2 || !got.IsOverflow {
		t.Errorf("Properties = %+v", got)
	}
}

func TestTopLevelPropertiesBeforePopulate(t *testing.T) {
	st := New(map[string]any{"type": "object"})
	for range st.TopLevelProperties() {
		t.Fatal("unpopulated tree should yield nothing")
	}
}

func TestCanStepIn(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"single branch", `{"allOf": [{"type": "object"}]}`, true},
		{"two branches", `{"oneOf": [{"type": "object"}, {"type": "string"}]}`, false},
		{"array of objects", `{"type": "array", "items": {"type": "object", "properties": {}}}`, true},
		{"array of scalars", `{"type": "array", "items": {"type": "string"}}`, false},
		{"array of refs", `{"type": "array", "items": {"$ref": "#/x"}}`, true},
		{"tuple", `{"type": "array", "items": [{"type": "object"}]}`, false},
		{"reference", `{"$ref": "#/x"}`, false},
		{"branch with properties", `{"properties": {"a": {}}, "anyOf": [{}]}`, false},
		{"scalar", `{"type": "string"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanStepIn(decode(t, tt.src), schemanode.Options{}); got != tt.want {
				t.Errorf("CanStepIn = %v, want %v", got, tt.want)
			}
		})
	}
}
