package pointer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPathString(t *testing.T) {
	p := Path{Key("properties"), Key("a/b"), Key("x~y"), Index(2)}
	if got, want := p.String(), "/properties/a~1b/x~0y/2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (Path{}).String(); got != "" {
		t.Errorf("root pointer = %q, want empty", got)
	}
	if got := (Path{Key("definitions")}).Fragment(); got != "#/definitions" {
		t.Errorf("Fragment() = %q", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	p, err := Parse("/properties/a~1b/x~0y")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"properties", "a/b", "x~y"}
	var got []string
	for _, s := range p {
		got = append(got, s.Key())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsRelative(t *testing.T) {
	if _, err := Parse("properties/a"); err == nil {
		t.Fatal("expected error for pointer without leading slash")
	}
}

func TestChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = Key("properties")
	a := base.Child(Key("a"))
	b := base.Child(Key("b"))
	if a[1].Key() != "a" || b[1].Key() != "b" {
		t.Errorf("children aliased: a=%s b=%s", a, b)
	}
}

func TestEqualIndexAndKey(t *testing.T) {
	parsed, _ := Parse("/oneOf/0")
	built := Path{Key("oneOf"), Index(0)}
	if !parsed.Equal(built) {
		t.Errorf("%s should equal %s", parsed, built)
	}
	if parsed.Equal(Path{Key("oneOf")}) {
		t.Error("paths of different length must differ")
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		raw     string
		doc     string
		pointer string
		local   bool
	}{
		{"#/definitions/Foo", "", "/definitions/Foo", true},
		{"#", "", "", true},
		{"common.json#/Bar", "common.json", "/Bar", false},
		{"common.json", "common.json", "", false},
	}
	for _, tt := range tests {
		r, err := ParseRef(tt.raw)
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", tt.raw, err)
		}
		if r.Document != tt.doc || r.Path.String() != tt.pointer || r.IsLocal() != tt.local {
			t.Errorf("ParseRef(%q) = %+v", tt.raw, r)
		}
	}
}

func TestLookup(t *testing.T) {
	root := map[string]any{
		"definitions": map[string]any{
			"Foo": map[string]any{"type": "string"},
		},
		"oneOf": []any{
			map[string]any{"type": "number"},
		},
	}
	v, ok := Lookup(root, Path{Key("definitions"), Key("Foo")})
	if !ok {
		t.Fatal("Foo not found")
	}
	if v.(map[string]any)["type"] != "string" {
		t.Errorf("Foo = %v", v)
	}

	parsed, _ := Parse("/oneOf/0")
	if _, ok := Lookup(root, parsed); !ok {
		t.Error("numeric key segment should index arrays")
	}
	if _, ok := Lookup(root, Path{Key("oneOf"), Index(3)}); ok {
		t.Error("out of range index should miss")
	}
	if _, ok := Lookup(root, Path{Key("definitions"), Key("Bar")}); ok {
		t.Error("missing key should miss")
	}
	if got, ok := Lookup(root, Path{}); !ok || got == nil {
		t.Error("empty path should return root")
	}
}
