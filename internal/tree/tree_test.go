package tree

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func build(t *testing.T) (*Tree, NodeID, NodeID, NodeID) {
	t.Helper()
	tr := New()
	a := tr.NewParent()
	b := tr.NewLeaf()
	c := tr.NewParent()
	if err := tr.Append(Root, a); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tr.Append(a, b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tr.Append(a, c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return tr, a, b, c
}

func TestAppendAndDepth(t *testing.T) {
	tr, a, b, c := build(t)
	if diff := cmp.Diff([]NodeID{b, c}, tr.Children(a)); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
	if tr.Depth(a) != 0 || tr.Depth(b) != 1 {
		t.Errorf("depths = %d, %d", tr.Depth(a), tr.Depth(b))
	}
	if tr.Parent(c) != a {
		t.Errorf("parent(c) = %d", tr.Parent(c))
	}
	if got := tr.Depth(tr.NewParent()); got != -1 {
		t.Errorf("detached depth = %d, want -1", got)
	}
}

func TestAppendRejectsLeafParent(t *testing.T) {
	tr, _, b, _ := build(t)
	if err := tr.Append(b, tr.NewLeaf()); err == nil {
		t.Error("appending under a leaf should fail")
	}
}

func TestAppendRejectsAttached(t *testing.T) {
	tr, a, b, _ := build(t)
	if err := tr.Append(a, b); err == nil {
		t.Error("appending an attached node should fail")
	}
}

func TestReplaceChildrenMovesNodes(t *testing.T) {
	tr, a, b, c := build(t)
	d := tr.NewLeaf()
	_ = tr.Append(c, d)

	// Move d from c to a, dropping b and c.
	if err := tr.ReplaceChildren(a, []NodeID{d}); err != nil {
		t.Fatalf("ReplaceChildren: %v", err)
	}
	if diff := cmp.Diff([]NodeID{d}, tr.Children(a)); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
	if tr.HasChildren(c) {
		t.Error("d should be detached from its previous parent")
	}
	if tr.Parent(b) != None {
		t.Error("replaced child should be detached")
	}
}

func TestChildSeqStopsEarly(t *testing.T) {
	tr, a, b, _ := build(t)
	var got []NodeID
	for id := range tr.ChildSeq(a) {
		got = append(got, id)
		break
	}
	if !slices.Equal(got, []NodeID{b}) {
		t.Errorf("got %v", got)
	}
}

func TestReleaseSubtree(t *testing.T) {
	tr, a, b, c := build(t)
	tr.Release(a)
	for _, id := range []NodeID{a, b, c} {
		if tr.Has(id) {
			t.Errorf("node %d still live", id)
		}
	}
	if tr.HasChildren(Root) {
		t.Error("root should have no children")
	}
}

func TestRowsProjection(t *testing.T) {
	tr, a, b, c := build(t)
	d := tr.NewLeaf()
	_ = tr.Append(c, d)

	rows := tr.Rows(1)
	var ids []NodeID
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	// a expanded by default (depth 0 < 1); c collapsed (depth 1).
	if diff := cmp.Diff([]NodeID{a, b, c}, ids); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	tr.SetExpanded(c, true)
	rows = tr.Rows(1)
	if len(rows) != 4 || rows[3].ID != d || rows[3].Depth != 2 {
		t.Errorf("rows after expand = %+v", rows)
	}

	tr.SetExpansionState(map[NodeID]bool{a: false})
	if rows := tr.Rows(1); len(rows) != 1 {
		t.Errorf("collapsed root rows = %+v", rows)
	}
}

func TestRowsCacheInvalidatedByMutation(t *testing.T) {
	tr, a, _, _ := build(t)
	before := len(tr.Rows(5))
	_ = tr.Append(a, tr.NewLeaf())
	if after := len(tr.Rows(5)); after != before+1 {
		t.Errorf("rows = %d, want %d", after, before+1)
	}
}
