// Package tree is a minimal ordered tree container with per-node expansion
// state and a cached flattened projection of the visible rows.
//
// A Tree is not safe for concurrent use.
package tree

import (
	"fmt"
	"iter"
)

// NodeID is a stable handle for a node. Handles are never reused within a
// Tree, so they remain valid keys for side tables.
type NodeID int

// Root is the handle of the artificial root created by New.
const Root NodeID = 0

// None marks the absence of a node (e.g. the parent of a detached node).
const None NodeID = -1

type node struct {
	parent   NodeID
	children []NodeID
	isParent bool
	released bool
}

// Tree holds nodes in insertion order.
type Tree struct {
	nodes    []node
	expanded map[NodeID]bool

	rows      []Row
	rowsDepth int
	rowsValid bool
}

// New returns a tree containing only the artificial root.
func New() *Tree {
	t := &Tree{expanded: make(map[NodeID]bool)}
	t.nodes = append(t.nodes, node{parent: None, isParent: true})
	return t
}

// NewParent allocates a detached parent node.
func (t *Tree) NewParent() NodeID { return t.alloc(true) }

// NewLeaf allocates a detached leaf node.
func (t *Tree) NewLeaf() NodeID { return t.alloc(false) }

func (t *Tree) alloc(isParent bool) NodeID {
	t.nodes = append(t.nodes, node{parent: None, isParent: isParent})
	return NodeID(len(t.nodes) - 1)
}

// Len returns the number of allocated handles, released ones included.
func (t *Tree) Len() int { return len(t.nodes) }

// Has reports whether id is a live node of t.
func (t *Tree) Has(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].released
}

// IsParent reports whether id can hold children.
func (t *Tree) IsParent(id NodeID) bool {
	return t.Has(id) && t.nodes[id].isParent
}

// Parent returns the parent of id, or None for the root and detached nodes.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.Has(id) {
		return None
	}
	return t.nodes[id].parent
}

// Append attaches child as the last child of parent.
func (t *Tree) Append(parent, child NodeID) error {
	if err := t.checkAttach(parent, child); err != nil {
		return err
	}
	t.nodes[parent].children = append(t.nodes[parent].children, child)
	t.nodes[child].parent = parent
	t.InvalidateProjection()
	return nil
}

// ReplaceChildren makes children the complete child list of parent. Former
// children are detached but not released.
func (t *Tree) ReplaceChildren(parent NodeID, children []NodeID) error {
	if !t.IsParent(parent) {
		return fmt.Errorf("tree: node %d is not a parent", parent)
	}
	for _, c := range children {
		if !t.Has(c) {
			return fmt.Errorf("tree: unknown node %d", c)
		}
	}
	for _, old := range t.nodes[parent].children {
		t.nodes[old].parent = None
	}
	list := make([]NodeID, len(children))
	copy(list, children)
	for _, c := range list {
		if prev := t.nodes[c].parent; prev != None && prev != parent {
			t.detach(prev, c)
		}
		t.nodes[c].parent = parent
	}
	t.nodes[parent].children = list
	t.InvalidateProjection()
	return nil
}

func (t *Tree) checkAttach(parent, child NodeID) error {
	if !t.IsParent(parent) {
		return fmt.Errorf("tree: node %d is not a parent", parent)
	}
	if !t.Has(child) {
		return fmt.Errorf("tree: unknown node %d", child)
	}
	if t.nodes[child].parent != None {
		return fmt.Errorf("tree: node %d is already attached", child)
	}
	return nil
}

func (t *Tree) detach(parent, child NodeID) {
	kids := t.nodes[parent].children
	for i, c := range kids {
		if c == child {
			t.nodes[parent].children = append(kids[:i:i], kids[i+1:]...)
			return
		}
	}
}

// Children returns a copy of id's children.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.Has(id) {
		return nil
	}
	return append([]NodeID(nil), t.nodes[id].children...)
}

// ChildSeq yields the children of id lazily.
func (t *Tree) ChildSeq(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !t.Has(id) {
			return
		}
		for _, c := range t.nodes[id].children {
			if !yield(c) {
				return
			}
		}
	}
}

// HasChildren reports whether id currently has at least one child.
func (t *Tree) HasChildren(id NodeID) bool {
	return t.Has(id) && len(t.nodes[id].children) > 0
}

// Depth returns the number of edges between id and the artificial root,
// minus one: direct children of the root are at depth 0. Detached nodes
// report -1.
func (t *Tree) Depth(id NodeID) int {
	d := -1
	for cur := id; cur != Root; cur = t.nodes[cur].parent {
		if !t.Has(cur) || t.nodes[cur].parent == None {
			return -1
		}
		d++
	}
	return d
}

// Release detaches id and marks it and its subtree as dead.
func (t *Tree) Release(id NodeID) {
	if !t.Has(id) || id == Root {
		return
	}
	if p := t.nodes[id].parent; p != None {
		t.detach(p, id)
	}
	var walk func(NodeID)
	walk = func(n NodeID) {
		for _, c := range t.nodes[n].children {
			walk(c)
		}
		t.nodes[n] = node{parent: None, released: true}
		delete(t.expanded, n)
	}
	walk(id)
	t.InvalidateProjection()
}

// Walk visits id and its descendants depth-first, parents before children.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	var visit func(NodeID, int) bool
	visit = func(n NodeID, depth int) bool {
		if !fn(n, depth) {
			return false
		}
		for _, c := range t.nodes[n].children {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	if t.Has(id) {
		visit(id, t.Depth(id))
	}
}
