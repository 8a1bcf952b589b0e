package schematree

import (
	"fmt"

	"github.com/starford/schemaview/internal/pointer"
	"github.com/starford/schemaview/internal/schemanode"
	"github.com/starford/schemaview/internal/tree"
)

// Visit describes a node just created by a population pass.
type Visit struct {
	ID       tree.NodeID
	Parent   tree.NodeID
	Level    int
	Path     pointer.Path
	Document string
	Fragment any
	Node     schemanode.Node
}

// Decision is what a Policy wants done with a visited node.
type Decision struct {
	Descend  bool
	Collapse bool
}

// Policy decides, per node, whether population continues below it and
// whether it starts out collapsed.
type Policy func(Visit) Decision

// Result summarizes one population pass.
type Result struct {
	// Root is the first node created, tree.None if nothing was created.
	Root      tree.NodeID
	Collapsed []tree.NodeID
	Created   int
}

// populate builds nodes for fragment and, as the policy allows, its
// structural descendants, attaching them under parent. Every node built
// belongs to doc.
func (st *SchemaTree) populate(fragment any, parent tree.NodeID, level int, path pointer.Path, doc string, policy Policy) (Result, error) {
	res := Result{Root: tree.None}
	err := st.populateNode(fragment, parent, level, path, doc, policy, &res)
	return res, err
}

func (st *SchemaTree) populateNode(fragment any, parent tree.NodeID, level int, path pointer.Path, doc string, policy Policy, res *Result) error {
	node := schemanode.Interpret(fragment, st.interpretOptions(doc))

	var id tree.NodeID
	if node.HasStructure() {
		id = st.tree.NewParent()
	} else {
		id = st.tree.NewLeaf()
	}
	st.meta.Set(id, &Metadata{
		Path:           path,
		Document:       doc,
		Schema:         st.root,
		SchemaNode:     node,
		SchemaFragment: fragment,
	})
	if err := st.tree.Append(parent, id); err != nil {
		st.meta.Delete(id)
		return fmt.Errorf("populate %s: %w", path.Fragment(), err)
	}
	res.Created++
	if res.Root == tree.None {
		res.Root = id
	}

	d := policy(Visit{ID: id, Parent: parent, Level: level, Path: path, Document: doc, Fragment: fragment, Node: node})
	if d.Collapse {
		res.Collapsed = append(res.Collapsed, id)
	}
	if !d.Descend || node.IsRef() {
		return nil
	}
	for _, c := range node.Regular.Children {
		if err := st.populateNode(c.Fragment, id, level+1, path.Child(c.Segments...), doc, policy, res); err != nil {
			return err
		}
	}
	return nil
}

// populatePolicy drives the initial build: references are never followed
// and start collapsed when local, and regular nodes are descended while
// within the configured depth.
func (st *SchemaTree) populatePolicy(v Visit) Decision {
	if v.Node.IsRef() {
		local := false
		if v.Node.Ref != nil {
			if ref, err := pointer.ParseRef(*v.Node.Ref); err == nil {
				local = ref.IsLocal()
			}
		}
		return Decision{Collapse: local}
	}
	return Decision{Descend: v.Level <= st.expandedDepth+1}
}

// stepInPolicy drives an on-demand expansion that started at initialLevel.
// It catches up to the standing depth and lets a single extra level through
// when the node is a transparent wrapper.
func (st *SchemaTree) stepInPolicy(initialLevel int) Policy {
	return func(v Visit) Decision {
		if v.Node.IsRef() {
			return Decision{}
		}
		if v.Level <= max(st.expandedDepth, initialLevel) {
			return Decision{Descend: true}
		}
		if v.Level == initialLevel+1 && CanStepIn(v.Fragment, st.interpretOptions(v.Document)) {
			return Decision{Descend: true}
		}
		return Decision{}
	}
}
