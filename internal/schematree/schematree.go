// Package schematree materializes a JSON Schema document as a lazily
// populated tree. Populate builds the first few levels; Unwrap expands a
// single node on demand, following $ref targets one hop at a time so that
// cyclic schemas never recurse.
//
// A SchemaTree is not safe for concurrent use.
package schematree

import (
	"fmt"
	"log/slog"

	"github.com/starford/schemaview/internal/pointer"
	"github.com/starford/schemaview/internal/schemanode"
	"github.com/starford/schemaview/internal/tree"
)

// SchemaTree owns a tree, its metadata store and its visited set.
type SchemaTree struct {
	root          any
	expandedDepth int
	mergeAllOf    bool
	resolver      Resolver
	limit         *int
	logger        *slog.Logger

	tree    *tree.Tree
	meta    *MetadataStore
	visited map[tree.NodeID]struct{}
	top     tree.NodeID
}

// New returns a SchemaTree for the decoded document root. Nothing is built
// until Populate is called.
func New(root any, opts ...Option) *SchemaTree {
	st := &SchemaTree{
		root:    root,
		logger:  slog.New(slog.DiscardHandler),
		tree:    tree.New(),
		meta:    NewMetadataStore(),
		visited: make(map[tree.NodeID]struct{}),
		top:     tree.None,
	}
	for _, o := range opts {
		o(st)
	}
	return st
}

// Populate discards any existing nodes and rebuilds the tree from the
// document root down to the configured depth. Local references found on the
// way start collapsed.
func (st *SchemaTree) Populate() error {
	st.tree = tree.New()
	st.meta = NewMetadataStore()
	st.visited = make(map[tree.NodeID]struct{})
	st.top = tree.None

	res, err := st.populate(st.root, tree.Root, 0, pointer.Path{}, "", st.populatePolicy)
	if err != nil {
		return err
	}
	state := make(map[tree.NodeID]bool, len(res.Collapsed))
	for _, id := range res.Collapsed {
		state[id] = false
	}
	st.tree.SetExpansionState(state)
	st.top = res.Root

	st.logger.Debug("schematree: populated",
		slog.Int("nodes", res.Created),
		slog.Int("collapsed", len(res.Collapsed)),
		slog.Int("expanded_depth", st.expandedDepth),
	)
	return nil
}

// Unwrap materializes the children of id. It is idempotent: a node that
// already has children returns them unchanged. A failed expansion leaves
// the node as it was.
func (st *SchemaTree) Unwrap(id tree.NodeID) ([]tree.NodeID, error) {
	if !st.tree.Has(id) {
		return nil, fmt.Errorf("unwrap node %d: %w", id, ErrUnknownNode)
	}
	if !st.tree.IsParent(id) {
		return nil, fmt.Errorf("unwrap node %d: %w", id, ErrNotExpandable)
	}
	if st.tree.HasChildren(id) {
		return st.tree.Children(id), nil
	}
	md, ok := st.meta.Get(id)
	if !ok {
		return nil, fmt.Errorf("unwrap node %d: %w", id, ErrUnknownNode)
	}

	level := st.tree.Depth(id)
	var (
		children []tree.NodeID
		err      error
	)
	switch {
	case !md.SchemaNode.IsRef():
		children, err = st.populateTreeFragment(md.SchemaFragment, id, md.Path, md.Document, level, level)
	case md.SchemaNode.Ref == nil:
		err = &NullReferenceError{Path: md.Path}
	default:
		raw := *md.SchemaNode.Ref
		ref, perr := pointer.ParseRef(raw)
		if perr != nil {
			err = &UnresolvedReferenceError{Pointer: raw, Cause: perr}
			break
		}
		target, doc, ok := st.resolve(md.Document, ref)
		if _, isObject := target.(map[string]any); !ok || !isObject {
			err = &UnresolvedReferenceError{Pointer: raw}
			break
		}
		children, err = st.populateTreeFragment(target, id, ref.Path, doc, level+1, level+1)
	}
	if err != nil {
		st.logger.Debug("schematree: unwrap failed",
			slog.Int("node", int(id)),
			slog.String("path", md.Path.Fragment()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	st.visited[id] = struct{}{}
	return children, nil
}

// populateTreeFragment builds fragment, found at path in doc, under a
// scratch parent and splices the result under target. When the first node
// built is the wrapper for target itself, its children are spliced instead
// and the wrapper is dropped.
func (st *SchemaTree) populateTreeFragment(fragment any, target tree.NodeID, path pointer.Path, doc string, startLevel, initialLevel int) ([]tree.NodeID, error) {
	scratch := st.tree.NewParent()
	defer st.releaseSubtree(scratch)

	if _, err := st.populate(fragment, scratch, startLevel, path, doc, st.stepInPolicy(initialLevel)); err != nil {
		return nil, err
	}

	spliced := st.tree.Children(scratch)
	if len(spliced) > 0 && st.tree.IsParent(spliced[0]) {
		wrapper := spliced[0]
		targetMeta, _ := st.meta.Get(target)
		wrapperMeta, _ := st.meta.Get(wrapper)
		if targetMeta != nil && wrapperMeta != nil && wrapperMeta.Document == targetMeta.Document && wrapperMeta.Path.Equal(targetMeta.Path) {
			spliced = st.tree.Children(wrapper)
		}
	}
	if len(spliced) == 0 {
		return nil, &EmptyExpansionError{Path: path}
	}
	if err := st.tree.ReplaceChildren(target, spliced); err != nil {
		return nil, fmt.Errorf("splice into node %d: %w", target, err)
	}
	return spliced, nil
}

// releaseSubtree drops id, its descendants and their metadata.
func (st *SchemaTree) releaseSubtree(id tree.NodeID) {
	st.tree.Walk(id, func(n tree.NodeID, _ int) bool {
		st.meta.Delete(n)
		delete(st.visited, n)
		return true
	})
	st.tree.Release(id)
}

// resolve looks up ref as written in document base.
func (st *SchemaTree) resolve(base string, ref pointer.Ref) (any, string, bool) {
	if st.resolver != nil {
		return st.resolver(base, ref)
	}
	if base != "" || !ref.IsLocal() {
		return nil, "", false
	}
	target, ok := pointer.Lookup(st.root, ref.Path)
	return target, "", ok
}

// interpretOptions returns the options for interpreting fragments of doc.
func (st *SchemaTree) interpretOptions(doc string) schemanode.Options {
	return schemanode.Options{
		MergeAllOf: st.mergeAllOf,
		Resolve: func(raw string) (any, bool) {
			ref, err := pointer.ParseRef(raw)
			if err != nil {
				return nil, false
			}
			target, _, ok := st.resolve(doc, ref)
			return target, ok
		},
	}
}

// SetExpandedDepth changes the depth used by later population passes and by
// the row projection.
func (st *SchemaTree) SetExpandedDepth(depth int) {
	if depth < 0 || depth == st.expandedDepth {
		return
	}
	st.expandedDepth = depth
	st.tree.InvalidateProjection()
}

func (st *SchemaTree) ExpandedDepth() int { return st.expandedDepth }

// Tree exposes the underlying container.
func (st *SchemaTree) Tree() *tree.Tree { return st.tree }

// Root returns the node built for the document root, tree.None before
// Populate.
func (st *SchemaTree) Root() tree.NodeID { return st.top }

// Document returns the decoded schema the tree was built from.
func (st *SchemaTree) Document() any { return st.root }

// Metadata returns the record for id.
func (st *SchemaTree) Metadata(id tree.NodeID) (*Metadata, bool) { return st.meta.Get(id) }

// Visited reports whether Unwrap has expanded id. Only expansions that
// produced children are recorded; a failed or empty one leaves id
// unvisited so it can be retried.
func (st *SchemaTree) Visited(id tree.NodeID) bool {
	_, ok := st.visited[id]
	return ok
}

// Rows returns the visible rows. Nodes up to the expanded depth are open
// unless their expansion state says otherwise.
func (st *SchemaTree) Rows() []tree.Row { return st.tree.Rows(st.expandedDepth + 1) }
