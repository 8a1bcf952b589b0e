package tree

// SetExpansionState replaces the expansion map wholesale. Nodes missing from
// the map fall back to the default depth passed to Rows.
func (t *Tree) SetExpansionState(state map[NodeID]bool) {
	t.expanded = make(map[NodeID]bool, len(state))
	for k, v := range state {
		t.expanded[k] = v
	}
	t.InvalidateProjection()
}

// SetExpanded records an explicit expansion flag for id.
func (t *Tree) SetExpanded(id NodeID, expanded bool) {
	t.expanded[id] = expanded
	t.InvalidateProjection()
}

// IsExpanded returns the explicit flag for id and whether one is recorded.
func (t *Tree) IsExpanded(id NodeID) (expanded, ok bool) {
	expanded, ok = t.expanded[id]
	return expanded, ok
}

// ExpansionState returns a copy of the explicit expansion flags.
func (t *Tree) ExpansionState() map[NodeID]bool {
	out := make(map[NodeID]bool, len(t.expanded))
	for k, v := range t.expanded {
		out[k] = v
	}
	return out
}

// Row is one visible line of the flattened projection.
type Row struct {
	ID       NodeID
	Depth    int
	Expanded bool
}

// InvalidateProjection drops the cached rows.
func (t *Tree) InvalidateProjection() {
	t.rowsValid = false
	t.rows = nil
}

// Rows flattens the visible part of the tree. A parent's children are
// visible when it is expanded: explicitly via the expansion state, or by
// default when its depth is below defaultExpandedDepth. The result is
// cached until the tree or its expansion state changes.
func (t *Tree) Rows(defaultExpandedDepth int) []Row {
	if t.rowsValid && t.rowsDepth == defaultExpandedDepth {
		return t.rows
	}
	var rows []Row
	var visit func(NodeID, int)
	visit = func(id NodeID, depth int) {
		open := t.expandedAt(id, depth, defaultExpandedDepth)
		rows = append(rows, Row{ID: id, Depth: depth, Expanded: open})
		if !open {
			return
		}
		for _, c := range t.nodes[id].children {
			visit(c, depth+1)
		}
	}
	for _, c := range t.nodes[Root].children {
		visit(c, 0)
	}
	t.rows = rows
	t.rowsDepth = defaultExpandedDepth
	t.rowsValid = true
	return rows
}

func (t *Tree) expandedAt(id NodeID, depth, defaultDepth int) bool {
	if !t.nodes[id].isParent {
		return false
	}
	if v, ok := t.expanded[id]; ok {
		return v
	}
	return depth < defaultDepth
}

// IsOpen reports whether id would be expanded in Rows(defaultExpandedDepth).
func (t *Tree) IsOpen(id NodeID, defaultExpandedDepth int) bool {
	if !t.Has(id) {
		return false
	}
	return t.expandedAt(id, t.Depth(id), defaultExpandedDepth)
}
