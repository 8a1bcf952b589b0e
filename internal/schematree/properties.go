package schematree

import (
	"iter"

	"github.com/starford/schemaview/internal/tree"
)

// PropertyList is a possibly truncated listing of property nodes.
type PropertyList struct {
	IsOverflow bool
	Properties []tree.NodeID
}

// ListProperties collects nodes from seq until limit is exhausted. A nil
// limit takes everything. The sequence is not consumed past the first node
// that does not fit.
func ListProperties(seq iter.Seq[tree.NodeID], limit *int) PropertyList {
	var out PropertyList
	if limit == nil {
		for id := range seq {
			out.Properties = append(out.Properties, id)
		}
		return out
	}

	remaining := *limit
	for id := range seq {
		remaining--
		if remaining < 0 {
			out.IsOverflow = true
			break
		}
		out.Properties = append(out.Properties, id)
	}
	return out
}

// TopLevelProperties yields the children of the document root node.
func (st *SchemaTree) TopLevelProperties() iter.Seq[tree.NodeID] {
	return st.tree.ChildSeq(st.top)
}

// Properties lists the children of id under the configured limit.
func (st *SchemaTree) Properties(id tree.NodeID) PropertyList {
	return ListProperties(st.tree.ChildSeq(id), st.limit)
}

// Limit returns the configured property limit, nil when unbounded.
func (st *SchemaTree) Limit() *int { return st.limit }
