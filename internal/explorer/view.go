package explorer

import (
	"slices"
	"strconv"

	"github.com/starford/schemaview/internal/pointer"
	"github.com/starford/schemaview/internal/schemanode"
	"github.com/starford/schemaview/internal/tree"
)

// NodeView is the JSON shape of one tree node.
type NodeView struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Document    string   `json:"document,omitempty"`
	Depth       int      `json:"depth"`
	Kind        string   `json:"kind"`
	Ref         string   `json:"ref,omitempty"`
	Types       []string `json:"types,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Combiners   []string `json:"combiners,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Merged      bool     `json:"merged,omitempty"`
	Expandable  bool     `json:"expandable"`
	Expanded    bool     `json:"expanded"`
	Loaded      bool     `json:"loaded"`
}

// TreeView is a session and its visible rows.
type TreeView struct {
	ID                 string     `json:"id"`
	SchemaPath         string     `json:"schema_path"`
	ExpandedDepth      int        `json:"expanded_depth"`
	LimitPropertyCount *int       `json:"limit_property_count,omitempty"`
	Root               int        `json:"root"`
	Rows               []NodeView `json:"rows"`
}

// UnwrapView is the result of expanding a node.
type UnwrapView struct {
	Node     NodeView   `json:"node"`
	Children []NodeView `json:"children"`
}

// PropertiesView is a possibly truncated property listing.
type PropertiesView struct {
	IsOverflow bool       `json:"is_overflow"`
	Properties []NodeView `json:"properties"`
}

func (sess *session) view() *TreeView {
	st := sess.tree
	rows := st.Rows()
	out := &TreeView{
		ID:                 sess.id,
		SchemaPath:         sess.schemaPath,
		ExpandedDepth:      st.ExpandedDepth(),
		LimitPropertyCount: st.Limit(),
		Root:               int(st.Root()),
		Rows:               make([]NodeView, 0, len(rows)),
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, sess.nodeView(r.ID))
	}
	return out
}

func (sess *session) nodeView(id tree.NodeID) NodeView {
	st := sess.tree
	t := st.Tree()
	v := NodeView{
		ID:         int(id),
		Depth:      t.Depth(id),
		Expandable: t.IsParent(id),
		Expanded:   t.IsOpen(id, st.ExpandedDepth()+1),
		Loaded:     st.Visited(id) || t.HasChildren(id),
	}
	md, ok := st.Metadata(id)
	if !ok {
		return v
	}
	v.Name = nodeName(md.Path)
	v.Path = md.Path.Fragment()
	v.Document = md.Document
	v.Kind = md.SchemaNode.Kind.String()
	if md.SchemaNode.IsRef() {
		if md.SchemaNode.Ref != nil {
			v.Ref = *md.SchemaNode.Ref
		}
	} else if r := md.SchemaNode.Regular; r != nil {
		v.Types = r.Types
		v.Title = r.Title
		v.Description = r.Description
		v.Format = r.Format
		v.Combiners = r.Combiners
		v.Merged = r.Merged
	}
	v.Required = isRequired(sess, id, md.Path)
	return v
}

// nodeName derives a display name from a node's path: the property key,
// or keyword[index] for combiner branches and tuple items.
func nodeName(p pointer.Path) string {
	n := len(p)
	if n == 0 {
		return "#"
	}
	last := p[n-1].Key()
	if n >= 2 {
		if _, err := strconv.Atoi(last); err == nil {
			switch kw := p[n-2].Key(); kw {
			case schemanode.AllOf, schemanode.OneOf, schemanode.AnyOf, "items":
				return kw + "[" + last + "]"
			}
		}
	}
	return last
}

// isRequired reports whether id is a property its parent lists as required.
func isRequired(sess *session, id tree.NodeID, p pointer.Path) bool {
	n := len(p)
	if n < 2 || p[n-2].Key() != "properties" {
		return false
	}
	md, ok := sess.tree.Metadata(sess.tree.Tree().Parent(id))
	if !ok || md.SchemaNode.Regular == nil {
		return false
	}
	return slices.Contains(md.SchemaNode.Regular.Required, p[n-1].Key())
}
