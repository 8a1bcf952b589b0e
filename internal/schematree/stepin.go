package schematree

import "github.com/starford/schemaview/internal/schemanode"

// CanStepIn reports whether fragment is a wrapper that expansion may pass
// through transparently: a composition with a single branch and nothing
// else, or an array whose single items schema has structure of its own.
func CanStepIn(fragment any, opts schemanode.Options) bool {
	n := schemanode.Interpret(fragment, opts)
	if n.IsRef() || n.Regular == nil {
		return false
	}

	branches, others := 0, 0
	var items *schemanode.Child
	for i, c := range n.Regular.Children {
		switch {
		case c.Role == schemanode.RoleBranch:
			branches++
		case c.Role == schemanode.RoleItems && len(c.Segments) == 1:
			items = &n.Regular.Children[i]
			others++
		default:
			others++
		}
	}
	if branches == 1 && others == 0 {
		return true
	}
	if items != nil && others == 1 && branches == 0 {
		return schemanode.Interpret(items.Fragment, opts).HasStructure()
	}
	return false
}
