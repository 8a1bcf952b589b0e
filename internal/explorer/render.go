package explorer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/starford/schemaview/internal/schematree"
)

// Render writes the visible rows of st as an indented outline. Parents are
// marked "-" when open and "+" when closed; required properties carry "*".
func Render(w io.Writer, st *schematree.SchemaTree) error {
	sess := &session{tree: st}
	for _, r := range st.Rows() {
		if _, err := fmt.Fprintln(w, formatRow(sess.nodeView(r.ID))); err != nil {
			return err
		}
	}
	return nil
}

// RenderTree writes the outline of an open tree session.
func (s *Service) RenderTree(_ context.Context, id string, w io.Writer) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()
	return Render(w, sess.tree)
}

func formatRow(v NodeView) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", max(v.Depth, 0)))
	switch {
	case !v.Expandable:
		b.WriteString("  ")
	case v.Expanded:
		b.WriteString("- ")
	default:
		b.WriteString("+ ")
	}
	b.WriteString(v.Name)
	if v.Required {
		b.WriteByte('*')
	}
	switch {
	case v.Kind == "ref":
		b.WriteString(" -> ")
		if v.Ref == "" {
			b.WriteString("<invalid>")
		} else {
			b.WriteString(v.Ref)
		}
	case len(v.Types) > 0:
		b.WriteString(": ")
		b.WriteString(strings.Join(v.Types, "|"))
	}
	if len(v.Combiners) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(v.Combiners, ", "))
		b.WriteByte(')')
	}
	return b.String()
}
