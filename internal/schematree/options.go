package schematree

import (
	"log/slog"

	"github.com/starford/schemaview/internal/pointer"
)

// Resolver maps a parsed $ref to the fragment it targets. base names the
// document the reference appeared in, "" for the tree's own document. The
// returned document names the one target belongs to, in the same terms, and
// becomes the base for references found inside target. Returning false
// means the target is absent.
type Resolver func(base string, ref pointer.Ref) (target any, document string, ok bool)

// Option configures a SchemaTree.
type Option func(*SchemaTree)

// WithExpandedDepth sets how many levels populate materializes (plus one).
func WithExpandedDepth(depth int) Option {
	return func(st *SchemaTree) {
		if depth >= 0 {
			st.expandedDepth = depth
		}
	}
}

// WithMergeAllOf enables folding allOf compositions into a single node.
func WithMergeAllOf(enabled bool) Option {
	return func(st *SchemaTree) { st.mergeAllOf = enabled }
}

// WithResolver installs a custom reference resolver. Without one, only
// references within the tree's own document resolve, by structural lookup
// on the root.
func WithResolver(r Resolver) Option {
	return func(st *SchemaTree) { st.resolver = r }
}

// WithLimitPropertyCount bounds Properties listings. Negative values are
// ignored.
func WithLimitPropertyCount(n int) Option {
	return func(st *SchemaTree) {
		if n >= 0 {
			st.limit = &n
		}
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(st *SchemaTree) {
		if l != nil {
			st.logger = l
		}
	}
}
