package explorer

import (
	"github.com/starford/schemaview/internal/parser"
	"github.com/starford/schemaview/internal/pointer"
	"github.com/starford/schemaview/internal/storage"
)

// documentResolver resolves $ref targets for one session. A reference is
// read relative to the document it appears in: same-document pointers look
// inside that document, relative file references load the sibling catalog
// file. Loaded documents are cached for the lifetime of the session.
type documentResolver struct {
	store  storage.Provider
	source string
	root   any
	docs   map[string]any
	// wanted records every file a reference pointed at, including ones that
	// failed to load, so that creating them later invalidates the session.
	wanted map[string]struct{}
}

func newDocumentResolver(store storage.Provider, source string, root any) *documentResolver {
	return &documentResolver{
		store:  store,
		source: source,
		root:   root,
		docs:   make(map[string]any),
		wanted: make(map[string]struct{}),
	}
}

// Resolve implements schematree.Resolver. Documents are named by catalog
// path, with "" standing for the session's own schema.
func (r *documentResolver) Resolve(base string, ref pointer.Ref) (any, string, bool) {
	name := base
	if name == "" {
		name = r.source
	}
	if !ref.IsLocal() {
		target, ok := parser.ResolveDocument(name, ref.Raw)
		if !ok {
			return nil, "", false
		}
		name = target
	}

	doc, ok := r.document(name)
	if !ok {
		return nil, "", false
	}
	target, ok := pointer.Lookup(doc, ref.Path)
	if !ok {
		return nil, "", false
	}
	if name == r.source {
		name = ""
	}
	return target, name, true
}

func (r *documentResolver) document(name string) (any, bool) {
	if name == r.source {
		return r.root, true
	}
	r.wanted[name] = struct{}{}
	if doc, ok := r.docs[name]; ok {
		return doc, true
	}
	data, err := r.store.Read(name)
	if err != nil {
		return nil, false
	}
	doc, err := parser.Decode(name, data)
	if err != nil {
		return nil, false
	}
	r.docs[name] = doc
	return doc, true
}

// Loaded reports whether resolution has depended on path.
func (r *documentResolver) Loaded(path string) bool {
	_, ok := r.wanted[path]
	return ok
}
