package schematree

import (
	"github.com/starford/schemaview/internal/pointer"
	"github.com/starford/schemaview/internal/schemanode"
	"github.com/starford/schemaview/internal/tree"
)

// Metadata ties a tree node back to the schema it was built from.
type Metadata struct {
	Path pointer.Path
	// Document names the document Path points into, "" for the tree's own.
	Document string
	// Schema is the root document, kept for reference resolution.
	Schema         any
	SchemaNode     schemanode.Node
	SchemaFragment any
}

// MetadataStore is a side table keyed by node handle. Entries are written
// before a node is attached and removed only when the node is released.
type MetadataStore struct {
	records map[tree.NodeID]*Metadata
}

// NewMetadataStore returns an empty store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{records: make(map[tree.NodeID]*Metadata)}
}

func (s *MetadataStore) Set(id tree.NodeID, md *Metadata) { s.records[id] = md }

func (s *MetadataStore) Get(id tree.NodeID) (*Metadata, bool) {
	md, ok := s.records[id]
	return md, ok
}

func (s *MetadataStore) Delete(id tree.NodeID) { delete(s.records, id) }

func (s *MetadataStore) Len() int { return len(s.records) }
