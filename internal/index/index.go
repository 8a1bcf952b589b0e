package index

// SchemaIndex defines the catalog operations over indexed schema files.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SchemaIndex interface {
	UpsertSchema(s SchemaRow, body string, refs []string) error
	DeleteSchema(path string) error
	GetChecksum(path string) (string, error)
	GetSchema(path string) (*SchemaRow, error)
	ListSchemas(limit, offset int, sort string) ([]SchemaRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Referrers(target string) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies SchemaIndex at compile time.
var _ SchemaIndex = (*DB)(nil)
