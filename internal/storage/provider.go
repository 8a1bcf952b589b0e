// Package storage defines the schema directory abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/schemaview/internal/models"
)

// Extensions lists the file suffixes treated as schema documents.
var Extensions = []string{".json", ".yaml", ".yml"}

// IsSchemaFile reports whether name carries a schema extension and is not
// a temporary or hidden file.
func IsSchemaFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Provider is the interface for schema file operations. Paths are relative
// to the directory root and use forward slashes.
type Provider interface {
	// List returns metadata for every schema file under dir.
	List(dir string) ([]models.SchemaMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
