package index

import (
	"log/slog"
	"time"

	"github.com/starford/schemaview/internal/checksum"
	"github.com/starford/schemaview/internal/parser"
	"github.com/starford/schemaview/internal/storage"
)

// Sync walks the schema directory and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// Files that fail to parse are logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteSchema(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the DB. References to other
// catalog files are recorded as graph edges.
func IndexFile(db *DB, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	row := SchemaRow{
		Path:      path,
		Title:     res.Title,
		Draft:     res.Draft,
		Checksum:  checksum.Sum(data),
		UpdatedAt: modTime,
	}
	return db.UpsertSchema(row, res.Body, res.External)
}
