package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/schemaview/internal/apperr"
)

// SchemaRow represents a row in the schemas table.
type SchemaRow struct {
	Path      string
	Title     string
	Draft     string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// GraphNode is a schema file in the reference graph.
type GraphNode struct {
	Path  string
	Title string
}

// GraphLink is a reference from one schema file to another.
type GraphLink struct {
	Source string
	Target string
}

var listOrder = map[string]string{
	"":        "path ASC",
	"path":    "path ASC",
	"title":   "title ASC, path ASC",
	"updated": "updated_at DESC, path ASC",
}

// UpsertSchema inserts or replaces a schema row, its FTS entry, and its
// outgoing references within a transaction.
func (db *DB) UpsertSchema(s SchemaRow, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO schemas (path, title, draft, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			draft      = excluded.draft,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, s.Path, s.Title, s.Draft, s.Checksum, body, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert schema: %w", err)
	}

	// No-op when the FTS5 tag is absent.
	if err := ftsUpsert(tx, s.Path, s.Title, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM refs WHERE source = ?`, s.Path); err != nil {
		return fmt.Errorf("index: clear refs: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(s.Path, target); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteSchema removes a schema, its FTS entry, and outgoing references.
func (db *DB) DeleteSchema(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM schemas WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a schema, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM schemas WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetSchema returns the catalog row for path.
func (db *DB) GetSchema(path string) (*SchemaRow, error) {
	var s SchemaRow
	err := db.conn.QueryRow(`
		SELECT path, title, draft, checksum, updated_at FROM schemas WHERE path = ?
	`, path).Scan(&s.Path, &s.Title, &s.Draft, &s.Checksum, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: schema %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get schema: %w", err)
	}
	return &s, nil
}

// ListSchemas returns one page of catalog rows and the total row count.
// sort is one of "path", "title" or "updated".
func (db *DB) ListSchemas(limit, offset int, sort string) ([]SchemaRow, int, error) {
	order, ok := listOrder[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q: %w", sort, apperr.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM schemas`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count schemas: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, draft, checksum, updated_at FROM schemas
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list schemas: %w", err)
	}
	defer rows.Close()

	var out []SchemaRow
	for rows.Next() {
		var s SchemaRow
		if err := rows.Scan(&s.Path, &s.Title, &s.Draft, &s.Checksum, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Graph returns every indexed schema and the references between them.
// References to files outside the catalog are omitted.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT path, title FROM schemas ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.Path, &n.Title); err != nil {
			rows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	linkRows, err := db.conn.Query(`
		SELECT r.source, r.target FROM refs r
		JOIN schemas s ON s.path = r.target
		ORDER BY r.source, r.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer linkRows.Close()
	var links []GraphLink
	for linkRows.Next() {
		var l GraphLink
		if err := linkRows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, linkRows.Err()
}

// AllPaths returns every indexed schema path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM schemas`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed schema.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM schemas`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Referrers returns all schema paths that reference the given target file.
func (db *DB) Referrers(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM refs WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: referrers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
