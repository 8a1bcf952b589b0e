package index

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/schemaview/internal/apperr"
	"github.com/starford/schemaview/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "schemaview-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(path, title, cs string) SchemaRow {
	return SchemaRow{Path: path, Title: title, Checksum: cs, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM schemas`).Scan(&count); err != nil {
		t.Fatalf("schemas table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM refs`).Scan(&count); err != nil {
		t.Fatalf("refs table missing: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	r := row("person.json", "Person", "abc123")
	r.Draft = "https://json-schema.org/draft-07/schema#"
	if err := db.UpsertSchema(r, "Person name age", []string{"address.json"}); err != nil {
		t.Fatalf("UpsertSchema: %v", err)
	}
	cs, err := db.GetChecksum("person.json")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	got, err := db.GetSchema("person.json")
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if got.Title != "Person" || got.Draft != r.Draft {
		t.Errorf("row = %+v", got)
	}
}

func TestGetSchema_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetSchema("missing.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReferrers(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("a.json", "", "1"), "body", []string{"common.json"})
	_ = db.UpsertSchema(row("c.json", "", "2"), "body", []string{"common.json"})

	refs, err := db.Referrers("common.json")
	if err != nil {
		t.Fatalf("Referrers: %v", err)
	}
	if diff := cmp.Diff([]string{"a.json", "c.json"}, refs); diff != "" {
		t.Errorf("referrers (-want +got):\n%s", diff)
	}
}

func TestDeleteSchema(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("del.json", "", "x"), "body", []string{"target.json"})

	if err := db.DeleteSchema("del.json"); err != nil {
		t.Fatalf("DeleteSchema: %v", err)
	}
	cs, _ := db.GetChecksum("del.json")
	if cs != "" {
		t.Errorf("deleted schema still has checksum %q", cs)
	}
	refs, _ := db.Referrers("target.json")
	if len(refs) != 0 {
		t.Errorf("expected 0 referrers after delete, got %d", len(refs))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("up.json", "Old", "1"), "old body", []string{"x.json"})
	_ = db.UpsertSchema(row("up.json", "New", "2"), "new body", []string{"y.json"})

	cs, _ := db.GetChecksum("up.json")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if refs, _ := db.Referrers("x.json"); len(refs) != 0 {
		t.Error("old ref should be removed on upsert")
	}
	if refs, _ := db.Referrers("y.json"); len(refs) != 1 {
		t.Error("new ref should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListSchemas(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("b.json", "Alpha", "1"), "", nil)
	_ = db.UpsertSchema(row("a.json", "Beta", "2"), "", nil)
	_ = db.UpsertSchema(row("c.json", "Gamma", "3"), "", nil)

	page, total, err := db.ListSchemas(2, 0, "path")
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	var paths []string
	for _, r := range page {
		paths = append(paths, r.Path)
	}
	if diff := cmp.Diff([]string{"a.json", "b.json"}, paths); diff != "" {
		t.Errorf("page (-want +got):\n%s", diff)
	}

	byTitle, _, _ := db.ListSchemas(10, 0, "title")
	if len(byTitle) != 3 || byTitle[0].Path != "b.json" {
		t.Errorf("title order = %+v", byTitle)
	}

	if _, _, err := db.ListSchemas(10, 0, "bogus"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGraph(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("a.json", "A", "1"), "", []string{"b.json", "outside.json"})
	_ = db.UpsertSchema(row("b.json", "B", "2"), "", nil)

	nodes, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if diff := cmp.Diff([]GraphNode{{Path: "a.json", Title: "A"}, {Path: "b.json", Title: "B"}}, nodes); diff != "" {
		t.Errorf("nodes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]GraphLink{{Source: "a.json", Target: "b.json"}}, links); diff != "" {
		t.Errorf("links (-want +got):\n%s", diff)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertSchema(row("s.json", "Search Me", "1"), "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.json" {
		t.Errorf("search results = %+v, want 1 hit for s.json", results)
	}
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	logger := slog.New(slog.DiscardHandler)

	_ = store.Write("a.json", []byte(`{"title": "A", "properties": {"b": {"$ref": "b.json"}}}`))
	_ = store.Write("b.yaml", []byte("title: B\ntype: string\n"))
	_ = store.Write("broken.json", []byte(`{"title": `))
	_ = db.UpsertSchema(row("stale.json", "", "old"), "", nil)

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	paths, _ := db.AllPaths()
	want := map[string]struct{}{"a.json": {}, "b.yaml": {}}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
	if refs, _ := db.Referrers("b.json"); len(refs) != 1 || refs[0] != "a.json" {
		t.Errorf("referrers = %v", refs)
	}

	// Unchanged files are skipped; a changed file is re-indexed.
	_ = os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("title: B2\n"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	got, _ := db.GetSchema("b.yaml")
	if got.Title != "B2" {
		t.Errorf("title = %q, want B2", got.Title)
	}
}
