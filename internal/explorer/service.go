// Package explorer coordinates the schema catalog and interactive tree
// sessions built on top of it.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/schemaview/internal/apperr"
	"github.com/starford/schemaview/internal/checksum"
	"github.com/starford/schemaview/internal/index"
	"github.com/starford/schemaview/internal/parser"
	"github.com/starford/schemaview/internal/storage"
)

// SchemaDetail is the full representation of a catalog schema.
type SchemaDetail struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Draft       string    `json:"draft,omitempty"`
	ID          string    `json:"id,omitempty"`
	Content     string    `json:"content"`
	Checksum    string    `json:"checksum"`
	Refs        []string  `json:"refs"`
	Referrers   []string  `json:"referrers"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SchemaListItem is a lightweight item in a list response.
type SchemaListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Draft     string    `json:"draft,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvalidateFunc is told which tree sessions were rebuilt or dropped after
// a schema file changed.
type InvalidateFunc func(path string, sessionIDs []string)

// Service coordinates storage, index and tree sessions.
type Service struct {
	store    storage.Provider
	db       *index.DB
	logger   *slog.Logger
	defaults TreeOptions

	mu           sync.Mutex
	sessions     map[string]*session
	maxSessions  int
	onInvalidate InvalidateFunc
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTreeDefaults sets the options applied to trees opened without
// explicit overrides.
func WithTreeDefaults(o TreeOptions) Option {
	return func(s *Service) { s.defaults = o }
}

// WithMaxSessions bounds the number of open tree sessions. The least
// recently used session is evicted when the bound is reached.
func WithMaxSessions(n int) Option {
	return func(s *Service) { s.maxSessions = n }
}

// WithInvalidateHook registers fn to be called by Invalidate.
func WithInvalidateHook(fn InvalidateFunc) Option {
	return func(s *Service) { s.onInvalidate = fn }
}

// NewService creates a new explorer service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		logger:   slog.New(slog.DiscardHandler),
		sessions: make(map[string]*session),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetSchema reads a schema from storage, parses it, and enriches it with
// referrers.
func (s *Service) GetSchema(_ context.Context, path string) (*SchemaDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildSchemaDetail(path, data)
}

// CreateSchema writes a new schema file and indexes it.
func (s *Service) CreateSchema(_ context.Context, path string, content []byte) (*SchemaDetail, error) {
	if !storage.IsSchemaFile(path) {
		return nil, fmt.Errorf("%s: unsupported extension: %w", path, apperr.ErrInvalidInput)
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if _, err := parser.Parse(path, content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildSchemaDetail(path, content)
}

// UpdateSchema writes updated content with optimistic concurrency: a
// non-empty ifMatch must equal the checksum of the stored file.
func (s *Service) UpdateSchema(_ context.Context, path string, content []byte, ifMatch string) (*SchemaDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if _, err := parser.Parse(path, content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	s.Invalidate(path)
	return s.buildSchemaDetail(path, content)
}

// DeleteSchema removes a schema from storage and index and drops the tree
// sessions built from it.
func (s *Service) DeleteSchema(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteSchema(path); err != nil {
		return err
	}
	s.Invalidate(path)
	return nil
}

// ListSchemas returns one page of catalog entries.
func (s *Service) ListSchemas(_ context.Context, limit, offset int, sort string) ([]SchemaListItem, int, error) {
	rows, total, err := s.db.ListSchemas(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]SchemaListItem, len(rows))
	for i, r := range rows {
		items[i] = SchemaListItem{
			Path:      r.Path,
			Title:     r.Title,
			Draft:     r.Draft,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all schemas and the references between them.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Referrers returns all schema paths that reference the given file.
func (s *Service) Referrers(_ context.Context, target string) ([]string, error) {
	return s.db.Referrers(target)
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexFile(s.db, path, data, time.Now().UTC())
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildSchemaDetail constructs a SchemaDetail from raw data without
// re-reading the file.
func (s *Service) buildSchemaDetail(path string, data []byte) (*SchemaDetail, error) {
	res, err := parser.Parse(path, data)
	if err != nil {
		return nil, err
	}
	referrers, err := s.db.Referrers(path)
	if err != nil {
		return nil, err
	}
	updated := time.Now().UTC()
	if row, err := s.db.GetSchema(path); err == nil {
		updated = row.UpdatedAt
	}
	return &SchemaDetail{
		Path:        path,
		Title:       res.Title,
		Description: res.Description,
		Draft:       res.Draft,
		ID:          res.ID,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Refs:        nonNilSlice(res.Refs),
		Referrers:   nonNilSlice(referrers),
		UpdatedAt:   updated,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
