package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/schemaview/internal/apperr"
	"github.com/starford/schemaview/internal/checksum"
	"github.com/starford/schemaview/internal/parser"
	"github.com/starford/schemaview/internal/schematree"
	"github.com/starford/schemaview/internal/tree"
)

// TreeOptions configures a tree session. Nil fields fall back to the service
// defaults; a nil LimitPropertyCount there too means listings are unbounded.
type TreeOptions struct {
	ExpandedDepth      *int  `json:"expanded_depth,omitempty"`
	MergeAllOf         *bool `json:"merge_all_of,omitempty"`
	LimitPropertyCount *int  `json:"limit_property_count,omitempty"`
}

func (o TreeOptions) withDefaults(d TreeOptions) TreeOptions {
	if o.ExpandedDepth == nil {
		o.ExpandedDepth = d.ExpandedDepth
	}
	if o.MergeAllOf == nil {
		o.MergeAllOf = d.MergeAllOf
	}
	if o.LimitPropertyCount == nil {
		o.LimitPropertyCount = d.LimitPropertyCount
	}
	return o
}

func (o TreeOptions) engineOptions() []schematree.Option {
	var out []schematree.Option
	if o.ExpandedDepth != nil {
		out = append(out, schematree.WithExpandedDepth(*o.ExpandedDepth))
	}
	if o.MergeAllOf != nil {
		out = append(out, schematree.WithMergeAllOf(*o.MergeAllOf))
	}
	if o.LimitPropertyCount != nil {
		out = append(out, schematree.WithLimitPropertyCount(*o.LimitPropertyCount))
	}
	return out
}

// session owns one SchemaTree. The engine is single-caller, so every access
// goes through mu.
type session struct {
	id         string
	schemaPath string
	opts       TreeOptions

	mu       sync.Mutex
	tree     *schematree.SchemaTree
	resolver *documentResolver
	lastUsed atomic.Int64
}

func (sess *session) touch() { sess.lastUsed.Store(time.Now().UnixNano()) }

// OpenTree parses the schema at path and populates a new tree session.
func (s *Service) OpenTree(_ context.Context, path string, opts TreeOptions) (*TreeView, error) {
	opts = opts.withDefaults(s.defaults)
	if opts.ExpandedDepth != nil && *opts.ExpandedDepth < 0 {
		return nil, fmt.Errorf("expanded_depth must not be negative: %w", apperr.ErrInvalidInput)
	}
	if opts.LimitPropertyCount != nil && *opts.LimitPropertyCount < 0 {
		return nil, fmt.Errorf("limit_property_count must not be negative: %w", apperr.ErrInvalidInput)
	}

	sess := &session{id: uuid.NewString(), schemaPath: path, opts: opts}
	if err := s.build(sess); err != nil {
		return nil, err
	}
	sess.touch()

	s.mu.Lock()
	s.evictLocked()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("explorer: tree opened",
		slog.String("session", sess.id),
		slog.String("path", path),
	)
	return sess.view(), nil
}

// build reads the schema file and populates a fresh engine for sess.
// Callers hold sess.mu or own sess exclusively.
func (s *Service) build(sess *session) error {
	data, err := s.read(sess.schemaPath)
	if err != nil {
		return err
	}
	doc, err := parser.Decode(sess.schemaPath, data)
	if err != nil {
		return err
	}
	res := newDocumentResolver(s.store, sess.schemaPath, doc)
	opts := append(sess.opts.engineOptions(),
		schematree.WithResolver(res.Resolve),
		schematree.WithLogger(s.logger.With(slog.String("session", sess.id))),
	)
	st := schematree.New(doc, opts...)
	if err := st.Populate(); err != nil {
		return fmt.Errorf("populate %s: %w", sess.schemaPath, err)
	}
	sess.tree = st
	sess.resolver = res
	s.logger.Debug("explorer: tree populated",
		slog.String("session", sess.id),
		slog.String("path", sess.schemaPath),
		slog.String("checksum", checksum.Short(data, 12)),
		slog.Int("nodes", st.Tree().Len()),
	)
	return nil
}

// GetTree returns the visible rows of a session.
func (s *Service) GetTree(_ context.Context, id string) (*TreeView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()
	return sess.view(), nil
}

// Unwrap expands one node of a session and marks it expanded in the view.
func (s *Service) Unwrap(_ context.Context, id string, node int) (*UnwrapView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()

	nid := tree.NodeID(node)
	children, err := sess.tree.Unwrap(nid)
	if err != nil {
		return nil, engineError(err)
	}
	sess.tree.Tree().SetExpanded(nid, true)

	out := &UnwrapView{Node: sess.nodeView(nid), Children: make([]NodeView, 0, len(children))}
	for _, c := range children {
		out.Children = append(out.Children, sess.nodeView(c))
	}
	return out, nil
}

// SetExpanded records an explicit expansion flag for a node.
func (s *Service) SetExpanded(_ context.Context, id string, node int, expanded bool) (*TreeView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()

	nid := tree.NodeID(node)
	if !sess.tree.Tree().IsParent(nid) {
		return nil, fmt.Errorf("node %d: %w", node, apperr.ErrNotFound)
	}
	sess.tree.Tree().SetExpanded(nid, expanded)
	return sess.view(), nil
}

// Properties lists the children of node under the session's property
// limit. A nil node lists the top-level properties.
func (s *Service) Properties(_ context.Context, id string, node *int) (*PropertiesView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()

	var list schematree.PropertyList
	if node == nil {
		list = schematree.ListProperties(sess.tree.TopLevelProperties(), sess.tree.Limit())
	} else {
		nid := tree.NodeID(*node)
		if !sess.tree.Tree().Has(nid) {
			return nil, fmt.Errorf("node %d: %w", *node, apperr.ErrNotFound)
		}
		list = sess.tree.Properties(nid)
	}

	out := &PropertiesView{IsOverflow: list.IsOverflow, Properties: make([]NodeView, 0, len(list.Properties))}
	for _, p := range list.Properties {
		out.Properties = append(out.Properties, sess.nodeView(p))
	}
	return out, nil
}

// CloseTree discards a session.
func (s *Service) CloseTree(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("tree %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Invalidate rebuilds every session that depends on path, dropping the
// ones whose schema can no longer be loaded. It returns the affected
// session ids.
func (s *Service) Invalidate(path string) []string {
	s.mu.Lock()
	var affected []*session
	for _, sess := range s.sessions {
		affected = append(affected, sess)
	}
	s.mu.Unlock()

	var ids []string
	for _, sess := range affected {
		sess.mu.Lock()
		depends := sess.schemaPath == path || sess.resolver.Loaded(path)
		if !depends {
			sess.mu.Unlock()
			continue
		}
		err := s.build(sess)
		sess.mu.Unlock()

		ids = append(ids, sess.id)
		if err != nil {
			s.logger.Info("explorer: tree dropped",
				slog.String("session", sess.id),
				slog.String("path", path),
				slog.String("reason", err.Error()),
			)
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			continue
		}
		s.logger.Debug("explorer: tree rebuilt", slog.String("session", sess.id), slog.String("path", path))
	}

	if len(ids) > 0 && s.onInvalidate != nil {
		s.onInvalidate(path, ids)
	}
	return ids
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) session(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("tree %s: %w", id, apperr.ErrNotFound)
	}
	return sess, nil
}

// evictLocked drops the least recently used session when the bound is
// reached. Callers hold s.mu.
func (s *Service) evictLocked() {
	if s.maxSessions <= 0 || len(s.sessions) < s.maxSessions {
		return
	}
	var oldest *session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastUsed.Load() < oldest.lastUsed.Load() {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(s.sessions, oldest.id)
		s.logger.Debug("explorer: tree evicted", slog.String("session", oldest.id))
	}
}

// engineError maps engine errors onto application sentinels. Expansion
// failures keep their own type in the chain so callers can report the kind.
func engineError(err error) error {
	switch {
	case errors.Is(err, schematree.ErrUnknownNode):
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	case errors.Is(err, schematree.ErrNotExpandable):
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	case errors.Is(err, schematree.ErrUnresolvedReference),
		errors.Is(err, schematree.ErrNullReference),
		errors.Is(err, schematree.ErrEmptyExpansion):
		return fmt.Errorf("%w: %w", apperr.ErrUnprocessable, err)
	}
	return err
}
