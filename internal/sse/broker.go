// Package sse streams catalog and tree events to Server-Sent Events clients.
package sse

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Event types emitted by the broker.
const (
	TypeSchemaCreated   = "schema.created"
	TypeSchemaUpdated   = "schema.updated"
	TypeSchemaDeleted   = "schema.deleted"
	TypeCatalogUpdated  = "catalog.updated"
	TypeTreeInvalidated = "tree.invalidated"
)

var schemaEventTypes = map[string]string{
	"created": TypeSchemaCreated,
	"updated": TypeSchemaUpdated,
	"deleted": TypeSchemaDeleted,
}

// Filter narrows what a subscriber receives. The zero Filter receives
// everything.
type Filter struct {
	// Tree restricts delivery to tree.invalidated events naming this
	// session.
	Tree string
}

func (f Filter) admits(typ string, sessions []string) bool {
	if f.Tree == "" {
		return true
	}
	return typ == TypeTreeInvalidated && slices.Contains(sessions, f.Tree)
}

// TreeInvalidation is the payload of a tree.invalidated event.
type TreeInvalidation struct {
	Path     string   `json:"path"`
	Sessions []string `json:"sessions"`
}

type schemaChange struct {
	kind string
	path string
}

type subscription struct {
	ch     chan []byte
	filter Filter
}

// Broker fans events out to SSE clients.
//
// A single goroutine owns the client set and the throttle state; public
// methods talk to it over channels. catalog.updated and tree.invalidated
// share one interval: the first occurrence goes out at once, later ones in
// the same window are held and sent together when it closes. Held tree
// invalidations are merged per schema path.
type Broker struct {
	interval time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	changeCh      chan schemaChange
	invalidateCh  chan TreeInvalidation
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker whose catalog and tree events are throttled to
// one per interval (per path for trees). A non-positive interval means 2s.
func NewBroker(interval time.Duration) *Broker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	b := &Broker{
		interval:      interval,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		changeCh:      make(chan schemaChange, 256),
		invalidateCh:  make(chan TreeInvalidation, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// treeGate tracks the throttle window of one schema path.
type treeGate struct {
	last time.Time
	held map[string]struct{}
}

// loop is the state owned by the broker goroutine.
type loop struct {
	interval    time.Duration
	clients     map[chan []byte]Filter
	lastCatalog time.Time
	catalogHeld bool
	trees       map[string]*treeGate
}

func (l *loop) send(typ string, data any, sessions []string) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", typ, payload))
	for ch, f := range l.clients {
		if !f.admits(typ, sessions) {
			continue
		}
		select {
		case ch <- msg:
		default:
			// slow client, drop
		}
	}
}

func (l *loop) schemaChanged(now time.Time, c schemaChange) {
	typ, ok := schemaEventTypes[c.kind]
	if !ok {
		return
	}
	l.send(typ, map[string]string{"path": c.path}, nil)
	if now.Sub(l.lastCatalog) >= l.interval {
		l.lastCatalog = now
		l.send(TypeCatalogUpdated, map[string]string{}, nil)
		return
	}
	l.catalogHeld = true
}

func (l *loop) treeInvalidated(now time.Time, inv TreeInvalidation) {
	if len(inv.Sessions) == 0 {
		return
	}
	g, ok := l.trees[inv.Path]
	if !ok {
		g = &treeGate{}
		l.trees[inv.Path] = g
	}
	if g.held == nil && now.Sub(g.last) >= l.interval {
		g.last = now
		ids := slices.Sorted(slices.Values(inv.Sessions))
		l.send(TypeTreeInvalidated, TreeInvalidation{Path: inv.Path, Sessions: ids}, ids)
		return
	}
	if g.held == nil {
		g.held = make(map[string]struct{})
	}
	for _, id := range inv.Sessions {
		g.held[id] = struct{}{}
	}
}

// flush sends whatever was held for windows that have closed by now.
func (l *loop) flush(now time.Time) {
	if l.catalogHeld && now.Sub(l.lastCatalog) >= l.interval {
		l.catalogHeld = false
		l.lastCatalog = now
		l.send(TypeCatalogUpdated, map[string]string{}, nil)
	}
	for path, g := range l.trees {
		if now.Sub(g.last) < l.interval {
			continue
		}
		if g.held == nil {
			delete(l.trees, path)
			continue
		}
		ids := slices.Sorted(maps.Keys(g.held))
		g.held = nil
		g.last = now
		l.send(TypeTreeInvalidated, TreeInvalidation{Path: path, Sessions: ids}, ids)
	}
}

// deadline is the earliest time a held event becomes due.
func (l *loop) deadline() (time.Time, bool) {
	var next time.Time
	found := false
	consider := func(t time.Time) {
		if !found || t.Before(next) {
			next, found = t, true
		}
	}
	if l.catalogHeld {
		consider(l.lastCatalog.Add(l.interval))
	}
	for _, g := range l.trees {
		if g.held != nil {
			consider(g.last.Add(l.interval))
		}
	}
	return next, found
}

func (b *Broker) run() {
	defer close(b.stopped)

	l := &loop{
		interval: b.interval,
		clients:  make(map[chan []byte]Filter),
		trees:    make(map[string]*treeGate),
	}
	timer := time.NewTimer(b.interval)
	timer.Stop()
	defer timer.Stop()
	rearm := func() {
		if at, ok := l.deadline(); ok {
			timer.Reset(time.Until(at))
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range l.clients {
				close(ch)
			}
			return

		case s := <-b.subscribeCh:
			l.clients[s.ch] = s.filter

		case ch := <-b.unsubscribeCh:
			if _, ok := l.clients[ch]; ok {
				delete(l.clients, ch)
				close(ch)
			}

		case c := <-b.changeCh:
			l.schemaChanged(time.Now(), c)
			rearm()

		case inv := <-b.invalidateCh:
			l.treeInvalidated(time.Now(), inv)
			rearm()

		case <-timer.C:
			l.flush(time.Now())
			rearm()

		case resp := <-b.countCh:
			resp <- len(l.clients)
		}
	}
}

// Close stops the broker and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns the channel its messages arrive
// on. The channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe(f Filter) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, filter: f}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishSchemaEvent reports a catalog file change. kind is one of
// "created", "updated" or "deleted"; other kinds are ignored.
func (b *Broker) PublishSchemaEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- schemaChange{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishTreeInvalidated reports that the listed tree sessions were rebuilt
// or dropped because path changed.
func (b *Broker) PublishTreeInvalidated(path string, sessionIDs []string) {
	if b.closed.Load() {
		return
	}
	inv := TreeInvalidation{Path: path, Sessions: slices.Clone(sessionIDs)}
	select {
	case b.invalidateCh <- inv:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events). The optional
// tree query parameter narrows the stream to one tree session.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(Filter{Tree: r.URL.Query().Get("tree")})
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
