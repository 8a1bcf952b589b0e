package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

type received struct {
	typ  string
	data string
}

func parse(t *testing.T, msg []byte) received {
	t.Helper()
	head, data, ok := strings.Cut(strings.TrimSuffix(string(msg), "\n\n"), "\n")
	if !ok || !strings.HasPrefix(head, "event: ") || !strings.HasPrefix(data, "data: ") {
		t.Fatalf("malformed message %q", msg)
	}
	return received{typ: strings.TrimPrefix(head, "event: "), data: strings.TrimPrefix(data, "data: ")}
}

func next(t *testing.T, ch chan []byte) received {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return parse(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return received{}
}

func quiet(t *testing.T, ch chan []byte, d time.Duration) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected event %q", msg)
	case <-time.After(d):
	}
}

func invalidation(t *testing.T, r received) TreeInvalidation {
	t.Helper()
	if r.typ != TypeTreeInvalidated {
		t.Fatalf("event type = %q, want %q", r.typ, TypeTreeInvalidated)
	}
	var inv TreeInvalidation
	if err := json.Unmarshal([]byte(r.data), &inv); err != nil {
		t.Fatalf("decode %q: %v", r.data, err)
	}
	return inv
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	all := b.Subscribe(Filter{})
	one := b.Subscribe(Filter{Tree: "s1"})
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(all)
	b.Unsubscribe(one)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
	if _, ok := <-all; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestSchemaEventsAndCatalogWindow(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(ch)

	b.PublishSchemaEvent("created", "a.json")
	b.PublishSchemaEvent("updated", "b.yaml")
	b.PublishSchemaEvent("renamed", "c.json")
	b.PublishSchemaEvent("deleted", "a.json")

	var got []string
	for range 4 {
		got = append(got, next(t, ch).typ)
	}
	want := []string{TypeSchemaCreated, TypeCatalogUpdated, TypeSchemaUpdated, TypeSchemaDeleted}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	// The changes held back during the window surface as one update.
	if r := next(t, ch); r.typ != TypeCatalogUpdated {
		t.Fatalf("trailing event = %q, want %q", r.typ, TypeCatalogUpdated)
	}
	quiet(t, ch, 300*time.Millisecond)
}

func TestTreeInvalidationsMergedPerPath(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(ch)

	b.PublishTreeInvalidated("common.json", []string{"s1"})
	b.PublishTreeInvalidated("common.json", []string{"s3", "s2"})
	b.PublishTreeInvalidated("common.json", []string{"s2"})
	b.PublishTreeInvalidated("person.json", []string{"s4"})
	b.PublishTreeInvalidated("empty.json", nil)

	first := invalidation(t, next(t, ch))
	if diff := cmp.Diff(TreeInvalidation{Path: "common.json", Sessions: []string{"s1"}}, first); diff != "" {
		t.Errorf("first (-want +got):\n%s", diff)
	}
	other := invalidation(t, next(t, ch))
	if diff := cmp.Diff(TreeInvalidation{Path: "person.json", Sessions: []string{"s4"}}, other); diff != "" {
		t.Errorf("other path (-want +got):\n%s", diff)
	}
	merged := invalidation(t, next(t, ch))
	if diff := cmp.Diff(TreeInvalidation{Path: "common.json", Sessions: []string{"s2", "s3"}}, merged); diff != "" {
		t.Errorf("merged (-want +got):\n%s", diff)
	}
	quiet(t, ch, 300*time.Millisecond)

	// A new window opens once the old one has passed.
	b.PublishTreeInvalidated("common.json", []string{"s1"})
	if inv := invalidation(t, next(t, ch)); inv.Path != "common.json" {
		t.Errorf("path = %q", inv.Path)
	}
}

func TestTreeFilter(t *testing.T) {
	b := NewBroker(50 * time.Millisecond)
	defer b.Close()
	mine := b.Subscribe(Filter{Tree: "s2"})
	defer b.Unsubscribe(mine)
	all := b.Subscribe(Filter{})
	defer b.Unsubscribe(all)

	b.PublishSchemaEvent("updated", "common.json")
	b.PublishTreeInvalidated("person.json", []string{"s1"})
	b.PublishTreeInvalidated("common.json", []string{"s1", "s2"})

	inv := invalidation(t, next(t, mine))
	if diff := cmp.Diff(TreeInvalidation{Path: "common.json", Sessions: []string{"s1", "s2"}}, inv); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}
	quiet(t, mine, 150*time.Millisecond)

	var types []string
	for range 4 {
		types = append(types, next(t, all).typ)
	}
	if len(types) != 4 {
		t.Fatalf("unfiltered events = %v", types)
	}
}

func TestServeHTTPWithTreeFilter(t *testing.T) {
	b := NewBroker(50 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?tree=s1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishSchemaEvent("updated", "person.json")
	b.PublishTreeInvalidated("person.json", []string{"s1"})
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: tree.invalidated") {
		t.Errorf("body missing tree event: %q", body)
	}
	if strings.Contains(body, "schema.updated") || strings.Contains(body, "catalog.updated") {
		t.Errorf("filtered stream carried catalog events: %q", body)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect", n)
	}
}

func TestSlowClientDoesNotStallBroker(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	slow := b.Subscribe(Filter{})
	defer b.Unsubscribe(slow)

	for i := range 100 {
		b.PublishSchemaEvent("updated", strings.Repeat("x", i%5+1)+".json")
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe(Filter{Tree: "s1"})
	b.PublishTreeInvalidated("a.json", []string{"s2"})

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber received an event after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after close", n)
	}

	b.PublishSchemaEvent("updated", "x.json")
	b.PublishTreeInvalidated("x.json", []string{"s1"})
	if _, ok := <-b.Subscribe(Filter{}); ok {
		t.Error("subscribe after close should yield a closed channel")
	}
}
