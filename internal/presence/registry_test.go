package presence

import (
	"fmt"
	"sync"
	"testing"

	"relay/internal/event"
)

type fakeConn struct{ name string }

func (f *fakeConn) Deliver(event.Event) error { return nil }

func TestBindLookupUnbind(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{name: "a"}

	if _, ok := r.Lookup("ZT-1111-2222"); ok {
		t.Fatalf("empty registry must not resolve")
	}
	r.Bind("ZT-1111-2222", c)
	got, ok := r.Lookup("ZT-1111-2222")
	if !ok || got != c {
		t.Fatalf("lookup = %v, %v", got, ok)
	}
	code, ok := r.Unbind(c)
	if !ok || code != "ZT-1111-2222" {
		t.Fatalf("unbind = %q, %v", code, ok)
	}
	if _, ok := r.Lookup("ZT-1111-2222"); ok {
		t.Fatalf("binding should be gone after unbind")
	}
	if _, ok := r.Unbind(c); ok {
		t.Fatalf("second unbind must report nothing")
	}
}

func TestLastRegisterWins(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{name: "old"}
	next := &fakeConn{name: "new"}

	r.Bind("ZT-1111-2222", old)
	displaced := r.Bind("ZT-1111-2222", next)
	if displaced != old {
		t.Fatalf("expected old connection to be displaced, got %v", displaced)
	}

	got, _ := r.Lookup("ZT-1111-2222")
	if got != next {
		t.Fatalf("lookup returned %v, want newest connection", got)
	}
	if _, ok := r.CodeOf(old); ok {
		t.Fatalf("displaced connection must no longer hold a binding")
	}

	// Tearing down the displaced connection must not evict the new one.
	if _, ok := r.Unbind(old); ok {
		t.Fatalf("displaced connection should have nothing to unbind")
	}
	if got, ok := r.Lookup("ZT-1111-2222"); !ok || got != next {
		t.Fatalf("new binding lost after old teardown")
	}
}

func TestRebindUnderNewCodeDropsOldCode(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Bind("ZT-1111-2222", c)
	r.Bind("ZT-3333-4444", c)

	if _, ok := r.Lookup("ZT-1111-2222"); ok {
		t.Fatalf("old code should be released")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 binding, got %d", r.Count())
	}
}

func TestConcurrentBindUnbind(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &fakeConn{name: fmt.Sprint(i)}
			code := fmt.Sprintf("ZT-0000-%04d", i%5)
			r.Bind(code, c)
			r.Lookup(code)
			r.Unbind(c)
		}(i)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d bindings", r.Count())
	}
	if len(r.byConn) != 0 {
		t.Fatalf("reverse index leaked %d entries", len(r.byConn))
	}
}
