package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medchain/medchain-server/internal/models"
)

type fakeClock struct {
	waits chan chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{waits: make(chan chan time.Time, 16)}
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.waits <- ch
	return ch
}

// fire releases the loop's current wait.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	select {
	case ch := <-c.waits:
		ch <- time.Now()
	case <-time.After(2 * time.Second):
		t.Fatalf("poller loop never armed its timer")
	}
}

type fakeBackend struct {
	mu    sync.Mutex
	state map[string]models.Verification
	fail  map[string]bool
	calls map[string]int
}

func newFakeBackend(ids ...string) *fakeBackend {
	b := &fakeBackend{state: map[string]models.Verification{}, fail: map[string]bool{}, calls: map[string]int{}}
	for _, id := range ids {
		b.state[id] = models.PendingVerification()
	}
	return b
}

func (b *fakeBackend) set(id string, v models.Verification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[id] = v
}

func (b *fakeBackend) callCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[id]
}

func (b *fakeBackend) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *fakeBackend) fetch(_ context.Context, id string) (models.Verification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[id]++
	if b.fail[id] {
		return models.Verification{}, errors.New("backend unavailable")
	}
	return b.state[id], nil
}

func TestTickRemovesOnlyResolvedIDs(t *testing.T) {
	backend := newFakeBackend("a", "b", "c", "d", "e")
	backend.set("a", models.VerifiedWith("0xa"))
	backend.set("c", models.VerifiedWith("0xc"))

	p := NewPoller(context.Background(), backend.fetch, Options{Clock: newFakeClock()})
	defer p.Close()
	p.Track("a", "b", "c", "d", "e")

	resolved := p.Tick(context.Background())
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(resolved))
	}
	pending := p.Pending()
	if len(pending) != 3 || pending[0] != "b" || pending[1] != "d" || pending[2] != "e" {
		t.Fatalf("unexpected pending set %v", pending)
	}

	p.Tick(context.Background())
	if backend.callCount("a") != 1 || backend.callCount("c") != 1 {
		t.Fatalf("resolved ids must not be polled again")
	}
	for _, id := range []string{"b", "d", "e"} {
		if backend.callCount(id) != 2 {
			t.Fatalf("id %s should be polled on every tick, got %d", id, backend.callCount(id))
		}
	}
}

func TestFailedFetchStaysPending(t *testing.T) {
	backend := newFakeBackend("a", "b")
	backend.set("a", models.VerifiedWith("0xa"))
	backend.set("b", models.VerifiedWith("0xb"))
	backend.fail["b"] = true

	p := NewPoller(context.Background(), backend.fetch, Options{Clock: newFakeClock()})
	defer p.Close()
	p.Track("a", "b")

	resolved := p.Tick(context.Background())
	if len(resolved) != 1 || resolved[0].ID != "a" || resolved[0].Verification.TxID() != "0xa" {
		t.Fatalf("unexpected resolutions %+v", resolved)
	}
	if pending := p.Pending(); len(pending) != 1 || pending[0] != "b" {
		t.Fatalf("failed fetch should keep id pending, got %v", pending)
	}
}

func TestLoopStopsWhenPendingSetEmpties(t *testing.T) {
	backend := newFakeBackend("a", "b")
	clock := newFakeClock()
	done := make(chan []Resolution, 1)

	p := NewPoller(context.Background(), backend.fetch, Options{
		Clock:     clock,
		OnResolve: func(r []Resolution) { done <- r },
	})
	defer p.Close()
	p.Track("a", "b")

	clock.fire(t)

	// The loop re-arms only after the first round has finished.
	var next chan time.Time
	select {
	case next = <-clock.waits:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not re-arm while ids were still pending")
	}
	if got := backend.totalCalls(); got != 2 {
		t.Fatalf("expected one fetch per id on first tick, got %d", got)
	}

	backend.set("a", models.VerifiedWith("0xa"))
	backend.set("b", models.VerifiedWith("0xb"))
	next <- time.Now()

	select {
	case r := <-done:
		if len(r) != 2 {
			t.Fatalf("expected both ids resolved, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no resolution delivered")
	}

	if p.Running() {
		t.Fatalf("loop should be idle once the pending set is empty")
	}
	select {
	case <-clock.waits:
		t.Fatalf("timer re-armed after the pending set emptied")
	case <-time.After(50 * time.Millisecond):
	}
	if got := backend.totalCalls(); got != 4 {
		t.Fatalf("no fetch expected after the resolving tick, got %d calls", got)
	}
}

func TestTrackRestartsIdleLoop(t *testing.T) {
	backend := newFakeBackend("a")
	backend.set("a", models.VerifiedWith("0xa"))
	clock := newFakeClock()
	resolved := make(chan string, 2)

	p := NewPoller(context.Background(), backend.fetch, Options{
		Clock: clock,
		OnResolve: func(r []Resolution) {
			for _, res := range r {
				resolved <- res.ID
			}
		},
	})
	defer p.Close()

	p.Track("a")
	clock.fire(t)
	if id := <-resolved; id != "a" {
		t.Fatalf("unexpected id %q", id)
	}

	backend.set("b", models.VerifiedWith("0xb"))
	p.Track("b")
	if !p.Running() {
		t.Fatalf("track should restart the loop")
	}
	clock.fire(t)
	if id := <-resolved; id != "b" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestCloseSuppressesCallbacks(t *testing.T) {
	backend := newFakeBackend("a")
	backend.set("a", models.VerifiedWith("0xa"))
	called := false
	p := NewPoller(context.Background(), backend.fetch, Options{
		Clock:     newFakeClock(),
		OnResolve: func([]Resolution) { called = true },
	})
	p.Track("a")
	p.Close()

	p.Tick(context.Background())
	if called {
		t.Fatalf("callback delivered after close")
	}
	p.Track("b")
	for _, id := range p.Pending() {
		if id == "b" {
			t.Fatalf("track after close must be ignored")
		}
	}
}
