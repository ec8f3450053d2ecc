package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
)

// fakeConn records frames; full simulates a saturated send queue.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return domain.ErrBackpressure
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) sent() []core.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegistry_UniqueIDs(t *testing.T) {
	reg := NewRegistry()

	const n = 100
	ids := make(chan domain.PeerID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- reg.Register(&fakeConn{})
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.PeerID]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate peer id %d", id)
		}
		seen[id] = true
	}
	if reg.Count() != n {
		t.Fatalf("count = %d, want %d", reg.Count(), n)
	}
}

func TestRegistry_SendToUnknownPeer(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Send(42, core.Frame("x")); !errors.Is(err, domain.ErrPeerUnreachable) {
		t.Fatalf("got %v, want ErrPeerUnreachable", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}
	id := reg.Register(conn)

	reg.Unregister(id)
	reg.Unregister(id)

	if err := reg.Send(id, core.Frame("x")); !errors.Is(err, domain.ErrPeerUnreachable) {
		t.Fatalf("send after unregister: got %v, want ErrPeerUnreachable", err)
	}
	if reg.Count() != 0 {
		t.Fatalf("count = %d, want 0", reg.Count())
	}
}

func TestRegistry_SendDeliversFrame(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}
	id := reg.Register(conn)

	if err := reg.Send(id, core.Frame("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	frames := conn.sent()
	if len(frames) != 1 || string(frames[0]) != "hello" {
		t.Fatalf("frames = %v", frames)
	}
}
