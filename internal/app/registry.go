package app

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
)

// Registry tracks every live connection and the PeerID bound to it.
// PeerIDs are issued from a monotonic counter and never recycled.
type Registry struct {
	next uint64

	mu    sync.RWMutex
	conns map[domain.PeerID]core.SignalConnection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.PeerID]core.SignalConnection)}
}

// Register issues a fresh PeerID and binds it to conn.
func (r *Registry) Register(conn core.SignalConnection) domain.PeerID {
	id := domain.PeerID(atomic.AddUint64(&r.next, 1))
	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Uint64("peer", uint64(id)).Msg("peer registered")
	return id
}

// Send enqueues a frame for delivery to peer. It never blocks on network
// I/O: delivery goes through the connection's bounded queue. Returns
// domain.ErrPeerUnreachable if the peer was unregistered concurrently and
// domain.ErrBackpressure when its queue is full.
func (r *Registry) Send(peer domain.PeerID, frame core.Frame) error {
	r.mu.RLock()
	conn, ok := r.conns[peer]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrPeerUnreachable
	}
	return conn.TrySend(frame)
}

// Unregister severs the binding. Idempotent.
func (r *Registry) Unregister(peer domain.PeerID) {
	r.mu.Lock()
	_, ok := r.conns[peer]
	delete(r.conns, peer)
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.registry").Uint64("peer", uint64(peer)).Msg("peer unregistered")
	}
}

// Connection returns the transport bound to peer, if still live.
func (r *Registry) Connection(peer domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[peer]
	return conn, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
