package app

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
	"github.com/avolkov/peergate/internal/protocol"
)

// Coordinator owns the signaling lifecycle: it drives topology policies on
// join/leave, keeps Table and Registry consistent, and fans relayed frames
// out to the recipients the router resolves.
//
// Join, Disconnect and Destroy serialize under mu, including the
// notification enqueues they produce, so a joiner's membership snapshot and
// later peer_joined/peer_left events are never observed out of order.
// Relay only snapshots the table; per-pair FIFO comes from the sender's
// read loop plus the recipient's ordered send queue.
type Coordinator struct {
	mu sync.Mutex

	Registry     *Registry
	Sessions     *Table
	Backpressure BackpressurePolicy

	policies map[domain.Topology]TopologyPolicy
}

func NewCoordinator(reg *Registry, table *Table, policies map[domain.Topology]TopologyPolicy, bp BackpressurePolicy) *Coordinator {
	return &Coordinator{
		Registry:     reg,
		Sessions:     table,
		Backpressure: bp,
		policies:     policies,
	}
}

// Connect binds a new transport and issues its PeerID.
func (c *Coordinator) Connect(conn core.SignalConnection) domain.PeerID {
	return c.Registry.Register(conn)
}

// Join admits peer into the session named by sid. On acceptance the joiner
// and the affected members receive their discovery messages; on rejection
// the error maps to a close reason in the adapter.
func (c *Coordinator) Join(peer domain.PeerID, topology domain.Topology, sid domain.SessionID) (JoinResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.Sessions.Join(topology, sid, peer, c.policies[topology])
	if err != nil {
		return JoinResult{}, err
	}

	c.deliver(peer, protocol.Joined(peer, res.Role, res.Host, res.Existing))
	announce := protocol.PeerJoined(peer)
	for _, m := range res.Notify {
		c.deliver(m, announce)
	}
	return res, nil
}

// Relay forwards one signaling payload from peer, unmodified, to the
// recipient set the topology dictates. Routing errors are logged and the
// frame is dropped; they never close the sender's connection.
func (c *Coordinator) Relay(peer domain.PeerID, to *domain.PeerID, payload json.RawMessage) {
	recipients, err := c.Sessions.Recipients(peer, to)
	if err != nil {
		log.Debug().Str("module", "app.coordinator").Uint64("peer", uint64(peer)).
			Err(err).Msg("frame dropped")
		return
	}

	msg := protocol.Signal(peer, payload)
	for _, r := range recipients {
		c.deliver(r, msg)
	}
}

// Disconnect runs the leave protocol for peer and severs its registry
// binding. Safe to call more than once and for peers that never joined.
func (c *Coordinator) Disconnect(peer domain.PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, left := c.Sessions.Leave(peer, func(t domain.Topology) TopologyPolicy { return c.policies[t] })
	if left {
		c.notifyLeave(res)
	}
	c.Registry.Unregister(peer)
}

func (c *Coordinator) notifyLeave(res LeaveResult) {
	switch res.Outcome {
	case HostLeft:
		// The session is gone; remaining clients must rejoin with a new
		// session, so their connections are closed after notification.
		for _, m := range res.Affected {
			c.deliver(m, protocol.HostLeft())
			c.closePeer(m)
		}
		log.Info().Str("module", "app.coordinator").Str("session", string(res.Session)).
			Int("clients", len(res.Affected)).Msg("host left, session torn down")
	case MemberLeft:
		msg := protocol.PeerLeft(res.Peer)
		for _, m := range res.Affected {
			c.deliver(m, msg)
		}
	case SessionDestroyed:
		log.Info().Str("module", "app.coordinator").Str("session", string(res.Session)).
			Msg("session destroyed")
	}
}

// DestroySession is the administrative teardown used by the REST API.
// Members are notified and disconnected.
func (c *Coordinator) DestroySession(topology domain.Topology, sid domain.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	members, ok := c.Sessions.Destroy(topology, sid)
	if !ok {
		return false
	}
	for _, m := range members {
		c.deliver(m, protocol.HostLeft())
		c.closePeer(m)
	}
	return true
}

// deliver encodes and enqueues one outbound message, applying the
// backpressure policy on queue overflow. Unreachable peers are a normal
// race with disconnect and only logged.
func (c *Coordinator) deliver(peer domain.PeerID, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Str("module", "app.coordinator").Err(err).Msg("encode outbound")
		return
	}
	err = c.Registry.Send(peer, core.Frame(frame))
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrBackpressure) {
		if c.Backpressure.OnBackpressure(peer) == KickPeer {
			log.Warn().Str("module", "app.coordinator").Uint64("peer", uint64(peer)).
				Msg("slow peer kicked")
			c.closePeer(peer)
			return
		}
		log.Warn().Str("module", "app.coordinator").Uint64("peer", uint64(peer)).
			Msg("frame dropped for slow peer")
		return
	}
	log.Debug().Str("module", "app.coordinator").Uint64("peer", uint64(peer)).
		Err(err).Msg("delivery failed")
}

func (c *Coordinator) closePeer(peer domain.PeerID) {
	if conn, ok := c.Registry.Connection(peer); ok {
		conn.Close()
	}
}
