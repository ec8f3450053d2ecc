package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avolkov/peergate/internal/core"
	"github.com/avolkov/peergate/internal/domain"
)

// Session is one rendezvous group. Membership keeps arrival order; the
// first one-to-many joiner is recorded as host for the session's lifetime.
type Session struct {
	ID       domain.SessionID
	Topology domain.Topology

	members []domain.PeerID
	host    domain.PeerID
	hasHost bool
}

func (s *Session) Len() int { return len(s.members) }

// Members returns the arrival-ordered membership as a copy.
func (s *Session) Members() []domain.PeerID {
	out := make([]domain.PeerID, len(s.members))
	copy(out, s.members)
	return out
}

func (s *Session) Contains(peer domain.PeerID) bool {
	for _, m := range s.members {
		if m == peer {
			return true
		}
	}
	return false
}

func (s *Session) Host() (domain.PeerID, bool) {
	return s.host, s.hasHost
}

func (s *Session) add(peer domain.PeerID) {
	s.members = append(s.members, peer)
}

func (s *Session) remove(peer domain.PeerID) {
	for i, m := range s.members {
		if m == peer {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// Table owns every live session. A session exists in the table iff it has
// at least one member; a peer belongs to at most one session. All reads
// and writes go through the table lock so routing decisions and membership
// mutations stay linearizable per session.
type Table struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	byPeer   map[domain.PeerID]domain.SessionID
}

func NewTable() *Table {
	return &Table{
		sessions: make(map[domain.SessionID]*Session),
		byPeer:   make(map[domain.PeerID]domain.SessionID),
	}
}

// Join runs the topology policy for peer against the session named by sid,
// creating the session on first join. The policy decision and the
// membership mutation happen atomically under the table lock.
func (t *Table) Join(topology domain.Topology, sid domain.SessionID, peer domain.PeerID, policy TopologyPolicy) (JoinResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, joined := t.byPeer[peer]; joined {
		return JoinResult{}, domain.ErrAlreadyJoined
	}

	s, exists := t.sessions[sid]
	if exists && s.Topology != topology {
		return JoinResult{}, domain.ErrTopologyMismatch
	}
	if !exists {
		s = &Session{ID: sid, Topology: topology}
	}

	res, err := policy.OnJoin(s, peer)
	if err != nil {
		return JoinResult{}, err
	}

	if !exists {
		t.sessions[sid] = s
	}
	t.byPeer[peer] = sid
	log.Info().Str("module", "app.table").Str("session", string(sid)).
		Str("topology", string(topology)).Uint64("peer", uint64(peer)).
		Str("role", string(res.Role)).Msg("peer joined session")
	return res, nil
}

// Leave removes peer from its session, if any, and reports who is affected.
// Idempotent: a second leave for the same peer is a no-op. When the policy
// declares the session dead (empty, or one-to-many host gone) the session
// and all remaining membership links are dropped atomically.
func (t *Table) Leave(peer domain.PeerID, policy func(domain.Topology) TopologyPolicy) (LeaveResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sid, joined := t.byPeer[peer]
	if !joined {
		return LeaveResult{}, false
	}
	delete(t.byPeer, peer)

	s := t.sessions[sid]
	res := policy(s.Topology).OnLeave(s, peer)
	res.Peer = peer
	res.Session = sid
	res.Topology = s.Topology

	if res.Outcome != MemberLeft {
		delete(t.sessions, sid)
		for _, m := range res.Affected {
			delete(t.byPeer, m)
		}
	}
	log.Info().Str("module", "app.table").Str("session", string(sid)).
		Uint64("peer", uint64(peer)).Int("outcome", int(res.Outcome)).Msg("peer left session")
	return res, true
}

// Recipients resolves the delivery set for a frame from sender, using the
// session the sender currently belongs to.
func (t *Table) Recipients(sender domain.PeerID, to *domain.PeerID) ([]domain.PeerID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sid, joined := t.byPeer[sender]
	if !joined {
		return nil, domain.ErrNotInSession
	}
	return route(t.sessions[sid], sender, to)
}

// Destroy tears a session down administratively and returns its members.
func (t *Table) Destroy(topology domain.Topology, sid domain.SessionID) ([]domain.PeerID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sid]
	if !ok || s.Topology != topology {
		return nil, false
	}
	members := s.Members()
	for _, m := range members {
		delete(t.byPeer, m)
	}
	delete(t.sessions, sid)
	return members, true
}

// Get returns a detail view of one session.
func (t *Table) Get(topology domain.Topology, sid domain.SessionID) (core.SessionDetail, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sid]
	if !ok || s.Topology != topology {
		return core.SessionDetail{}, false
	}
	detail := core.SessionDetail{ID: s.ID, Topology: s.Topology, Peers: s.Members()}
	if host, hasHost := s.Host(); hasHost {
		h := host
		detail.Host = &h
	}
	return detail, true
}

func (t *Table) List() []core.SessionInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.SessionInfo, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, core.SessionInfo{ID: s.ID, Topology: s.Topology, PeerCount: s.Len()})
	}
	return out
}

func (t *Table) SessionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
