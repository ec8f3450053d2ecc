package app

import (
	"github.com/avolkov/peergate/internal/domain"
)

// JoinResult is what a topology policy decides for an accepted joiner.
type JoinResult struct {
	Role domain.Role
	// Host is set for a one-to-many client so it can address the host.
	Host *domain.PeerID
	// Existing lists members already present, reported to the joiner
	// (many-to-many peer discovery).
	Existing []domain.PeerID
	// Notify lists members that must learn about the join.
	Notify []domain.PeerID
}

type LeaveOutcome int

const (
	// MemberLeft shrinks membership; Affected peers get a peer_left.
	MemberLeft LeaveOutcome = iota
	// HostLeft means a one-to-many session lost its host and is no longer
	// viable; Affected clients are notified and the session is torn down.
	HostLeft
	// SessionDestroyed means the last member left.
	SessionDestroyed
)

type LeaveResult struct {
	Outcome  LeaveOutcome
	Affected []domain.PeerID

	Peer     domain.PeerID
	Session  domain.SessionID
	Topology domain.Topology
}

// TopologyPolicy decides capacity, role assignment and notification sets
// for one topology. Pure decision logic over session state, no I/O; the
// Table invokes it under its lock.
type TopologyPolicy interface {
	Topology() domain.Topology
	OnJoin(s *Session, peer domain.PeerID) (JoinResult, error)
	OnLeave(s *Session, peer domain.PeerID) LeaveResult
}

// oneToOnePolicy: exactly two members, no roles. The earlier member is
// notified when its counterpart arrives.
type oneToOnePolicy struct{}

func (oneToOnePolicy) Topology() domain.Topology { return domain.OneToOne }

func (oneToOnePolicy) OnJoin(s *Session, peer domain.PeerID) (JoinResult, error) {
	if s.Len() >= 2 {
		return JoinResult{}, domain.ErrSessionFull
	}
	res := JoinResult{Notify: s.Members()}
	s.add(peer)
	return res, nil
}

func (oneToOnePolicy) OnLeave(s *Session, peer domain.PeerID) LeaveResult {
	s.remove(peer)
	if s.Len() == 0 {
		return LeaveResult{Outcome: SessionDestroyed}
	}
	return LeaveResult{Outcome: MemberLeft, Affected: s.Members()}
}

// oneToManyPolicy: the first joiner is host for the session's lifetime;
// later joiners are clients and learn the host's id. No host re-election:
// a host leave invalidates the session.
type oneToManyPolicy struct {
	maxPeers int
}

func (oneToManyPolicy) Topology() domain.Topology { return domain.OneToMany }

func (p oneToManyPolicy) OnJoin(s *Session, peer domain.PeerID) (JoinResult, error) {
	if p.maxPeers > 0 && s.Len() >= p.maxPeers {
		return JoinResult{}, domain.ErrSessionFull
	}
	if !s.hasHost {
		s.host = peer
		s.hasHost = true
		s.add(peer)
		return JoinResult{Role: domain.RoleHost}, nil
	}
	host := s.host
	res := JoinResult{Role: domain.RoleClient, Host: &host, Notify: []domain.PeerID{host}}
	s.add(peer)
	return res, nil
}

func (oneToManyPolicy) OnLeave(s *Session, peer domain.PeerID) LeaveResult {
	s.remove(peer)
	if s.hasHost && peer == s.host {
		if s.Len() == 0 {
			return LeaveResult{Outcome: SessionDestroyed}
		}
		return LeaveResult{Outcome: HostLeft, Affected: s.Members()}
	}
	if s.Len() == 0 {
		return LeaveResult{Outcome: SessionDestroyed}
	}
	return LeaveResult{Outcome: MemberLeft, Affected: []domain.PeerID{s.host}}
}

// manyToManyPolicy: no roles, arbitrary join order, optional soft maximum.
// Joiner and existing members are cross-announced so any side can start a
// pairwise negotiation.
type manyToManyPolicy struct {
	maxPeers int
}

func (manyToManyPolicy) Topology() domain.Topology { return domain.ManyToMany }

func (p manyToManyPolicy) OnJoin(s *Session, peer domain.PeerID) (JoinResult, error) {
	if p.maxPeers > 0 && s.Len() >= p.maxPeers {
		return JoinResult{}, domain.ErrSessionFull
	}
	existing := s.Members()
	s.add(peer)
	return JoinResult{Existing: existing, Notify: existing}, nil
}

func (manyToManyPolicy) OnLeave(s *Session, peer domain.PeerID) LeaveResult {
	s.remove(peer)
	if s.Len() == 0 {
		return LeaveResult{Outcome: SessionDestroyed}
	}
	return LeaveResult{Outcome: MemberLeft, Affected: s.Members()}
}

// Policies builds the three strategies with a shared soft maximum for the
// unbounded topologies (0 disables the cap).
func Policies(maxPeers int) map[domain.Topology]TopologyPolicy {
	return map[domain.Topology]TopologyPolicy{
		domain.OneToOne:   oneToOnePolicy{},
		domain.OneToMany:  oneToManyPolicy{maxPeers: maxPeers},
		domain.ManyToMany: manyToManyPolicy{maxPeers: maxPeers},
	}
}

// BackpressureAction is what the coordinator does with a slow peer whose
// outbound queue overflowed.
type BackpressureAction int

const (
	// DropFrame drops the newest frame for that peer only.
	DropFrame BackpressureAction = iota
	// KickPeer closes the slow connection.
	KickPeer
)

// BackpressurePolicy keeps overflow handling deterministic and documented.
type BackpressurePolicy interface {
	OnBackpressure(peer domain.PeerID) BackpressureAction
}

type dropPolicy struct{}

func (dropPolicy) OnBackpressure(domain.PeerID) BackpressureAction { return DropFrame }

type kickPolicy struct{}

func (kickPolicy) OnBackpressure(domain.PeerID) BackpressureAction { return KickPeer }

// BackpressurePolicyByName maps the config value to a policy; unknown
// values fall back to drop.
func BackpressurePolicyByName(name string) BackpressurePolicy {
	if name == "kick" {
		return kickPolicy{}
	}
	return dropPolicy{}
}
