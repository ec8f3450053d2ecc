package core

import "github.com/avolkov/peergate/internal/domain"

// Frame is one raw signaling frame as it travels the wire.
type Frame []byte

// SignalConnection abstracts a peer's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues a frame without blocking. Returns
	// domain.ErrBackpressure when the outbound queue is full.
	TrySend(Frame) error
	Close()
}

// SessionInfo is a read-only listing view for the REST API.
type SessionInfo struct {
	ID        domain.SessionID `json:"session_id"`
	Topology  domain.Topology  `json:"topology"`
	PeerCount int              `json:"peer_count"`
}

// SessionDetail is the per-session REST view (no transport fields).
type SessionDetail struct {
	ID       domain.SessionID `json:"session_id"`
	Topology domain.Topology  `json:"topology"`
	Peers    []domain.PeerID  `json:"peers"`
	Host     *domain.PeerID   `json:"host,omitempty"`
}
