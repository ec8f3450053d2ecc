package domain

import "errors"

// Join-time errors. These are connection-fatal: the coordinator reports
// them to the joining peer and the adapter closes the connection.
var (
	ErrSessionFull      = errors.New("session full")
	ErrTopologyMismatch = errors.New("session exists with a different topology")
	ErrAlreadyJoined    = errors.New("peer already joined a session")
)

// Routing-time errors. Best-effort signaling: the frame is dropped and the
// sender's connection stays open.
var (
	ErrNoOtherPeer      = errors.New("no other peer in session")
	ErrUnknownRecipient = errors.New("recipient is not a session member")
	ErrMissingRecipient = errors.New("recipient required for this topology")
	ErrNotInSession     = errors.New("peer is not in a session")
)

// Delivery errors.
var (
	ErrPeerUnreachable = errors.New("peer unreachable")
	ErrBackpressure    = errors.New("send queue full")
)
