// Package protocol models the JSON wire surface of the signaling relay.
//
// The relay never looks inside Payload; it only needs the routing fields
// to be present and well-formed.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/avolkov/peergate/internal/domain"
)

type Type string

const (
	// Client -> server.
	TypeJoin   Type = "join"
	TypeSignal Type = "signal"

	// Server -> client.
	TypeJoined     Type = "joined"
	TypePeerJoined Type = "peer_joined"
	TypePeerLeft   Type = "peer_left"
	TypeHostLeft   Type = "host_left"
	TypeError      Type = "error"
)

// Error codes carried on fatal closes.
const (
	CodeProtocolError    = "protocol_error"
	CodeSessionFull      = "session_full"
	CodeTopologyMismatch = "topology_mismatch"
	CodeSessionIDTooLong = "session_id_too_long"
	CodeAlreadyJoined    = "already_joined"
)

// Message is the single envelope carried per WebSocket frame. Which fields
// are meaningful depends on Type; Validate enforces the per-type shape.
type Message struct {
	Type Type `json:"type"`

	// join
	SessionID string `json:"session_id,omitempty"`

	// joined / peer_joined / peer_left
	PeerID *domain.PeerID  `json:"peer_id,omitempty"`
	Role   domain.Role     `json:"role,omitempty"`
	HostID *domain.PeerID  `json:"host_id,omitempty"`
	Peers  []domain.PeerID `json:"peers,omitempty"`

	// signal
	To      *domain.PeerID  `json:"to,omitempty"`
	From    *domain.PeerID  `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Parse decodes one inbound frame and checks its shape. Only client-sent
// message types are accepted here.
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := msg.validateInbound(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (m Message) validateInbound() error {
	switch m.Type {
	case TypeJoin:
		if m.SessionID == "" {
			return fmt.Errorf("join message missing session_id")
		}
	case TypeSignal:
		if len(m.Payload) == 0 {
			return fmt.Errorf("signal message missing payload")
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

// Encode marshals an outbound message. Payload, if set, is emitted verbatim.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Joined(peer domain.PeerID, role domain.Role, host *domain.PeerID, peers []domain.PeerID) Message {
	return Message{Type: TypeJoined, PeerID: &peer, Role: role, HostID: host, Peers: peers}
}

func PeerJoined(peer domain.PeerID) Message {
	return Message{Type: TypePeerJoined, PeerID: &peer}
}

func PeerLeft(peer domain.PeerID) Message {
	return Message{Type: TypePeerLeft, PeerID: &peer}
}

func HostLeft() Message {
	return Message{Type: TypeHostLeft}
}

func Signal(from domain.PeerID, payload json.RawMessage) Message {
	return Message{Type: TypeSignal, From: &from, Payload: payload}
}

func ErrorMessage(code, detail string) Message {
	return Message{Type: TypeError, Code: code, Message: detail}
}
