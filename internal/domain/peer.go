// Package domain contains entities without logic, just meta-data.
package domain

// PeerID identifies one connected peer for the lifetime of its connection.
// Issued by the connection registry, never recycled while the process runs.
type PeerID uint64

// SessionID is the opaque rendezvous key peers share out-of-band.
type SessionID string

// Topology is fixed per session by the endpoint the first peer joined through.
type Topology string

const (
	OneToOne   Topology = "one-to-one"
	OneToMany  Topology = "one-to-many"
	ManyToMany Topology = "many-to-many"
)

// Valid reports whether t is one of the supported topologies.
func (t Topology) Valid() bool {
	switch t {
	case OneToOne, OneToMany, ManyToMany:
		return true
	}
	return false
}

// Role is the part a peer plays inside its session. Only one-to-many
// distinguishes roles; elsewhere it stays RoleNone.
type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "host"
	RoleClient Role = "client"
)
