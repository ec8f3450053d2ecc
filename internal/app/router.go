package app

import "github.com/avolkov/peergate/internal/domain"

// route resolves the recipient set for a frame from sender inside s. Pure
// function of session state; the caller holds the table lock.
//
// One-to-one: the other member, whoever it is. One-to-many: the host
// broadcasts to all clients or targets one; clients always reach the host,
// any "to" they set is ignored. Many-to-many: strictly directed.
func route(s *Session, sender domain.PeerID, to *domain.PeerID) ([]domain.PeerID, error) {
	switch s.Topology {
	case domain.OneToOne:
		for _, m := range s.members {
			if m != sender {
				return []domain.PeerID{m}, nil
			}
		}
		return nil, domain.ErrNoOtherPeer

	case domain.OneToMany:
		host, _ := s.Host()
		if sender != host {
			return []domain.PeerID{host}, nil
		}
		if to == nil {
			clients := make([]domain.PeerID, 0, s.Len())
			for _, m := range s.members {
				if m != host {
					clients = append(clients, m)
				}
			}
			return clients, nil
		}
		if !s.Contains(*to) {
			return nil, domain.ErrUnknownRecipient
		}
		return []domain.PeerID{*to}, nil

	default: // domain.ManyToMany
		if to == nil {
			return nil, domain.ErrMissingRecipient
		}
		if !s.Contains(*to) {
			return nil, domain.ErrUnknownRecipient
		}
		return []domain.PeerID{*to}, nil
	}
}
