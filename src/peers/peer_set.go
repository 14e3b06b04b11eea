package peers

import (
	"sync"
)

// PeerSet is the registry of peers a node knows about. It is safe for
// concurrent use. Snapshots are returned in insertion order.
type PeerSet struct {
	l      sync.RWMutex
	peers  []Peer
	byAddr map[Peer]struct{}
}

// NewPeerSet creates a PeerSet from a list of Peers. Duplicates are ignored.
func NewPeerSet(peers []Peer) *PeerSet {
	peerSet := &PeerSet{
		byAddr: make(map[Peer]struct{}),
	}

	for _, p := range peers {
		peerSet.add(p)
	}

	return peerSet
}

// Add inserts a peer. It returns false if the peer was already known.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.l.Lock()
	defer ps.l.Unlock()

	return ps.add(peer)
}

func (ps *PeerSet) add(peer Peer) bool {
	if peer.IsZero() {
		return false
	}
	if _, ok := ps.byAddr[peer]; ok {
		return false
	}
	ps.byAddr[peer] = struct{}{}
	ps.peers = append(ps.peers, peer)
	return true
}

// Remove deletes a peer. It returns false if the peer was unknown.
func (ps *PeerSet) Remove(peer Peer) bool {
	ps.l.Lock()
	defer ps.l.Unlock()

	if _, ok := ps.byAddr[peer]; !ok {
		return false
	}
	delete(ps.byAddr, peer)
	_, ps.peers = ExcludePeer(ps.peers, peer)
	return true
}

// Merge adds every peer of the list except self, and returns the number of
// peers that were new. Self is matched with SameEndpoint, so "localhost" and
// loopback IPs on the same port are all recognised as this node.
func (ps *PeerSet) Merge(peers []Peer, self Peer) int {
	ps.l.Lock()
	defer ps.l.Unlock()

	added := 0
	for _, p := range peers {
		if p.SameEndpoint(self) {
			continue
		}
		if ps.add(p) {
			added++
		}
	}
	return added
}

// All returns a snapshot of the registry. Later changes to the registry do
// not affect the returned slice.
func (ps *PeerSet) All() []Peer {
	ps.l.RLock()
	defer ps.l.RUnlock()

	res := make([]Peer, len(ps.peers))
	copy(res, ps.peers)
	return res
}

// Contains reports whether the peer is in the registry.
func (ps *PeerSet) Contains(peer Peer) bool {
	ps.l.RLock()
	defer ps.l.RUnlock()

	_, ok := ps.byAddr[peer]
	return ok
}

// Len returns the number of Peers in the PeerSet
func (ps *PeerSet) Len() int {
	ps.l.RLock()
	defer ps.l.RUnlock()

	return len(ps.peers)
}
