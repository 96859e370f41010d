// Package peer maintains the set of known peers and the status
// information they exchange during sync.
package peer

import (
	"sync"
)

// Peer represents information about a node in the network.
type Peer struct {
	Host string
}

// New constructs a new peer value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents what a peer reports about its chain. The genesis hash
// is the network identity check: a peer on a different genesis is not a
// peer at all. The cumulative work lets a syncing node skip chains that
// cannot win the fork comparison.
type Status struct {
	GenesisHash    string `json:"genesis_hash"`
	TipHash        string `json:"tip_hash"`
	TipNumber      uint64 `json:"tip_number"`
	CumulativeWork uint64 `json:"cumulative_work"`
	KnownPeers     []Peer `json:"known_peers"`
}

// =============================================================================

// Set represents the data representation to maintain a set of known peers.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs a new set to manage node peer information.
func NewSet() *Set {
	return &Set{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set. It reports whether the peer was new.
func (ps *Set) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *Set) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Copy returns a list of the known peers, excluding the specified host.
func (ps *Set) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	return peers
}
