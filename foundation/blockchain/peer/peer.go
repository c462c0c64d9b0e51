// Package peer maintains the representation of a single node in the
// overlay network plus the set type used to hold collections of them
// (the known-peer table and the active-connection table both use it).
package peer

import (
	"fmt"
	"sync"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/api"
)

// Peer represents information about a node in the overlay network.
type Peer struct {
	NodeID   string    `json:"nodeId"`
	IP       string    `json:"ip"`
	Port     string    `json:"port"`
	Group    byte      `json:"-"`
	LastSeen time.Time `json:"-"`
	Retries  int       `json:"-"`
}

// New constructs a Peer value, deriving its group from the first hex
// character of the node id the same way the local node derives its own.
func New(nodeID, ip, port string) Peer {
	return Peer{
		NodeID:   nodeID,
		IP:       ip,
		Port:     port,
		Group:    Group(nodeID),
		LastSeen: time.Now(),
	}
}

// Group returns the group byte (first character) for a node id.
func Group(nodeID string) byte {
	if len(nodeID) == 0 {
		return 0
	}
	return nodeID[0]
}

// Host returns the "ip:port" dial string for this peer.
func (p Peer) Host() string {
	return fmt.Sprintf("%s:%s", p.IP, p.Port)
}

// Match reports whether this peer represents the given node id.
func (p Peer) Match(nodeID string) bool {
	return p.NodeID == nodeID
}

// Internal reports whether the peer shares our group, i.e. is an
// "internal" connection from our perspective.
func (p Peer) Internal(ourGroup byte) bool {
	return p.Group == ourGroup
}

// Info converts p to the wire representation used by every endpoint that
// advertises peers.
func (p Peer) Info() api.PeerInfo {
	return api.PeerInfo{NodeID: p.NodeID, IP: p.IP, Port: p.Port}
}

// FromInfo constructs a Peer from its wire representation.
func FromInfo(info api.PeerInfo) Peer {
	return New(info.NodeID, info.IP, info.Port)
}

// =============================================================================

// Status represents the liveness/consensus status any given peer reports
// about itself.
type Status struct {
	NodeID     string `json:"nodeId"`
	IP         string `json:"ip"`
	Port       string `json:"port"`
	CurrentHead string `json:"currentHead"`
	ChainHeight int    `json:"chainHeight"`
}

// =============================================================================

// Set represents a concurrency-safe collection of peers keyed by node id.
// Both the known-peer table and the active-connection table are a Set.
type Set struct {
	mu  sync.RWMutex
	set map[string]Peer
}

// NewSet constructs an empty peer set.
func NewSet() *Set {
	return &Set{
		set: make(map[string]Peer),
	}
}

// Add inserts or replaces a peer in the set. Returns true if the peer
// is new to the set.
func (s *Set) Add(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.set[p.NodeID]
	s.set[p.NodeID] = p
	return !exists
}

// Remove deletes a peer from the set by node id.
func (s *Set) Remove(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.set, nodeID)
}

// Get returns the peer for the given node id.
func (s *Set) Get(nodeID string) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.set[nodeID]
	return p, exists
}

// Touch refreshes a peer's lastSeen and resets its retry counter.
func (s *Set) Touch(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.set[nodeID]; exists {
		p.LastSeen = time.Now()
		p.Retries = 0
		s.set[nodeID] = p
	}
}

// IncRetries increments the retry counter for a peer and returns the new
// value. Returns -1 if the peer isn't present.
func (s *Set) IncRetries(nodeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.set[nodeID]
	if !exists {
		return -1
	}

	p.Retries++
	s.set[nodeID] = p
	return p.Retries
}

// Copy returns a slice of every peer in the set, excluding the given
// node id (typically the caller's own id, so it is never sent back to
// itself).
func (s *Set) Copy(excludeNodeID string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.set))
	for nodeID, p := range s.set {
		if nodeID == excludeNodeID {
			continue
		}
		peers = append(peers, p)
	}

	return peers
}

// Len returns the number of peers currently in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.set)
}

// CountByGroup returns the number of peers in the set for each of the
// internal/external partitions relative to ourGroup.
func (s *Set) CountByGroup(ourGroup byte) (internal, external int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.set {
		if p.Group == ourGroup {
			internal++
		} else {
			external++
		}
	}

	return internal, external
}

// StaleBefore returns the node ids of peers whose lastSeen is older than
// the given cutoff.
func (s *Set) StaleBefore(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []string
	for nodeID, p := range s.set {
		if p.LastSeen.Before(cutoff) {
			stale = append(stale, nodeID)
		}
	}

	return stale
}
