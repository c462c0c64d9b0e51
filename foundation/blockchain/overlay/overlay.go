// Package overlay implements the node's view of the unstructured peer
// network: a known-peer table, a capped active-connection table, group
// balancing, bootstrap, peer exchange, and health-driven eviction with
// replacement.
package overlay

import (
	"net/http"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/identity"
	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// Tunable caps and timers, matching spec.md's resource bounds exactly.
const (
	MaxInternalConnections = 4
	MaxExternalConnections = 4
	MaxRetries             = 3

	PeerExchangeInterval = 30 * time.Second
	PropagationInterval  = 45 * time.Second
	PeerTimeout          = 10 * time.Minute
	CleanupInterval      = 30 * time.Second

	RequestTimeout = 5 * time.Second
)

// Manager owns the known-peer and active-connection tables for one node
// and enforces the group-balanced connection caps.
type Manager struct {
	nodeID string
	group  byte

	known  *peer.Set
	active *peer.Set

	client *http.Client

	// inFlightExchange guards the peer exchange loop with a single-flight
	// semantic: if a prior tick is still running, the next tick is skipped.
	inFlightExchange chan struct{}

	evHandler func(v string, args ...any)
}

// New constructs a Manager for the given node identity.
func New(nodeID string, evHandler func(v string, args ...any)) *Manager {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &Manager{
		nodeID:           nodeID,
		group:            identity.Group(nodeID),
		known:            peer.NewSet(),
		active:           peer.NewSet(),
		client:           &http.Client{Timeout: RequestTimeout},
		inFlightExchange: make(chan struct{}, 1),
		evHandler:        evHandler,
	}
}

// KnownPeers returns every peer this node has learned about.
func (m *Manager) KnownPeers() []peer.Peer {
	return m.known.Copy(m.nodeID)
}

// ActivePeers returns the peers currently in the active-connection table.
func (m *Manager) ActivePeers() []peer.Peer {
	return m.active.Copy(m.nodeID)
}

// ActiveCountByGroup reports the active-connection counts on each side of
// the internal/external split.
func (m *Manager) ActiveCountByGroup() (internal, external int) {
	return m.active.CountByGroup(m.group)
}

// capsSaturated reports whether both connection caps are currently full.
func (m *Manager) capsSaturated() bool {
	internal, external := m.ActiveCountByGroup()
	return internal >= MaxInternalConnections && external >= MaxExternalConnections
}

// canAcceptActive reports whether p can still be admitted to the active
// set without breaking a cap. Checked at intent, post-ping, and
// peer-exchange acceptance time, per spec.md's race-avoidance requirement.
func (m *Manager) canAcceptActive(p peer.Peer) bool {
	if _, exists := m.active.Get(p.NodeID); exists {
		return true
	}

	internal, external := m.ActiveCountByGroup()
	if p.Internal(m.group) {
		return internal < MaxInternalConnections
	}
	return external < MaxExternalConnections
}

// AddKnown inserts p into the known-peer table. Returns true if p is new.
func (m *Manager) AddKnown(p peer.Peer) bool {
	if p.NodeID == m.nodeID {
		return false
	}
	return m.known.Add(p)
}

// RemoveKnown deletes a peer from the known-peer table entirely.
func (m *Manager) RemoveKnown(nodeID string) {
	m.known.Remove(nodeID)
}

// removeActive deletes a peer from the active-connection table only; it
// remains in the known-peer table for a future replacement attempt.
func (m *Manager) removeActive(nodeID string) {
	m.active.Remove(nodeID)
}

// Touch refreshes a peer's lastSeen and resets its retry counter on a
// successful round trip, in both the active and known tables.
func (m *Manager) Touch(nodeID string) {
	m.active.Touch(nodeID)
	m.known.Touch(nodeID)
}

// IncActiveRetries increments an active peer's retry counter after a
// failed round trip and returns the new value.
func (m *Manager) IncActiveRetries(nodeID string) int {
	return m.active.IncRetries(nodeID)
}

// EvictActive drops a peer from the active-connection table and attempts
// to replace it with another known peer from the same group.
func (m *Manager) EvictActive(nodeID string) {
	p, exists := m.active.Get(nodeID)
	if !exists {
		return
	}

	m.evHandler("overlay: evictActive: nodeId[%s]: EVICTED", nodeID)
	m.removeActive(nodeID)
	m.tryReplaceDisconnectedPeer(p.Group)
}
