package overlay

import (
	"context"
	"errors"
	"math/rand"

	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// errCapsSaturated is returned by TryEstablishConnection when the
// relevant connection cap is already full.
var errCapsSaturated = errors.New("connection cap saturated")

// TryEstablishConnection attempts to bring p into the active-connection
// table: caps are checked before and after the /ping round trip to avoid
// races against concurrent discovery, exactly as spec.md requires.
func (m *Manager) TryEstablishConnection(ctx context.Context, p peer.Peer) error {
	if !m.canAcceptActive(p) {
		return errCapsSaturated
	}

	if err := m.Ping(ctx, p); err != nil {
		return err
	}

	if !m.canAcceptActive(p) {
		return errCapsSaturated
	}

	m.active.Add(p)
	m.active.Touch(p.NodeID)
	m.known.Touch(p.NodeID)

	return nil
}

// ExchangeOnce runs one tick of the peer exchange loop: for every active
// peer with retries at or below the budget, fetch its peer list, try to
// fill unsaturated caps from it, and evict peers that exceed the retry
// budget, attempting a same-group replacement. Guarded with a
// single-flight semaphore: if a prior tick is still running, this call
// is a no-op.
func (m *Manager) ExchangeOnce(ctx context.Context) {
	select {
	case m.inFlightExchange <- struct{}{}:
	default:
		m.evHandler("overlay: exchangeOnce: SKIPPED: previous tick still running")
		return
	}
	defer func() { <-m.inFlightExchange }()

	if m.capsSaturated() {
		return
	}

	for _, p := range m.active.Copy(m.nodeID) {
		if p.Retries > MaxRetries {
			continue
		}

		peers, err := m.FetchPeers(ctx, p)
		if err != nil {
			m.handleExchangeFailure(p)
			continue
		}

		m.active.Touch(p.NodeID)
		m.known.Touch(p.NodeID)

		m.fillCapsFrom(ctx, peers)

		if m.capsSaturated() {
			return
		}
	}
}

// handleExchangeFailure increments a peer's retry count on a failed
// exchange and evicts it once it crosses the retry budget, attempting a
// same-group replacement from the known table.
func (m *Manager) handleExchangeFailure(p peer.Peer) {
	retries := m.active.IncRetries(p.NodeID)
	if retries <= MaxRetries {
		m.evHandler("overlay: exchangeOnce: nodeId[%s]: retry %d/%d", p.NodeID, retries, MaxRetries)
		return
	}

	m.evHandler("overlay: exchangeOnce: nodeId[%s]: EVICTED after %d retries", p.NodeID, retries)
	m.removeActive(p.NodeID)
	m.tryReplaceDisconnectedPeer(p.Group)
}

// tryReplaceDisconnectedPeer searches the known-but-not-active peers of
// the same group for a replacement, trying each until one succeeds.
func (m *Manager) tryReplaceDisconnectedPeer(group byte) {
	candidates := m.candidatesForGroup(group)

	for _, c := range candidates {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		err := m.TryEstablishConnection(ctx, c)
		cancel()
		if err == nil {
			m.evHandler("overlay: tryReplaceDisconnectedPeer: nodeId[%s]: REPLACED", c.NodeID)
			return
		}
	}
}

// candidatesForGroup returns known peers of the given group that are not
// currently active, in randomized order.
func (m *Manager) candidatesForGroup(group byte) []peer.Peer {
	known := m.known.Copy(m.nodeID)

	var candidates []peer.Peer
	for _, p := range known {
		if p.Group != group {
			continue
		}
		if _, active := m.active.Get(p.NodeID); active {
			continue
		}
		candidates = append(candidates, p)
	}

	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	return candidates
}

// fillCapsFrom records peers as known and, in randomized order, attempts
// to connect to each one whose group cap still has room, until both caps
// are met or the candidates run out.
func (m *Manager) fillCapsFrom(ctx context.Context, peers []peer.Peer) {
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })

	for _, p := range peers {
		if p.NodeID == m.nodeID {
			continue
		}

		m.known.Add(p)

		if m.capsSaturated() {
			return
		}
		if !m.canAcceptActive(p) {
			continue
		}

		if err := m.TryEstablishConnection(ctx, p); err != nil {
			m.evHandler("overlay: fillCapsFrom: nodeId[%s]: ERROR: %s", p.NodeID, err)
		}
	}
}
