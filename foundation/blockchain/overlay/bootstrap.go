package overlay

import (
	"context"
	"math/rand"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// BootstrapResult collects whatever inventory our bootstrap peers
// advertised, so the caller can feed it through the consensus engine.
type BootstrapResult struct {
	Blocks       []database.Block
	Transactions []database.Transaction
}

// Bootstrap contacts each address in addrs with /register, activates
// responders (respecting the connection caps), merges their advertised
// peer lists into the known table, and collects any inventory they
// advertise back.
func (m *Manager) Bootstrap(ctx context.Context, addrs []string, ip, port string) BootstrapResult {
	var result BootstrapResult

	for _, addr := range addrs {
		resp, err := m.Register(ctx, addr, ip, port)
		if err != nil {
			m.evHandler("overlay: bootstrap: %s: ERROR: %s", addr, err)
			continue
		}

		bootstrapPeer := peer.New(resp.NodeID, resp.IP, resp.Port)
		m.known.Add(bootstrapPeer)
		if m.canAcceptActive(bootstrapPeer) {
			m.active.Add(bootstrapPeer)
			m.active.Touch(bootstrapPeer.NodeID)
		}
		m.known.Touch(bootstrapPeer.NodeID)

		m.mergeAdvertisedPeers(resp.Peers)

		result.Blocks = append(result.Blocks, resp.Blocks...)
		result.Transactions = append(result.Transactions, resp.Transactions...)

		m.evHandler("overlay: bootstrap: %s: ADDED: nodeId[%s]", addr, bootstrapPeer.NodeID)
	}

	return result
}

// mergeAdvertisedPeers adds a randomized subset of advertised peers to
// the known table, attempting to fill whichever connection caps still
// have room, capped at the caps' combined size.
func (m *Manager) mergeAdvertisedPeers(infos []api.PeerInfo) {
	order := rand.Perm(len(infos))

	for _, idx := range order {
		if m.capsSaturated() {
			return
		}

		p := peer.FromInfo(infos[idx])
		if p.NodeID == m.nodeID {
			continue
		}

		if m.known.Add(p) {
			m.evHandler("overlay: mergeAdvertisedPeers: learned nodeId[%s]", p.NodeID)
		}

		if m.canAcceptActive(p) {
			m.active.Add(p)
			m.active.Touch(p.NodeID)
		}
	}
}
