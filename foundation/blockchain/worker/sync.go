package worker

import (
	"context"
	"sync"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/overlay"
	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// syncOperation pushes this node's full inventory (every block, every
// pending transaction) to each active peer, the periodic inventory-sync
// tick alongside peer exchange and peer-list propagation.
func (w *Worker) syncOperation(ctx context.Context) {
	active := w.state.Overlay.ActivePeers()
	if len(active) == 0 {
		return
	}

	req := api.SyncRequest{
		Blocks:       w.state.Store.GetBlocks(),
		Transactions: w.state.Store.PendingTransactions(0),
	}

	var wg sync.WaitGroup
	for _, p := range active {
		wg.Add(1)
		go func(p peer.Peer) {
			defer wg.Done()

			reqCtx, cancel := context.WithTimeout(ctx, overlay.RequestTimeout)
			defer cancel()

			resp, err := w.state.Overlay.PushSync(reqCtx, p, req)
			if err != nil {
				w.evHandler("worker: syncOperation: nodeId[%s]: ERROR: %s", p.NodeID, err)
				return
			}

			w.state.Overlay.Touch(p.NodeID)

			if resp.AddedBlocks > 0 || resp.AddedTransactions > 0 {
				w.evHandler("worker: syncOperation: nodeId[%s]: peer accepted %d blocks, %d transactions",
					p.NodeID, resp.AddedBlocks, resp.AddedTransactions)
			}
		}(p)
	}
	wg.Wait()
}
