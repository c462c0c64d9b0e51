// Package propagator fans blocks, transactions, and peer lists out to a
// node's active connections. Fan-out is fire-and-forget for callers:
// delivery is best-effort, and receivers are expected to deduplicate.
package propagator

import (
	"context"
	"sync"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/overlay"
	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// RequestTimeout bounds every individual fan-out request.
const RequestTimeout = 5 * time.Second

// RetryDelay is how long a failed bulk fan-out waits before its one
// retry attempt.
const RetryDelay = 5 * time.Second

// MaxRetries is the per-peer failure budget before eviction.
const MaxRetries = overlay.MaxRetries

// Propagator fans messages out to an overlay.Manager's active peers.
type Propagator struct {
	overlay   *overlay.Manager
	evHandler func(v string, args ...any)
}

// New constructs a Propagator bound to the given overlay manager.
func New(ov *overlay.Manager, evHandler func(v string, args ...any)) *Propagator {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &Propagator{overlay: ov, evHandler: evHandler}
}

// Block floods b to every active peer in parallel.
func (p *Propagator) Block(b database.Block) {
	p.fanOut(func(ctx context.Context, peer peer.Peer) error {
		_, err := p.overlay.PushBlock(ctx, peer, api.BlockRequest{Block: b})
		return err
	})
}

// Transaction floods tx to every active peer in parallel. It is sent
// through /sync with its id intact, so receivers can deduplicate it.
func (p *Propagator) Transaction(tx database.Transaction) {
	req := api.SyncRequest{Transactions: []database.Transaction{tx}}
	p.fanOut(func(ctx context.Context, peer peer.Peer) error {
		_, err := p.overlay.PushSync(ctx, peer, req)
		return err
	})
}

// PeerList floods our current known-peer list to every active peer, the
// periodic propagation described in spec.md §4.4.
func (p *Propagator) PeerList() {
	known := p.overlay.KnownPeers()
	infos := make([]api.PeerInfo, 0, len(known))
	for _, kp := range known {
		infos = append(infos, kp.Info())
	}

	req := api.SyncRequest{Peers: infos}
	p.fanOut(func(ctx context.Context, peer peer.Peer) error {
		_, err := p.overlay.PushSync(ctx, peer, req)
		return err
	})
}

// fanOut sends send to every active peer in parallel with a bounded
// retry: a failing peer gets one bulk retry after RetryDelay, and is
// evicted (with a same-group replacement attempt) on a second failure or
// once its running retry count crosses MaxRetries.
func (p *Propagator) fanOut(send func(ctx context.Context, peer peer.Peer) error) {
	active := p.overlay.ActivePeers()

	failed := p.attempt(active, send)
	if len(failed) == 0 {
		return
	}

	time.Sleep(RetryDelay)

	for _, target := range p.attempt(failed, send) {
		p.overlay.EvictActive(target.NodeID)
		p.evHandler("propagator: fanOut: nodeId[%s]: evicted after retry", target.NodeID)
	}
}

// attempt sends send to every peer in parallel and returns the peers
// that failed, for the retry pass.
func (p *Propagator) attempt(peers []peer.Peer, send func(ctx context.Context, peer peer.Peer) error) []peer.Peer {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []peer.Peer
	)

	for _, target := range peers {
		wg.Add(1)
		go func(target peer.Peer) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
			defer cancel()

			if err := send(ctx, target); err != nil {
				p.handleFailure(target)
				mu.Lock()
				failed = append(failed, target)
				mu.Unlock()
				return
			}

			p.handleSuccess(target)
		}(target)
	}

	wg.Wait()

	return failed
}

func (p *Propagator) handleSuccess(target peer.Peer) {
	p.overlay.Touch(target.NodeID)
}

func (p *Propagator) handleFailure(target peer.Peer) {
	retries := p.overlay.IncActiveRetries(target.NodeID)
	if retries > MaxRetries {
		p.overlay.EvictActive(target.NodeID)
	}
}
