// Package worker runs the node's periodic background operations: peer
// exchange, peer-list propagation, inventory sync with active peers,
// stale-peer cleanup, and known-peer snapshotting. Each operation runs on
// its own ticker in its own goroutine, the same shape the teacher's
// mining/share-transaction workers use, generalized from "one operation"
// to "several independent tickers sharing one shutdown signal."
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/overlay"
	"github.com/overlaychain/node/foundation/blockchain/propagator"
	"github.com/overlaychain/node/foundation/blockchain/state"
)

// SnapshotInterval is how often the known-peer table is written to disk.
const SnapshotInterval = 60 * time.Second

// Worker owns the set of periodic goroutines for one running node.
type Worker struct {
	state      *state.State
	propagator *propagator.Propagator
	statePath  string

	evHandler func(v string, args ...any)

	wg     sync.WaitGroup
	cancel func()

	// syncSignal lets a handler (e.g. a freshly-registered peer) request
	// an out-of-band sync tick without waiting for the next timer, guarded
	// with the same non-blocking select-default single-flight idiom the
	// peer-exchange loop itself uses.
	syncSignal chan struct{}
}

// New constructs a Worker for the given node state and statePath (the
// known-peer snapshot file; empty disables snapshotting).
func New(st *state.State, prop *propagator.Propagator, statePath string) *Worker {
	return &Worker{
		state:      st,
		propagator: prop,
		statePath:  statePath,
		evHandler:  st.EventHandler(),
		syncSignal: make(chan struct{}, 1),
	}
}

// Start launches every periodic goroutine. The context they share is
// cancelled by Stop.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if w.statePath != "" {
		if err := w.state.Overlay.LoadSnapshot(w.statePath); err != nil {
			w.evHandler("worker: loadSnapshot: ERROR: %s", err)
		}
	}

	w.runTicker(ctx, overlay.PeerExchangeInterval, w.exchangeOperation)
	w.runTicker(ctx, overlay.PropagationInterval, w.propagateOperation)
	w.runTicker(ctx, overlay.PeerExchangeInterval, w.syncOperation)
	w.runTicker(ctx, overlay.CleanupInterval, w.cleanupOperation)

	if w.statePath != "" {
		w.runTicker(ctx, SnapshotInterval, w.snapshotOperation)
	}

	w.wg.Add(1)
	go w.syncSignalLoop(ctx)
}

// Stop cancels every running goroutine and waits for them to exit.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	if w.statePath != "" {
		if err := w.state.Overlay.SnapshotToDisk(w.statePath); err != nil {
			w.evHandler("worker: stop: snapshotToDisk: ERROR: %s", err)
		}
	}
}

// SignalSync requests an out-of-band inventory sync, e.g. right after a
// new peer registers. Non-blocking: if a sync is already queued, this is
// a no-op; a signal sent while a sync is running queues one more.
func (w *Worker) SignalSync() {
	select {
	case w.syncSignal <- struct{}{}:
	default:
	}
}

// runTicker launches goroutine that calls op once per interval until ctx
// is cancelled.
func (w *Worker) runTicker(ctx context.Context, interval time.Duration, op func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				op(ctx)
			}
		}
	}()
}

func (w *Worker) syncSignalLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.syncSignal:
			w.syncOperation(ctx)
		}
	}
}

func (w *Worker) exchangeOperation(ctx context.Context) {
	w.state.Overlay.ExchangeOnce(ctx)
}

func (w *Worker) propagateOperation(ctx context.Context) {
	w.propagator.PeerList()
}

func (w *Worker) cleanupOperation(ctx context.Context) {
	w.state.Overlay.Cleanup()
}

func (w *Worker) snapshotOperation(ctx context.Context) {
	if err := w.state.Overlay.SnapshotToDisk(w.statePath); err != nil {
		w.evHandler("worker: snapshotOperation: ERROR: %s", err)
	}
}
