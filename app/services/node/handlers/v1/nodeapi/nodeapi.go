// Package nodeapi implements the node's HTTP surface: the status/query
// endpoints any client can poll, and the peer-to-peer endpoints other
// nodes use to register, flood transactions and blocks, and sync
// inventory.
package nodeapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/overlaychain/node/business/web/errs"
	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/peer"
	"github.com/overlaychain/node/foundation/blockchain/state"
	"github.com/overlaychain/node/foundation/events"
	"github.com/overlaychain/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Worker is the subset of worker.Worker a handler needs: the ability to
// request an out-of-band sync after a new peer registers.
type Worker interface {
	SignalSync()
}

// Handlers owns the node's wired-up state and dependencies for every
// route in this package.
type Handlers struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Evts   *events.Events
	Worker Worker
	WS     websocket.Upgrader
}

// Status answers GET /status.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.BuildStatus(), http.StatusOK)
}

// Peers answers GET /peers with the active connection table.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	active := h.State.Overlay.ActivePeers()

	resp := make(api.PeersResponse, 0, len(active))
	for _, p := range active {
		resp = append(resp, p.Info())
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Inventory answers GET /inventory.
func (h Handlers) Inventory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Store.GetInventory(), http.StatusOK)
}

// GetBlocks answers GET /getblocks. `?hash=X` returns the single matching
// block; `?mainchain=true` returns only the canonical chain; no
// parameters returns every stored block, including side branches.
func (h Handlers) GetBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if blockHash := r.URL.Query().Get("hash"); blockHash != "" {
		b, found := h.State.Store.GetBlock(blockHash)
		if !found {
			return errs.NewTrusted(errors.New("block not found"), http.StatusNotFound)
		}
		return web.Respond(ctx, w, []database.Block{b}, http.StatusOK)
	}

	if r.URL.Query().Get("mainchain") == "true" {
		return web.Respond(ctx, w, h.State.Store.GetMainChain(), http.StatusOK)
	}

	return web.Respond(ctx, w, h.State.Store.GetBlocks(), http.StatusOK)
}

// Balance answers GET /balance with every known balance.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Balances map[string]int64 `json:"balances"`
	}{
		Balances: h.State.Store.Balances(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Consensus answers GET /consensus with the current head metadata.
func (h Handlers) Consensus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Store.GetConsensus(), http.StatusOK)
}

// Ping answers GET /ping.
func (h Handlers) Ping(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, api.PingResponse{Status: "alive"}, http.StatusOK)
}

// Register answers POST /register: a caller announces itself, we add it
// as a known peer and hand back our own peer list and full inventory so
// the caller can bootstrap off this single round trip.
func (h Handlers) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req api.RegisterRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	caller := peer.New(req.NodeID, req.IP, req.Port)
	h.State.Overlay.AddKnown(caller)

	known := h.State.Overlay.KnownPeers()
	peers := make([]api.PeerInfo, 0, len(known))
	for _, p := range known {
		peers = append(peers, p.Info())
	}

	if h.Worker != nil {
		h.Worker.SignalSync()
	}

	resp := api.RegisterResponse{
		Status:       "registered",
		Peers:        peers,
		NodeID:       h.State.NodeID,
		IP:           h.State.IP,
		Port:         h.State.Port,
		Blocks:       h.State.Store.GetBlocks(),
		Transactions: h.State.Store.PendingTransactions(0),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction answers POST /inv.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req api.TransactionRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	tx, err := database.NewTransaction(req.Sender, req.Receiver, req.Amount)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	result, err := h.State.Store.AddTransaction(tx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, api.StatusResponse{Status: string(result)}, http.StatusOK)
}

// SubmitBlock answers POST /block.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req api.BlockRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	result, err := h.State.Store.AddBlock(req.Block)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, api.StatusResponse{Status: string(result)}, http.StatusOK)
}

// Sync answers POST /sync: a bulk push of peers and/or inventory from
// another node, e.g. the worker's periodic sync tick or a propagator
// fan-out.
func (h Handlers) Sync(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req api.SyncRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	var addedPeers, addedBlocks, addedTransactions int

	for _, info := range req.Peers {
		if h.State.Overlay.AddKnown(peer.FromInfo(info)) {
			addedPeers++
		}
	}

	for _, b := range req.Blocks {
		result, err := h.State.Store.AddBlock(b)
		if err != nil {
			continue
		}
		if result == database.Added {
			addedBlocks++
		}
	}

	for _, tx := range req.Transactions {
		result, err := h.State.Store.AddTransaction(tx)
		if err != nil {
			continue
		}
		if result == database.Added {
			addedTransactions++
		}
	}

	resp := api.SyncResponse{
		Status:            "ok",
		Added:             addedPeers,
		AddedBlocks:       addedBlocks,
		AddedTransactions: addedTransactions,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events upgrades to a websocket and streams this node's own log lines
// to the connected client until it disconnects or the node shuts down.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}
