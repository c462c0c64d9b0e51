// Package v1 binds the node's HTTP API to its web.App mux. Unlike the
// wallet-facing/node-facing split the teacher draws between public and
// private handler groups, this domain has exactly one set of endpoints:
// every route here is meant to be called by peers and operators alike,
// so there is no private mux (see DESIGN.md).
package v1

import (
	"net/http"

	"github.com/overlaychain/node/app/services/node/handlers/v1/nodeapi"
	"github.com/overlaychain/node/foundation/blockchain/state"
	"github.com/overlaychain/node/foundation/events"
	"github.com/overlaychain/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Evts   *events.Events
	Worker nodeapi.Worker
}

// Routes binds every route from spec.md's endpoint table plus the
// ambient /events observability endpoint, unversioned at the mux root so
// paths match the spec exactly ("/status", not "/v1/status").
func Routes(app *web.App, cfg Config) {
	h := nodeapi.Handlers{
		Log:    cfg.Log,
		State:  cfg.State,
		Evts:   cfg.Evts,
		Worker: cfg.Worker,
		WS:     websocket.Upgrader{},
	}

	const noVersion = ""

	app.Handle(http.MethodGet, noVersion, "/status", h.Status)
	app.Handle(http.MethodGet, noVersion, "/peers", h.Peers)
	app.Handle(http.MethodGet, noVersion, "/inventory", h.Inventory)
	app.Handle(http.MethodGet, noVersion, "/getblocks", h.GetBlocks)
	app.Handle(http.MethodGet, noVersion, "/balance", h.Balance)
	app.Handle(http.MethodGet, noVersion, "/consensus", h.Consensus)
	app.Handle(http.MethodGet, noVersion, "/ping", h.Ping)
	app.Handle(http.MethodPost, noVersion, "/register", h.Register)
	app.Handle(http.MethodPost, noVersion, "/inv", h.SubmitTransaction)
	app.Handle(http.MethodPost, noVersion, "/block", h.SubmitBlock)
	app.Handle(http.MethodPost, noVersion, "/sync", h.Sync)
	app.Handle(http.MethodGet, noVersion, "/events", h.Events)
}
