// Package api defines the wire payloads shared by the node's HTTP
// handlers, the overlay manager's outbound peer calls, and the standalone
// miner and client binaries. Keeping them in one package means a node
// talking to another node and a CLI talking to a node decode the exact
// same shapes.
package api

import "github.com/overlaychain/node/foundation/blockchain/database"

// PeerInfo is how a peer identifies itself on the wire.
type PeerInfo struct {
	NodeID string `json:"nodeId"`
	IP     string `json:"ip"`
	Port   string `json:"port"`
}

// RegisterRequest is the POST /register body: a peer announcing itself.
type RegisterRequest struct {
	NodeID string `json:"nodeId" validate:"required,len=32"`
	IP     string `json:"ip" validate:"required"`
	Port   string `json:"port" validate:"required"`
}

// RegisterResponse answers a /register call with this node's peer list
// and full inventory, so the caller can bootstrap in one round trip.
type RegisterResponse struct {
	Status       string                `json:"status"`
	Peers        []PeerInfo            `json:"peers"`
	NodeID       string                `json:"nodeId"`
	IP           string                `json:"ip"`
	Port         string                `json:"port"`
	Blocks       []database.Block      `json:"blocks"`
	Transactions []database.Transaction `json:"transactions"`
}

// PingResponse is the GET /ping body.
type PingResponse struct {
	Status string `json:"status"`
}

// TransactionRequest is the POST /inv body.
type TransactionRequest struct {
	Sender   string `json:"sender" validate:"required,len=32"`
	Receiver string `json:"receiver" validate:"required,len=32"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// StatusResponse is the generic {status} shape shared by /inv, /block,
// and /sync (sync also carries counts, see SyncResponse).
type StatusResponse struct {
	Status string `json:"status"`
}

// BlockRequest is the POST /block body: a fully solved candidate block.
type BlockRequest struct {
	Block database.Block `json:"block"`
}

// SyncRequest is the POST /sync body: a bulk push of peers and/or
// inventory, used by the propagator's fan-outs and by the worker's
// periodic inventory sync.
type SyncRequest struct {
	Peers        []PeerInfo              `json:"peers,omitempty"`
	Blocks       []database.Block        `json:"blocks,omitempty"`
	Transactions []database.Transaction  `json:"transactions,omitempty"`
}

// SyncResponse reports how much of a SyncRequest's payload was new.
type SyncResponse struct {
	Status             string `json:"status"`
	Added              int    `json:"added,omitempty"`
	AddedBlocks        int    `json:"addedBlocks,omitempty"`
	AddedTransactions  int    `json:"addedTransactions,omitempty"`
}

// PeersResponse is the GET /peers body.
type PeersResponse []PeerInfo
