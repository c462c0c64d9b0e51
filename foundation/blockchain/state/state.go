// Package state aggregates the pieces a running node needs to answer
// requests: its own identity, the inventory/consensus store, and the
// overlay manager's peer tables. Handlers and periodic workers are all
// constructed around a single *State value.
package state

import (
	"fmt"

	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/overlay"
)

// State is the shared context threaded through every handler and
// background worker in the node process.
type State struct {
	NodeID string
	IP     string
	Port   string

	Store   *database.Store
	Overlay *overlay.Manager

	evHandler func(v string, args ...any)
}

// New constructs a State for a node with the given identity, wired to the
// given inventory store and overlay manager.
func New(nodeID, ip, port string, store *database.Store, ov *overlay.Manager, evHandler func(v string, args ...any)) *State {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &State{
		NodeID:    nodeID,
		IP:        ip,
		Port:      port,
		Store:     store,
		Overlay:   ov,
		evHandler: evHandler,
	}
}

// Host returns this node's own "ip:port" dial string.
func (s *State) Host() string {
	return fmt.Sprintf("%s:%s", s.IP, s.Port)
}

// EventHandler exposes the shared logging/broadcast sink so other
// components constructed alongside State can log through the same path.
func (s *State) EventHandler() func(v string, args ...any) {
	return s.evHandler
}

// Status is the payload returned by GET /status.
type Status struct {
	NodeID             string         `json:"nodeId"`
	IP                 string         `json:"ip"`
	Port               string         `json:"port"`
	Blocks             int            `json:"blocks"`
	TotalPeers         int            `json:"totalPeers"`
	ActiveConnections  int            `json:"activeConnections"`
	ConnectionsByGroup map[string]int `json:"connectionsByGroup"`
	Connections        []string       `json:"connections"`
	AllPeers           []string       `json:"allPeers"`
}

// BuildStatus builds the /status payload from current overlay and inventory
// state.
func (s *State) BuildStatus() Status {
	internal, external := s.Overlay.ActiveCountByGroup()
	active := s.Overlay.ActivePeers()
	known := s.Overlay.KnownPeers()

	connections := make([]string, 0, len(active))
	for _, p := range active {
		connections = append(connections, p.Host())
	}

	allPeers := make([]string, 0, len(known))
	for _, p := range known {
		allPeers = append(allPeers, p.Host())
	}

	return Status{
		NodeID:             s.NodeID,
		IP:                 s.IP,
		Port:               s.Port,
		Blocks:             len(s.Store.GetBlocks()),
		TotalPeers:         len(known),
		ActiveConnections:  len(active),
		ConnectionsByGroup: map[string]int{"internal": internal, "external": external},
		Connections:        connections,
		AllPeers:           allPeers,
	}
}
