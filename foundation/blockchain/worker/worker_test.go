package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/genesis"
	"github.com/overlaychain/node/foundation/blockchain/identity"
	"github.com/overlaychain/node/foundation/blockchain/overlay"
	"github.com/overlaychain/node/foundation/blockchain/peer"
	"github.com/overlaychain/node/foundation/blockchain/propagator"
	"github.com/overlaychain/node/foundation/blockchain/state"
)

const (
	success = "✓"
	failed  = "✗"
)

func Test_SyncOperationPushesInventory(t *testing.T) {
	var syncHits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			json.NewEncoder(w).Encode(api.PingResponse{Status: "alive"})
		case "/sync":
			syncHits.Add(1)
			var req api.SyncRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(api.SyncResponse{Status: "ok", AddedBlocks: len(req.Blocks)})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ip, port := splitHostPort(t, srv.Listener.Addr().String())

	creator := identity.New()
	store := database.New(genesis.Default(), nil)
	genBlock, err := database.NewGenesisBlock(creator)
	if err != nil {
		t.Fatalf("%s should build genesis block: %v", failed, err)
	}
	if _, err := store.AddBlock(genBlock); err != nil {
		t.Fatalf("%s should add genesis block: %v", failed, err)
	}

	ov := overlay.New(identity.New(), nil)
	target := peer.New(identity.New(), ip, port)
	if err := ov.TryEstablishConnection(context.Background(), target); err != nil {
		t.Fatalf("%s should connect to test server: %v", failed, err)
	}

	st := state.New(identity.New(), "127.0.0.1", "0", store, ov, nil)
	prop := propagator.New(ov, nil)
	w := New(st, prop, "")

	w.syncOperation(context.Background())

	if syncHits.Load() != 1 {
		t.Fatalf("%s expected exactly one /sync hit, got %d", failed, syncHits.Load())
	}
	t.Logf("%s inventory synced to active peer", success)
}

func splitHostPort(t *testing.T, hostport string) (string, string) {
	t.Helper()

	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i], hostport[i+1:]
		}
	}
	t.Fatalf("%s no colon in %q", failed, hostport)
	return "", ""
}
