package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// Register POSTs our own identity to addr's /register endpoint and
// returns the peers and inventory it advertises back.
func (m *Manager) Register(ctx context.Context, addr, ip, port string) (api.RegisterResponse, error) {
	req := api.RegisterRequest{NodeID: m.nodeID, IP: ip, Port: port}

	var resp api.RegisterResponse
	if err := m.postJSON(ctx, "http://"+addr+"/register", req, &resp); err != nil {
		return api.RegisterResponse{}, err
	}

	return resp, nil
}

// Ping GETs p's /ping endpoint.
func (m *Manager) Ping(ctx context.Context, p peer.Peer) error {
	var resp api.PingResponse
	return m.getJSON(ctx, "http://"+p.Host()+"/ping", &resp)
}

// FetchPeers GETs p's /peers endpoint.
func (m *Manager) FetchPeers(ctx context.Context, p peer.Peer) ([]peer.Peer, error) {
	var resp api.PeersResponse
	if err := m.getJSON(ctx, "http://"+p.Host()+"/peers", &resp); err != nil {
		return nil, err
	}

	peers := make([]peer.Peer, 0, len(resp))
	for _, info := range resp {
		peers = append(peers, peer.FromInfo(info))
	}
	return peers, nil
}

// PushSync POSTs a SyncRequest to p's /sync endpoint.
func (m *Manager) PushSync(ctx context.Context, p peer.Peer, req api.SyncRequest) (api.SyncResponse, error) {
	var resp api.SyncResponse
	if err := m.postJSON(ctx, "http://"+p.Host()+"/sync", req, &resp); err != nil {
		return api.SyncResponse{}, err
	}
	return resp, nil
}

// PushBlock POSTs a block to p's /block endpoint.
func (m *Manager) PushBlock(ctx context.Context, p peer.Peer, req api.BlockRequest) (api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := m.postJSON(ctx, "http://"+p.Host()+"/block", req, &resp); err != nil {
		return api.StatusResponse{}, err
	}
	return resp, nil
}

// PushTransaction POSTs a transaction to p's /inv endpoint.
func (m *Manager) PushTransaction(ctx context.Context, p peer.Peer, req api.TransactionRequest) (api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := m.postJSON(ctx, "http://"+p.Host()+"/inv", req, &resp); err != nil {
		return api.StatusResponse{}, err
	}
	return resp, nil
}

func (m *Manager) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (m *Manager) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
