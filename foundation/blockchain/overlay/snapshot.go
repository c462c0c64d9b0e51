package overlay

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/overlaychain/node/foundation/blockchain/peer"
)

// SnapshotToDisk serializes the known-peer table to path, matching the
// teacher's per-write open/truncate/write/close pattern rather than
// holding a file handle open across ticks.
func (m *Manager) SnapshotToDisk(path string) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	known := m.known.Copy("")

	data, err := json.MarshalIndent(known, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// LoadSnapshot seeds the known-peer table from path, if it exists. It is
// not an error for the file to be absent.
func (m *Manager) LoadSnapshot(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var peers []peer.Peer
	if err := json.Unmarshal(data, &peers); err != nil {
		return err
	}

	for _, p := range peers {
		// Group and LastSeen are not persisted; rebuild them so a loaded
		// peer isn't immediately treated as stale.
		m.known.Add(peer.New(p.NodeID, p.IP, p.Port))
	}

	m.evHandler("overlay: loadSnapshot: loaded %d known peers from %s", len(peers), path)

	return nil
}
