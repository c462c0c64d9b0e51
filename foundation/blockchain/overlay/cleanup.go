package overlay

import "time"

// Cleanup removes every known and active peer whose lastSeen is older
// than PeerTimeout.
func (m *Manager) Cleanup() {
	cutoff := time.Now().Add(-PeerTimeout)

	for _, nodeID := range m.known.StaleBefore(cutoff) {
		m.evHandler("overlay: cleanup: nodeId[%s]: TIMED OUT", nodeID)
		m.known.Remove(nodeID)
		m.active.Remove(nodeID)
	}
}
