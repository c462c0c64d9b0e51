package peer_test

import (
	"testing"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name: "basic",
			peers: []peer.Peer{
				peer.New("aaaa1111", "127.0.0.1", "9001"),
				peer.New("bbbb2222", "127.0.0.1", "9002"),
				peer.New("aaaa3333", "127.0.0.1", "9003"),
			},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewSet()

			for _, p := range tst.peers {
				ps.Add(p)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy(tst.peers[1].NodeID)
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould exclude the specified peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_CountByGroup(t *testing.T) {
	ps := peer.NewSet()
	ps.Add(peer.New("aaaa1111", "127.0.0.1", "9001"))
	ps.Add(peer.New("aaaa2222", "127.0.0.1", "9002"))
	ps.Add(peer.New("bbbb3333", "127.0.0.1", "9003"))

	internal, external := ps.CountByGroup('a')
	if internal != 2 {
		t.Fatalf("Test_CountByGroup:\tgot internal %d, exp 2", internal)
	}
	if external != 1 {
		t.Fatalf("Test_CountByGroup:\tgot external %d, exp 1", external)
	}
}

func Test_StaleBefore(t *testing.T) {
	ps := peer.NewSet()
	ps.Add(peer.New("aaaa1111", "127.0.0.1", "9001"))

	cutoff := time.Now().Add(time.Minute)
	stale := ps.StaleBefore(cutoff)
	if len(stale) != 1 {
		t.Fatalf("Test_StaleBefore:\tgot %d, exp 1", len(stale))
	}

	cutoff = time.Now().Add(-time.Minute)
	stale = ps.StaleBefore(cutoff)
	if len(stale) != 0 {
		t.Fatalf("Test_StaleBefore:\tgot %d, exp 0", len(stale))
	}
}
