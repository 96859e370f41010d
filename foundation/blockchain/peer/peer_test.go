package peer_test

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/blockchain/peer"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_PeerSet(t *testing.T) {
	t.Log("Given the need to maintain the set of known peers.")
	{
		t.Logf("\tTest 0:\tWhen adding peers to the set.")
		{
			ps := peer.NewSet()

			if !ps.Add(peer.New("host1:9080")) {
				t.Errorf("\t%s\tTest 0:\tShould report a new peer as new.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould report a new peer as new.", success)
			}

			if ps.Add(peer.New("host1:9080")) {
				t.Errorf("\t%s\tTest 0:\tShould report a known peer as known.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould report a known peer as known.", success)
			}

			ps.Add(peer.New("host2:9080"))

			if peers := ps.Copy(""); len(peers) != 2 {
				t.Errorf("\t%s\tTest 0:\tShould hold both peers. got %d", failed, len(peers))
			} else {
				t.Logf("\t%s\tTest 0:\tShould hold both peers.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen copying with the local host excluded.")
		{
			ps := peer.NewSet()
			ps.Add(peer.New("host1:9080"))
			ps.Add(peer.New("host2:9080"))

			peers := ps.Copy("host1:9080")
			if len(peers) != 1 || !peers[0].Match("host2:9080") {
				t.Errorf("\t%s\tTest 1:\tShould exclude the local host. got %v", failed, peers)
			} else {
				t.Logf("\t%s\tTest 1:\tShould exclude the local host.", success)
			}

			ps.Remove(peer.New("host2:9080"))
			if peers := ps.Copy("host1:9080"); len(peers) != 0 {
				t.Errorf("\t%s\tTest 1:\tShould remove a peer. got %d", failed, len(peers))
			} else {
				t.Logf("\t%s\tTest 1:\tShould remove a peer.", success)
			}
		}
	}
}
