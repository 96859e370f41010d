package archive_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/calderaledger/caldera/foundation/blockchain/archive"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_Archive(t *testing.T) {
	t.Log("Given the need to persist finalized blocks off the critical path.")
	{
		t.Logf("\tTest 0:\tWhen writing blocks and querying them back.")
		{
			path := filepath.Join(t.TempDir(), "archive.db")

			a, err := archive.New(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould open the archive: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould open the archive.", success)

			blocks := []ledger.Block{
				{
					Header: ledger.BlockHeader{Number: 1, PrevBlockHash: "prev1", TimeStamp: 1},
					Trans:  []ledger.Tx{ledger.NewCoinbaseTx("miner-a", 700, 1, "b1")},
					Origin: ledger.Origin{NodeID: "node1", Miner: "miner-a", Reward: 700},
					Hash:   "hash1",
				},
				{
					Header: ledger.BlockHeader{Number: 2, PrevBlockHash: "hash1", TimeStamp: 2},
					Trans:  []ledger.Tx{ledger.NewCoinbaseTx("miner-b", 700, 2, "b2")},
					Origin: ledger.Origin{NodeID: "node2", Miner: "miner-b", Reward: 700},
					Hash:   "hash2",
				},
				{
					Header: ledger.BlockHeader{Number: 3, PrevBlockHash: "hash2", TimeStamp: 3},
					Trans:  []ledger.Tx{ledger.NewCoinbaseTx("miner-a", 700, 3, "b3")},
					Origin: ledger.Origin{NodeID: "node1", Miner: "miner-a", Reward: 700},
					Hash:   "hash3",
				},
			}
			for _, block := range blocks {
				a.Write(block)
			}

			// The writer is asynchronous; give the queue a moment to drain.
			var hashes []string
			for i := 0; i < 50; i++ {
				hashes, err = a.BlocksByMiner("miner-a")
				if err == nil && len(hashes) == 2 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould query blocks by miner: %v", failed, err)
			}

			if len(hashes) != 2 || hashes[0] != "hash1" || hashes[1] != "hash3" {
				t.Errorf("\t%s\tTest 0:\tShould return the miner's blocks in order. got %v", failed, hashes)
			} else {
				t.Logf("\t%s\tTest 0:\tShould return the miner's blocks in order.", success)
			}

			// Re-archiving the same block must not duplicate the row.
			a.Write(blocks[0])

			if err := a.Close(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould close cleanly: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould close cleanly.", success)

			a2, err := archive.New(path, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould reopen the archive: %v", failed, err)
			}
			defer a2.Close()

			hashes, err = a2.BlocksByMiner("miner-a")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould query after reopen: %v", failed, err)
			}
			if len(hashes) != 2 {
				t.Errorf("\t%s\tTest 0:\tShould keep one row per block hash. got %d", failed, len(hashes))
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep one row per block hash.", success)
			}
		}
	}
}
