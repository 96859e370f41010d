package merkle_test

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/blockchain/merkle"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func leafHashes(values ...string) []string {
	var hashes []string
	for _, v := range values {
		hashes = append(hashes, signature.DoubleHash([]byte(v)))
	}
	return hashes
}

func Test_RootRules(t *testing.T) {
	t.Log("Given the need to compute merkle roots deterministically.")
	{
		t.Logf("\tTest 0:\tWhen building over a single leaf.")
		{
			hashes := leafHashes("tx-a")

			root, err := merkle.RootFromIDs(hashes)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build the tree: %v", failed, err)
			}

			if root != hashes[0] {
				t.Errorf("\t%s\tTest 0:\tShould use the leaf hash as the root. got %s, exp %s", failed, root, hashes[0])
			} else {
				t.Logf("\t%s\tTest 0:\tShould use the leaf hash as the root.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen building over an odd number of leaves.")
		{
			hashes := leafHashes("tx-a", "tx-b", "tx-c")

			root, err := merkle.RootFromIDs(hashes)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the tree: %v", failed, err)
			}

			// The last leaf pairs with itself.
			left := signature.DoubleHash([]byte(hashes[0] + hashes[1]))
			right := signature.DoubleHash([]byte(hashes[2] + hashes[2]))
			exp := signature.DoubleHash([]byte(left + right))

			if root != exp {
				t.Errorf("\t%s\tTest 1:\tShould duplicate the last leaf. got %s, exp %s", failed, root, exp)
			} else {
				t.Logf("\t%s\tTest 1:\tShould duplicate the last leaf.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen building over the same leaves in a different order.")
		{
			root1, err := merkle.RootFromIDs(leafHashes("tx-a", "tx-b"))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the tree: %v", failed, err)
			}
			root2, err := merkle.RootFromIDs(leafHashes("tx-b", "tx-a"))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the tree: %v", failed, err)
			}

			if root1 == root2 {
				t.Errorf("\t%s\tTest 2:\tShould produce order sensitive roots.", failed)
			} else {
				t.Logf("\t%s\tTest 2:\tShould produce order sensitive roots.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen building with no leaves.")
		{
			if _, err := merkle.RootFromIDs(nil); err == nil {
				t.Errorf("\t%s\tTest 3:\tShould reject an empty leaf set.", failed)
			} else {
				t.Logf("\t%s\tTest 3:\tShould reject an empty leaf set.", success)
			}
		}
	}
}

func Test_ProofAndVerify(t *testing.T) {
	t.Log("Given the need to prove membership and audit the tree.")
	{
		t.Logf("\tTest 0:\tWhen proving a leaf in a five leaf tree.")
		{
			hashes := leafHashes("tx-a", "tx-b", "tx-c", "tx-d", "tx-e")

			tree, err := merkle.NewTree(hashes)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build the tree: %v", failed, err)
			}

			proof, order, err := tree.Proof(hashes[2])
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to produce a proof: %v", failed, err)
			}
			if len(proof) != len(order) {
				t.Fatalf("\t%s\tTest 0:\tShould pair every proof hash with an order. got %d and %d", failed, len(proof), len(order))
			}
			t.Logf("\t%s\tTest 0:\tShould be able to produce a proof.", success)

			// Replay the proof from the leaf up.
			hash := hashes[2]
			for i, sibling := range proof {
				if order[i] == 0 {
					hash = signature.DoubleHash([]byte(sibling + hash))
				} else {
					hash = signature.DoubleHash([]byte(hash + sibling))
				}
			}

			if hash != tree.RootHex() {
				t.Errorf("\t%s\tTest 0:\tShould replay the proof to the root. got %s, exp %s", failed, hash, tree.RootHex())
			} else {
				t.Logf("\t%s\tTest 0:\tShould replay the proof to the root.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen proving a hash that is not in the tree.")
		{
			tree, err := merkle.NewTree(leafHashes("tx-a", "tx-b"))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the tree: %v", failed, err)
			}

			if _, _, err := tree.Proof(signature.DoubleHash([]byte("tx-z"))); err == nil {
				t.Errorf("\t%s\tTest 1:\tShould reject an unknown leaf.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject an unknown leaf.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen auditing an intact and a tampered tree.")
		{
			tree, err := merkle.NewTree(leafHashes("tx-a", "tx-b", "tx-c", "tx-d"))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the tree: %v", failed, err)
			}

			if err := tree.Verify(); err != nil {
				t.Errorf("\t%s\tTest 2:\tShould verify an intact tree: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 2:\tShould verify an intact tree.", success)
			}

			tree.Leafs[0].Hash = signature.DoubleHash([]byte("tampered"))
			if err := tree.Verify(); err == nil {
				t.Errorf("\t%s\tTest 2:\tShould detect a tampered leaf.", failed)
			} else {
				t.Logf("\t%s\tTest 2:\tShould detect a tampered leaf.", success)
			}
		}
	}
}
