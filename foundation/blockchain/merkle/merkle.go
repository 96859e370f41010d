// Package merkle provides the merkle tree used to summarize the
// transactions in a block. Hashing is the ledger's two-stage SHA-256 over
// the hex representation of the child hashes, and a level with an odd
// number of nodes duplicates its last hash before pairing. Both rules are
// load bearing: every node must reproduce the root bit for bit.
package merkle

import (
	"errors"

	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// Tree represents a merkle tree built over a set of leaf hashes.
type Tree struct {
	Root   *Node
	Leafs  []*Node
	merkle string
}

// Node represents a node, root, or leaf in the tree.
type Node struct {
	Parent *Node
	Left   *Node
	Right  *Node
	Hash   string
	leaf   bool
	dup    bool
}

// NewTree constructs a merkle tree from the ordered set of leaf hashes.
// With a single leaf the root is that leaf's hash.
func NewTree(hashes []string) (*Tree, error) {
	if len(hashes) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	var leafs []*Node
	for _, hash := range hashes {
		leafs = append(leafs, &Node{
			Hash: hash,
			leaf: true,
		})
	}

	t := Tree{
		Leafs: leafs,
	}

	if len(leafs) == 1 {
		t.Root = leafs[0]
		t.merkle = leafs[0].Hash
		return &t, nil
	}

	if len(leafs)%2 == 1 {
		duplicate := &Node{
			Hash: leafs[len(leafs)-1].Hash,
			leaf: true,
			dup:  true,
		}
		t.Leafs = append(t.Leafs, duplicate)
	}

	root := buildIntermediate(t.Leafs)
	t.Root = root
	t.merkle = root.Hash

	return &t, nil
}

// RootHex returns the hex encoded merkle root.
func (t *Tree) RootHex() string {
	return t.merkle
}

// Proof returns the sibling hashes and concatenation order needed to prove
// the specified leaf hash is in the tree. Order 0 means the proof hash is
// concatenated first, order 1 second.
func (t *Tree) Proof(leafHash string) ([]string, []int, error) {
	for _, node := range t.Leafs {
		if node.Hash != leafHash || node.dup {
			continue
		}

		var proof []string
		var order []int

		parent := node.Parent
		for parent != nil {
			if parent.Left == node {
				proof = append(proof, parent.Right.Hash)
				order = append(order, 1)
			} else {
				proof = append(proof, parent.Left.Hash)
				order = append(order, 0)
			}
			node = parent
			parent = parent.Parent
		}

		return proof, order, nil
	}

	return nil, nil, errors.New("unable to find hash in tree")
}

// Verify recomputes the hash at every level of the tree and reports whether
// the stored root still matches.
func (t *Tree) Verify() error {
	if t.Root.verify() != t.merkle {
		return errors.New("merkle root invalid")
	}
	return nil
}

// =============================================================================

// RootFromIDs is a helper that computes the merkle root for an ordered set
// of transaction ids without keeping the tree around.
func RootFromIDs(ids []string) (string, error) {
	t, err := NewTree(ids)
	if err != nil {
		return "", err
	}
	return t.RootHex(), nil
}

// =============================================================================

// verify walks down to the leaves recomputing each level's hash.
func (n *Node) verify() string {
	if n.leaf {
		return n.Hash
	}

	return pairHash(n.Left.verify(), n.Right.verify())
}

// pairHash combines two child hashes into their parent hash.
func pairHash(left string, right string) string {
	return signature.DoubleHash([]byte(left + right))
}

// buildIntermediate constructs the intermediate and root levels of the
// tree for a given list of nodes. A level with an odd count pairs its last
// node with itself.
func buildIntermediate(nl []*Node) *Node {
	var nodes []*Node

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		n := Node{
			Left:  nl[left],
			Right: nl[right],
			Hash:  pairHash(nl[left].Hash, nl[right].Hash),
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n
		}
	}

	return buildIntermediate(nodes)
}
