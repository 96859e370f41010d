package state

import (
	"sync"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// defaultOrphanLimit bounds the orphan pool. Past the limit the oldest
// orphan is dropped first.
const defaultOrphanLimit = 100

// orphanPool parks structurally valid blocks that do not connect to the
// active chain: side chain blocks displaced by a fork switch and blocks
// whose parent we have not seen yet. Orphans keep their full content,
// attribution sidecar included, so displaced work remains inspectable.
type orphanPool struct {
	mu     sync.RWMutex
	limit  int
	blocks []ledger.Block
	byHash map[string]struct{}
}

func newOrphanPool(limit int) *orphanPool {
	return &orphanPool{
		limit:  limit,
		byHash: make(map[string]struct{}),
	}
}

// add parks a block, dropping the oldest orphan when the pool is full.
// Duplicates by hash are ignored.
func (op *orphanPool) add(block ledger.Block) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if _, dup := op.byHash[block.Hash]; dup {
		return
	}

	if len(op.blocks) >= op.limit {
		oldest := op.blocks[0]
		op.blocks = op.blocks[1:]
		delete(op.byHash, oldest.Hash)
	}

	op.blocks = append(op.blocks, block)
	op.byHash[block.Hash] = struct{}{}
}

// remove drops a specific orphan by hash.
func (op *orphanPool) remove(hash string) {
	op.mu.Lock()
	defer op.mu.Unlock()

	for i, b := range op.blocks {
		if b.Hash == hash {
			op.blocks = append(op.blocks[:i], op.blocks[i+1:]...)
			delete(op.byHash, hash)
			return
		}
	}
}

// children returns parked blocks that link directly to the specified
// parent hash at the specified number.
func (op *orphanPool) children(parentHash string, number uint64) []ledger.Block {
	op.mu.RLock()
	defer op.mu.RUnlock()

	var kids []ledger.Block
	for _, b := range op.blocks {
		if b.Header.PrevBlockHash == parentHash && b.Header.Number == number {
			kids = append(kids, b)
		}
	}

	return kids
}

// copyBlocks returns the parked blocks oldest first.
func (op *orphanPool) copyBlocks() []ledger.Block {
	op.mu.RLock()
	defer op.mu.RUnlock()

	blocks := make([]ledger.Block, len(op.blocks))
	copy(blocks, op.blocks)

	return blocks
}

// count returns the number of parked blocks.
func (op *orphanPool) count() int {
	op.mu.RLock()
	defer op.mu.RUnlock()

	return len(op.blocks)
}

// =============================================================================

// OrphanedBlocks returns the blocks currently parked in the orphan pool,
// oldest first.
func (s *State) OrphanedBlocks() []ledger.Block {
	return s.orphans.copyBlocks()
}

// reattachOrphans tries to extend the chain with parked blocks whose
// parent just became the tip. Each successful reattach can unlock the
// next, so the loop runs until no orphan connects.
func (s *State) reattachOrphans() {
	for {
		tip := s.LatestBlock()

		kids := s.orphans.children(tip.Hash, tip.Header.Number+1)
		if len(kids) == 0 {
			return
		}

		attached := false
		for _, kid := range kids {
			if err := s.acceptNextBlock(kid); err != nil {
				s.evHandler("state: reattach orphan: block[%d] %s: %s", kid.Header.Number, kid.Hash, err)
				s.orphans.remove(kid.Hash)
				continue
			}

			s.evHandler("state: reattach orphan: block[%d] %s joined the chain", kid.Header.Number, kid.Hash)
			s.orphans.remove(kid.Hash)
			attached = true
			break
		}

		if !attached {
			return
		}
	}
}
