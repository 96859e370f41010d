package worker

import (
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
)

// Sync updates the peer list, mempool, and blocks from the known peers.
// It runs once at startup before the operational G's begin.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, p := range w.state.KnownPeers() {

		// Retrieve the status of this peer.
		status, err := w.queryPeerStatus(p)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", p.Host, err)
			continue
		}

		if status.GenesisHash != w.state.Info().GenesisHash {
			w.evHandler("worker: sync: %s: genesis mismatch, dropping peer", p.Host)
			w.state.RemoveKnownPeer(p)
			continue
		}

		// Add new peers to this node's list.
		w.addNewPeers(status.KnownPeers)

		// Retrieve the mempool from the peer.
		pool, err := w.queryPeerMempool(p)
		if err != nil {
			w.evHandler("worker: sync: queryPeerMempool: %s: ERROR: %s", p.Host, err)
		}
		for _, tx := range pool {
			w.evHandler("worker: sync: queryPeerMempool: %s: add tx: %s", p.Host, tx.ID)
			if err := w.state.AddPeerTransaction(tx); err != nil {
				w.evHandler("worker: sync: queryPeerMempool: %s: tx %s rejected: %s", p.Host, tx.ID, err)
			}
		}

		// If this peer's chain differs from ours, converge on the
		// heavier one.
		w.syncBlocksFrom(p, status)
	}
}

// syncBlocksFrom converges the local chain with a peer's. A peer that is
// simply ahead hands us the missing suffix; a peer whose tip disagrees
// with ours at a height we already have forces a full chain comparison,
// which resolves on cumulative work.
func (w *Worker) syncBlocksFrom(p peer.Peer, status peer.Status) {
	local := w.state.LatestBlock()

	sameTip := status.TipNumber == local.Header.Number && status.TipHash == local.Hash
	if sameTip {
		return
	}

	// Pure extension path: ask only for what we are missing.
	if status.TipNumber > local.Header.Number {
		blocks, err := w.queryPeerBlocks(p, local.Header.Number+1)
		if err != nil {
			w.evHandler("worker: syncBlocksFrom: queryPeerBlocks: %s: ERROR: %s", p.Host, err)
			return
		}

		extended := true
		for _, block := range blocks {
			if err := w.state.AddBlock(block, false); err != nil {
				w.evHandler("worker: syncBlocksFrom: addBlock: %s: block[%d]: %s", p.Host, block.Header.Number, err)
				extended = false
				break
			}
		}
		if extended {
			return
		}
	}

	// The suffix didn't attach or the peer disagrees with history we
	// already hold. A peer reporting no more work than we hold cannot
	// win the comparison, so don't bother downloading its chain.
	if status.CumulativeWork <= w.state.Info().CumulativeWork {
		w.evHandler("worker: syncBlocksFrom: %s: reported work %d cannot beat local %d", p.Host, status.CumulativeWork, w.state.Info().CumulativeWork)
		return
	}

	// Pull the full chain and let cumulative work decide.
	chain, err := w.queryPeerBlocks(p, 0)
	if err != nil {
		w.evHandler("worker: syncBlocksFrom: queryPeerBlocks: %s: ERROR: %s", p.Host, err)
		return
	}

	outcome, err := w.state.SyncWithPeerChain(chain, p.Host)
	if err != nil {
		w.evHandler("worker: syncBlocksFrom: syncWithPeerChain: %s: ERROR: %s", p.Host, err)
		return
	}

	w.evHandler("worker: syncBlocksFrom: %s: outcome[%s] extended[%d] adopted[%d] orphaned[%d]", p.Host, outcome.Kind, outcome.Extended, outcome.Adopted, outcome.Orphaned)
}
