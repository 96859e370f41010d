package worker

import (
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
)

// peerOperations handles finding new peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list and catches the chain up.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	for _, p := range w.state.KnownPeers() {

		// Retrieve the status of this peer.
		status, err := w.queryPeerStatus(p)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", p.Host, err)
			w.state.RemoveKnownPeer(p)
			continue
		}

		// A peer on a different genesis is not on this network.
		if status.GenesisHash != w.state.Info().GenesisHash {
			w.evHandler("worker: runPeersOperation: %s: genesis mismatch, dropping peer", p.Host)
			w.state.RemoveKnownPeer(p)
			continue
		}

		// Add new peers to this node's list.
		w.addNewPeers(status.KnownPeers)

		// Catch up if this peer holds a heavier chain. Work, not tip
		// height, is the measure: a shorter branch can still win.
		if status.CumulativeWork > w.state.Info().CumulativeWork {
			w.syncBlocksFrom(p, status)
		}
	}

	// Let the latest peers know this node is available.
	for _, p := range w.state.KnownPeers() {
		if err := w.registerWithPeer(p); err != nil {
			w.evHandler("worker: runPeersOperation: registerWithPeer: %s: ERROR: %s", p.Host, err)
		}
	}
}

// addNewPeers takes the list of known peers and makes sure they are
// included in this node's list of known peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: addNewPeers: started")
	defer w.evHandler("worker: addNewPeers: completed")

	for _, p := range knownPeers {

		// Don't add this running node to the known peer list.
		if p.Match(w.state.Host()) {
			continue
		}

		if w.state.AddKnownPeer(p) {
			w.evHandler("worker: addNewPeers: adding peer-node %s", p.Host)
		}
	}
}
