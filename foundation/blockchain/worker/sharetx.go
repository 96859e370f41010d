package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// maxTxShareRequests represents the max number of pending tx network share
// requests that can be outstanding before share requests are dropped. To keep
// this simple, a buffered channel of this arbitrary number is being used. If
// the channel does become full, requests for new transactions to be shared
// will not be accepted.
const maxTxShareRequests = 100

// broadcastTimeout bounds a whole fan out to the peer set.
const broadcastTimeout = 15 * time.Second

// =============================================================================

// shareTxOperations handles sharing new transactions.
func (w *Worker) shareTxOperations() {
	w.evHandler("worker: shareTxOperations: G started")
	defer w.evHandler("worker: shareTxOperations: G completed")

	for {
		select {
		case tx := <-w.txSharing:
			if !w.isShutdown() {
				w.runShareTxOperation(tx)
			}
		case <-w.shut:
			w.evHandler("worker: shareTxOperations: received shut signal")
			return
		}
	}
}

// runShareTxOperation shares a new transaction with the known peers. The
// fan out runs concurrently; one slow peer must not hold up the rest.
func (w *Worker) runShareTxOperation(tx ledger.Tx) {
	w.evHandler("worker: runShareTxOperation: started")
	defer w.evHandler("worker: runShareTxOperation: completed")

	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)

	for _, p := range w.state.KnownPeers() {
		p := p
		g.Go(func() error {
			url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, p.Host))
			if err := send(http.MethodPost, url, tx, nil); err != nil {
				w.evHandler("worker: runShareTxOperation: WARNING: %s", err)
			}
			return nil
		})
	}

	g.Wait()
}

// sendBlockToPeers shares a freshly mined block with the known peers
// concurrently. Any peer that rejects the block is reported in the
// returned error, but the broadcast still reaches everyone else.
func (w *Worker) sendBlockToPeers(block ledger.Block) error {
	w.evHandler("worker: sendBlockToPeers: started")
	defer w.evHandler("worker: sendBlockToPeers: completed")

	peers := w.state.KnownPeers()
	if len(peers) == 0 {
		return ledger.NewValidationError(ledger.ReasonIsolatedNode, "no known peers to send block %d to", block.Header.Number)
	}

	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)

	for _, p := range peers {
		p := p
		g.Go(func() error {
			url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, p.Host))
			if err := send(http.MethodPost, url, block, nil); err != nil {
				return fmt.Errorf("peer %s: %w", p.Host, err)
			}
			return nil
		})
	}

	return g.Wait()
}
