// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/calderaledger/caldera/business/web/errs"
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/state"
	"github.com/calderaledger/caldera/foundation/events"
	"github.com/calderaledger/caldera/foundation/web"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds new user transactions to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx ledger.Tx
	if err := web.Decode(r, &tx); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("add wallet tran", "traceid", v.TraceID, "tx", tx.ID, "inputs", len(tx.Inputs), "outputs", len(tx.Outputs))
	if err := h.State.AddTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		TxID   string `json:"tx_id"`
	}{
		Status: "transaction added to mempool",
		TxID:   tx.ID,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis block and policy information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := Genesis{
		Policy: h.State.Genesis(),
		Block:  toBlockModel(genesis.Block()),
	}

	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Info returns a summary of the active chain.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := h.State.Info()
	return web.Respond(ctx, w, info, http.StatusOK)
}

// Balance returns the unspent total locked to an address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	balance := Balance{
		Address: address,
		Balance: h.State.Balance(address),
	}

	return web.Respond(ctx, w, balance, http.StatusOK)
}

// UTXOs returns the spendable outputs locked to an address.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	utxos := h.State.UTXOs(address)
	if len(utxos) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, utxos, http.StatusOK)
}

// Blocks returns the active chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.ChainCopy()

	models := make([]Block, len(blocks))
	for i, block := range blocks {
		models[i] = toBlockModel(block)
	}

	return web.Respond(ctx, w, models, http.StatusOK)
}

// OrphanedBlocks returns the blocks parked in the orphan pool.
func (h Handlers) OrphanedBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.OrphanedBlocks()
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	models := make([]Block, len(blocks))
	for i, block := range blocks {
		models[i] = toBlockModel(block)
	}

	return web.Respond(ctx, w, models, http.StatusOK)
}

// TransactionHistory returns the confirmed transactions touching an
// address.
func (h Handlers) TransactionHistory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	history := h.State.TransactionHistory(address)
	if len(history) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, history, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.MempoolCopy()
	return web.Respond(ctx, w, txs, http.StatusOK)
}
