// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/calderaledger/caldera/business/web/errs"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
	"github.com/calderaledger/caldera/foundation/blockchain/state"
	"github.com/calderaledger/caldera/foundation/web"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// SubmitPeer registers a node with this node's known peer list.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var pr struct {
		Host string `json:"host" validate:"required"`
	}
	if err := web.Decode(r, &pr); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if h.State.AddKnownPeer(peer.New(pr.Host)) {
		h.Log.Infow("adding peer", "traceid", web.GetTraceID(ctx), "host", pr.Host)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := h.State.Info()

	status := peer.Status{
		GenesisHash:    info.GenesisHash,
		TipHash:        info.TipHash,
		TipNumber:      info.TipNumber,
		CumulativeWork: info.CumulativeWork,
		KnownPeers:     h.State.KnownPeers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.MempoolCopy()
	return web.Respond(ctx, w, txs, http.StatusOK)
}

// BlocksFrom returns the active chain blocks starting at the specified
// height.
func (h Handlers) BlocksFrom(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := h.State.BlocksFrom(from)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// ProposeBlock takes a block received from a peer, validates it and, if
// that passes, adds the block to the local chain. Mining against the old
// tip is cancelled first and resumes only after the block has been fully
// applied.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var block ledger.Block
	if err := web.Decode(r, &block); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if h.State.Worker != nil {
		done := h.State.Worker.SignalCancelMining()
		defer done()
	}

	if err := h.State.AddBlock(block, true); err != nil {
		if state.IsFutureBlock(err) {

			// We are behind this peer. Kick a sync and tell the peer we
			// need more data.
			if h.State.Worker != nil {
				go h.State.Worker.Sync()
			}
			return errs.NewTrusted(err, http.StatusConflict)
		}

		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockTemplate returns an unsealed candidate block for an external
// miner, along with the state version the template was built against.
func (h Handlers) BlockTemplate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	template, err := h.State.CreateBlockTemplate()
	if err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	return web.Respond(ctx, w, template, http.StatusOK)
}

// SubmitNodeTransaction adds new transactions shared by peers to the
// mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx ledger.Tx
	if err := web.Decode(r, &tx); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("add node tran", "traceid", v.TraceID, "tx", tx.ID)
	if err := h.State.AddPeerTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
