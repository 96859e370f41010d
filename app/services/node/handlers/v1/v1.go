// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/calderaledger/caldera/app/services/node/handlers/v1/private"
	"github.com/calderaledger/caldera/app/services/node/handlers/v1/public"
	"github.com/calderaledger/caldera/foundation/blockchain/state"
	"github.com/calderaledger/caldera/foundation/events"
	"github.com/calderaledger/caldera/foundation/web"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/info", pbl.Info)
	app.Handle(http.MethodGet, version, "/balances/list/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/utxos/list/:address", pbl.UTXOs)
	app.Handle(http.MethodGet, version, "/blocks/list", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/orphaned/list", pbl.OrphanedBlocks)
	app.Handle(http.MethodGet, version, "/tx/history/:address", pbl.TransactionHistory)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/mempool", prv.Mempool)
	app.Handle(http.MethodGet, version, "/node/blocks/list/:from", prv.BlocksFrom)
	app.Handle(http.MethodGet, version, "/node/block/template", prv.BlockTemplate)
	app.Handle(http.MethodPost, version, "/node/block/propose", prv.ProposeBlock)
	app.Handle(http.MethodPost, version, "/node/tx/submit", prv.SubmitNodeTransaction)
}
