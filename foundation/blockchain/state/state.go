// Package state is the core API for the ledger and implements all the
// consensus rules and processing: transaction and block acceptance, block
// template construction, difficulty adjustment, and fork resolution.
package state

import (
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/lockmgr"
	"github.com/calderaledger/caldera/foundation/blockchain/mempool"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
	"github.com/calderaledger/caldera/foundation/blockchain/utxo"
)

// EventHandler defines a function that is called when events occur in the
// processing of transactions and blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining, peer updates, and transaction
// sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx ledger.Tx)
}

// Archiver interface represents the behavior required by the write behind
// persistence collaborator. It must never block block acceptance.
type Archiver interface {
	Write(block ledger.Block)
}

// =============================================================================

// Config represents the configuration required to start the node state.
type Config struct {
	MinerAddress string
	NodeID       string
	Host         string
	Genesis      genesis.Genesis
	KnownPeers   *peer.Set
	Locks        *lockmgr.Manager
	Archive      Archiver
	EvHandler    EventHandler
}

// State manages the ledger: the chain of blocks, the unspent output set,
// and the mempool, serialized through the lock manager's resource order.
type State struct {
	minerAddress string
	nodeID       string
	host         string
	evHandler    EventHandler

	genesis    genesis.Genesis
	chain      []ledger.Block // guarded by the Chain resource lock
	difficulty int            // guarded by the Chain resource lock

	utxo       *utxo.Set
	mempool    *mempool.Mempool
	orphans    *orphanPool
	locks      *lockmgr.Manager
	archive    Archiver
	knownPeers *peer.Set

	Worker Worker
}

// New constructs the node state from the build time genesis block. The
// genesis outputs seed the unspent output set, so re-initializing always
// yields the same block 0 and the same starting balances.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gen := cfg.Genesis
	if gen.AdjustEvery == 0 {
		gen = genesis.Network()
	}

	locks := cfg.Locks
	if locks == nil {
		locks = lockmgr.New(ev)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewSet()
	}

	genBlock := genesis.Block()

	set := utxo.New(utxo.Config{})
	updates := make(map[string]*utxo.Entry)
	for _, tx := range genBlock.Trans {
		for i, out := range tx.Outputs {
			entry := utxo.Entry{Amount: out.Amount, Address: out.Address}
			updates[ledger.OutpointKey(tx.ID, uint32(i))] = &entry
		}
	}
	if err := set.AtomicUpdate(updates); err != nil {
		return nil, err
	}

	s := State{
		minerAddress: cfg.MinerAddress,
		nodeID:       cfg.NodeID,
		host:         cfg.Host,
		evHandler:    ev,

		genesis:    gen,
		chain:      []ledger.Block{genBlock},
		difficulty: gen.Difficulty,

		utxo:       set,
		mempool:    mempool.New(),
		orphans:    newOrphanPool(defaultOrphanLimit),
		locks:      locks,
		archive:    cfg.Archive,
		knownPeers: knownPeers,
	}

	return &s, nil
}

// Shutdown cleanly brings the node state down.
func (s *State) Shutdown() error {
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.utxo.Shutdown()

	return nil
}

// =============================================================================

// Locks exposes the lock manager for collaborators that coordinate with
// the state's resource order.
func (s *State) Locks() *lockmgr.Manager {
	return s.locks
}

// Host returns the host this node is reachable on.
func (s *State) Host() string {
	return s.host
}

// NodeID returns this node's identity.
func (s *State) NodeID() string {
	return s.nodeID
}

// MinerAddress returns the configured miner payout address.
func (s *State) MinerAddress() string {
	return s.minerAddress
}

// Genesis returns the network policy constants.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}
